package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/radpacs/radpacs/internal/platform/compliance"
)

// ExportSink receives a batch of audit events for immutable external
// storage. A nil return is the acknowledgment that makes the batch
// purge-eligible; any error leaves the events unexported so the next cycle
// retries them.
type ExportSink interface {
	ExportBatch(ctx context.Context, batchID string, events []*compliance.Event) error
}

// Exporter drains unexported audit events to an ExportSink and purges
// acknowledged events past their retention horizon. Purge never touches an
// event the sink has not acknowledged.
type Exporter struct {
	store     compliance.EventStore
	sink      ExportSink
	policies  *Service
	log       zerolog.Logger
	batchSize int
	now       func() time.Time
}

func NewExporter(store compliance.EventStore, sink ExportSink, policies *Service, batchSize int, log zerolog.Logger) *Exporter {
	if batchSize < 1 {
		batchSize = 500
	}
	return &Exporter{
		store:     store,
		sink:      sink,
		policies:  policies,
		log:       log.With().Str("component", "retention-exporter").Logger(),
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the clock. Intended for tests.
func (e *Exporter) SetClock(now func() time.Time) {
	e.now = now
}

// ExportOnce ships unexported events in batches until the backlog is empty
// or a batch fails. Events are marked exported only after the sink
// acknowledges them, so a sink failure leaves the batch eligible for the
// next cycle.
func (e *Exporter) ExportOnce(ctx context.Context) (int, error) {
	exported := 0
	for {
		events, err := e.store.ListUnexported(ctx, e.now(), e.batchSize)
		if err != nil {
			return exported, fmt.Errorf("list unexported: %w", err)
		}
		if len(events) == 0 {
			return exported, nil
		}

		batchID := uuid.New().String()
		if err := e.sink.ExportBatch(ctx, batchID, events); err != nil {
			e.log.Error().Err(err).
				Str("batch_id", batchID).
				Int("events", len(events)).
				Msg("export batch failed, will retry next cycle")
			return exported, fmt.Errorf("export batch %s: %w", batchID, err)
		}

		ids := make([]uuid.UUID, len(events))
		for i, ev := range events {
			ids[i] = ev.ID
		}
		if err := e.store.MarkExported(ctx, ids, batchID); err != nil {
			return exported, fmt.Errorf("mark exported: %w", err)
		}

		exported += len(events)
		e.log.Info().
			Str("batch_id", batchID).
			Int("events", len(events)).
			Msg("audit batch exported")

		if len(events) < e.batchSize {
			return exported, nil
		}
	}
}

// EnforceRetention purges exported events past their class horizon.
func (e *Exporter) EnforceRetention(ctx context.Context) (int64, error) {
	var total int64
	now := e.now()
	for _, class := range []compliance.RecordClass{compliance.ClassCompliance, compliance.ClassOperational} {
		cutoff := e.policies.Horizon(class, now)
		if cutoff.IsZero() {
			continue
		}
		purged, err := e.store.PurgeExportedBefore(ctx, class, cutoff)
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", class, err)
		}
		if purged > 0 {
			e.log.Info().
				Str("record_class", string(class)).
				Int64("purged", purged).
				Time("cutoff", cutoff).
				Msg("retention purge complete")
		}
		total += purged
	}
	return total, nil
}

// Run exports and enforces retention on a fixed interval until ctx is
// canceled. One cycle's failure is logged and the loop continues; unexported
// events simply wait for the next cycle.
func (e *Exporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.Info().Dur("interval", interval).Msg("retention exporter started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("retention exporter stopped")
			return
		case <-ticker.C:
			if _, err := e.ExportOnce(ctx); err != nil {
				e.log.Error().Err(err).Msg("export cycle failed")
				continue
			}
			if _, err := e.EnforceRetention(ctx); err != nil {
				e.log.Error().Err(err).Msg("retention enforcement failed")
			}
		}
	}
}
