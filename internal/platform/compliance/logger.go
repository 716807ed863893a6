package compliance

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// LoggerConfig identifies the emitting service and sizes the async pipeline.
// One Logger is constructed at startup and passed to every component that
// emits compliance events; there is no package-level singleton.
type LoggerConfig struct {
	Service     string
	Version     string
	Environment string
	QueueSize   int
	Workers     int
	// MaxAttempts and BaseDelay tune the per-event store retry. Zero values
	// fall back to 3 attempts starting at 100ms.
	MaxAttempts int
	BaseDelay   time.Duration
}

func (c *LoggerConfig) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
}

// Stats exposes the logger's operational counters. Dropped counts are the
// only acceptable form of event loss: a full buffer or an exhausted retry
// increments a counter that operations can alarm on, never a silent discard.
type Stats struct {
	Enqueued    int64 `json:"enqueued"`
	Written     int64 `json:"written"`
	Retried     int64 `json:"retried"`
	DroppedFull int64 `json:"dropped_queue_full"`
	DroppedSink int64 `json:"dropped_sink_failure"`
}

// Logger redacts, enriches, and asynchronously persists compliance audit
// events. Emission never blocks the calling business operation: events are
// queued on a bounded channel drained by background workers, and store
// failures are retried with exponential backoff off the request path.
type Logger struct {
	cfg   LoggerConfig
	store EventStore
	log   zerolog.Logger
	queue chan *Event
	wg    sync.WaitGroup
	clock func() time.Time

	enqueued    atomic.Int64
	written     atomic.Int64
	retried     atomic.Int64
	droppedFull atomic.Int64
	droppedSink atomic.Int64

	closeOnce sync.Once
}

// NewLogger builds a Logger writing to store and starts its workers.
func NewLogger(cfg LoggerConfig, store EventStore, log zerolog.Logger) *Logger {
	cfg.applyDefaults()
	l := &Logger{
		cfg:   cfg,
		store: store,
		log:   log.With().Str("component", "compliance-logger").Logger(),
		queue: make(chan *Event, cfg.QueueSize),
		clock: func() time.Time { return time.Now().UTC() },
	}
	for i := 0; i < cfg.Workers; i++ {
		l.wg.Add(1)
		go l.worker()
	}
	return l
}

// Log redacts details, resolves severity, and enqueues a compliance event.
// It returns the correlation ID used (the supplied one, the one carried by
// ctx, or a fresh UUID v4) so callers can link causally related events.
func (l *Logger) Log(ctx context.Context, eventType string, details Detailer, correlationID string) string {
	var raw map[string]any
	if details != nil {
		raw = details.AuditDetails()
	}
	return l.logMap(ctx, eventType, raw, correlationID)
}

func (l *Logger) logMap(ctx context.Context, eventType string, raw map[string]any, correlationID string) string {
	if correlationID == "" {
		correlationID = CorrelationIDFromContext(ctx)
	}
	if correlationID == "" {
		correlationID = NewCorrelationID()
	}

	if !ValidEventType(eventType) {
		l.droppedSink.Add(1)
		l.log.Error().Str("event_type", eventType).Msg("rejected malformed audit event type")
		return correlationID
	}

	e := &Event{
		CorrelationID: correlationID,
		Timestamp:     l.clock(),
		Service:       l.cfg.Service,
		Version:       l.cfg.Version,
		Environment:   l.cfg.Environment,
		EventType:     eventType,
		Severity:      ResolveSeverity(eventType),
		Details:       Redact(raw),
	}

	select {
	case l.queue <- e:
		l.enqueued.Add(1)
	default:
		l.droppedFull.Add(1)
		l.log.Warn().
			Str("event_type", eventType).
			Str("correlation_id", correlationID).
			Int64("dropped_total", l.droppedFull.Load()).
			Msg("audit queue full, event dropped")
	}
	return correlationID
}

func (l *Logger) worker() {
	defer l.wg.Done()
	for e := range l.queue {
		l.persist(e)
	}
}

// persist writes one event, retrying with exponential backoff. The retry
// context is detached from any request: sink trouble must never surface to
// the business operation that emitted the event.
func (l *Logger) persist(e *Event) {
	delay := l.cfg.BaseDelay
	for attempt := 1; attempt <= l.cfg.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := l.store.Write(ctx, e)
		cancel()
		if err == nil {
			l.written.Add(1)
			return
		}
		if attempt < l.cfg.MaxAttempts {
			l.retried.Add(1)
			time.Sleep(delay)
			delay *= 2
			continue
		}
		l.droppedSink.Add(1)
		l.log.Error().Err(err).
			Str("event_type", e.EventType).
			Str("correlation_id", e.CorrelationID).
			Int64("dropped_total", l.droppedSink.Load()).
			Msg("audit event dropped after retries")
	}
}

// Stats returns a snapshot of the operational counters.
func (l *Logger) Stats() Stats {
	return Stats{
		Enqueued:    l.enqueued.Load(),
		Written:     l.written.Load(),
		Retried:     l.retried.Load(),
		DroppedFull: l.droppedFull.Load(),
		DroppedSink: l.droppedSink.Load(),
	}
}

// Close stops accepting events and waits for the queue to drain.
func (l *Logger) Close() {
	l.closeOnce.Do(func() {
		close(l.queue)
	})
	l.wg.Wait()
}
