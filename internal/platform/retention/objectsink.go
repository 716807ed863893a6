package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/radpacs/radpacs/internal/platform/compliance"
	"github.com/radpacs/radpacs/internal/platform/objectstore"
)

// ObjectSink archives audit batches as write-once JSON documents under
// audit-logs/YYYY/MM/DD/<batchID>.json. Used when no external collector is
// configured.
type ObjectSink struct {
	store objectstore.Store
	now   func() time.Time
}

func NewObjectSink(store objectstore.Store) *ObjectSink {
	return &ObjectSink{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *ObjectSink) ExportBatch(ctx context.Context, batchID string, events []*compliance.Event) error {
	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	key := fmt.Sprintf("audit-logs/%s/%s.json", s.now().Format("2006/01/02"), batchID)
	if _, err := s.store.Put(ctx, key, "application/json", data); err != nil {
		return fmt.Errorf("archive batch %s: %w", batchID, err)
	}
	return nil
}
