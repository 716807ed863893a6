package compliance

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEventNotFound is returned when an event lookup misses.
var ErrEventNotFound = errors.New("compliance event not found")

// SearchQuery filters stored events.
type SearchQuery struct {
	EventType     string
	Severity      Severity
	CorrelationID string
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// EventStore persists compliance events. Records are append-only: the only
// permitted mutations are the export acknowledgment marker and the purge of
// exported records past the retention horizon.
type EventStore interface {
	// Write appends a new event. The event's ID is assigned if unset.
	Write(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	Search(ctx context.Context, q SearchQuery) ([]*Event, int, error)
	// ListUnexported returns events older than before that have not yet been
	// acknowledged by an external store, oldest first.
	ListUnexported(ctx context.Context, before time.Time, limit int) ([]*Event, error)
	// MarkExported records the export acknowledgment for a batch of events.
	MarkExported(ctx context.Context, ids []uuid.UUID, batchID string) error
	// PurgeExportedBefore deletes events of the given record class whose
	// timestamp precedes cutoff AND that carry an export acknowledgment.
	// Unexported events are never purged.
	PurgeExportedBefore(ctx context.Context, class RecordClass, cutoff time.Time) (int64, error)
}

// InMemoryEventStore is a thread-safe EventStore for tests and development.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events map[uuid.UUID]*Event
	order  []uuid.UUID
}

// NewInMemoryEventStore creates an empty in-memory store.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{events: make(map[uuid.UUID]*Event)}
}

func (s *InMemoryEventStore) Write(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	cp := *e
	s.events[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	return nil
}

func (s *InMemoryEventStore) GetByID(_ context.Context, id uuid.UUID) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *InMemoryEventStore) Search(_ context.Context, q SearchQuery) ([]*Event, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Event
	for _, id := range s.order {
		e, ok := s.events[id]
		if !ok {
			continue
		}
		if q.EventType != "" && e.EventType != q.EventType {
			continue
		}
		if q.Severity != "" && e.Severity != q.Severity {
			continue
		}
		if q.CorrelationID != "" && e.CorrelationID != q.CorrelationID {
			continue
		}
		if q.From != nil && e.Timestamp.Before(*q.From) {
			continue
		}
		if q.To != nil && e.Timestamp.After(*q.To) {
			continue
		}
		cp := *e
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	total := len(matched)
	offset := q.Offset
	if offset > total {
		offset = total
	}
	end := total
	if q.Limit > 0 && offset+q.Limit < total {
		end = offset + q.Limit
	}
	return matched[offset:end], total, nil
}

func (s *InMemoryEventStore) ListUnexported(_ context.Context, before time.Time, limit int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Event
	for _, id := range s.order {
		e, ok := s.events[id]
		if !ok || e.ExportedAt != nil {
			continue
		}
		if !e.Timestamp.Before(before) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryEventStore) MarkExported(_ context.Context, ids []uuid.UUID, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, id := range ids {
		if e, ok := s.events[id]; ok {
			e.ExportedAt = &now
			e.ExportBatchID = batchID
		}
	}
	return nil
}

func (s *InMemoryEventStore) PurgeExportedBefore(_ context.Context, class RecordClass, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	remaining := s.order[:0]
	for _, id := range s.order {
		e, ok := s.events[id]
		if ok && ClassOf(e.EventType) == class && e.ExportedAt != nil && e.Timestamp.Before(cutoff) {
			delete(s.events, id)
			purged++
			continue
		}
		remaining = append(remaining, id)
	}
	s.order = remaining
	return purged, nil
}
