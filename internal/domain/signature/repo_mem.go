package signature

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// InMemoryRepo is a thread-safe Repository for tests and development. Its
// Create performs the same conditional-insert the PostgreSQL unique index
// enforces.
type InMemoryRepo struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Signature
	byKey  map[string]uuid.UUID
}

// NewInMemoryRepo creates an empty in-memory repository.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		byID:  make(map[uuid.UUID]*Signature),
		byKey: make(map[string]uuid.UUID),
	}
}

func reportKey(reportID uuid.UUID, version int) string {
	return fmt.Sprintf("%s/%d", reportID, version)
}

func (r *InMemoryRepo) Create(_ context.Context, s *Signature) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := reportKey(s.ReportID, s.ReportVersion)
	if _, exists := r.byKey[key]; exists {
		return ErrDuplicateSignature
	}
	cp := clone(s)
	r.byID[cp.ID] = cp
	r.byKey[key] = cp.ID
	return nil
}

func (r *InMemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Signature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (r *InMemoryRepo) GetByReportVersion(_ context.Context, reportID uuid.UUID, version int) (*Signature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[reportKey(reportID, version)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *InMemoryRepo) ListByReport(_ context.Context, reportID uuid.UUID) ([]*Signature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Signature
	for _, s := range r.byID {
		if s.ReportID == reportID {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportVersion < out[j].ReportVersion })
	return out, nil
}

func (r *InMemoryRepo) Update(_ context.Context, s *Signature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID]; !ok {
		return ErrNotFound
	}
	r.byID[s.ID] = clone(s)
	return nil
}

func clone(s *Signature) *Signature {
	cp := *s
	cp.AuditTrail = append([]TrailEvent(nil), s.AuditTrail...)
	if s.FrozenPayload != nil {
		cp.FrozenPayload = make(map[string]any, len(s.FrozenPayload))
		for k, v := range s.FrozenPayload {
			cp.FrozenPayload[k] = v
		}
	}
	return &cp
}
