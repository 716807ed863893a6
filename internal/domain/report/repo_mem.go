package report

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// InMemoryRepo keeps every version of every report. Used in tests and in the
// sandbox profile where no database is configured.
type InMemoryRepo struct {
	mu       sync.RWMutex
	versions map[uuid.UUID][]*Report
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{versions: make(map[uuid.UUID][]*Report)}
}

func (r *InMemoryRepo) Create(_ context.Context, rep *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions[rep.ID] = append(r.versions[rep.ID], cloneReport(rep))
	return nil
}

func (r *InMemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs, ok := r.versions[id]
	if !ok || len(vs) == 0 {
		return nil, ErrNotFound
	}
	return cloneReport(vs[len(vs)-1]), nil
}

func (r *InMemoryRepo) GetVersion(_ context.Context, id uuid.UUID, version int) (*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.versions[id] {
		if v.Version == version {
			return cloneReport(v), nil
		}
	}
	return nil, ErrNotFound
}

// Update appends the report as a new version row.
func (r *InMemoryRepo) Update(_ context.Context, rep *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.versions[rep.ID]; !ok {
		return ErrNotFound
	}
	r.versions[rep.ID] = append(r.versions[rep.ID], cloneReport(rep))
	return nil
}

func (r *InMemoryRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Report, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var current []*Report
	for _, vs := range r.versions {
		latest := vs[len(vs)-1]
		if latest.PatientID == patientID {
			current = append(current, cloneReport(latest))
		}
	}
	sort.Slice(current, func(i, j int) bool { return current[i].CreatedAt.Before(current[j].CreatedAt) })

	total := len(current)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return current[offset:end], total, nil
}

func cloneReport(rep *Report) *Report {
	cp := *rep
	if rep.Sections != nil {
		cp.Sections = make(map[string]any, len(rep.Sections))
		for k, v := range rep.Sections {
			cp.Sections[k] = v
		}
	}
	cp.Measurements = append([]any(nil), rep.Measurements...)
	return &cp
}
