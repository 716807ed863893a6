package report

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores versioned reports. GetVersion retrieves a specific
// historical version; GetByID always returns the current one.
type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	GetVersion(ctx context.Context, id uuid.UUID, version int) (*Report, error)
	Update(ctx context.Context, r *Report) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Report, int, error)
}
