package signature

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists signatures. Create must enforce at-most-one signature
// per (reportId, reportVersion) atomically at the storage layer and return
// ErrDuplicateSignature on conflict; Update only ever applies lifecycle
// mutations (status, revocation fields, audit trail); signatures are never
// physically deleted outside the retention purge.
type Repository interface {
	Create(ctx context.Context, s *Signature) error
	GetByID(ctx context.Context, id uuid.UUID) (*Signature, error)
	GetByReportVersion(ctx context.Context, reportID uuid.UUID, version int) (*Signature, error)
	ListByReport(ctx context.Context, reportID uuid.UUID) ([]*Signature, error)
	Update(ctx context.Context, s *Signature) error
}
