package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo Repository
	log  zerolog.Logger
	now  func() time.Time
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "report-service").Logger(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create persists version 1 of a new report.
func (s *Service) Create(ctx context.Context, rep *Report) error {
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	if rep.Status == "" {
		rep.Status = StatusPreliminary
	}
	canonical, err := CanonicalStatus(string(rep.Status))
	if err != nil {
		return err
	}
	rep.Status = canonical
	rep.Version = 1
	now := s.now()
	rep.CreatedAt = now
	rep.UpdatedAt = now
	if err := rep.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, rep); err != nil {
		return err
	}
	s.log.Info().Str("report_id", rep.ID.String()).Msg("report created")
	return nil
}

// Amend writes the report's new content as the next version. A finalized
// report that changes moves to amended; preliminary reports stay preliminary
// until finalized.
func (s *Service) Amend(ctx context.Context, id uuid.UUID, mutate func(*Report)) (*Report, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *current
	mutate(&next)
	next.ID = current.ID
	next.PatientID = current.PatientID
	next.Version = current.Version + 1
	next.UpdatedAt = s.now()
	if current.Status == StatusFinal || current.Status == StatusAmended {
		next.Status = StatusAmended
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &next); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("report_id", id.String()).
		Int("version", next.Version).
		Msg("report amended")
	return &next, nil
}

// Finalize moves the current version to final without a content change.
func (s *Service) Finalize(ctx context.Context, id uuid.UUID) (*Report, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusFinal {
		return current, nil
	}
	next := *current
	next.Version = current.Version + 1
	next.Status = StatusFinal
	next.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetVersion(ctx context.Context, id uuid.UUID, version int) (*Report, error) {
	return s.repo.GetVersion(ctx, id, version)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Report, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// Snapshot returns the signing payload for the given report version. Signing
// is only permitted against the current version: a stale version means the
// report changed since the signer last read it.
func (s *Service) Snapshot(ctx context.Context, id uuid.UUID, version int) (map[string]any, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != version {
		return nil, fmt.Errorf("%w: requested %d, current %d", ErrStaleVersion, version, current.Version)
	}
	return current.SigningPayload(), nil
}
