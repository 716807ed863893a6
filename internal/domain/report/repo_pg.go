package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// repoPG stores reports append-only: every content change inserts a new row
// keyed by (id, version), so historical versions stay resolvable for
// signature verification.
type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const reportCols = `id, patient_id, accession_number, version, status, technique,
	findings_text, impression, sections, measurements, template_id,
	template_version, created_at, updated_at`

func scanReport(row pgx.Row) (*Report, error) {
	var rep Report
	var status string
	var sections, measurements []byte
	err := row.Scan(&rep.ID, &rep.PatientID, &rep.AccessionNumber, &rep.Version, &status,
		&rep.Technique, &rep.FindingsText, &rep.Impression, &sections, &measurements,
		&rep.TemplateID, &rep.TemplateVersion, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rep.Status, err = CanonicalStatus(status)
	if err != nil {
		return nil, err
	}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &rep.Sections); err != nil {
			return nil, fmt.Errorf("decode sections: %w", err)
		}
	}
	if len(measurements) > 0 {
		if err := json.Unmarshal(measurements, &rep.Measurements); err != nil {
			return nil, fmt.Errorf("decode measurements: %w", err)
		}
	}
	return &rep, nil
}

func (r *repoPG) insert(ctx context.Context, rep *Report) error {
	sections, err := json.Marshal(rep.Sections)
	if err != nil {
		return fmt.Errorf("encode sections: %w", err)
	}
	measurements, err := json.Marshal(rep.Measurements)
	if err != nil {
		return fmt.Errorf("encode measurements: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO report (`+reportCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rep.ID, rep.PatientID, rep.AccessionNumber, rep.Version, string(rep.Status),
		rep.Technique, rep.FindingsText, rep.Impression, sections, measurements,
		rep.TemplateID, rep.TemplateVersion, rep.CreatedAt, rep.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *repoPG) Create(ctx context.Context, rep *Report) error {
	return r.insert(ctx, rep)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+reportCols+` FROM report
		WHERE id = $1
		ORDER BY version DESC
		LIMIT 1`, id)
	rep, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rep, err
}

func (r *repoPG) GetVersion(ctx context.Context, id uuid.UUID, version int) (*Report, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+reportCols+` FROM report
		WHERE id = $1 AND version = $2`, id, version)
	rep, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rep, err
}

// Update appends the report as a new version row.
func (r *repoPG) Update(ctx context.Context, rep *Report) error {
	return r.insert(ctx, rep)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Report, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT id) FROM report WHERE patient_id = $1`, patientID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (id) `+reportCols+` FROM report
		WHERE patient_id = $1
		ORDER BY id, version DESC
		OFFSET $2 LIMIT $3`, patientID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []*Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rep)
	}
	return out, total, rows.Err()
}
