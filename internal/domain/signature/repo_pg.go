package signature

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// repoPG is the PostgreSQL Repository. The signature table carries a unique
// index on (report_id, report_version); the resulting 23505 is surfaced as
// ErrDuplicateSignature so concurrent creates serialize at the storage layer.
type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepoPG creates a Repository backed by the given connection pool.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const sigCols = `id, report_id, report_version, signer_id, signer_name, signer_role,
	content_hash, hash_algorithm, key_size, meaning, status, created_at,
	revocation_reason, revoked_by, revoked_at,
	ip_address, device_info, geolocation, frozen_payload, audit_trail`

func scanSignature(row pgx.Row) (*Signature, error) {
	var s Signature
	var frozen, trail []byte
	var geo *string
	err := row.Scan(&s.ID, &s.ReportID, &s.ReportVersion, &s.SignerID, &s.SignerName, &s.SignerRole,
		&s.ContentHash, &s.HashAlgorithm, &s.KeySize, &s.Meaning, &s.Status, &s.CreatedAt,
		&s.RevocationReason, &s.RevokedBy, &s.RevokedAt,
		&s.Metadata.IPAddress, &s.Metadata.DeviceInfo, &geo, &frozen, &trail)
	if err != nil {
		return nil, err
	}
	if geo != nil {
		s.Metadata.Geolocation = *geo
	}
	if len(frozen) > 0 {
		if err := json.Unmarshal(frozen, &s.FrozenPayload); err != nil {
			return nil, fmt.Errorf("decode frozen payload: %w", err)
		}
	}
	if len(trail) > 0 {
		if err := json.Unmarshal(trail, &s.AuditTrail); err != nil {
			return nil, fmt.Errorf("decode audit trail: %w", err)
		}
	}
	return &s, nil
}

func (r *repoPG) Create(ctx context.Context, s *Signature) error {
	frozen, err := json.Marshal(s.FrozenPayload)
	if err != nil {
		return fmt.Errorf("encode frozen payload: %w", err)
	}
	trail, err := json.Marshal(s.AuditTrail)
	if err != nil {
		return fmt.Errorf("encode audit trail: %w", err)
	}

	var geo *string
	if s.Metadata.Geolocation != "" {
		geo = &s.Metadata.Geolocation
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO report_signature (id, report_id, report_version, signer_id, signer_name, signer_role,
			content_hash, hash_algorithm, key_size, meaning, status, created_at,
			ip_address, device_info, geolocation, frozen_payload, audit_trail)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		s.ID, s.ReportID, s.ReportVersion, s.SignerID, s.SignerName, s.SignerRole,
		s.ContentHash, s.HashAlgorithm, s.KeySize, s.Meaning, s.Status, s.CreatedAt,
		s.Metadata.IPAddress, s.Metadata.DeviceInfo, geo, frozen, trail)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSignature
		}
		return fmt.Errorf("insert signature: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Signature, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sigCols+` FROM report_signature WHERE id = $1`, id)
	s, err := scanSignature(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func (r *repoPG) GetByReportVersion(ctx context.Context, reportID uuid.UUID, version int) (*Signature, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sigCols+` FROM report_signature
		WHERE report_id = $1 AND report_version = $2`, reportID, version)
	s, err := scanSignature(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func (r *repoPG) ListByReport(ctx context.Context, reportID uuid.UUID) ([]*Signature, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sigCols+` FROM report_signature
		WHERE report_id = $1
		ORDER BY report_version ASC`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	defer rows.Close()

	var out []*Signature
	for rows.Next() {
		s, err := scanSignature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, s *Signature) error {
	trail, err := json.Marshal(s.AuditTrail)
	if err != nil {
		return fmt.Errorf("encode audit trail: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE report_signature
		SET status = $2, revocation_reason = $3, revoked_by = $4, revoked_at = $5, audit_trail = $6
		WHERE id = $1`,
		s.ID, s.Status, s.RevocationReason, s.RevokedBy, s.RevokedAt, trail)
	if err != nil {
		return fmt.Errorf("update signature: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
