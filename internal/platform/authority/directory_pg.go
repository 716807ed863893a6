package authority

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DirectoryPG reads grants from the signing_authority table. A grant is
// active when it has not been revoked.
type DirectoryPG struct {
	pool *pgxpool.Pool
}

func NewDirectoryPG(pool *pgxpool.Pool) *DirectoryPG {
	return &DirectoryPG{pool: pool}
}

func (d *DirectoryPG) HasSigningAuthority(ctx context.Context, signerID, role string) (bool, error) {
	var active bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM signing_authority
			WHERE signer_id = $1 AND role = $2 AND revoked_at IS NULL
		)`, signerID, role).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("authority lookup: %w", err)
	}
	return active, nil
}

// Grant inserts an active grant, reactivating a previously revoked one.
func (d *DirectoryPG) Grant(ctx context.Context, signerID, role, grantedBy string) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO signing_authority (signer_id, role, granted_by, granted_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (signer_id, role)
		DO UPDATE SET granted_by = $3, granted_at = now(), revoked_at = NULL`,
		signerID, role, grantedBy)
	if err != nil {
		return fmt.Errorf("grant authority: %w", err)
	}
	return nil
}

// Revoke deactivates a grant.
func (d *DirectoryPG) Revoke(ctx context.Context, signerID, role string) error {
	_, err := d.pool.Exec(ctx, `
		UPDATE signing_authority SET revoked_at = now()
		WHERE signer_id = $1 AND role = $2 AND revoked_at IS NULL`,
		signerID, role)
	if err != nil {
		return fmt.Errorf("revoke authority: %w", err)
	}
	return nil
}
