// Package authority answers whether a signer currently holds signing
// authority for a given role. Signature verification consults it at verify
// time; historical signatures are never mutated when authority lapses.
package authority

import (
	"context"
	"sync"
)

// Directory is the signing-authority lookup.
type Directory interface {
	HasSigningAuthority(ctx context.Context, signerID, role string) (bool, error)
}

// StaticDirectory is an in-memory Directory seeded from configuration. Used
// in tests and in deployments without a credentialing database.
type StaticDirectory struct {
	mu     sync.RWMutex
	grants map[string]map[string]bool
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{grants: make(map[string]map[string]bool)}
}

// Grant records that signerID may sign in the given role.
func (d *StaticDirectory) Grant(signerID, role string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.grants[signerID] == nil {
		d.grants[signerID] = make(map[string]bool)
	}
	d.grants[signerID][role] = true
}

// Revoke removes a signer's authority for the given role.
func (d *StaticDirectory) Revoke(signerID, role string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.grants[signerID], role)
}

func (d *StaticDirectory) HasSigningAuthority(_ context.Context, signerID, role string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.grants[signerID][role], nil
}

// AllowAll grants every signer every role. The default when no directory is
// configured, since credentialing is enforced upstream at the identity
// provider.
type AllowAll struct{}

func (AllowAll) HasSigningAuthority(context.Context, string, string) (bool, error) {
	return true, nil
}
