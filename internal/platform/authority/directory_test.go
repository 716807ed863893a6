package authority

import (
	"context"
	"testing"
)

func TestStaticDirectoryGrantRevoke(t *testing.T) {
	d := NewStaticDirectory()
	ctx := context.Background()

	ok, err := d.HasSigningAuthority(ctx, "rad-1", "radiologist")
	if err != nil || ok {
		t.Fatalf("ungranted = (%v, %v), want (false, nil)", ok, err)
	}

	d.Grant("rad-1", "radiologist")
	ok, _ = d.HasSigningAuthority(ctx, "rad-1", "radiologist")
	if !ok {
		t.Fatal("grant not visible")
	}

	// Role-scoped: the same signer has no authority in other roles.
	ok, _ = d.HasSigningAuthority(ctx, "rad-1", "physician")
	if ok {
		t.Fatal("grant leaked across roles")
	}

	d.Revoke("rad-1", "radiologist")
	ok, _ = d.HasSigningAuthority(ctx, "rad-1", "radiologist")
	if ok {
		t.Fatal("revoked grant still visible")
	}
}

func TestAllowAll(t *testing.T) {
	ok, err := AllowAll{}.HasSigningAuthority(context.Background(), "anyone", "any")
	if err != nil || !ok {
		t.Fatalf("AllowAll = (%v, %v), want (true, nil)", ok, err)
	}
}
