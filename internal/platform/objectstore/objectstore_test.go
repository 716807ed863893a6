package objectstore

import (
	"context"
	"errors"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	info, err := s.Put(ctx, "audit-logs/2026/03/14/batch-1.json", "application/json", []byte(`[{"id":"e1"}]`))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 13 || info.Hash == "" {
		t.Errorf("info = %+v", info)
	}

	data, got, err := s.Get(ctx, "audit-logs/2026/03/14/batch-1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `[{"id":"e1"}]` {
		t.Errorf("data = %s", data)
	}
	if got.Hash != info.Hash {
		t.Errorf("hash mismatch: %s vs %s", got.Hash, info.Hash)
	}
}

func TestPutIsWriteOnce(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if _, err := s.Put(ctx, "k", "application/json", []byte("a")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "k", "application/json", []byte("b")); !errors.Is(err, ErrObjectExists) {
		t.Fatalf("second put = %v, want ErrObjectExists", err)
	}
	if _, err := s.Put(ctx, "", "application/json", nil); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("empty key = %v, want ErrEmptyKey", err)
	}
}

func TestListByPrefix(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for _, key := range []string{
		"audit-logs/2026/03/13/b1.json",
		"audit-logs/2026/03/14/b2.json",
		"audit-logs/2026/03/14/b3.json",
	} {
		if _, err := s.Put(ctx, key, "application/json", []byte("x")); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := s.List(ctx, "audit-logs/2026/03/14/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("list returned %d objects, want 2", len(infos))
	}
	if infos[0].Key != "audit-logs/2026/03/14/b2.json" {
		t.Errorf("first key = %s", infos[0].Key)
	}

	missing, _, err := s.Get(ctx, "nope")
	if !errors.Is(err, ErrObjectNotFound) || missing != nil {
		t.Fatalf("get missing = (%v, %v), want ErrObjectNotFound", missing, err)
	}
}
