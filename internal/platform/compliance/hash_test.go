package compliance

import (
	"errors"
	"testing"
)

func TestHashContent_DeterministicAcrossConstructionOrder(t *testing.T) {
	a := map[string]any{
		"findingsText": "No acute cardiopulmonary abnormality.",
		"impression":   "Normal chest radiograph.",
		"technique":    "PA and lateral views",
	}
	b := map[string]any{
		"technique":    "PA and lateral views",
		"impression":   "Normal chest radiograph.",
		"findingsText": "No acute cardiopulmonary abnormality.",
	}

	h1, err := HashContent(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := HashContent(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Errorf("logically equal payloads hashed differently: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64-char hex SHA-256 digest, got %d chars", len(h1))
	}
}

func TestHashContent_ExcludesUnsignedFields(t *testing.T) {
	base := map[string]any{
		"findings":   "x",
		"impression": "y",
	}
	withExtras := map[string]any{
		"findings":        "x",
		"impression":      "y",
		"lastViewedBy":    "someone",
		"uiScrollOffset":  123,
		"renderTimestamp": "2026-08-29T10:00:00Z",
	}

	h1, err := HashContent(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := HashContent(withExtras)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Error("fields outside the signed set must not affect the digest")
	}
}

func TestHashContent_ContentChangeChangesDigest(t *testing.T) {
	h1, _ := HashContent(map[string]any{"findings": "x", "impression": "y"})
	h2, _ := HashContent(map[string]any{"findings": "x", "impression": "z"})
	if h1 == h2 {
		t.Error("different impressions must produce different digests")
	}
}

func TestHashContent_NestedStructures(t *testing.T) {
	payload := map[string]any{
		"impression":   "stable",
		"findingsText": "see sections",
		"sections": []any{
			map[string]any{"title": "Lungs", "body": "clear"},
			map[string]any{"title": "Heart", "body": "normal size"},
		},
		"measurements": map[string]any{"noduleMm": 4.5, "series": 2},
	}
	h1, err := HashContent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := HashContent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Error("repeated hashing of the same payload must be stable")
	}
}

func TestHashContent_MalformedPayload(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]any
	}{
		{"nil payload", nil},
		{"missing impression", map[string]any{"findings": "x"}},
		{"missing findings", map[string]any{"impression": "y"}},
		{"empty payload", map[string]any{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := HashContent(tc.payload)
			if !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
}

func TestSignedFields_ReturnsCopy(t *testing.T) {
	fields := SignedFields()
	fields[0] = "tampered"
	if SignedFields()[0] == "tampered" {
		t.Error("SignedFields must return a copy, not the internal slice")
	}
}
