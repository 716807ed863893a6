package report

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/radpacs/radpacs/internal/platform/compliance"
)

func newTestService() *Service {
	return NewService(NewInMemoryRepo(), zerolog.Nop())
}

func sampleReport() *Report {
	return &Report{
		PatientID:       uuid.New(),
		AccessionNumber: "ACC-2026-0042",
		Impression:      "No acute findings.",
		FindingsText:    "Clear lungs.",
		Technique:       "PA and lateral chest.",
	}
}

func TestCreateStartsAtVersionOnePreliminary(t *testing.T) {
	svc := newTestService()
	rep := sampleReport()
	if err := svc.Create(context.Background(), rep); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rep.Version != 1 {
		t.Errorf("version = %d, want 1", rep.Version)
	}
	if rep.Status != StatusPreliminary {
		t.Errorf("status = %s, want preliminary", rep.Status)
	}
	if rep.ID == uuid.Nil {
		t.Error("id not assigned")
	}
}

func TestAmendBumpsVersionAndStatus(t *testing.T) {
	svc := newTestService()
	rep := sampleReport()
	if err := svc.Create(context.Background(), rep); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Finalize(context.Background(), rep.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	amended, err := svc.Amend(context.Background(), rep.ID, func(r *Report) {
		r.Impression = "Small right pleural effusion."
	})
	if err != nil {
		t.Fatalf("amend: %v", err)
	}
	if amended.Version != 3 {
		t.Errorf("version = %d, want 3", amended.Version)
	}
	if amended.Status != StatusAmended {
		t.Errorf("status = %s, want amended", amended.Status)
	}

	// Historical versions stay resolvable.
	v1, err := svc.GetVersion(context.Background(), rep.ID, 1)
	if err != nil {
		t.Fatalf("get version 1: %v", err)
	}
	if v1.Impression != "No acute findings." {
		t.Errorf("v1 impression = %q", v1.Impression)
	}
}

func TestSnapshotRejectsStaleVersion(t *testing.T) {
	svc := newTestService()
	rep := sampleReport()
	if err := svc.Create(context.Background(), rep); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Amend(context.Background(), rep.ID, func(r *Report) {
		r.Impression = "Updated."
	}); err != nil {
		t.Fatalf("amend: %v", err)
	}

	if _, err := svc.Snapshot(context.Background(), rep.ID, 1); !errors.Is(err, ErrStaleVersion) {
		t.Fatalf("snapshot v1 = %v, want ErrStaleVersion", err)
	}

	payload, err := svc.Snapshot(context.Background(), rep.ID, 2)
	if err != nil {
		t.Fatalf("snapshot v2: %v", err)
	}
	if payload["impression"] != "Updated." {
		t.Errorf("payload impression = %v", payload["impression"])
	}
	if _, ok := payload["accessionNumber"]; ok {
		t.Error("workflow metadata leaked into signing payload")
	}
}

func TestSigningPayloadImpressionOnlyIsHashable(t *testing.T) {
	rep := &Report{
		PatientID:  uuid.New(),
		Status:     StatusPreliminary,
		Impression: "Normal study.",
	}
	if err := rep.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	payload := rep.SigningPayload()
	if _, ok := payload["findingsText"]; !ok {
		t.Fatal("findingsText must always appear in the signing payload")
	}
	if _, err := compliance.HashContent(payload); err != nil {
		t.Fatalf("hash impression-only payload: %v", err)
	}
}

func TestCanonicalStatusLegacyAliases(t *testing.T) {
	cases := map[string]Status{
		"draft":       StatusPreliminary,
		"preliminary": StatusPreliminary,
		"finalized":   StatusFinal,
		"final":       StatusFinal,
		"amended":     StatusAmended,
	}
	for in, want := range cases {
		got, err := CanonicalStatus(in)
		if err != nil {
			t.Fatalf("CanonicalStatus(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("CanonicalStatus(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := CanonicalStatus("bogus"); !errors.Is(err, ErrValidation) {
		t.Fatalf("CanonicalStatus(bogus) = %v, want ErrValidation", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService()

	rep := sampleReport()
	rep.PatientID = uuid.Nil
	if err := svc.Create(context.Background(), rep); !errors.Is(err, ErrValidation) {
		t.Fatalf("create without patient = %v, want ErrValidation", err)
	}

	rep = sampleReport()
	rep.Impression = ""
	if err := svc.Create(context.Background(), rep); !errors.Is(err, ErrValidation) {
		t.Fatalf("create without impression = %v, want ErrValidation", err)
	}
}
