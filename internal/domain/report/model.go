package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("report not found")
	ErrStaleVersion = errors.New("report version is not current")
	ErrValidation   = errors.New("invalid report")
)

// Status is the canonical lifecycle state of a report.
type Status string

const (
	StatusPreliminary Status = "preliminary"
	StatusFinal       Status = "final"
	StatusAmended     Status = "amended"
)

// CanonicalStatus normalizes status values written by older releases, which
// used "draft" and "finalized". New writes always use the canonical values;
// the aliases exist only so historical rows keep resolving.
func CanonicalStatus(s string) (Status, error) {
	switch s {
	case "preliminary", "draft":
		return StatusPreliminary, nil
	case "final", "finalized":
		return StatusFinal, nil
	case "amended":
		return StatusAmended, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
}

// Report is a versioned diagnostic report. Each content change bumps Version;
// signatures bind to a specific (ID, Version) pair.
type Report struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	PatientID       uuid.UUID      `db:"patient_id" json:"patient_id"`
	AccessionNumber string         `db:"accession_number" json:"accession_number"`
	Version         int            `db:"version" json:"version"`
	Status          Status         `db:"status" json:"status"`
	Technique       string         `db:"technique" json:"technique,omitempty"`
	FindingsText    string         `db:"findings_text" json:"findings_text,omitempty"`
	Impression      string         `db:"impression" json:"impression"`
	Sections        map[string]any `db:"sections" json:"sections,omitempty"`
	Measurements    []any          `db:"measurements" json:"measurements,omitempty"`
	TemplateID      string         `db:"template_id" json:"template_id,omitempty"`
	TemplateVersion string         `db:"template_version" json:"template_version,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// SigningPayload renders the report as the map the signature subsystem hashes.
// Only fields carrying clinical meaning appear here; workflow metadata like
// status or accession number never participates in the content hash.
// Impression and findingsText always appear, even when empty, because the
// hasher requires both; the optional fields are omitted when unset so their
// later addition changes the digest.
func (r *Report) SigningPayload() map[string]any {
	p := map[string]any{
		"impression":   r.Impression,
		"findingsText": r.FindingsText,
	}
	if r.Technique != "" {
		p["technique"] = r.Technique
	}
	if len(r.Sections) > 0 {
		p["sections"] = r.Sections
	}
	if len(r.Measurements) > 0 {
		p["measurements"] = r.Measurements
	}
	if r.TemplateID != "" {
		p["templateId"] = r.TemplateID
	}
	if r.TemplateVersion != "" {
		p["templateVersion"] = r.TemplateVersion
	}
	return p
}

// Validate checks the fields required before a report can be persisted.
func (r *Report) Validate() error {
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if r.Impression == "" {
		return fmt.Errorf("%w: impression is required", ErrValidation)
	}
	if _, err := CanonicalStatus(string(r.Status)); err != nil {
		return err
	}
	return nil
}
