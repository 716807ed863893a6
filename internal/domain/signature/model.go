package signature

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radpacs/radpacs/internal/platform/compliance"
)

// Meaning states what the signer attests to.
type Meaning string

const (
	MeaningAuthor   Meaning = "author"
	MeaningReviewer Meaning = "reviewer"
	MeaningApprover Meaning = "approver"
	MeaningVerified Meaning = "verified"
)

var validMeanings = map[Meaning]bool{
	MeaningAuthor: true, MeaningReviewer: true, MeaningApprover: true, MeaningVerified: true,
}

// Status is the signature lifecycle state. Transitions are monotone:
// valid→revoked and valid→invalid are permitted; revoked and invalid are
// terminal and never return to valid.
type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
	StatusRevoked Status = "revoked"
)

// TrailAction enumerates the embedded audit trail actions.
type TrailAction string

const (
	TrailCreated          TrailAction = "created"
	TrailVerified         TrailAction = "verified"
	TrailRevoked          TrailAction = "revoked"
	TrailValidationFailed TrailAction = "validation_failed"
)

// TrailResult is the outcome of a trail action.
type TrailResult string

const (
	TrailSuccess TrailResult = "success"
	TrailFailure TrailResult = "failure"
)

// TrailEvent is one entry in a signature's embedded, ordered audit trail.
type TrailEvent struct {
	Action    TrailAction `json:"action"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Result    TrailResult `json:"result"`
	Details   string      `json:"details,omitempty"`
}

// Metadata captures the signing context.
type Metadata struct {
	IPAddress   string `json:"ip_address"`
	DeviceInfo  string `json:"device_info"`
	Geolocation string `json:"geolocation,omitempty"`
}

// Signature is a tamper-evident attestation binding a named signer to a
// frozen snapshot of a clinical report. The content hash is computed once at
// signing time and never recomputed from the live report.
type Signature struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ReportID      uuid.UUID  `db:"report_id" json:"report_id"`
	ReportVersion int        `db:"report_version" json:"report_version"`
	SignerID      string     `db:"signer_id" json:"signer_id"`
	SignerName    string     `db:"signer_name" json:"signer_name"`
	SignerRole    string     `db:"signer_role" json:"signer_role"`
	ContentHash   string     `db:"content_hash" json:"content_hash"`
	HashAlgorithm string     `db:"hash_algorithm" json:"hash_algorithm"`
	KeySize       int        `db:"key_size" json:"key_size"`
	Meaning       Meaning    `db:"meaning" json:"meaning"`
	Status        Status     `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	RevocationReason *string    `db:"revocation_reason" json:"revocation_reason,omitempty"`
	RevokedBy        *string    `db:"revoked_by" json:"revoked_by,omitempty"`
	RevokedAt        *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	Metadata      Metadata   `db:"metadata" json:"metadata"`

	// FrozenPayload is the report state at the moment of signing, restricted
	// to the signed field set. Verification recomputes the hash over this,
	// never over the live report.
	FrozenPayload map[string]any `db:"frozen_payload" json:"frozen_payload"`
	AuditTrail    []TrailEvent   `db:"audit_trail" json:"audit_trail"`
}

// CreateRequest carries everything needed to create a signature.
type CreateRequest struct {
	ReportID      uuid.UUID      `json:"report_id"`
	ReportVersion int            `json:"report_version"`
	SignerID      string         `json:"signer_id"`
	SignerName    string         `json:"signer_name"`
	SignerRole    string         `json:"signer_role"`
	Meaning       Meaning        `json:"meaning"`
	Payload       map[string]any `json:"payload"`
	Metadata      Metadata       `json:"metadata"`
}

// New validates the request and returns a Signature entity with status
// valid, the given content hash, and its initial `created` trail entry.
// Persistence and audit emission happen explicitly at the call site; nothing
// is hidden in storage hooks.
func New(req CreateRequest, contentHash string, now time.Time) (*Signature, error) {
	if req.ReportID == uuid.Nil {
		return nil, fmt.Errorf("%w: report_id is required", ErrValidation)
	}
	if req.ReportVersion < 1 {
		return nil, fmt.Errorf("%w: report_version must be positive, got %d", ErrValidation, req.ReportVersion)
	}
	if req.SignerID == "" {
		return nil, fmt.Errorf("%w: signer_id is required", ErrValidation)
	}
	if req.SignerName == "" {
		return nil, fmt.Errorf("%w: signer_name is required", ErrValidation)
	}
	if req.SignerRole == "" {
		return nil, fmt.Errorf("%w: signer_role is required", ErrValidation)
	}
	if !validMeanings[req.Meaning] {
		return nil, fmt.Errorf("%w: invalid meaning %q", ErrValidation, req.Meaning)
	}
	if contentHash == "" {
		return nil, fmt.Errorf("%w: content hash is required", ErrValidation)
	}

	frozen := make(map[string]any, len(req.Payload))
	for _, f := range compliance.SignedFields() {
		if v, ok := req.Payload[f]; ok {
			frozen[f] = v
		}
	}

	return &Signature{
		ID:            uuid.New(),
		ReportID:      req.ReportID,
		ReportVersion: req.ReportVersion,
		SignerID:      req.SignerID,
		SignerName:    req.SignerName,
		SignerRole:    req.SignerRole,
		ContentHash:   contentHash,
		HashAlgorithm: compliance.HashAlgorithm,
		KeySize:       compliance.HashKeySize,
		Meaning:       req.Meaning,
		Status:        StatusValid,
		CreatedAt:     now,
		Metadata:      req.Metadata,
		FrozenPayload: frozen,
		AuditTrail: []TrailEvent{{
			Action:    TrailCreated,
			ActorID:   req.SignerID,
			Timestamp: now,
			Result:    TrailSuccess,
			Details:   "signature created",
		}},
	}, nil
}

// appendTrail adds an entry to the embedded audit trail.
func (s *Signature) appendTrail(action TrailAction, actorID string, result TrailResult, details string, at time.Time) {
	s.AuditTrail = append(s.AuditTrail, TrailEvent{
		Action:    action,
		ActorID:   actorID,
		Timestamp: at,
		Result:    result,
		Details:   details,
	})
}

// ComplianceDisclaimer is printed with every signature manifestation.
const ComplianceDisclaimer = "This report has been electronically signed in accordance with " +
	"institutional policy and 21 CFR Part 11. The electronic signature is the " +
	"legally binding equivalent of a handwritten signature."

// Manifestation is the human-readable rendering of a signature on a printed
// or exported document.
type Manifestation struct {
	SignerName  string `json:"signer_name"`
	SignerRole  string `json:"signer_role"`
	Meaning     string `json:"meaning"`
	SignedAt    string `json:"signed_at"`
	SignatureID string `json:"signature_id"`
	Disclaimer  string `json:"disclaimer"`
}

// Manifestation renders the signature for document output.
func (s *Signature) Manifestation() Manifestation {
	return Manifestation{
		SignerName:  s.SignerName,
		SignerRole:  s.SignerRole,
		Meaning:     string(s.Meaning),
		SignedAt:    s.CreatedAt.UTC().Format(time.RFC3339),
		SignatureID: s.ID.String(),
		Disclaimer:  ComplianceDisclaimer,
	}
}
