package signature

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/radpacs/radpacs/internal/platform/compliance"
)

// AuthorityDirectory answers whether a signer still holds signing authority.
// It is consulted on verification only; the historical signature itself is
// not mutated when authority lapses.
type AuthorityDirectory interface {
	HasSigningAuthority(ctx context.Context, signerID, role string) (bool, error)
}

// AuditEmitter emits compliance audit events. Emission is asynchronous and
// must never fail the triggering business operation.
type AuditEmitter interface {
	Log(ctx context.Context, eventType string, details compliance.Detailer, correlationID string) string
}

// VerifyResult is the outcome of a signature verification.
type VerifyResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Verification failure reasons.
const (
	ReasonTampered         = "tampered"
	ReasonInvalidTimestamp = "invalid_timestamp"
	ReasonAuthorityRevoked = "authority_revoked"
	ReasonRevoked          = "revoked"
	ReasonInvalid          = "invalid"
)

// Registry owns the signature lifecycle: create, verify, revoke, invalidate.
// Concurrent creates for the same (reportId, reportVersion) are serialized
// behind a per-key lock on top of the storage layer's conditional insert, so
// at most one succeeds and the rest receive ErrDuplicateSignature.
type Registry struct {
	repo      Repository
	authority AuthorityDirectory
	audit     AuditEmitter
	log       zerolog.Logger
	now       func() time.Time

	mu   sync.Mutex
	keys map[string]*keyLock
}

// keyLock serializes creates for one (reportId, reportVersion). refs counts
// holders and waiters so the entry can be evicted once the last one releases
// it, keeping the map bounded by in-flight creates rather than by every
// signature ever written.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewRegistry creates a Registry.
func NewRegistry(repo Repository, authority AuthorityDirectory, audit AuditEmitter, log zerolog.Logger) *Registry {
	return &Registry{
		repo:      repo,
		authority: authority,
		audit:     audit,
		log:       log.With().Str("component", "signature-registry").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
		keys:      make(map[string]*keyLock),
	}
}

// SetClock overrides the trusted clock. Intended for tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

func (r *Registry) acquireKey(key string) *keyLock {
	r.mu.Lock()
	l, ok := r.keys[key]
	if !ok {
		l = &keyLock{}
		r.keys[key] = l
	}
	l.refs++
	r.mu.Unlock()
	l.mu.Lock()
	return l
}

func (r *Registry) releaseKey(key string, l *keyLock) {
	l.mu.Unlock()
	r.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(r.keys, key)
	}
	r.mu.Unlock()
}

// Create hashes the frozen payload, persists a new valid signature with its
// `created` trail entry, and emits signature.created. The content hash is
// computed exactly once, here, over the report state at the moment of
// signing.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*Signature, error) {
	hash, err := compliance.HashContent(req.Payload)
	if err != nil {
		return nil, err
	}

	sig, err := New(req, hash, r.now())
	if err != nil {
		return nil, err
	}

	key := reportKey(req.ReportID, req.ReportVersion)
	lock := r.acquireKey(key)
	defer r.releaseKey(key, lock)

	if err := r.repo.Create(ctx, sig); err != nil {
		if errors.Is(err, ErrDuplicateSignature) {
			r.audit.Log(ctx, "signature.duplicate_rejected", complianceDetails(sig, "created", "failure", "duplicate create"), "")
		}
		return nil, err
	}

	r.audit.Log(ctx, "signature.created", complianceDetails(sig, "created", "success", ""), "")
	r.log.Info().
		Str("signature_id", sig.ID.String()).
		Str("report_id", sig.ReportID.String()).
		Int("report_version", sig.ReportVersion).
		Str("meaning", string(sig.Meaning)).
		Msg("signature created")
	return sig, nil
}

// Verify recomputes the content hash over the STORED frozen payload, never
// the live report, and compares it to the stored hash. A mismatch
// transitions the signature to invalid and reports "tampered". A signature
// timestamp after the trusted clock's now is treated as evidence of clock
// tampering. A signer whose authority has lapsed fails verification without
// any mutation of the signature.
func (r *Registry) Verify(ctx context.Context, id uuid.UUID) (VerifyResult, error) {
	sig, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return VerifyResult{}, err
	}

	now := r.now()

	// Terminal states fail verification without further checks or mutation.
	switch sig.Status {
	case StatusRevoked:
		return r.verifyOutcome(ctx, sig, VerifyResult{Valid: false, Reason: ReasonRevoked}, now, false)
	case StatusInvalid:
		return r.verifyOutcome(ctx, sig, VerifyResult{Valid: false, Reason: ReasonInvalid}, now, false)
	}

	if sig.CreatedAt.After(now) {
		return r.verifyOutcome(ctx, sig, VerifyResult{Valid: false, Reason: ReasonInvalidTimestamp}, now, false)
	}

	ok, err := r.authority.HasSigningAuthority(ctx, sig.SignerID, sig.SignerRole)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("authority check: %w", err)
	}
	if !ok {
		// Record the failed verification but leave the historical
		// signature itself untouched.
		return r.verifyOutcome(ctx, sig, VerifyResult{Valid: false, Reason: ReasonAuthorityRevoked}, now, true)
	}

	recomputed, err := compliance.HashContent(sig.FrozenPayload)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("recompute stored hash: %w", err)
	}
	if recomputed != sig.ContentHash {
		// Tampering detected: the signature transitions to invalid.
		sig.Status = StatusInvalid
		sig.appendTrail(TrailValidationFailed, "system", TrailFailure, "stored content hash mismatch", now)
		return r.verifyOutcome(ctx, sig, VerifyResult{Valid: false, Reason: ReasonTampered}, now, true)
	}

	return r.verifyOutcome(ctx, sig, VerifyResult{Valid: true}, now, true)
}

// verifyOutcome appends the `verified` trail entry, persists the trail (and
// any status transition) when persist is true, and emits the compliance
// event. Failure paths that must not mutate the signature pass persist=false.
func (r *Registry) verifyOutcome(ctx context.Context, sig *Signature, res VerifyResult, now time.Time, persist bool) (VerifyResult, error) {
	result := TrailSuccess
	eventType := "signature.verified"
	if !res.Valid {
		result = TrailFailure
		eventType = "signature.verification_failed"
	}
	sig.appendTrail(TrailVerified, "system", result, res.Reason, now)

	if persist {
		if err := r.repo.Update(ctx, sig); err != nil {
			return VerifyResult{}, fmt.Errorf("persist verification: %w", err)
		}
	}

	r.audit.Log(ctx, eventType, complianceDetails(sig, "verified", string(result), res.Reason), "")
	return res, nil
}

// Revoke transitions a valid signature to the terminal revoked state. A
// second revoke is rejected with ErrAlreadyRevoked rather than silently
// succeeding, preserving the original revokedBy/revokedAt and a clean audit
// narrative.
func (r *Registry) Revoke(ctx context.Context, id uuid.UUID, reason, actorID string) error {
	if reason == "" {
		return fmt.Errorf("%w: revocation reason is required", ErrValidation)
	}
	if actorID == "" {
		return fmt.Errorf("%w: actor_id is required", ErrValidation)
	}

	sig, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	switch sig.Status {
	case StatusRevoked:
		return ErrAlreadyRevoked
	case StatusInvalid:
		return ErrAlreadyInvalid
	}

	now := r.now()
	sig.Status = StatusRevoked
	sig.RevocationReason = &reason
	sig.RevokedBy = &actorID
	sig.RevokedAt = &now
	sig.appendTrail(TrailRevoked, actorID, TrailSuccess, reason, now)

	if err := r.repo.Update(ctx, sig); err != nil {
		return fmt.Errorf("persist revocation: %w", err)
	}

	r.audit.Log(ctx, "signature.revoked", complianceDetails(sig, "revoked", "success", reason), "")
	r.log.Info().
		Str("signature_id", sig.ID.String()).
		Str("actor_id", actorID).
		Msg("signature revoked")
	return nil
}

// Invalidate transitions a valid signature to the terminal invalid state,
// used when tampering is detected outside the verify path.
func (r *Registry) Invalidate(ctx context.Context, id uuid.UUID, actorID, reason string) error {
	if actorID == "" {
		return fmt.Errorf("%w: actor_id is required", ErrValidation)
	}

	sig, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	switch sig.Status {
	case StatusInvalid:
		return ErrAlreadyInvalid
	case StatusRevoked:
		return ErrAlreadyRevoked
	}

	now := r.now()
	sig.Status = StatusInvalid
	sig.appendTrail(TrailValidationFailed, actorID, TrailFailure, reason, now)

	if err := r.repo.Update(ctx, sig); err != nil {
		return fmt.Errorf("persist invalidation: %w", err)
	}

	r.audit.Log(ctx, "signature.invalidated", complianceDetails(sig, "validation_failed", "failure", reason), "")
	return nil
}

// Get returns a signature by id.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*Signature, error) {
	return r.repo.GetByID(ctx, id)
}

// ListByReport returns all signatures for a report, oldest version first.
func (r *Registry) ListByReport(ctx context.Context, reportID uuid.UUID) ([]*Signature, error) {
	return r.repo.ListByReport(ctx, reportID)
}

func complianceDetails(sig *Signature, action, result, reason string) compliance.SignatureDetails {
	return compliance.SignatureDetails{
		SignatureID:   sig.ID.String(),
		ReportID:      sig.ReportID.String(),
		ReportVersion: sig.ReportVersion,
		SignerID:      sig.SignerID,
		SignerRole:    sig.SignerRole,
		Meaning:       string(sig.Meaning),
		Action:        action,
		Result:        result,
		Reason:        reason,
	}
}
