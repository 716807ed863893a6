package signature

import "errors"

// Every error surfaced to callers is typed so the reporting UI can present
// compliance-appropriate messaging instead of raw strings.
var (
	// ErrNotFound: no signature with the given id.
	ErrNotFound = errors.New("signature not found")
	// ErrValidation: missing or malformed signer/report fields. Fatal caller
	// error, never retried.
	ErrValidation = errors.New("invalid signature request")
	// ErrDuplicateSignature: a signature already exists for this
	// (reportId, reportVersion). Rejected, not retried; the caller must
	// re-fetch state.
	ErrDuplicateSignature = errors.New("signature already exists for report version")
	// ErrAlreadyRevoked: the signature is in the terminal revoked state.
	ErrAlreadyRevoked = errors.New("signature already revoked")
	// ErrAlreadyInvalid: the signature is in the terminal invalid state.
	ErrAlreadyInvalid = errors.New("signature already invalid")
	// ErrAuthorityRevoked: the signer no longer holds signing authority.
	// Verification fails without mutating signature state.
	ErrAuthorityRevoked = errors.New("signer authority revoked")
)

// Category buckets an error into the failure taxonomy used for metrics and
// HTTP mapping: validation, concurrency, conflict, authority, not_found.
func Category(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrDuplicateSignature):
		return "concurrency"
	case errors.Is(err, ErrAlreadyRevoked), errors.Is(err, ErrAlreadyInvalid):
		return "conflict"
	case errors.Is(err, ErrAuthorityRevoked):
		return "authority"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
