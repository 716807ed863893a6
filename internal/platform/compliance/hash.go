package compliance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// HashAlgorithm identifies the digest used for content hashing.
const HashAlgorithm = "SHA-256"

// HashKeySize is the digest size in bits, recorded on every signature.
const HashKeySize = 256

// ErrMalformedPayload indicates a signing payload missing required report
// content. It is a caller error and is never retried.
var ErrMalformedPayload = errors.New("malformed signing payload")

// signedFields is the fixed, enumerated set of report fields covered by a
// content hash. Fields outside this set are stripped before hashing so that
// cosmetic or UI-only additions to the live report never change the digest.
var signedFields = []string{
	"technique",
	"findingsText",
	"impression",
	"sections",
	"measurements",
	"findings",
	"templateId",
	"templateVersion",
}

// HashContent computes the canonical SHA-256 digest over the signed field
// set of a frozen report payload. Serialization is canonical JSON: object
// keys sorted, no insignificant whitespace. Two logically equal payloads
// hash identically regardless of construction order.
//
// The payload must contain "impression" and at least one of "findings" or
// "findingsText"; otherwise ErrMalformedPayload is returned.
func HashContent(frozen map[string]any) (string, error) {
	if frozen == nil {
		return "", fmt.Errorf("%w: payload is nil", ErrMalformedPayload)
	}

	if _, ok := frozen["impression"]; !ok {
		return "", fmt.Errorf("%w: missing required field %q", ErrMalformedPayload, "impression")
	}
	_, hasFindings := frozen["findings"]
	_, hasFindingsText := frozen["findingsText"]
	if !hasFindings && !hasFindingsText {
		return "", fmt.Errorf("%w: missing required field %q or %q", ErrMalformedPayload, "findings", "findingsText")
	}

	filtered := make(map[string]any, len(signedFields))
	for _, f := range signedFields {
		if v, ok := frozen[f]; ok {
			filtered[f] = v
		}
	}

	// encoding/json sorts map keys at every nesting level and emits compact
	// output, which gives us the canonical form directly.
	canonical, err := json.Marshal(filtered)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// SignedFields returns a copy of the enumerated signed field set.
func SignedFields() []string {
	out := make([]string, len(signedFields))
	copy(out, signedFields)
	return out
}
