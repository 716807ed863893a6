package compliance

import "strings"

// RedactedMarker replaces every value whose key matches the PHI/secret list.
const RedactedMarker = "[REDACTED]"

// sensitiveTerms is the PHI/secret term list. A detail key is redacted when
// its lowercase form contains any of these terms as a substring, at any
// nesting depth. Over-matching is acceptable; leaking is not.
var sensitiveTerms = []string{
	"patient",       // patientName, patientId, patient_dob
	"birth",         // birthDate, dateOfBirth
	"dob",
	"institution",
	"physician",
	"password",
	"secret",
	"token",
	"authorization",
	"cookie",
	"signature",     // raw signature material never belongs in a log
	"ssn",
	"mrn",
	"accession",     // accessionNumber ties a record to a patient encounter
}

// isSensitiveKey reports whether key matches the PHI/secret list
// (case-insensitive substring match).
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, term := range sensitiveTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// Redact returns a deep copy of details with every sensitive value replaced
// by RedactedMarker. Keys absent from the term list pass through unchanged,
// as do nils and primitives not under a matching key. The input map is never
// mutated.
func Redact(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if isSensitiveKey(k) {
			out[k] = RedactedMarker
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

// redactValue recurses into nested maps and slices; everything else passes
// through as-is.
func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Redact(val)
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, s := range val {
			if isSensitiveKey(k) {
				out[k] = RedactedMarker
			} else {
				out[k] = s
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Redact(item)
		}
		return out
	default:
		return v
	}
}
