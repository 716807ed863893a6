package compliance

import "strings"

// exactSeverities maps specific event types to a non-default severity.
var exactSeverities = map[string]Severity{
	"access.login_failure":          SeverityWarn,
	"access.unauthorized":           SeverityWarn,
	"access.break_glass":            SeverityWarn,
	"webhook.invalid_signature":     SeverityError,
	"signature.verification_failed": SeverityError,
	"webhook.replay_attack":         SeverityCritical,
	"system.error":                  SeverityError,
}

// ResolveSeverity returns the severity for an event type. Specific types are
// looked up first, then any "*.failed" type resolves to error; everything
// else is info.
func ResolveSeverity(eventType string) Severity {
	if sev, ok := exactSeverities[eventType]; ok {
		return sev
	}
	if strings.HasSuffix(eventType, ".failed") {
		return SeverityError
	}
	return SeverityInfo
}
