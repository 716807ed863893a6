// Package compliance implements the tamper-evident audit trail for the
// radiology signing platform: canonical content hashing, PHI/secret
// redaction, severity resolution, and asynchronous event emission to a
// durable store. Every signature-lifecycle and access event flows through
// this package before it reaches persistence or export.
package compliance

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity classifies a compliance audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// TimestampLayout is the wire format for event timestamps: ISO-8601 with
// millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// eventTypePattern constrains event types to a known namespace and a
// lowercase action, e.g. "signature.created" or "access.unauthorized".
var eventTypePattern = regexp.MustCompile(`^(access|dicom|webhook|system|signature)\.[a-z_]+$`)

// ValidEventType reports whether eventType is a well-formed namespaced type.
func ValidEventType(eventType string) bool {
	return eventTypePattern.MatchString(eventType)
}

// RecordClass partitions events for retention. Events in the system
// namespace are operational serviceability records; everything else carries
// compliance significance and is held to the long regulatory horizon.
type RecordClass string

const (
	ClassCompliance  RecordClass = "compliance_log"
	ClassOperational RecordClass = "operational_log"
)

// ClassOf returns the retention record class for an event type.
func ClassOf(eventType string) RecordClass {
	if strings.HasPrefix(eventType, "system.") {
		return ClassOperational
	}
	return ClassCompliance
}

// Event is a single immutable compliance audit record. Once persisted it is
// never edited in place; corrections are recorded as new events sharing the
// same correlation ID.
type Event struct {
	ID            uuid.UUID      `json:"-"`
	CorrelationID string         `json:"correlationId"`
	Timestamp     time.Time      `json:"-"`
	Service       string         `json:"service"`
	Version       string         `json:"version"`
	Environment   string         `json:"environment"`
	EventType     string         `json:"eventType"`
	Severity      Severity       `json:"severity"`
	Details       map[string]any `json:"details"`

	// ExportedAt is set once the event has been acknowledged by an external
	// store; only exported events are eligible for purge.
	ExportedAt    *time.Time `json:"-"`
	ExportBatchID string     `json:"-"`
}

// MarshalJSON renders the event in the external wire format, with the
// timestamp at millisecond precision.
func (e *Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(struct {
		*alias
		Timestamp string `json:"timestamp"`
	}{
		alias:     (*alias)(e),
		Timestamp: e.Timestamp.UTC().Format(TimestampLayout),
	})
}

// Detailer is implemented by the per-category detail payloads. Using one
// concrete type per event namespace keeps redaction and severity logic
// working over known shapes; genuinely unstructured data goes in Extra.
type Detailer interface {
	AuditDetails() map[string]any
}

// AccessDetails describes an authenticated (or rejected) API access.
type AccessDetails struct {
	UserID   string
	Method   string
	Path     string
	RemoteIP string
	Status   int
	Extra    map[string]any
}

func (d AccessDetails) AuditDetails() map[string]any {
	m := map[string]any{
		"userId":   d.UserID,
		"method":   d.Method,
		"path":     d.Path,
		"remoteIp": d.RemoteIP,
		"status":   d.Status,
	}
	mergeExtra(m, d.Extra)
	return m
}

// SignatureDetails describes a signature-lifecycle event.
type SignatureDetails struct {
	SignatureID   string
	ReportID      string
	ReportVersion int
	SignerID      string
	SignerRole    string
	Meaning       string
	Action        string
	Result        string
	Reason        string
	Extra         map[string]any
}

func (d SignatureDetails) AuditDetails() map[string]any {
	m := map[string]any{
		"signatureId":   d.SignatureID,
		"reportId":      d.ReportID,
		"reportVersion": d.ReportVersion,
		"signerId":      d.SignerID,
		"signerRole":    d.SignerRole,
		"meaning":       d.Meaning,
		"action":        d.Action,
		"result":        d.Result,
	}
	if d.Reason != "" {
		m["reason"] = d.Reason
	}
	mergeExtra(m, d.Extra)
	return m
}

// DICOMDetails describes an imaging access event.
type DICOMDetails struct {
	StudyInstanceUID string
	Modality         string
	Operation        string
	Extra            map[string]any
}

func (d DICOMDetails) AuditDetails() map[string]any {
	m := map[string]any{
		"studyInstanceUID": d.StudyInstanceUID,
		"modality":         d.Modality,
		"operation":        d.Operation,
	}
	mergeExtra(m, d.Extra)
	return m
}

// WebhookDetails describes an outbound webhook delivery event.
type WebhookDetails struct {
	EndpointID string
	EventID    string
	StatusCode int
	Extra      map[string]any
}

func (d WebhookDetails) AuditDetails() map[string]any {
	m := map[string]any{
		"endpointId": d.EndpointID,
		"eventId":    d.EventID,
		"statusCode": d.StatusCode,
	}
	mergeExtra(m, d.Extra)
	return m
}

// SystemDetails describes an internal operational event.
type SystemDetails struct {
	Component string
	Message   string
	Extra     map[string]any
}

func (d SystemDetails) AuditDetails() map[string]any {
	m := map[string]any{
		"component": d.Component,
		"message":   d.Message,
	}
	mergeExtra(m, d.Extra)
	return m
}

// RawDetails is the opaque-extension escape hatch for callers with genuinely
// unstructured payloads. It is redacted like any other detail map.
type RawDetails map[string]any

func (d RawDetails) AuditDetails() map[string]any {
	return map[string]any(d)
}

func mergeExtra(m, extra map[string]any) {
	for k, v := range extra {
		if _, exists := m[k]; !exists {
			m[k] = v
		}
	}
}

// correlationKey is the context key under which the request middleware stores
// the correlation ID for downstream emitters.
type correlationKey struct{}

// WithCorrelationID returns a context carrying the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the correlation ID stored in ctx, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// NewCorrelationID returns a fresh UUID-v4 correlation identifier.
func NewCorrelationID() string {
	return uuid.NewString()
}
