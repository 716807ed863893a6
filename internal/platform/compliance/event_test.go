package compliance

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEvent_MarshalJSON_MillisecondTimestamp(t *testing.T) {
	e := &Event{
		CorrelationID: "c-1",
		Timestamp:     time.Date(2026, 8, 29, 10, 30, 45, 123456789, time.UTC),
		Service:       "radsig-server",
		Version:       "0.1.0",
		Environment:   "production",
		EventType:     "signature.created",
		Severity:      SeverityInfo,
		Details:       map[string]any{"reportId": "r-1"},
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)

	if !strings.Contains(s, `"timestamp":"2026-08-29T10:30:45.123Z"`) {
		t.Errorf("timestamp not ISO-8601 millisecond precision: %s", s)
	}
	for _, field := range []string{`"correlationId"`, `"service"`, `"version"`, `"environment"`, `"eventType"`, `"severity"`, `"details"`} {
		if !strings.Contains(s, field) {
			t.Errorf("wire format missing field %s: %s", field, s)
		}
	}
}

func TestDetailers_CategoriesProduceExpectedKeys(t *testing.T) {
	sig := SignatureDetails{
		SignatureID: "s-1", ReportID: "r-1", ReportVersion: 2,
		SignerID: "u-1", SignerRole: "radiologist", Meaning: "author",
		Action: "created", Result: "success",
		Extra: map[string]any{"workstation": "ws-3"},
	}
	m := sig.AuditDetails()
	if m["signatureId"] != "s-1" || m["reportVersion"] != 2 || m["workstation"] != "ws-3" {
		t.Errorf("unexpected signature details: %v", m)
	}
	if _, ok := m["reason"]; ok {
		t.Error("empty reason must be omitted")
	}

	acc := AccessDetails{UserID: "u-1", Method: "GET", Path: "/api/v1/signatures", Status: 200}
	if acc.AuditDetails()["method"] != "GET" {
		t.Error("access details missing method")
	}

	dicom := DICOMDetails{StudyInstanceUID: "1.2.840.113619.2.1", Modality: "CT", Operation: "retrieve"}
	if dicom.AuditDetails()["modality"] != "CT" {
		t.Error("dicom details missing modality")
	}

	wh := WebhookDetails{EndpointID: "ep-1", EventID: "ev-1", StatusCode: 502}
	if wh.AuditDetails()["statusCode"] != 502 {
		t.Error("webhook details missing status code")
	}

	// Extra must not clobber the structured fields.
	d := SystemDetails{Component: "exporter", Message: "ok", Extra: map[string]any{"component": "spoofed"}}
	if d.AuditDetails()["component"] != "exporter" {
		t.Error("extra map must not override structured fields")
	}
}

func TestClassOf(t *testing.T) {
	cases := map[string]RecordClass{
		"system.error":          ClassOperational,
		"system.startup":        ClassOperational,
		"access.read":           ClassCompliance,
		"signature.created":     ClassCompliance,
		"dicom.retrieve":        ClassCompliance,
		"webhook.replay_attack": ClassCompliance,
	}
	for eventType, want := range cases {
		if got := ClassOf(eventType); got != want {
			t.Errorf("ClassOf(%q) = %q, want %q", eventType, got, want)
		}
	}
}
