package compliance

import (
	"reflect"
	"testing"
)

func TestRedact_PHIKeysReplaced(t *testing.T) {
	in := map[string]any{
		"patientName":      "Jon Doe",
		"studyInstanceUID": "1.2.3",
		"modality":         "CT",
	}
	out := Redact(in)

	if out["patientName"] != RedactedMarker {
		t.Errorf("patientName should be redacted, got %v", out["patientName"])
	}
	if out["studyInstanceUID"] != "1.2.3" {
		t.Errorf("studyInstanceUID should pass through, got %v", out["studyInstanceUID"])
	}
	if out["modality"] != "CT" {
		t.Errorf("modality should pass through, got %v", out["modality"])
	}
}

func TestRedact_CaseInsensitiveSubstring(t *testing.T) {
	cases := []string{
		"PatientID",
		"patient_id",
		"PATIENTNAME",
		"referringPhysicianName",
		"institutionName",
		"birthDate",
		"date_of_birth",
		"authToken",
		"Authorization",
		"sessionCookie",
		"userPassword",
		"signatureValue",
		"ssn",
		"patientMRN",
		"accessionNumber",
		"ACCESSION_NO",
	}
	for _, key := range cases {
		out := Redact(map[string]any{key: "sensitive"})
		if out[key] != RedactedMarker {
			t.Errorf("key %q should be redacted, got %v", key, out[key])
		}
	}
}

func TestRedact_NestedMapsAndArrays(t *testing.T) {
	in := map[string]any{
		"request": map[string]any{
			"headers": map[string]any{
				"Authorization": "Bearer abc",
				"Accept":        "application/json",
			},
		},
		"entries": []any{
			map[string]any{"patientId": "P123", "modality": "MR"},
			"plain string",
			42,
		},
	}
	out := Redact(in)

	headers := out["request"].(map[string]any)["headers"].(map[string]any)
	if headers["Authorization"] != RedactedMarker {
		t.Errorf("nested Authorization should be redacted, got %v", headers["Authorization"])
	}
	if headers["Accept"] != "application/json" {
		t.Errorf("nested Accept should pass through, got %v", headers["Accept"])
	}

	entries := out["entries"].([]any)
	first := entries[0].(map[string]any)
	if first["patientId"] != RedactedMarker {
		t.Errorf("patientId inside array should be redacted, got %v", first["patientId"])
	}
	if first["modality"] != "MR" {
		t.Errorf("modality inside array should pass through, got %v", first["modality"])
	}
	if entries[1] != "plain string" || entries[2] != 42 {
		t.Error("primitives inside arrays should pass through unchanged")
	}
}

func TestRedact_DoesNotMutateInput(t *testing.T) {
	in := map[string]any{
		"patientName": "Jon Doe",
		"nested":      map[string]any{"token": "abc"},
	}
	_ = Redact(in)

	if in["patientName"] != "Jon Doe" {
		t.Error("input map was mutated")
	}
	if in["nested"].(map[string]any)["token"] != "abc" {
		t.Error("nested input map was mutated")
	}
}

func TestRedact_NilAndPrimitives(t *testing.T) {
	if Redact(nil) != nil {
		t.Error("nil input should return nil")
	}

	in := map[string]any{
		"count":    3,
		"enabled":  true,
		"note":     nil,
		"fraction": 0.5,
	}
	out := Redact(in)
	if !reflect.DeepEqual(in, out) {
		t.Errorf("non-sensitive primitives should pass through byte-identical: %v vs %v", in, out)
	}
}

func TestRedact_StringMapValues(t *testing.T) {
	in := map[string]any{
		"tags": map[string]string{"physicianName": "Dr. A", "room": "3"},
	}
	out := Redact(in)
	tags := out["tags"].(map[string]any)
	if tags["physicianName"] != RedactedMarker {
		t.Errorf("physicianName in string map should be redacted, got %v", tags["physicianName"])
	}
	if tags["room"] != "3" {
		t.Errorf("room should pass through, got %v", tags["room"])
	}
}
