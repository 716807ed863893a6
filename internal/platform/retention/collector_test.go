package retention

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/radpacs/radpacs/internal/platform/compliance"
	"github.com/radpacs/radpacs/internal/platform/objectstore"
)

type archiveStore struct {
	*objectstore.InMemoryStore
	lastKey string
}

func newArchiveStore() *archiveStore {
	return &archiveStore{InMemoryStore: objectstore.NewInMemoryStore()}
}

func (s *archiveStore) Put(ctx context.Context, key, contentType string, data []byte) (*objectstore.ObjectInfo, error) {
	s.lastKey = key
	return s.InMemoryStore.Put(ctx, key, contentType, data)
}

func sampleEvents() []*compliance.Event {
	return []*compliance.Event{{
		CorrelationID: "corr-1",
		Timestamp:     time.Now().UTC(),
		Service:       "radsig",
		EventType:     "signature.created",
		Severity:      compliance.SeverityInfo,
		Details:       map[string]any{"signatureId": "s1"},
	}}
}

func TestCollectorSinkDeliversBatch(t *testing.T) {
	var gotAuth string
	var gotBody collectorBatch
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewCollectorSink(srv.URL, "key-123", zerolog.Nop())
	if err := sink.ExportBatch(context.Background(), "batch-1", sampleEvents()); err != nil {
		t.Fatalf("export: %v", err)
	}
	if gotAuth != "Bearer key-123" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotBody.BatchID != "batch-1" || len(gotBody.Events) != 1 {
		t.Errorf("batch = %+v", gotBody)
	}
}

func TestCollectorSinkRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewCollectorSink(srv.URL, "", zerolog.Nop())
	sink.baseDelay = time.Millisecond

	if err := sink.ExportBatch(context.Background(), "batch-1", sampleEvents()); err != nil {
		t.Fatalf("export: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestCollectorSinkDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	sink := NewCollectorSink(srv.URL, "", zerolog.Nop())
	sink.baseDelay = time.Millisecond

	if err := sink.ExportBatch(context.Background(), "batch-1", sampleEvents()); err == nil {
		t.Fatal("export should fail on 422")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on client error)", calls)
	}
}

func TestObjectSinkArchivesUnderDatedKey(t *testing.T) {
	store := newArchiveStore()
	sink := NewObjectSink(store)
	sink.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }

	if err := sink.ExportBatch(context.Background(), "batch-7", sampleEvents()); err != nil {
		t.Fatalf("export: %v", err)
	}
	if store.lastKey != "audit-logs/2026/03/14/batch-7.json" {
		t.Errorf("key = %s", store.lastKey)
	}

	// Write-once: re-exporting the same batch id must fail loudly.
	if err := sink.ExportBatch(context.Background(), "batch-7", sampleEvents()); err == nil {
		t.Fatal("duplicate batch archive should fail")
	}
}
