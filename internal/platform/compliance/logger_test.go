package compliance

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.Disabled)
}

func newTestAuditLogger(store EventStore) *Logger {
	return NewLogger(LoggerConfig{
		Service:     "radsig-server",
		Version:     "0.1.0",
		Environment: "test",
		QueueSize:   64,
		Workers:     1,
		BaseDelay:   time.Millisecond,
	}, store, testLogger())
}

func TestLogger_EmitsRedactedEvent(t *testing.T) {
	store := NewInMemoryEventStore()
	l := newTestAuditLogger(store)

	corr := l.Log(context.Background(), "signature.created", RawDetails{
		"patientName": "Jon Doe",
		"reportId":    "r-1",
	}, "")
	l.Close()

	if corr == "" {
		t.Fatal("expected a correlation id")
	}

	events, total, err := store.Search(context.Background(), SearchQuery{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 event, got %d", total)
	}
	e := events[0]
	if e.EventType != "signature.created" {
		t.Errorf("unexpected event type %q", e.EventType)
	}
	if e.Severity != SeverityInfo {
		t.Errorf("unexpected severity %q", e.Severity)
	}
	if e.Details["patientName"] != RedactedMarker {
		t.Errorf("patientName should be redacted, got %v", e.Details["patientName"])
	}
	if e.Details["reportId"] != "r-1" {
		t.Errorf("reportId should pass through, got %v", e.Details["reportId"])
	}
	if e.Service != "radsig-server" || e.Environment != "test" {
		t.Errorf("service fields not stamped: %s/%s", e.Service, e.Environment)
	}
}

func TestLogger_CorrelationIDPropagation(t *testing.T) {
	store := NewInMemoryEventStore()
	l := newTestAuditLogger(store)

	explicit := l.Log(context.Background(), "signature.created", nil, "corr-explicit")
	if explicit != "corr-explicit" {
		t.Errorf("explicit correlation id not honored: %s", explicit)
	}

	ctx := WithCorrelationID(context.Background(), "corr-ctx")
	fromCtx := l.Log(ctx, "signature.verified", nil, "")
	if fromCtx != "corr-ctx" {
		t.Errorf("context correlation id not honored: %s", fromCtx)
	}

	fresh := l.Log(context.Background(), "system.startup", nil, "")
	if fresh == "" || fresh == "corr-ctx" || fresh == "corr-explicit" {
		t.Errorf("expected fresh correlation id, got %q", fresh)
	}
	l.Close()
}

func TestLogger_QueueFullIncrementsDroppedCounter(t *testing.T) {
	// A store that blocks until released, so the queue can fill up.
	release := make(chan struct{})
	store := &blockingStore{release: release}

	l := NewLogger(LoggerConfig{
		Service: "s", Version: "v", Environment: "test",
		QueueSize: 2, Workers: 1, BaseDelay: time.Millisecond,
	}, store, testLogger())

	// One event occupies the worker, two fill the queue, the rest drop.
	for i := 0; i < 10; i++ {
		l.Log(context.Background(), "access.read", nil, "")
	}
	close(release)
	l.Close()

	stats := l.Stats()
	if stats.DroppedFull == 0 {
		t.Error("expected dropped_queue_full > 0 when buffer is exhausted")
	}
	if stats.Enqueued+stats.DroppedFull != 10 {
		t.Errorf("every event must be either enqueued or counted dropped: %+v", stats)
	}
}

func TestLogger_SinkFailureRetriesThenCountsDrop(t *testing.T) {
	store := &failingStore{fail: 100} // always fails
	l := NewLogger(LoggerConfig{
		Service: "s", Version: "v", Environment: "test",
		QueueSize: 8, Workers: 1, MaxAttempts: 3, BaseDelay: time.Millisecond,
	}, store, testLogger())

	l.Log(context.Background(), "access.read", nil, "")
	l.Close()

	stats := l.Stats()
	if stats.Retried != 2 {
		t.Errorf("expected 2 retries for 3 attempts, got %d", stats.Retried)
	}
	if stats.DroppedSink != 1 {
		t.Errorf("expected 1 sink drop, got %d", stats.DroppedSink)
	}
}

func TestLogger_SinkRecoversAfterTransientFailure(t *testing.T) {
	store := &failingStore{fail: 1, inner: NewInMemoryEventStore()}
	l := NewLogger(LoggerConfig{
		Service: "s", Version: "v", Environment: "test",
		QueueSize: 8, Workers: 1, MaxAttempts: 3, BaseDelay: time.Millisecond,
	}, store, testLogger())

	l.Log(context.Background(), "access.read", nil, "")
	l.Close()

	stats := l.Stats()
	if stats.Written != 1 {
		t.Errorf("expected event written after retry, got %+v", stats)
	}
	if stats.DroppedSink != 0 {
		t.Errorf("expected no drops, got %+v", stats)
	}
}

func TestLogger_RejectsMalformedEventType(t *testing.T) {
	store := NewInMemoryEventStore()
	l := newTestAuditLogger(store)

	l.Log(context.Background(), "not-namespaced", nil, "")
	l.Close()

	_, total, _ := store.Search(context.Background(), SearchQuery{})
	if total != 0 {
		t.Errorf("malformed event type must not be persisted, got %d events", total)
	}
}

// blockingStore blocks writes until release is closed. Only Write is used by
// the logger; the embedded interface covers the rest.
type blockingStore struct {
	EventStore
	release chan struct{}
}

func (s *blockingStore) Write(ctx context.Context, e *Event) error {
	<-s.release
	return nil
}

// failingStore fails the first `fail` writes, then delegates to inner.
type failingStore struct {
	EventStore
	mu    sync.Mutex
	fail  int
	inner *InMemoryEventStore
}

func (s *failingStore) Write(ctx context.Context, e *Event) error {
	s.mu.Lock()
	shouldFail := s.fail > 0
	if shouldFail {
		s.fail--
	}
	s.mu.Unlock()
	if shouldFail {
		return errors.New("sink unavailable")
	}
	if s.inner == nil {
		return nil
	}
	return s.inner.Write(ctx, e)
}
