package retention

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/radpacs/radpacs/internal/platform/compliance"
)

// CollectorSink ships audit batches to an external collector over HTTPS.
// Transient failures (network errors, 5xx, 429) are retried with exponential
// backoff inside a single ExportBatch call; other 4xx responses are permanent
// and surface immediately.
type CollectorSink struct {
	url         string
	apiKey      string
	client      *http.Client
	log         zerolog.Logger
	maxAttempts int
	baseDelay   time.Duration
}

func NewCollectorSink(url, apiKey string, log zerolog.Logger) *CollectorSink {
	return &CollectorSink{
		url:         url,
		apiKey:      apiKey,
		client:      &http.Client{Timeout: 30 * time.Second},
		log:         log.With().Str("component", "collector-sink").Logger(),
		maxAttempts: 3,
		baseDelay:   time.Second,
	}
}

type collectorBatch struct {
	BatchID    string              `json:"batchId"`
	ExportedAt string              `json:"exportedAt"`
	Events     []*compliance.Event `json:"events"`
}

func (s *CollectorSink) ExportBatch(ctx context.Context, batchID string, events []*compliance.Event) error {
	body, err := json.Marshal(collectorBatch{
		BatchID:    batchID,
		ExportedAt: time.Now().UTC().Format(compliance.TimestampLayout),
		Events:     events,
	})
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := s.baseDelay * time.Duration(1<<(attempt-2))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = s.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		if permanent, ok := lastErr.(*collectorError); ok && permanent.permanent {
			return lastErr
		}
		s.log.Warn().Err(lastErr).
			Str("batch_id", batchID).
			Int("attempt", attempt).
			Msg("collector delivery failed")
	}
	return fmt.Errorf("collector delivery exhausted after %d attempts: %w", s.maxAttempts, lastErr)
}

type collectorError struct {
	status    int
	permanent bool
}

func (e *collectorError) Error() string {
	return fmt.Sprintf("collector returned status %d", e.status)
}

func (s *CollectorSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &collectorError{status: resp.StatusCode}
	default:
		return &collectorError{status: resp.StatusCode, permanent: true}
	}
}
