package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventStorePG is the PostgreSQL-backed EventStore over the compliance_event
// table.
type EventStorePG struct {
	pool *pgxpool.Pool
}

// NewEventStorePG creates a store backed by the given connection pool.
func NewEventStorePG(pool *pgxpool.Pool) *EventStorePG {
	return &EventStorePG{pool: pool}
}

const eventCols = `id, correlation_id, ts, service, version, environment,
	event_type, severity, details, exported_at, export_batch_id`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	var details []byte
	var batchID *string
	err := row.Scan(&e.ID, &e.CorrelationID, &e.Timestamp, &e.Service, &e.Version,
		&e.Environment, &e.EventType, &e.Severity, &details, &e.ExportedAt, &batchID)
	if err != nil {
		return nil, err
	}
	if batchID != nil {
		e.ExportBatchID = *batchID
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("decode event details: %w", err)
		}
	}
	return &e, nil
}

func (s *EventStorePG) Write(ctx context.Context, e *Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encode event details: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO compliance_event (id, correlation_id, ts, service, version, environment, event_type, severity, details)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.CorrelationID, e.Timestamp, e.Service, e.Version, e.Environment,
		e.EventType, string(e.Severity), details)
	if err != nil {
		return fmt.Errorf("insert compliance event: %w", err)
	}
	return nil
}

func (s *EventStorePG) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+eventCols+` FROM compliance_event WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return e, err
}

func (s *EventStorePG) Search(ctx context.Context, q SearchQuery) ([]*Event, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	n := 0
	add := func(clause string, v any) {
		n++
		args = append(args, v)
		where += " AND " + clause + "$" + strconv.Itoa(n)
	}
	if q.EventType != "" {
		add("event_type = ", q.EventType)
	}
	if q.Severity != "" {
		add("severity = ", string(q.Severity))
	}
	if q.CorrelationID != "" {
		add("correlation_id = ", q.CorrelationID)
	}
	if q.From != nil {
		add("ts >= ", *q.From)
	}
	if q.To != nil {
		add("ts <= ", *q.To)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM compliance_event `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count compliance events: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + eventCols + ` FROM compliance_event ` + where +
		fmt.Sprintf(" ORDER BY ts ASC LIMIT %d OFFSET %d", limit, q.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search compliance events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

func (s *EventStorePG) ListUnexported(ctx context.Context, before time.Time, limit int) ([]*Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventCols+` FROM compliance_event
		WHERE exported_at IS NULL AND ts < $1
		ORDER BY ts ASC
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list unexported events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *EventStorePG) MarkExported(ctx context.Context, ids []uuid.UUID, batchID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE compliance_event
		SET exported_at = NOW(), export_batch_id = $2
		WHERE id = ANY($1)`, ids, batchID)
	if err != nil {
		return fmt.Errorf("mark events exported: %w", err)
	}
	return nil
}

func (s *EventStorePG) PurgeExportedBefore(ctx context.Context, class RecordClass, cutoff time.Time) (int64, error) {
	match := `NOT LIKE 'system.%'`
	if class == ClassOperational {
		match = `LIKE 'system.%'`
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM compliance_event
		WHERE exported_at IS NOT NULL AND ts < $1
		  AND event_type `+match, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge exported events: %w", err)
	}
	return tag.RowsAffected(), nil
}
