package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skywise-ai/irops/internal/domain/event"
)

// EventStore implements eventstore.Store using PostgreSQL (append-only).
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts a new event. ID and timestamp are assigned by the database.
func (s *EventStore) Append(ctx context.Context, ev *event.AssessmentEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO assessment_events (request_id, event_type, payload)
		 VALUES ($1, $2, $3)`,
		ev.RequestID, string(ev.Type), ev.Payload)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// LoadByRequest returns all events for the given request, oldest first.
func (s *EventStore) LoadByRequest(ctx context.Context, requestID string) ([]event.AssessmentEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, request_id, event_type, payload, created_at
		 FROM assessment_events WHERE request_id = $1 ORDER BY created_at ASC, id ASC`,
		requestID)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", requestID, err)
	}
	defer rows.Close()

	var events []event.AssessmentEvent
	for rows.Next() {
		var ev event.AssessmentEvent
		if err := rows.Scan(&ev.ID, &ev.RequestID, &ev.Type, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
