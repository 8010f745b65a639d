// Package eventstore defines the port interface for the append-only event store.
package eventstore

import (
	"context"

	"github.com/skywise-ai/irops/internal/domain/event"
)

// Store is the port interface for appending and loading assessment events.
type Store interface {
	// Append persists a new event to the store.
	Append(ctx context.Context, ev *event.AssessmentEvent) error

	// LoadByRequest returns all events for the given request, oldest first.
	LoadByRequest(ctx context.Context, requestID string) ([]event.AssessmentEvent, error)
}
