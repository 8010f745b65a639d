// Package event defines the append-only assessment event entity.
package event

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of assessment event.
type Type string

const (
	TypeSubmitted        Type = "assessment_submitted"
	TypePhaseStarted     Type = "phase_started"
	TypePhaseCompleted   Type = "phase_completed"
	TypeAgentAttempt     Type = "agent_attempt"
	TypeConflictDetected Type = "conflict_detected"
	TypeDecisionMade     Type = "decision_made"
	TypeFailed           Type = "assessment_failed"
)

// AssessmentEvent is one append-only record in an assessment's trajectory.
// Events are never updated or deleted.
type AssessmentEvent struct {
	ID        string          `json:"id"`
	RequestID string          `json:"request_id"`
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
