// Package disruption defines the disruption assessment request entities.
package disruption

import (
	"fmt"
	"strings"
	"time"

	"github.com/skywise-ai/irops/internal/domain"
)

// Status represents the lifecycle state of an assessment.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// IsTerminal reports whether the assessment has finished.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// Request is the immutable input to one assessment run. Created at ingress,
// read-only thereafter.
type Request struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	SessionID   string    `json:"session_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SubmitRequest holds the fields accepted at the request boundary.
type SubmitRequest struct {
	Description string `json:"disruption"`
	SessionID   string `json:"session_id,omitempty"`
}

const maxDescriptionLen = 8000

// Validate checks the submit request fields.
func (r *SubmitRequest) Validate() error {
	desc := strings.TrimSpace(r.Description)
	if desc == "" {
		return fmt.Errorf("%w: disruption description is required", domain.ErrValidation)
	}
	if len(desc) > maxDescriptionLen {
		return fmt.Errorf("%w: disruption description exceeds %d characters", domain.ErrValidation, maxDescriptionLen)
	}
	return nil
}

// Assessment is the persisted lifecycle record for one request.
type Assessment struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id,omitempty"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
