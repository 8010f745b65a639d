// Package database defines the persistence port for assessments, decisions
// and audit phases.
package database

import (
	"context"

	"github.com/skywise-ai/irops/internal/domain/assessment"
	"github.com/skywise-ai/irops/internal/domain/disruption"
)

// Store is the port interface for assessment persistence.
type Store interface {
	// CreateAssessment persists a new assessment in pending state.
	CreateAssessment(ctx context.Context, a *disruption.Assessment) error

	// GetAssessment returns one assessment by request ID.
	GetAssessment(ctx context.Context, id string) (*disruption.Assessment, error)

	// ListAssessments returns assessments most recent first.
	ListAssessments(ctx context.Context) ([]disruption.Assessment, error)

	// UpdateAssessmentStatus transitions the lifecycle state; errMsg is only
	// set for the error state.
	UpdateAssessmentStatus(ctx context.Context, id string, status disruption.Status, errMsg string) error

	// SavePhaseResult appends one completed phase payload to the audit trail.
	// A phase is written at most once per assessment.
	SavePhaseResult(ctx context.Context, requestID string, pr *assessment.PhaseResult) error

	// SaveDecision persists the arbitration output (the third audit phase).
	SaveDecision(ctx context.Context, d *assessment.FinalDecision) error

	// GetDecision returns the final decision for a complete assessment.
	GetDecision(ctx context.Context, requestID string) (*assessment.FinalDecision, error)

	// GetAuditTrail returns the retained phase payloads for compliance review.
	GetAuditTrail(ctx context.Context, requestID string) (*assessment.AuditTrail, error)
}
