// Package messagequeue is the port for the assessment lifecycle event bus.
package messagequeue

import "context"

// Handler consumes one message. A non-nil error requests redelivery.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue publishes and subscribes to lifecycle subjects.
type Queue interface {
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe attaches handler to subject. The returned function cancels
	// the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	Close() error
}

// Subjects published over the lifecycle of one assessment run.
const (
	SubjectAssessmentSubmitted = "assessments.submitted"
	SubjectAssessmentCompleted = "assessments.completed"
	SubjectAssessmentFailed    = "assessments.failed"
)
