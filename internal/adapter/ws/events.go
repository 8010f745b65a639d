package ws

// Event type constants for WebSocket messages.
const (
	EventAssessmentStatus = "assessment_status"
	EventPhaseStatus      = "phase_status"
	EventDecisionReady    = "decision_ready"
)

// AssessmentStatusEvent is broadcast when an assessment's lifecycle state
// changes.
type AssessmentStatusEvent struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// PhaseStatusEvent is broadcast when a phase starts or completes.
type PhaseStatusEvent struct {
	RequestID string `json:"request_id"`
	Phase     string `json:"phase"`
	State     string `json:"state"` // "started" or "completed"
}
