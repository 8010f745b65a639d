package assessment

import (
	"sort"
	"time"
)

// Phase identifies one barrier-synchronized round of agent invocation.
type Phase string

const (
	PhaseInitial  Phase = "initial"
	PhaseRevision Phase = "revision"
)

// ResponseStatus classifies the outcome of one agent invocation.
type ResponseStatus string

const (
	ResponseSuccess  ResponseStatus = "success"
	ResponseDegraded ResponseStatus = "degraded" // fallback backend answered
	ResponseError    ResponseStatus = "error"    // whole chain exhausted
)

// AgentResponse is one agent's output for one phase. Immutable once returned
// by the invoker that produced it.
type AgentResponse struct {
	Agent          AgentName      `json:"agent"`
	Phase          Phase          `json:"phase"`
	Recommendation string         `json:"recommendation"`
	Confidence     float64        `json:"confidence"` // [0,1]
	Constraints    []string       `json:"constraints,omitempty"`
	Reasoning      string         `json:"reasoning,omitempty"`
	Sources        []string       `json:"sources,omitempty"`
	Status         ResponseStatus `json:"status"`
	Backend        string         `json:"backend,omitempty"` // backend that actually answered
	Attempts       int            `json:"attempts"`
	Duration       time.Duration  `json:"duration"`
}

// PhaseResult maps agent name to that agent's response for one phase.
// Produced once by a phase run; immutable. Exactly one entry per agent
// invoked in the phase, regardless of individual invocation outcomes.
type PhaseResult struct {
	Phase       Phase                       `json:"phase"`
	Responses   map[AgentName]AgentResponse `json:"responses"`
	StartedAt   time.Time                   `json:"started_at"`
	CompletedAt time.Time                   `json:"completed_at"`
	Duration    time.Duration               `json:"duration"`
}

// Agents returns the agent names present in the result, sorted for
// deterministic iteration regardless of completion order.
func (pr *PhaseResult) Agents() []AgentName {
	names := make([]AgentName, 0, len(pr.Responses))
	for name := range pr.Responses {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Get returns the response for one agent.
func (pr *PhaseResult) Get(name AgentName) (AgentResponse, bool) {
	r, ok := pr.Responses[name]
	return r, ok
}

// MinSafetyConfidence returns the minimum confidence among safety-tier
// responses, or 0 when no safety-tier response is present.
func (pr *PhaseResult) MinSafetyConfidence() float64 {
	minConf := -1.0
	for name, resp := range pr.Responses {
		if !IsSafety(name) {
			continue
		}
		if minConf < 0 || resp.Confidence < minConf {
			minConf = resp.Confidence
		}
	}
	if minConf < 0 {
		return 0
	}
	return minConf
}

// AuditTrail retains the three phase outputs verbatim for traceability.
// Each field is appended once when its phase completes and never mutated
// retroactively.
type AuditTrail struct {
	RequestID   string         `json:"request_id"`
	Initial     *PhaseResult   `json:"initial,omitempty"`
	Revision    *PhaseResult   `json:"revision,omitempty"`
	Arbitration *FinalDecision `json:"arbitration,omitempty"`
}
