// Package agentbackend defines the agent backend port (interface) and its registry.
package agentbackend

import (
	"context"

	"github.com/skywise-ai/irops/internal/domain/assessment"
)

// Result is the structured payload every backend must produce for one call.
type Result struct {
	Recommendation string   `json:"recommendation"`
	Confidence     float64  `json:"confidence"`
	Constraints    []string `json:"constraints,omitempty"`
	Reasoning      string   `json:"reasoning,omitempty"`
	Sources        []string `json:"sources,omitempty"`
}

// PeerDigest is a compact view of one sibling agent's initial-phase output,
// passed into revision calls instead of the sibling's raw text.
type PeerDigest struct {
	Agent          assessment.AgentName      `json:"agent"`
	Tier           assessment.Tier           `json:"tier"`
	Recommendation string                    `json:"recommendation"`
	Confidence     float64                   `json:"confidence"`
	Constraints    []string                  `json:"constraints,omitempty"`
	Status         assessment.ResponseStatus `json:"status"`
}

// PromptContext carries everything a backend needs for one invocation.
// It is read-only for the backend; revision fields are nil in the initial phase.
type PromptContext struct {
	RequestID  string
	SessionID  string
	Agent      assessment.AgentName
	Phase      assessment.Phase
	Disruption string

	// Revision phase only: the agent's own initial response and digests of
	// every sibling's initial output.
	OwnInitial  *assessment.AgentResponse
	PeerDigests []PeerDigest
}

// Backend is the port interface for one reasoning backend (one model behind
// the LLM proxy, or a stub in tests). Implementations may return an error on
// timeout or unavailability; the invoker walks the fallback chain.
type Backend interface {
	// Name returns the backend identifier, e.g. "openai/gpt-4o".
	Name() string

	// Call runs one reasoning request and returns the structured result.
	Call(ctx context.Context, pc *PromptContext) (*Result, error)
}
