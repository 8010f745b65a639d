package service

import (
	"strings"
	"unicode"

	"github.com/skywise-ai/irops/internal/domain/assessment"
	"github.com/skywise-ai/irops/internal/port/agentbackend"
)

// digestMaxLen caps a peer digest so revision prompts stay bounded no matter
// how verbose the initial responses were.
const digestMaxLen = 240

// RevisionPayload is the cross-context handed to one agent in the revision
// phase: its own initial response in full, plus a digest of every peer.
type RevisionPayload struct {
	Own   assessment.AgentResponse
	Peers []agentbackend.PeerDigest
}

// RevisionCoordinator builds the per-agent revision inputs from a completed
// initial phase. Each agent sees all peers, including the ones that failed;
// a zero-confidence error entry is itself a signal worth revising on.
type RevisionCoordinator struct{}

func NewRevisionCoordinator() *RevisionCoordinator {
	return &RevisionCoordinator{}
}

// BuildInputs returns one payload per agent present in the initial result.
// Peer digests are ordered by agent name so prompts are reproducible.
func (c *RevisionCoordinator) BuildInputs(initial *assessment.PhaseResult) map[assessment.AgentName]RevisionPayload {
	agents := initial.Agents()
	inputs := make(map[assessment.AgentName]RevisionPayload, len(agents))

	for _, self := range agents {
		payload := RevisionPayload{Own: initial.Responses[self]}
		for _, peer := range agents {
			if peer == self {
				continue
			}
			resp := initial.Responses[peer]
			payload.Peers = append(payload.Peers, agentbackend.PeerDigest{
				Agent:          peer,
				Tier:           assessment.TierOf(peer),
				Recommendation: digest(resp.Recommendation),
				Confidence:     resp.Confidence,
				Constraints:    resp.Constraints,
				Status:         resp.Status,
			})
		}
		inputs[self] = payload
	}
	return inputs
}

// digest reduces a recommendation to its first sentence, truncated to
// digestMaxLen runes.
func digest(recommendation string) string {
	s := strings.TrimSpace(recommendation)
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			s = s[:i]
			break
		}
	}
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	runes := []rune(s)
	if len(runes) > digestMaxLen {
		s = string(runes[:digestMaxLen])
	}
	return s
}
