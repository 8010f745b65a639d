package service

import (
	"strings"

	"github.com/skywise-ai/irops/internal/domain/assessment"
)

// EvolutionTracker classifies how each agent's position moved between the
// initial and revision phases.
type EvolutionTracker struct {
	// tolerance is the confidence delta below which a response counts as
	// unchanged.
	tolerance float64
}

func NewEvolutionTracker(tolerance float64) *EvolutionTracker {
	if tolerance <= 0 {
		tolerance = 0.05
	}
	return &EvolutionTracker{tolerance: tolerance}
}

var (
	approveWords  = []string{"approve", "proceed", "dispatch", "release", "clear", "continue", "maintain", "feasible", "acceptable"}
	restrictWords = []string{"ground", "cancel", "hold", "restrict", "prohibit", "deny", "stop", "reject", "unsafe", "escalate"}
)

// Diff compares the two phase results agent by agent and produces the
// per-agent records plus the round-level convergence flags.
func (t *EvolutionTracker) Diff(initial, revision *assessment.PhaseResult) assessment.EvolutionSummary {
	summary := assessment.EvolutionSummary{}
	if initial == nil || revision == nil {
		return summary
	}

	majority := majorityPolarity(revision)

	for _, agent := range initial.Agents() {
		before := initial.Responses[agent]
		after, ok := revision.Responses[agent]
		if !ok {
			continue
		}

		rec := assessment.EvolutionRecord{
			Agent:              agent,
			InitialSummary:     digest(before.Recommendation),
			RevisedSummary:     digest(after.Recommendation),
			InitialConfidence:  before.Confidence,
			RevisedConfidence:  after.Confidence,
			ConstraintsAdded:   diffConstraints(after.Constraints, before.Constraints),
			ConstraintsRemoved: diffConstraints(before.Constraints, after.Constraints),
		}
		rec.Change = t.classify(before, after, rec)
		summary.Records = append(summary.Records, rec)

		switch rec.Change {
		case assessment.ChangeReversed:
			summary.Diverged = true
		case assessment.ChangeUnchanged:
		default:
			// A non-trivial move toward the round's majority position counts
			// toward convergence.
			if p := polarity(after.Recommendation); majority != 0 && sign(p) == sign(majority) {
				summary.Converged = true
			}
		}
	}

	if summary.Diverged {
		summary.Converged = false
	}
	return summary
}

func (t *EvolutionTracker) classify(before, after assessment.AgentResponse, rec assessment.EvolutionRecord) assessment.Change {
	pb, pa := polarity(before.Recommendation), polarity(after.Recommendation)
	if pb != 0 && pa != 0 && sign(pb) != sign(pa) {
		return assessment.ChangeReversed
	}

	sameText := normalize(before.Recommendation) == normalize(after.Recommendation)
	delta := after.Confidence - before.Confidence
	if sameText && abs(delta) <= t.tolerance && len(rec.ConstraintsAdded) == 0 && len(rec.ConstraintsRemoved) == 0 {
		return assessment.ChangeUnchanged
	}
	if delta > 0 && len(rec.ConstraintsRemoved) == 0 {
		return assessment.ChangeConverged
	}
	if delta > t.tolerance {
		return assessment.ChangeStrengthened
	}
	if delta < -t.tolerance {
		return assessment.ChangeWeakened
	}
	if len(rec.ConstraintsAdded) > 0 {
		return assessment.ChangeStrengthened
	}
	if len(rec.ConstraintsRemoved) > 0 {
		return assessment.ChangeWeakened
	}
	return assessment.ChangeUnchanged
}

// polarity scores a recommendation's lexical stance: positive for approving
// language, negative for restricting language, zero when balanced or silent.
func polarity(recommendation string) int {
	text := strings.ToLower(recommendation)
	score := 0
	for _, w := range approveWords {
		if strings.Contains(text, w) {
			score++
		}
	}
	for _, w := range restrictWords {
		if strings.Contains(text, w) {
			score--
		}
	}
	return score
}

// majorityPolarity returns the dominant stance of a phase, weighted one vote
// per usable response.
func majorityPolarity(pr *assessment.PhaseResult) int {
	total := 0
	for _, agent := range pr.Agents() {
		resp := pr.Responses[agent]
		if resp.Status == assessment.ResponseError {
			continue
		}
		total += sign(polarity(resp.Recommendation))
	}
	return total
}

// diffConstraints returns the entries of a that are absent from b.
func diffConstraints(a, b []string) []string {
	seen := make(map[string]bool, len(b))
	for _, s := range b {
		seen[normalize(s)] = true
	}
	var out []string
	for _, s := range a {
		if !seen[normalize(s)] {
			out = append(out, s)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
