package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	iropsotel "github.com/skywise-ai/irops/internal/adapter/otel"
	"github.com/skywise-ai/irops/internal/domain/assessment"
	"github.com/skywise-ai/irops/internal/domain/constraint"
)

// ConflictDetector finds disagreements between agent responses of the same
// phase and classifies them by the tiers involved. Resolution policy:
// between two safety constraints of the same kind the stricter bound wins
// and is carried verbatim; incompatible safety constraints escalate rather
// than auto-resolve; safety always overrides business; business-vs-business
// disagreements are recorded as advisory and left to arbitration.
type ConflictDetector struct {
	metrics *iropsotel.Metrics // optional
}

func NewConflictDetector(metrics *iropsotel.Metrics) *ConflictDetector {
	return &ConflictDetector{metrics: metrics}
}

// proposedDelayRe matches an explicit hour figure in free-text
// recommendations, e.g. "delay the departure by 4h" or "a 4 hour delay".
var proposedDelayRe = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:h|hr|hrs|hour|hours)\b`)

// Detect runs pairwise conflict detection over one phase result. Agent pairs
// are visited in sorted name order so the output is deterministic.
func (d *ConflictDetector) Detect(ctx context.Context, pr *assessment.PhaseResult) []assessment.ConflictRecord {
	agents := pr.Agents()
	parsed := make(map[assessment.AgentName][]constraint.Constraint, len(agents))
	for _, a := range agents {
		parsed[a] = constraint.ParseAll(pr.Responses[a].Constraints)
	}

	var records []assessment.ConflictRecord
	for i := 0; i < len(agents); i++ {
		for j := i + 1; j < len(agents); j++ {
			a, b := agents[i], agents[j]
			pair := d.comparePair(a, b, parsed[a], parsed[b])
			if len(pair) == 0 {
				// Constrained-based detection found nothing; check whether a
				// free-text delay proposal runs into the other side's
				// dispatch restriction.
				pair = d.compareProposals(a, b, pr, parsed)
			}
			records = append(records, pair...)
		}
	}

	if d.metrics != nil && len(records) > 0 {
		d.metrics.ConflictsDetected.Add(ctx, int64(len(records)))
	}
	return records
}

// comparePair checks the structured constraints of two agents against each
// other.
func (d *ConflictDetector) comparePair(a, b assessment.AgentName, ca, cb []constraint.Constraint) []assessment.ConflictRecord {
	var records []assessment.ConflictRecord
	for _, x := range ca {
		if x.Kind == constraint.KindAdvisory {
			continue
		}
		for _, y := range cb {
			if y.Kind == constraint.KindAdvisory {
				continue
			}
			switch {
			case constraint.Incompatible(x, y):
				records = append(records, d.incompatibleRecord(a, b, x, y))
			case x.Kind == y.Kind && x.Bound != y.Bound &&
				(x.Kind == constraint.KindMaxDelay || x.Kind == constraint.KindMinDelay):
				records = append(records, d.boundRecord(a, b, x, y))
			}
		}
	}
	return records
}

func (d *ConflictDetector) incompatibleRecord(a, b assessment.AgentName, x, y constraint.Constraint) assessment.ConflictRecord {
	rec := assessment.ConflictRecord{
		ID:          uuid.NewString(),
		Class:       classify(a, b),
		Agents:      []assessment.AgentName{a, b},
		Description: fmt.Sprintf("%s requires %q but %s requires %q", a, x.Raw, b, y.Raw),
		ConstraintA: x.Raw,
		ConstraintB: y.Raw,
	}
	switch rec.Class {
	case assessment.ConflictSafetyVsSafety:
		// Two binding safety constraints that cannot both hold are never
		// auto-resolved.
		rec.Resolution = assessment.ResolutionEscalated
	case assessment.ConflictSafetyVsBusiness:
		rec.Resolution = assessment.ResolutionSafetyOverrides
		if assessment.IsSafety(a) {
			rec.Kept = x.Raw
		} else {
			rec.Kept = y.Raw
		}
	default:
		rec.Resolution = assessment.ResolutionAdvisory
	}
	return rec
}

// boundRecord covers two delay bounds of the same kind with different
// values. Between safety agents the stricter bound wins verbatim; elsewhere
// the disagreement is advisory input to arbitration.
func (d *ConflictDetector) boundRecord(a, b assessment.AgentName, x, y constraint.Constraint) assessment.ConflictRecord {
	rec := assessment.ConflictRecord{
		ID:          uuid.NewString(),
		Class:       classify(a, b),
		Agents:      []assessment.AgentName{a, b},
		Description: fmt.Sprintf("%s and %s disagree on the %s bound (%q vs %q)", a, b, x.Kind, x.Raw, y.Raw),
		ConstraintA: x.Raw,
		ConstraintB: y.Raw,
	}
	switch rec.Class {
	case assessment.ConflictSafetyVsSafety:
		rec.Resolution = assessment.ResolutionStricterWins
		rec.Kept = constraint.Stricter(x, y).Raw
	case assessment.ConflictSafetyVsBusiness:
		rec.Resolution = assessment.ResolutionSafetyOverrides
		if assessment.IsSafety(a) {
			rec.Kept = x.Raw
		} else {
			rec.Kept = y.Raw
		}
	default:
		rec.Resolution = assessment.ResolutionAdvisory
	}
	return rec
}

// compareProposals catches the case where one side proposes a concrete delay
// only in its recommendation text while the other side's structured
// constraints forbid it.
func (d *ConflictDetector) compareProposals(
	a, b assessment.AgentName,
	pr *assessment.PhaseResult,
	parsed map[assessment.AgentName][]constraint.Constraint,
) []assessment.ConflictRecord {
	var records []assessment.ConflictRecord
	check := func(proposer, restrictor assessment.AgentName) {
		delay, ok := proposedDelay(pr.Responses[proposer].Recommendation)
		if !ok {
			return
		}
		for _, c := range parsed[restrictor] {
			violated := (c.Kind == constraint.KindMaxDelay && delay > c.Bound) ||
				c.Kind == constraint.KindNoDispatch || c.Kind == constraint.KindGroundStop
			if !violated {
				continue
			}
			rec := assessment.ConflictRecord{
				ID:          uuid.NewString(),
				Class:       classify(proposer, restrictor),
				Agents:      []assessment.AgentName{proposer, restrictor},
				Description: fmt.Sprintf("%s proposes a %s delay but %s requires %q", proposer, delay, restrictor, c.Raw),
				ConstraintA: fmt.Sprintf("proposed delay %s", delay),
				ConstraintB: c.Raw,
			}
			switch rec.Class {
			case assessment.ConflictSafetyVsSafety:
				rec.Resolution = assessment.ResolutionEscalated
			case assessment.ConflictSafetyVsBusiness:
				rec.Resolution = assessment.ResolutionSafetyOverrides
				rec.Kept = c.Raw
			default:
				rec.Resolution = assessment.ResolutionAdvisory
			}
			records = append(records, rec)
			return
		}
	}
	check(a, b)
	check(b, a)
	return records
}

// Surviving resolves all safety-tier constraints into the set the arbitrator
// must honor. Each safety agent contributes its revision-phase constraints
// when that revision produced a usable response; otherwise the agent's
// initial constraints stand so a failed revision cannot erase a binding
// restriction. Same-kind delay bounds reduce to the stricter one, carried
// verbatim; dispatch restrictions dedupe by kind. Output order is stable.
func (d *ConflictDetector) Surviving(initial, revision *assessment.PhaseResult) []constraint.Constraint {
	byKind := make(map[constraint.Kind]constraint.Constraint)
	for _, agent := range assessment.SafetyAgents() {
		resp, ok := effectiveResponse(agent, initial, revision)
		if !ok {
			continue
		}
		for _, c := range constraint.ParseAll(resp.Constraints) {
			if c.Kind == constraint.KindAdvisory {
				continue
			}
			held, ok := byKind[c.Kind]
			if !ok {
				byKind[c.Kind] = c
				continue
			}
			byKind[c.Kind] = constraint.Stricter(held, c)
		}
	}

	surviving := make([]constraint.Constraint, 0, len(byKind))
	for _, c := range byKind {
		surviving = append(surviving, c)
	}
	sort.Slice(surviving, func(i, j int) bool { return surviving[i].Raw < surviving[j].Raw })
	return surviving
}

// effectiveResponse picks the response whose constraints bind for an agent:
// the revision-phase response when one exists and did not error, the initial
// response otherwise.
func effectiveResponse(agent assessment.AgentName, initial, revision *assessment.PhaseResult) (assessment.AgentResponse, bool) {
	if revision != nil {
		if resp, ok := revision.Get(agent); ok && resp.Status != assessment.ResponseError {
			return resp, true
		}
	}
	if initial == nil {
		return assessment.AgentResponse{}, false
	}
	return initial.Get(agent)
}

func classify(a, b assessment.AgentName) assessment.ConflictClass {
	switch {
	case assessment.IsSafety(a) && assessment.IsSafety(b):
		return assessment.ConflictSafetyVsSafety
	case !assessment.IsSafety(a) && !assessment.IsSafety(b):
		return assessment.ConflictBusinessVsBusiness
	default:
		return assessment.ConflictSafetyVsBusiness
	}
}

// proposedDelay extracts an explicit delay figure from recommendation text.
// It only fires when the text actually talks about delaying.
func proposedDelay(recommendation string) (time.Duration, bool) {
	if !strings.Contains(strings.ToLower(recommendation), "delay") {
		return 0, false
	}
	m := proposedDelayRe.FindStringSubmatch(recommendation)
	if m == nil {
		return 0, false
	}
	dur, err := time.ParseDuration(m[1] + "h")
	if err != nil {
		return 0, false
	}
	return dur, true
}
