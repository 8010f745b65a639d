package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	iropsotel "github.com/skywise-ai/irops/internal/adapter/otel"
	"github.com/skywise-ai/irops/internal/config"
	"github.com/skywise-ai/irops/internal/domain/assessment"
	"github.com/skywise-ai/irops/internal/domain/constraint"
	"github.com/skywise-ai/irops/internal/domain/disruption"
)

// EscalationScenarioID is the stable identifier of the forced human-review
// scenario produced when no candidate survives the safety filters.
const EscalationScenarioID = "human-review-required"

// Arbitrator synthesizes the final decision from the revision-phase evidence:
// candidate recovery scenarios, hard filtering against surviving safety
// constraints, four-dimension scoring, weighted ranking, and the
// justification narrative. Scoring is pure: the same inputs always yield the
// same ranking and the same recommended scenario.
type Arbitrator struct {
	weights      assessment.Weights
	minScenarios int
	maxScenarios int
	metrics      *iropsotel.Metrics // optional
	now          func() time.Time
}

func NewArbitrator(cfg config.Scoring, metrics *iropsotel.Metrics) *Arbitrator {
	return &Arbitrator{
		weights:      cfg.Weights.Normalized(),
		minScenarios: cfg.MinScenarios,
		maxScenarios: cfg.MaxScenarios,
		metrics:      metrics,
		now:          time.Now,
	}
}

// ArbitrationInput bundles the evidence arbitration works from.
type ArbitrationInput struct {
	Request   *disruption.Request
	Evidence  *assessment.PhaseResult // revision result, or initial when partial
	Conflicts []assessment.ConflictRecord
	Evolution assessment.EvolutionSummary
	Surviving []constraint.Constraint
	Partial   bool
}

// Arbitrate produces the final decision. It never fails: degraded evidence
// narrows to an escalation decision, not an error.
func (a *Arbitrator) Arbitrate(ctx context.Context, in ArbitrationInput) *assessment.FinalDecision {
	decision := &assessment.FinalDecision{
		RequestID:    in.Request.ID,
		SessionID:    in.Request.SessionID,
		Conflicts:    in.Conflicts,
		PartialInput: in.Partial,
		DecidedAt:    a.now(),
		Backend:      backendMix(in.Evidence),
	}

	for i := range in.Conflicts {
		if in.Conflicts[i].Blocking() {
			a.escalate(decision, in, fmt.Sprintf("unresolvable safety conflict: %s", in.Conflicts[i].Description))
			a.record(ctx, decision)
			return decision
		}
	}

	if usableResponses(in.Evidence) == 0 {
		a.escalate(decision, in, "no agent produced a usable response")
		a.record(ctx, decision)
		return decision
	}

	candidates := a.synthesize(in)
	survivors, discarded := a.filter(candidates, in.Surviving)
	if len(survivors) == 0 {
		a.escalate(decision, in, discardSummary(discarded))
		a.record(ctx, decision)
		return decision
	}

	for i := range survivors {
		survivors[i].Scores = a.score(&survivors[i], in.Evidence)
		survivors[i].Composite = survivors[i].Scores.Composite(a.weights)
	}
	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].Composite != survivors[j].Composite {
			return survivors[i].Composite > survivors[j].Composite
		}
		return survivors[i].ID < survivors[j].ID
	})
	if len(survivors) > a.maxScenarios {
		survivors = survivors[:a.maxScenarios]
	}

	decision.Status = assessment.DecisionSuccess
	decision.Scenarios = survivors
	decision.RecommendedID = survivors[0].ID
	decision.Confidence = a.confidence(survivors[0], in.Evidence)
	decision.Justification = a.justify(in, survivors, discarded)

	a.record(ctx, decision)
	return decision
}

// escalate fills the decision with the forced human-review scenario.
func (a *Arbitrator) escalate(d *assessment.FinalDecision, in ArbitrationInput, reason string) {
	d.Status = assessment.DecisionEscalate
	d.Confidence = 0
	d.RecommendedID = EscalationScenarioID
	d.Scenarios = []assessment.RecoveryScenario{{
		ID:          EscalationScenarioID,
		Title:       "Escalate to duty manager",
		Description: "No automated recovery option satisfies the binding safety constraints. Hold the flight in its current state and hand the decision to a human.",
		Recommendations: []string{
			"freeze automated recovery actions",
			"page the duty operations manager",
			"preserve the full assessment audit trail for review",
		},
		Confidence: 0,
		Cancels:    false,
	}}

	var b strings.Builder
	fmt.Fprintf(&b, "Escalation: %s.\n", reason)
	writeConstraintSection(&b, in.Surviving, nil)
	writeConflictSection(&b, in.Conflicts)
	writeEvolutionSection(&b, in.Evolution)
	if in.Partial {
		b.WriteString("Decision made on partial input: the assessment deadline expired before all phases completed.\n")
	}
	d.Justification = b.String()
}

// scenarioTemplate is a deterministic candidate shape. Base scores encode the
// operational character of the template; evidence confidence scales them.
type scenarioTemplate struct {
	id, title, desc  string
	recommendations  []string
	pros, cons       []string
	risks            []string
	delay            time.Duration
	usesOriginalHull bool
	cancels          bool
	base             assessment.DimensionScores
	plan             *assessment.RecoveryPlan
}

// synthesize builds the candidate set. Templates are fixed; the hold-and-fix
// delay adapts to any concrete delay the business tier proposed.
func (a *Arbitrator) synthesize(in ArbitrationInput) []assessment.RecoveryScenario {
	repairDelay := 4 * time.Hour
	if d, ok := proposedBusinessDelay(in.Evidence); ok {
		repairDelay = d
	}

	templates := []scenarioTemplate{
		{
			id:    "aircraft-swap-maintain-schedule",
			title: "Substitute aircraft, hold schedule",
			desc:  "Swap to an available spare hull and dispatch close to the published schedule.",
			recommendations: []string{
				"assign the spare hull to the affected flight",
				"retarget crew and ground handling to the new stand",
				"dispatch within the original slot window",
			},
			pros:  []string{"minimal passenger impact", "original schedule preserved"},
			cons:  []string{"consumes the spare hull", "tight turnaround for crew"},
			risks: []string{"spare hull availability can change before dispatch"},
			delay: 45 * time.Minute,
			base:  assessment.DimensionScores{Safety: 90, Cost: 70, Passenger: 90, Network: 85},
			plan: &assessment.RecoveryPlan{
				Steps: []assessment.PlanStep{
					{Order: 1, Action: "confirm spare hull release with maintenance control"},
					{Order: 2, Action: "reassign crew pairing to the substitute hull", DependsOn: []int{1}},
					{Order: 3, Action: "dispatch on the original slot", DependsOn: []int{2}, Contingency: "fall back to delayed substitution if the slot is lost"},
				},
				CriticalPath: []int{1, 2, 3},
			},
		},
		{
			id:    "aircraft-swap-delayed",
			title: "Substitute aircraft after repositioning",
			desc:  "Ferry a substitute hull in and depart once it is turned around.",
			recommendations: []string{
				"reposition the nearest available hull",
				"rebook tight connections proactively",
				"depart after substitute turnaround",
			},
			pros:  []string{"keeps the rotation alive", "no reliance on the affected hull"},
			cons:  []string{"repositioning cost", "moderate passenger delay"},
			risks: []string{"ferry slot approval is not guaranteed"},
			delay: 2*time.Hour + 30*time.Minute,
			base:  assessment.DimensionScores{Safety: 85, Cost: 60, Passenger: 70, Network: 75},
		},
		{
			id:    "hold-and-repair",
			title: "Hold for repair, dispatch original aircraft",
			desc:  fmt.Sprintf("Keep the original hull, complete the fix, and depart after roughly %s.", repairDelay),
			recommendations: []string{
				"open a maintenance work order immediately",
				"hold passengers with meal vouchers and updates",
				"dispatch the original hull once released",
			},
			pros:             []string{"no substitute hull consumed", "lowest direct cost"},
			cons:             []string{"longest passenger delay", "repair estimate may slip"},
			risks:            []string{"fix duration exceeding the estimate strands the rotation"},
			delay:            repairDelay,
			usesOriginalHull: true,
			base:             assessment.DimensionScores{Safety: 70, Cost: 75, Passenger: 50, Network: 60},
		},
		{
			id:    "depart-within-limit",
			title: "Short hold, dispatch original aircraft",
			desc:  "Resolve the disruption with a minimal hold and dispatch the original hull inside the permitted window.",
			recommendations: []string{
				"complete the abbreviated resolution procedure",
				"brief crew on the revised departure time",
				"dispatch inside the permitted delay window",
			},
			pros:             []string{"fast recovery", "rotation intact"},
			cons:             []string{"only viable for quickly resolvable disruptions"},
			risks:            []string{"procedure running long forces a rescope"},
			delay:            90 * time.Minute,
			usesOriginalHull: true,
			base:             assessment.DimensionScores{Safety: 75, Cost: 80, Passenger: 80, Network: 78},
		},
		{
			id:    "cancel-and-reprotect",
			title: "Cancel and reprotect passengers",
			desc:  "Cancel the flight and move passengers to partner and later own-metal services.",
			recommendations: []string{
				"cancel the flight in the schedule",
				"reprotect passengers on the next available services",
				"recover the crew pairing and the hull rotation",
			},
			pros:    []string{"removes all dispatch risk", "frees the hull for recovery"},
			cons:    []string{"worst passenger outcome", "compensation exposure"},
			risks:   []string{"reprotection capacity may be thin on peak days"},
			delay:   0,
			cancels: true,
			base:    assessment.DimensionScores{Safety: 95, Cost: 30, Passenger: 20, Network: 40},
		},
	}

	scenarios := make([]assessment.RecoveryScenario, 0, len(templates))
	for _, t := range templates {
		scenarios = append(scenarios, assessment.RecoveryScenario{
			ID:               t.id,
			Title:            t.title,
			Description:      t.desc,
			Recommendations:  t.recommendations,
			Pros:             t.pros,
			Cons:             t.cons,
			Risks:            t.risks,
			Plan:             t.plan,
			Delay:            t.delay,
			UsesOriginalHull: t.usesOriginalHull,
			Cancels:          t.cancels,
			Scores:           t.base,
		})
	}
	return scenarios
}

type discardedScenario struct {
	scenario assessment.RecoveryScenario
	reason   string
}

// filter discards every candidate that violates a binding surviving
// constraint. Filtering happens before scoring: a violating scenario never
// receives a composite.
func (a *Arbitrator) filter(candidates []assessment.RecoveryScenario, surviving []constraint.Constraint) ([]assessment.RecoveryScenario, []discardedScenario) {
	var kept []assessment.RecoveryScenario
	var discarded []discardedScenario

next:
	for _, s := range candidates {
		for _, c := range surviving {
			if !c.Binding() {
				continue
			}
			if violated, reason := c.ViolatedBy(&s); violated {
				discarded = append(discarded, discardedScenario{
					scenario: s,
					reason:   fmt.Sprintf("%s (constraint %q)", reason, c.Raw),
				})
				continue next
			}
		}
		kept = append(kept, s)
	}
	return kept, discarded
}

// score adjusts the template base scores with the revision evidence. Each
// dimension is scaled by the confidence of the agents that own it, so weak
// evidence pulls every scenario toward the middle instead of inventing
// precision.
func (a *Arbitrator) score(s *assessment.RecoveryScenario, ev *assessment.PhaseResult) assessment.DimensionScores {
	safetyConf := meanConfidence(ev, assessment.SafetyAgents())
	costConf := agentConfidence(ev, assessment.AgentFinance, assessment.AgentCargo)
	paxConf := agentConfidence(ev, assessment.AgentGuestExperience)
	netConf := agentConfidence(ev, assessment.AgentNetwork)

	scaled := assessment.DimensionScores{
		Safety:    scale(s.Scores.Safety, safetyConf),
		Cost:      scale(s.Scores.Cost, costConf),
		Passenger: scale(s.Scores.Passenger, paxConf),
		Network:   scale(s.Scores.Network, netConf),
	}

	// Long holds degrade the passenger dimension beyond the template base.
	if !s.Cancels && s.Delay > time.Hour {
		penalty := float64(s.Delay/time.Hour) * 5
		scaled.Passenger = clampScore(scaled.Passenger - penalty)
	}
	return scaled
}

// scale blends a base score toward 50 as evidence confidence drops.
func scale(base, conf float64) float64 {
	return clampScore(50 + (base-50)*(0.5+0.5*conf))
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// confidence derives the decision confidence: the mean of the usable
// revision responses, never exceeding the lowest safety-tier confidence.
func (a *Arbitrator) confidence(top assessment.RecoveryScenario, ev *assessment.PhaseResult) float64 {
	sum, n := 0.0, 0
	for _, agent := range ev.Agents() {
		resp := ev.Responses[agent]
		if resp.Status == assessment.ResponseError {
			continue
		}
		sum += resp.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	conf := sum / float64(n)
	if bound := ev.MinSafetyConfidence(); conf > bound {
		conf = bound
	}
	return conf
}

// justify builds the narrative: the ranked outcome, every surviving safety
// constraint verbatim, what was discarded and why, the conflict resolutions
// and the evolution summary.
func (a *Arbitrator) justify(in ArbitrationInput, ranked []assessment.RecoveryScenario, discarded []discardedScenario) string {
	var b strings.Builder

	top := ranked[0]
	fmt.Fprintf(&b, "Recommended: %q (composite %.1f). %s\n", top.Title, top.Composite, top.Description)
	if len(ranked) > 1 {
		b.WriteString("Alternatives, in ranked order:\n")
		for _, s := range ranked[1:] {
			fmt.Fprintf(&b, "  - %q (composite %.1f)\n", s.Title, s.Composite)
		}
	}
	if len(ranked) < a.minScenarios {
		fmt.Fprintf(&b, "Only %d of the desired %d options survived the safety filters; treat the ranking as narrow.\n",
			len(ranked), a.minScenarios)
	}

	writeConstraintSection(&b, in.Surviving, &top)
	if len(discarded) > 0 {
		b.WriteString("Discarded before scoring:\n")
		for _, d := range discarded {
			fmt.Fprintf(&b, "  - %q: %s\n", d.scenario.Title, d.reason)
		}
	}
	writeConflictSection(&b, in.Conflicts)
	writeEvolutionSection(&b, in.Evolution)
	if in.Partial {
		b.WriteString("Decision made on partial input: the assessment deadline expired before all phases completed.\n")
	}
	return b.String()
}

func writeConstraintSection(b *strings.Builder, surviving []constraint.Constraint, top *assessment.RecoveryScenario) {
	if len(surviving) == 0 {
		return
	}
	b.WriteString("Binding safety constraints honored:\n")
	for _, c := range surviving {
		status := "carried"
		if top != nil {
			if violated, _ := c.ViolatedBy(top); violated {
				status = "OVERRIDDEN"
			} else if c.Binding() {
				status = "satisfied"
			}
		}
		fmt.Fprintf(b, "  - %q (%s)\n", c.Raw, status)
	}
}

func writeConflictSection(b *strings.Builder, conflicts []assessment.ConflictRecord) {
	if len(conflicts) == 0 {
		return
	}
	b.WriteString("Conflicts detected:\n")
	for i := range conflicts {
		c := &conflicts[i]
		fmt.Fprintf(b, "  - [%s] %s (resolution: %s", c.Class, c.Description, c.Resolution)
		if c.Kept != "" {
			fmt.Fprintf(b, ", kept %q", c.Kept)
		}
		b.WriteString(")\n")
	}
}

func writeEvolutionSection(b *strings.Builder, evo assessment.EvolutionSummary) {
	if len(evo.Records) == 0 {
		return
	}
	changed := 0
	for _, r := range evo.Records {
		if r.Change != assessment.ChangeUnchanged {
			changed++
		}
	}
	fmt.Fprintf(b, "Position evolution: %d of %d agents moved between phases (converged=%t, diverged=%t).\n",
		changed, len(evo.Records), evo.Converged, evo.Diverged)
	for _, r := range evo.Records {
		if r.Change == assessment.ChangeUnchanged {
			continue
		}
		fmt.Fprintf(b, "  - %s: %s (confidence %.2f -> %.2f)\n", r.Agent, r.Change, r.InitialConfidence, r.RevisedConfidence)
		for _, c := range r.ConstraintsAdded {
			fmt.Fprintf(b, "      added constraint %q\n", c)
		}
		for _, c := range r.ConstraintsRemoved {
			fmt.Fprintf(b, "      withdrew constraint %q\n", c)
		}
	}
}

func (a *Arbitrator) record(ctx context.Context, d *assessment.FinalDecision) {
	if a.metrics != nil {
		a.metrics.DecisionsMade.Add(ctx, 1)
	}
}

// usableResponses counts responses that carry actual reasoning output.
func usableResponses(pr *assessment.PhaseResult) int {
	n := 0
	for _, resp := range pr.Responses {
		if resp.Status != assessment.ResponseError {
			n++
		}
	}
	return n
}

// backendMix lists the distinct backends that contributed, sorted.
func backendMix(pr *assessment.PhaseResult) string {
	set := make(map[string]bool)
	for _, resp := range pr.Responses {
		if resp.Backend != "" {
			set[resp.Backend] = true
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// meanConfidence averages confidence over the named agents, counting error
// responses as zero.
func meanConfidence(pr *assessment.PhaseResult, agents []assessment.AgentName) float64 {
	if len(agents) == 0 {
		return 0
	}
	sum := 0.0
	for _, a := range agents {
		if resp, ok := pr.Responses[a]; ok && resp.Status != assessment.ResponseError {
			sum += resp.Confidence
		}
	}
	return sum / float64(len(agents))
}

// agentConfidence averages over specific agents, for dimensions owned by one
// or two business agents.
func agentConfidence(pr *assessment.PhaseResult, agents ...assessment.AgentName) float64 {
	return meanConfidence(pr, agents)
}

// proposedBusinessDelay extracts the longest concrete delay the business
// tier asked for, from structured constraints first, free text second.
func proposedBusinessDelay(pr *assessment.PhaseResult) (time.Duration, bool) {
	var best time.Duration
	for _, agent := range pr.Agents() {
		if assessment.IsSafety(agent) {
			continue
		}
		resp := pr.Responses[agent]
		for _, c := range constraint.ParseAll(resp.Constraints) {
			if c.Kind == constraint.KindMinDelay && c.Bound > best {
				best = c.Bound
			}
		}
		if d, ok := proposedDelay(resp.Recommendation); ok && d > best {
			best = d
		}
	}
	return best, best > 0
}

func discardSummary(discarded []discardedScenario) string {
	if len(discarded) == 0 {
		return "no recovery scenario could be synthesized"
	}
	reasons := make([]string, 0, len(discarded))
	for _, d := range discarded {
		reasons = append(reasons, fmt.Sprintf("%q: %s", d.scenario.Title, d.reason))
	}
	return "every synthesized scenario violates a binding safety constraint: " + strings.Join(reasons, "; ")
}
