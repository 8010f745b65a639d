package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/skywise-ai/irops/internal/config"
	"github.com/skywise-ai/irops/internal/domain/assessment"
	"github.com/skywise-ai/irops/internal/service"
)

func newArbitrator() *service.Arbitrator {
	return service.NewArbitrator(config.Defaults().Scoring, nil)
}

func fullRevision() *assessment.PhaseResult {
	return phaseResult(
		assessment.AgentResponse{Agent: assessment.AgentCrewCompliance, Recommendation: "crew legal for a short hold", Confidence: 0.85, Constraints: []string{"max_delay=3h"}},
		assessment.AgentResponse{Agent: assessment.AgentMaintenance, Recommendation: "repair feasible within the window", Confidence: 0.9},
		assessment.AgentResponse{Agent: assessment.AgentRegulatory, Recommendation: "no regulatory objection", Confidence: 0.95},
		assessment.AgentResponse{Agent: assessment.AgentNetwork, Recommendation: "protect the evening bank", Confidence: 0.7},
		assessment.AgentResponse{Agent: assessment.AgentGuestExperience, Recommendation: "rebook tight connections early", Confidence: 0.75},
		assessment.AgentResponse{Agent: assessment.AgentCargo, Recommendation: "cargo can hold", Confidence: 0.8},
		assessment.AgentResponse{Agent: assessment.AgentFinance, Recommendation: "prefer the cheapest recovery", Confidence: 0.65},
	)
}

func arbitrate(t *testing.T, a *service.Arbitrator, ev *assessment.PhaseResult, conflicts []assessment.ConflictRecord) *assessment.FinalDecision {
	t.Helper()
	detector := service.NewConflictDetector(nil)
	if conflicts == nil {
		conflicts = detector.Detect(context.Background(), ev)
	}
	return a.Arbitrate(context.Background(), service.ArbitrationInput{
		Request:   testRequest(),
		Evidence:  ev,
		Conflicts: conflicts,
		Surviving: detector.Surviving(ev, nil),
	})
}

func TestArbitrateRanksScenarios(t *testing.T) {
	d := arbitrate(t, newArbitrator(), fullRevision(), nil)

	if d.Status != assessment.DecisionSuccess {
		t.Fatalf("status = %q: %s", d.Status, d.Justification)
	}
	if len(d.Scenarios) < 2 || len(d.Scenarios) > 5 {
		t.Fatalf("scenario count = %d, want 2..5", len(d.Scenarios))
	}
	for i := 1; i < len(d.Scenarios); i++ {
		if d.Scenarios[i-1].Composite < d.Scenarios[i].Composite {
			t.Errorf("scenarios not sorted by composite at %d", i)
		}
	}
	if _, ok := d.Recommended(); !ok {
		t.Error("recommended scenario missing from the list")
	}
}

// Decision confidence must never exceed the lowest safety-tier confidence.
func TestArbitrateConfidenceCappedBySafety(t *testing.T) {
	ev := fullRevision()
	weak := ev.Responses[assessment.AgentCrewCompliance]
	weak.Confidence = 0.4
	ev.Responses[assessment.AgentCrewCompliance] = weak

	d := arbitrate(t, newArbitrator(), ev, nil)
	if d.Confidence > 0.4 {
		t.Errorf("confidence = %v, must not exceed min safety confidence 0.4", d.Confidence)
	}
}

// A binding safety delay bound must discard violating scenarios before
// scoring and appear verbatim in the justification.
func TestArbitrateFiltersDelayViolators(t *testing.T) {
	ev := fullRevision()
	net := ev.Responses[assessment.AgentNetwork]
	net.Recommendation = "wait for the inbound wave, a 4h delay protects the bank"
	ev.Responses[assessment.AgentNetwork] = net

	d := arbitrate(t, newArbitrator(), ev, nil)
	if d.Status != assessment.DecisionSuccess {
		t.Fatalf("status = %q: %s", d.Status, d.Justification)
	}
	for _, s := range d.Scenarios {
		if !s.Cancels && s.Delay > 3*time.Hour {
			t.Errorf("scenario %q with delay %s survived a max_delay=3h bound", s.ID, s.Delay)
		}
	}
	if !strings.Contains(d.Justification, "max_delay=3h") {
		t.Error("justification must carry the surviving safety constraint verbatim")
	}
	if !strings.Contains(d.Justification, "Discarded before scoring") {
		t.Errorf("justification missing discard section:\n%s", d.Justification)
	}
}

func TestArbitrateEscalatesOnBlockingConflict(t *testing.T) {
	ev := fullRevision()
	conflicts := []assessment.ConflictRecord{{
		ID:          "c1",
		Class:       assessment.ConflictSafetyVsSafety,
		Agents:      []assessment.AgentName{assessment.AgentRegulatory, assessment.AgentCrewCompliance},
		Description: "ground stop vs minimum crew-swap delay",
		Resolution:  assessment.ResolutionEscalated,
	}}

	d := arbitrate(t, newArbitrator(), ev, conflicts)
	if d.Status != assessment.DecisionEscalate {
		t.Fatalf("status = %q, want escalate", d.Status)
	}
	if d.Confidence != 0 {
		t.Errorf("confidence = %v, want 0 on escalation", d.Confidence)
	}
	if d.RecommendedID != service.EscalationScenarioID {
		t.Errorf("recommended = %q", d.RecommendedID)
	}
	if len(d.Scenarios) != 1 {
		t.Errorf("scenarios = %d, want only the human-review scenario", len(d.Scenarios))
	}
}

// When every agent errored there is no evidence to arbitrate on.
func TestArbitrateEscalatesWhenAllAgentsError(t *testing.T) {
	responses := make([]assessment.AgentResponse, 0, len(assessment.AllAgents()))
	for _, agent := range assessment.AllAgents() {
		responses = append(responses, assessment.AgentResponse{
			Agent:          agent,
			Recommendation: service.FallbackRecommendation,
			Status:         assessment.ResponseError,
		})
	}
	ev := phaseResult(responses...)

	d := arbitrate(t, newArbitrator(), ev, nil)
	if d.Status != assessment.DecisionEscalate {
		t.Fatalf("status = %q, want escalate", d.Status)
	}
	if d.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", d.Confidence)
	}
}

// Scoring is a pure function of its inputs: identical evidence must produce
// the identical ranking and recommendation.
func TestArbitrateDeterministic(t *testing.T) {
	a := newArbitrator()
	d1 := arbitrate(t, a, fullRevision(), nil)
	d2 := arbitrate(t, a, fullRevision(), nil)

	if d1.RecommendedID != d2.RecommendedID {
		t.Fatalf("recommended differs: %q vs %q", d1.RecommendedID, d2.RecommendedID)
	}
	if len(d1.Scenarios) != len(d2.Scenarios) {
		t.Fatalf("scenario counts differ")
	}
	for i := range d1.Scenarios {
		if d1.Scenarios[i].ID != d2.Scenarios[i].ID {
			t.Errorf("rank %d differs: %q vs %q", i, d1.Scenarios[i].ID, d2.Scenarios[i].ID)
		}
		if d1.Scenarios[i].Composite != d2.Scenarios[i].Composite {
			t.Errorf("composite differs at %d", i)
		}
	}
}

// A ground stop leaves cancellation as the only dispatch-free option.
func TestArbitrateGroundStopLeavesCancellation(t *testing.T) {
	ev := fullRevision()
	reg := ev.Responses[assessment.AgentRegulatory]
	reg.Constraints = []string{"ground_stop"}
	reg.Recommendation = "authority directive in force"
	ev.Responses[assessment.AgentRegulatory] = reg
	crew := ev.Responses[assessment.AgentCrewCompliance]
	crew.Constraints = nil
	ev.Responses[assessment.AgentCrewCompliance] = crew

	d := arbitrate(t, newArbitrator(), ev, nil)
	if d.Status != assessment.DecisionSuccess {
		t.Fatalf("status = %q: %s", d.Status, d.Justification)
	}
	if len(d.Scenarios) != 1 || !d.Scenarios[0].Cancels {
		t.Fatalf("want only the cancellation scenario, got %+v", d.Scenarios)
	}
}

func TestArbitrateJustificationListsConstraintMovement(t *testing.T) {
	a := newArbitrator()
	ev := fullRevision()
	detector := service.NewConflictDetector(nil)

	d := a.Arbitrate(context.Background(), service.ArbitrationInput{
		Request:   testRequest(),
		Evidence:  ev,
		Surviving: detector.Surviving(ev, nil),
		Evolution: assessment.EvolutionSummary{
			Records: []assessment.EvolutionRecord{{
				Agent:              assessment.AgentMaintenance,
				InitialConfidence:  0.6,
				RevisedConfidence:  0.9,
				Change:             assessment.ChangeStrengthened,
				ConstraintsAdded:   []string{"max_delay=6h"},
				ConstraintsRemoved: []string{"no_dispatch: awaiting inspection"},
			}},
			Converged: true,
		},
	})

	if !strings.Contains(d.Justification, `withdrew constraint "no_dispatch: awaiting inspection"`) {
		t.Errorf("justification does not record the withdrawn restriction:\n%s", d.Justification)
	}
	if !strings.Contains(d.Justification, `added constraint "max_delay=6h"`) {
		t.Errorf("justification does not record the added bound:\n%s", d.Justification)
	}
}

func TestArbitrateNotesThinRanking(t *testing.T) {
	scoring := config.Defaults().Scoring
	scoring.MinScenarios = 2

	ev := fullRevision()
	resp := ev.Responses[assessment.AgentRegulatory]
	resp.Constraints = []string{"ground_stop: runway closed by NOTAM"}
	ev.Responses[assessment.AgentRegulatory] = resp

	d := arbitrate(t, service.NewArbitrator(scoring, nil), ev, nil)
	if d.Status != assessment.DecisionSuccess {
		t.Fatalf("status = %q: %s", d.Status, d.Justification)
	}
	if len(d.Scenarios) != 1 {
		t.Fatalf("scenarios = %d, want only the cancellation to survive a ground stop", len(d.Scenarios))
	}
	if !strings.Contains(d.Justification, "1 of the desired 2 options") {
		t.Errorf("justification does not flag the thin ranking:\n%s", d.Justification)
	}
}

func TestArbitratePartialInputFlagged(t *testing.T) {
	a := newArbitrator()
	detector := service.NewConflictDetector(nil)
	ev := fullRevision()

	d := a.Arbitrate(context.Background(), service.ArbitrationInput{
		Request:   testRequest(),
		Evidence:  ev,
		Surviving: detector.Surviving(ev, nil),
		Partial:   true,
	})
	if !d.PartialInput {
		t.Error("partial input not flagged on the decision")
	}
	if !strings.Contains(d.Justification, "partial input") {
		t.Error("justification does not mention partial input")
	}
}
