package service_test

import (
	"testing"

	"github.com/skywise-ai/irops/internal/domain/assessment"
	"github.com/skywise-ai/irops/internal/service"
)

func evolutionPair(agent assessment.AgentName, before, after assessment.AgentResponse) (*assessment.PhaseResult, *assessment.PhaseResult) {
	before.Agent = agent
	after.Agent = agent
	initial := phaseResult(before)
	initial.Phase = assessment.PhaseInitial
	revision := phaseResult(after)
	return initial, revision
}

func findRecord(t *testing.T, s assessment.EvolutionSummary, agent assessment.AgentName) assessment.EvolutionRecord {
	t.Helper()
	for _, r := range s.Records {
		if r.Agent == agent {
			return r
		}
	}
	t.Fatalf("no evolution record for %s", agent)
	return assessment.EvolutionRecord{}
}

func TestEvolutionUnchangedWithinTolerance(t *testing.T) {
	initial, revision := evolutionPair(assessment.AgentMaintenance,
		assessment.AgentResponse{Recommendation: "hold for inspection", Confidence: 0.80},
		assessment.AgentResponse{Recommendation: "hold for inspection", Confidence: 0.84},
	)

	summary := service.NewEvolutionTracker(0.05).Diff(initial, revision)
	rec := findRecord(t, summary, assessment.AgentMaintenance)
	if rec.Change != assessment.ChangeUnchanged {
		t.Errorf("change = %q, want unchanged for delta below tolerance", rec.Change)
	}
}

func TestEvolutionStrengthened(t *testing.T) {
	initial, revision := evolutionPair(assessment.AgentCrewCompliance,
		assessment.AgentResponse{Recommendation: "crew duty margin is tight", Confidence: 0.6},
		assessment.AgentResponse{Recommendation: "crew duty margin is tight, add a standby crew", Confidence: 0.6, Constraints: []string{"max_delay=2h"}},
	)

	summary := service.NewEvolutionTracker(0.05).Diff(initial, revision)
	rec := findRecord(t, summary, assessment.AgentCrewCompliance)
	if rec.Change != assessment.ChangeStrengthened {
		t.Errorf("change = %q, want strengthened after adding a constraint", rec.Change)
	}
	if len(rec.ConstraintsAdded) != 1 {
		t.Errorf("constraints added = %v", rec.ConstraintsAdded)
	}
}

func TestEvolutionReversedFlagsDivergence(t *testing.T) {
	initial, revision := evolutionPair(assessment.AgentRegulatory,
		assessment.AgentResponse{Recommendation: "clear to proceed with dispatch", Confidence: 0.7},
		assessment.AgentResponse{Recommendation: "ground the aircraft pending authority review", Confidence: 0.8},
	)

	summary := service.NewEvolutionTracker(0.05).Diff(initial, revision)
	rec := findRecord(t, summary, assessment.AgentRegulatory)
	if rec.Change != assessment.ChangeReversed {
		t.Errorf("change = %q, want reversed", rec.Change)
	}
	if !summary.Diverged {
		t.Error("a reversal must mark the round diverged")
	}
	if summary.Converged {
		t.Error("a diverged round is never converged")
	}
}

func TestEvolutionConvergedSummary(t *testing.T) {
	initial := phaseResult(
		assessment.AgentResponse{Agent: assessment.AgentMaintenance, Recommendation: "proceed after inspection", Confidence: 0.7},
		assessment.AgentResponse{Agent: assessment.AgentNetwork, Recommendation: "proceed, protect the bank", Confidence: 0.6},
	)
	initial.Phase = assessment.PhaseInitial
	revision := phaseResult(
		assessment.AgentResponse{Agent: assessment.AgentMaintenance, Recommendation: "proceed after inspection", Confidence: 0.9},
		assessment.AgentResponse{Agent: assessment.AgentNetwork, Recommendation: "proceed, protect the bank", Confidence: 0.6},
	)

	summary := service.NewEvolutionTracker(0.05).Diff(initial, revision)
	if !summary.Converged {
		t.Error("confidence moving toward the majority stance should mark convergence")
	}
	if summary.Diverged {
		t.Error("no reversal occurred")
	}
	rec := findRecord(t, summary, assessment.AgentMaintenance)
	if rec.Change != assessment.ChangeConverged {
		t.Errorf("change = %q, want converged", rec.Change)
	}
}

func TestEvolutionWeakened(t *testing.T) {
	initial, revision := evolutionPair(assessment.AgentFinance,
		assessment.AgentResponse{Recommendation: "substitution is affordable", Confidence: 0.8},
		assessment.AgentResponse{Recommendation: "substitution cost estimate is now uncertain", Confidence: 0.5},
	)

	summary := service.NewEvolutionTracker(0.05).Diff(initial, revision)
	rec := findRecord(t, summary, assessment.AgentFinance)
	if rec.Change != assessment.ChangeWeakened {
		t.Errorf("change = %q, want weakened", rec.Change)
	}
}
