package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skywise-ai/irops/internal/domain/assessment"
	"github.com/skywise-ai/irops/internal/domain/disruption"
	"github.com/skywise-ai/irops/internal/port/agentbackend"
	"github.com/skywise-ai/irops/internal/service"
)

func testRequest() *disruption.Request {
	return &disruption.Request{
		ID:          "req-1",
		Description: "hydraulic leak on the A320 at the gate, departure in 90 minutes",
		CreatedAt:   time.Now(),
	}
}

func newInvoker(chains map[assessment.AgentName][]agentbackend.Backend) *service.Invoker {
	return service.NewInvoker(chains, time.Second, 1, 8, nil, nil)
}

func TestInvokePrimaryBackend(t *testing.T) {
	primary := &stubBackend{
		name: "openai/gpt-4o",
		results: map[assessment.AgentName]agentbackend.Result{
			assessment.AgentMaintenance: {
				Recommendation: "hold for inspection before release",
				Confidence:     0.9,
				Constraints:    []string{"max_delay=3h"},
			},
		},
	}
	inv := newInvoker(map[assessment.AgentName][]agentbackend.Backend{
		assessment.AgentMaintenance: {primary},
	})

	resp := inv.Invoke(context.Background(), assessment.AgentMaintenance, testRequest(), assessment.PhaseInitial, nil)

	if resp.Status != assessment.ResponseSuccess {
		t.Fatalf("status = %q, want success", resp.Status)
	}
	if resp.Backend != "openai/gpt-4o" {
		t.Errorf("backend = %q", resp.Backend)
	}
	if resp.Confidence != 0.9 {
		t.Errorf("confidence = %v", resp.Confidence)
	}
	if resp.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", resp.Attempts)
	}
}

func TestInvokeFallsBackToSecondary(t *testing.T) {
	primary := &stubBackend{name: "primary", err: errors.New("upstream unavailable")}
	secondary := &stubBackend{name: "secondary"}
	inv := newInvoker(map[assessment.AgentName][]agentbackend.Backend{
		assessment.AgentNetwork: {primary, secondary},
	})

	resp := inv.Invoke(context.Background(), assessment.AgentNetwork, testRequest(), assessment.PhaseInitial, nil)

	if resp.Status != assessment.ResponseDegraded {
		t.Fatalf("status = %q, want degraded", resp.Status)
	}
	if resp.Backend != "secondary" {
		t.Errorf("backend = %q, want secondary", resp.Backend)
	}
	if resp.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", resp.Attempts)
	}
}

func TestInvokeChainExhausted(t *testing.T) {
	a := &stubBackend{name: "a", err: errors.New("down")}
	b := &stubBackend{name: "b", err: errors.New("also down")}
	inv := newInvoker(map[assessment.AgentName][]agentbackend.Backend{
		assessment.AgentFinance: {a, b},
	})

	resp := inv.Invoke(context.Background(), assessment.AgentFinance, testRequest(), assessment.PhaseInitial, nil)

	if resp.Status != assessment.ResponseError {
		t.Fatalf("status = %q, want error", resp.Status)
	}
	if resp.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", resp.Confidence)
	}
	if resp.Recommendation != service.FallbackRecommendation {
		t.Errorf("recommendation = %q", resp.Recommendation)
	}
	if resp.Agent != assessment.AgentFinance {
		t.Errorf("agent = %q", resp.Agent)
	}
}

func TestInvokeAttemptTimeout(t *testing.T) {
	slow := &stubBackend{name: "slow", delay: 5 * time.Second}
	fast := &stubBackend{name: "fast"}
	inv := service.NewInvoker(map[assessment.AgentName][]agentbackend.Backend{
		assessment.AgentCargo: {slow, fast},
	}, 20*time.Millisecond, 1, 8, nil, nil)

	resp := inv.Invoke(context.Background(), assessment.AgentCargo, testRequest(), assessment.PhaseInitial, nil)

	if resp.Status != assessment.ResponseDegraded {
		t.Fatalf("status = %q, want degraded after slow primary", resp.Status)
	}
	if resp.Backend != "fast" {
		t.Errorf("backend = %q", resp.Backend)
	}
}

func TestInvokeClampsConfidence(t *testing.T) {
	over := &stubBackend{
		name: "over",
		results: map[assessment.AgentName]agentbackend.Result{
			assessment.AgentRegulatory: {Recommendation: "clear to proceed", Confidence: 1.7},
		},
	}
	inv := newInvoker(map[assessment.AgentName][]agentbackend.Backend{
		assessment.AgentRegulatory: {over},
	})

	resp := inv.Invoke(context.Background(), assessment.AgentRegulatory, testRequest(), assessment.PhaseInitial, nil)
	if resp.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", resp.Confidence)
	}
}

func TestInvokeRevisionContext(t *testing.T) {
	backend := &stubBackend{name: "b"}
	inv := newInvoker(map[assessment.AgentName][]agentbackend.Backend{
		assessment.AgentCrewCompliance: {backend},
	})

	payload := &service.RevisionPayload{
		Own: assessment.AgentResponse{
			Agent:          assessment.AgentCrewCompliance,
			Recommendation: "crew legal until 2100Z",
			Confidence:     0.85,
		},
		Peers: []agentbackend.PeerDigest{
			{Agent: assessment.AgentMaintenance, Recommendation: "hold for inspection", Confidence: 0.9},
		},
	}
	inv.Invoke(context.Background(), assessment.AgentCrewCompliance, testRequest(), assessment.PhaseRevision, payload)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.calls) != 1 {
		t.Fatalf("calls = %d", len(backend.calls))
	}
	pc := backend.calls[0]
	if pc.Phase != assessment.PhaseRevision {
		t.Errorf("phase = %q", pc.Phase)
	}
	if pc.OwnInitial == nil || pc.OwnInitial.Recommendation != "crew legal until 2100Z" {
		t.Errorf("own initial not propagated: %+v", pc.OwnInitial)
	}
	if len(pc.PeerDigests) != 1 || pc.PeerDigests[0].Agent != assessment.AgentMaintenance {
		t.Errorf("peer digests = %+v", pc.PeerDigests)
	}
}
