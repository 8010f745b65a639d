// Package service implements the multi-phase disruption assessment engine:
// agent invocation with fallback chains, barrier-synchronized phase fan-out,
// conflict detection, revision coordination, evolution tracking, arbitration
// and the orchestrating state machine.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	iropsotel "github.com/skywise-ai/irops/internal/adapter/otel"
	"github.com/skywise-ai/irops/internal/domain/assessment"
	"github.com/skywise-ai/irops/internal/domain/disruption"
	"github.com/skywise-ai/irops/internal/domain/event"
	"github.com/skywise-ai/irops/internal/port/agentbackend"
	"github.com/skywise-ai/irops/internal/port/eventstore"
)

// FallbackRecommendation is the conservative canned recommendation returned
// when an agent's whole fallback chain is exhausted.
const FallbackRecommendation = "insufficient data - escalate to human review"

// Invoker invokes one agent capability for one phase. It applies the retry
// and fallback policy, normalizes results into an AgentResponse, and absorbs
// failures into a conservative default response. It never returns an error
// to its caller.
type Invoker struct {
	chains         map[assessment.AgentName][]agentbackend.Backend
	attemptTimeout time.Duration
	attemptsPerHop int
	sem            *semaphore.Weighted
	metrics        *iropsotel.Metrics // optional
	events         eventstore.Store   // optional
}

// NewInvoker creates an Invoker over per-agent backend chains. maxConcurrent
// caps in-flight backend calls globally, across phases and requests.
func NewInvoker(
	chains map[assessment.AgentName][]agentbackend.Backend,
	attemptTimeout time.Duration,
	attemptsPerHop int,
	maxConcurrent int64,
	metrics *iropsotel.Metrics,
	events eventstore.Store,
) *Invoker {
	if attemptsPerHop < 1 {
		attemptsPerHop = 1
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Invoker{
		chains:         chains,
		attemptTimeout: attemptTimeout,
		attemptsPerHop: attemptsPerHop,
		sem:            semaphore.NewWeighted(maxConcurrent),
		metrics:        metrics,
		events:         events,
	}
}

// Invoke runs one agent for one phase. revision is nil in the initial phase.
// The returned response always carries the agent name and phase, so a
// PhaseResult has one entry per agent no matter how the call went.
func (inv *Invoker) Invoke(
	ctx context.Context,
	agent assessment.AgentName,
	req *disruption.Request,
	phase assessment.Phase,
	revision *RevisionPayload,
) assessment.AgentResponse {
	started := time.Now()

	chain := inv.chains[agent]
	if len(chain) == 0 {
		slog.Error("no backend chain configured", "agent", agent)
		return inv.conservative(agent, phase, started, 0)
	}

	if err := inv.sem.Acquire(ctx, 1); err != nil {
		// Request cancelled or timed out while queued; same conservative
		// shape as a backend failure, not distinguished downstream.
		return inv.conservative(agent, phase, started, 0)
	}
	defer inv.sem.Release(1)

	pc := &agentbackend.PromptContext{
		RequestID:  req.ID,
		SessionID:  req.SessionID,
		Agent:      agent,
		Phase:      phase,
		Disruption: req.Description,
	}
	if revision != nil {
		own := revision.Own
		pc.OwnInitial = &own
		pc.PeerDigests = revision.Peers
	}

	attempts := 0
	for hop, backend := range chain {
		for try := 0; try < inv.attemptsPerHop; try++ {
			if ctx.Err() != nil {
				return inv.conservative(agent, phase, started, attempts)
			}
			attempts++

			result, err := inv.attempt(ctx, backend, pc, attempts)
			if err != nil {
				slog.Warn("backend attempt failed",
					"agent", agent,
					"phase", phase,
					"backend", backend.Name(),
					"attempt", attempts,
					"error", err,
				)
				continue
			}

			status := assessment.ResponseSuccess
			if hop > 0 {
				status = assessment.ResponseDegraded
			}
			return assessment.AgentResponse{
				Agent:          agent,
				Phase:          phase,
				Recommendation: result.Recommendation,
				Confidence:     clamp01(result.Confidence),
				Constraints:    result.Constraints,
				Reasoning:      result.Reasoning,
				Sources:        result.Sources,
				Status:         status,
				Backend:        backend.Name(),
				Attempts:       attempts,
				Duration:       time.Since(started),
			}
		}
	}

	if inv.metrics != nil {
		inv.metrics.InvocationsFailed.Add(ctx, 1)
	}
	slog.Error("agent fallback chain exhausted",
		"agent", agent, "phase", phase, "attempts", attempts)
	return inv.conservative(agent, phase, started, attempts)
}

// attempt runs a single backend call under the per-attempt timeout and emits
// one timing/outcome record.
func (inv *Invoker) attempt(
	ctx context.Context,
	backend agentbackend.Backend,
	pc *agentbackend.PromptContext,
	attempt int,
) (*agentbackend.Result, error) {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if inv.attemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, inv.attemptTimeout)
		defer cancel()
	}

	attemptCtx, span := iropsotel.StartAttemptSpan(attemptCtx, string(pc.Agent), backend.Name(), attempt)
	defer span.End()

	if inv.metrics != nil {
		inv.metrics.InvocationsStarted.Add(ctx, 1)
	}

	start := time.Now()
	result, err := backend.Call(attemptCtx, pc)
	elapsed := time.Since(start)

	if inv.metrics != nil {
		inv.metrics.AttemptDuration.Record(ctx, elapsed.Seconds())
		if err == nil {
			inv.metrics.InvocationsCompleted.Add(ctx, 1)
		}
	}
	inv.recordAttempt(pc, backend.Name(), attempt, elapsed, err)

	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("backend returned nil result")
	}
	return result, nil
}

// recordAttempt appends one per-attempt outcome event for observability.
func (inv *Invoker) recordAttempt(pc *agentbackend.PromptContext, backend string, attempt int, elapsed time.Duration, callErr error) {
	if inv.events == nil {
		return
	}

	outcome := "ok"
	errMsg := ""
	if callErr != nil {
		outcome = "error"
		errMsg = callErr.Error()
	}
	payload, _ := json.Marshal(map[string]any{
		"agent":       pc.Agent,
		"phase":       pc.Phase,
		"backend":     backend,
		"attempt":     attempt,
		"outcome":     outcome,
		"duration_ms": elapsed.Milliseconds(),
		"error":       errMsg,
	})

	// Attempt records are best effort; a full event store must not take an
	// assessment down.
	if err := inv.events.Append(context.Background(), &event.AssessmentEvent{
		RequestID: pc.RequestID,
		Type:      event.TypeAgentAttempt,
		Payload:   payload,
	}); err != nil {
		slog.Warn("append attempt event", "request_id", pc.RequestID, "error", err)
	}
}

// conservative builds the canned error response returned when no backend
// produced a usable result. Downstream components always see one entry per
// expected agent.
func (inv *Invoker) conservative(agent assessment.AgentName, phase assessment.Phase, started time.Time, attempts int) assessment.AgentResponse {
	return assessment.AgentResponse{
		Agent:          agent,
		Phase:          phase,
		Recommendation: FallbackRecommendation,
		Confidence:     0,
		Reasoning:      fmt.Sprintf("all %d backend attempt(s) failed or were cancelled", attempts),
		Status:         assessment.ResponseError,
		Attempts:       attempts,
		Duration:       time.Since(started),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
