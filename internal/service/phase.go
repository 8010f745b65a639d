package service

import (
	"context"
	"sync"
	"time"

	iropsotel "github.com/skywise-ai/irops/internal/adapter/otel"
	"github.com/skywise-ai/irops/internal/domain/assessment"
	"github.com/skywise-ai/irops/internal/domain/disruption"
)

// PhaseRunner fans an assessment phase out to a set of agents concurrently
// and gathers their responses behind a barrier. The barrier is total: Run
// returns only when every agent has produced a response, and the result has
// exactly one entry per requested agent even when calls time out or fail.
type PhaseRunner struct {
	invoker *Invoker
	metrics *iropsotel.Metrics // optional
}

func NewPhaseRunner(invoker *Invoker, metrics *iropsotel.Metrics) *PhaseRunner {
	return &PhaseRunner{invoker: invoker, metrics: metrics}
}

// Run executes one phase. revision carries per-agent cross-context for the
// revision phase and is nil for the initial phase. Callers bound the phase
// with the context deadline; expired invocations come back as error
// responses rather than missing entries.
func (r *PhaseRunner) Run(
	ctx context.Context,
	req *disruption.Request,
	phase assessment.Phase,
	agents []assessment.AgentName,
	revision map[assessment.AgentName]RevisionPayload,
) *assessment.PhaseResult {
	ctx, span := iropsotel.StartPhaseSpan(ctx, req.ID, string(phase))
	defer span.End()

	started := time.Now()
	results := make([]assessment.AgentResponse, len(agents))

	var wg sync.WaitGroup
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent assessment.AgentName) {
			defer wg.Done()
			var payload *RevisionPayload
			if revision != nil {
				if p, ok := revision[agent]; ok {
					payload = &p
				}
			}
			results[i] = r.invoker.Invoke(ctx, agent, req, phase, payload)
		}(i, agent)
	}
	wg.Wait()

	completed := time.Now()
	pr := &assessment.PhaseResult{
		Phase:       phase,
		Responses:   make(map[assessment.AgentName]assessment.AgentResponse, len(agents)),
		StartedAt:   started,
		CompletedAt: completed,
		Duration:    completed.Sub(started),
	}
	for _, resp := range results {
		pr.Responses[resp.Agent] = resp
	}

	if r.metrics != nil {
		r.metrics.PhaseDuration.Record(ctx, pr.Duration.Seconds())
	}
	return pr
}
