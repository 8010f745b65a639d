package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	iropsotel "github.com/skywise-ai/irops/internal/adapter/otel"
	"github.com/skywise-ai/irops/internal/config"
	"github.com/skywise-ai/irops/internal/domain"
	"github.com/skywise-ai/irops/internal/domain/assessment"
	"github.com/skywise-ai/irops/internal/domain/disruption"
	"github.com/skywise-ai/irops/internal/domain/event"
	"github.com/skywise-ai/irops/internal/port/broadcast"
	"github.com/skywise-ai/irops/internal/port/database"
	"github.com/skywise-ai/irops/internal/port/eventstore"
	"github.com/skywise-ai/irops/internal/port/messagequeue"
)

// Stage is the orchestration state of one assessment run. Transitions move
// strictly forward; FAILED is reachable only from infrastructure faults,
// never from agent-level failures.
type Stage string

const (
	StageInitial     Stage = "initial"
	StageRevision    Stage = "revision"
	StageArbitration Stage = "arbitration"
	StageComplete    Stage = "complete"
	StageFailed      Stage = "failed"
)

// PollResult is the snapshot returned to a polling client.
type PollResult struct {
	RequestID string                    `json:"request_id"`
	Status    disruption.Status         `json:"status"`
	Stage     Stage                     `json:"stage,omitempty"`
	Decision  *assessment.FinalDecision `json:"decision,omitempty"`
	Error     string                    `json:"error,omitempty"`
}

// run is the isolated in-memory state of one assessment. Each run has its
// own context and audit trail; concurrent assessments never share state.
type run struct {
	request *disruption.Request

	mu        sync.Mutex
	stage     Stage
	audit     assessment.AuditTrail
	decision  *assessment.FinalDecision
	errMsg    string
	truncated bool

	done chan struct{}
}

func (r *run) setStage(s Stage) {
	r.mu.Lock()
	r.stage = s
	r.mu.Unlock()
}

// Orchestrator drives an assessment through INITIAL, REVISION and
// ARBITRATION. Submission is asynchronous: Submit returns once the run is
// persisted and enqueued, and clients follow progress via Poll, Await, the
// websocket stream or the queue subjects.
type Orchestrator struct {
	store    database.Store
	events   eventstore.Store      // optional
	queue    messagequeue.Queue    // optional
	hub      broadcast.Broadcaster // optional
	runner   *PhaseRunner
	detector *ConflictDetector
	revision *RevisionCoordinator
	tracker  *EvolutionTracker
	arbiter  *Arbitrator
	cfg      config.Orchestrator

	mu   sync.Mutex
	runs map[string]*run
}

func NewOrchestrator(
	store database.Store,
	events eventstore.Store,
	queue messagequeue.Queue,
	hub broadcast.Broadcaster,
	runner *PhaseRunner,
	detector *ConflictDetector,
	revision *RevisionCoordinator,
	tracker *EvolutionTracker,
	arbiter *Arbitrator,
	cfg config.Orchestrator,
) *Orchestrator {
	return &Orchestrator{
		store:    store,
		events:   events,
		queue:    queue,
		hub:      hub,
		runner:   runner,
		detector: detector,
		revision: revision,
		tracker:  tracker,
		arbiter:  arbiter,
		cfg:      cfg,
		runs:     make(map[string]*run),
	}
}

// Submit validates and persists a new assessment, then starts the run in the
// background. It returns the accepted request.
func (o *Orchestrator) Submit(ctx context.Context, sr *disruption.SubmitRequest) (*disruption.Request, error) {
	if err := sr.Validate(); err != nil {
		return nil, err
	}

	req := &disruption.Request{
		ID:          uuid.NewString(),
		Description: sr.Description,
		SessionID:   sr.SessionID,
		CreatedAt:   time.Now(),
	}
	if err := o.store.CreateAssessment(ctx, &disruption.Assessment{
		ID:          req.ID,
		SessionID:   req.SessionID,
		Description: req.Description,
		Status:      disruption.StatusPending,
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.CreatedAt,
	}); err != nil {
		return nil, fmt.Errorf("%w: create assessment: %v", domain.ErrInfrastructure, err)
	}

	r := &run{
		request: req,
		stage:   StageInitial,
		audit:   assessment.AuditTrail{RequestID: req.ID},
		done:    make(chan struct{}),
	}
	o.mu.Lock()
	o.runs[req.ID] = r
	o.mu.Unlock()

	o.appendEvent(req.ID, event.TypeSubmitted, map[string]any{"session_id": req.SessionID})
	o.publish(messagequeue.SubjectAssessmentSubmitted, map[string]any{"request_id": req.ID})
	o.broadcast(ctx, "assessment_status", map[string]any{"request_id": req.ID, "status": disruption.StatusPending})

	go o.execute(r)
	return req, nil
}

// execute runs the full pipeline for one request under the overall deadline.
// The run owns its context; cancellation of the submitting HTTP request does
// not cancel the assessment.
func (o *Orchestrator) execute(r *run) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.OverallTimeout)
	defer cancel()
	ctx, span := iropsotel.StartAssessmentSpan(ctx, r.request.ID)
	defer span.End()

	if err := o.store.UpdateAssessmentStatus(ctx, r.request.ID, disruption.StatusRunning, ""); err != nil {
		o.fail(ctx, r, fmt.Errorf("mark running: %w", err))
		return
	}
	o.broadcast(ctx, "assessment_status", map[string]any{"request_id": r.request.ID, "status": disruption.StatusRunning})

	initial, err := o.runPhase(ctx, r, assessment.PhaseInitial, nil)
	if err != nil {
		o.fail(ctx, r, err)
		return
	}
	r.mu.Lock()
	r.audit.Initial = initial
	r.mu.Unlock()

	evidence := initial
	if ctx.Err() == nil {
		r.setStage(StageRevision)
		inputs := o.revision.BuildInputs(initial)
		revised, err := o.runPhase(ctx, r, assessment.PhaseRevision, inputs)
		if err != nil {
			o.fail(ctx, r, err)
			return
		}
		r.mu.Lock()
		r.audit.Revision = revised
		r.mu.Unlock()
		evidence = revised
	} else {
		slog.Warn("assessment deadline expired before revision; arbitrating on initial evidence",
			"request_id", r.request.ID)
	}

	r.setStage(StageArbitration)
	decision := o.arbitrate(ctx, r, evidence)

	// Persistence of the decision must survive an expired run deadline.
	persistCtx, persistCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer persistCancel()
	if err := o.store.SaveDecision(persistCtx, decision); err != nil {
		o.fail(ctx, r, fmt.Errorf("save decision: %w", err))
		return
	}
	if err := o.store.UpdateAssessmentStatus(persistCtx, r.request.ID, disruption.StatusComplete, ""); err != nil {
		o.fail(ctx, r, fmt.Errorf("mark complete: %w", err))
		return
	}

	r.mu.Lock()
	r.audit.Arbitration = decision
	r.decision = decision
	r.stage = StageComplete
	r.mu.Unlock()

	o.appendEvent(r.request.ID, event.TypeDecisionMade, map[string]any{
		"status":         decision.Status,
		"recommended_id": decision.RecommendedID,
		"confidence":     decision.Confidence,
		"partial_input":  decision.PartialInput,
	})
	o.publish(messagequeue.SubjectAssessmentCompleted, map[string]any{
		"request_id":     r.request.ID,
		"status":         decision.Status,
		"recommended_id": decision.RecommendedID,
	})
	o.broadcast(persistCtx, "decision_ready", decision)

	o.forget(r.request.ID)
	close(r.done)
	slog.Info("assessment complete",
		"request_id", r.request.ID,
		"status", decision.Status,
		"recommended", decision.RecommendedID,
		"confidence", decision.Confidence,
	)
}

// runPhase executes one barrier-synchronized phase and persists its result.
// The returned error is always an infrastructure fault; agent failures are
// absorbed into the phase result itself.
func (o *Orchestrator) runPhase(
	ctx context.Context,
	r *run,
	phase assessment.Phase,
	inputs map[assessment.AgentName]RevisionPayload,
) (*assessment.PhaseResult, error) {
	o.appendEvent(r.request.ID, event.TypePhaseStarted, map[string]any{"phase": phase})
	o.broadcast(ctx, "phase_status", map[string]any{
		"request_id": r.request.ID, "phase": phase, "state": "started",
	})

	phaseCtx, cancel := context.WithTimeout(ctx, o.cfg.PhaseTimeout)
	defer cancel()
	result := o.runner.Run(phaseCtx, r.request, phase, assessment.AllAgents(), inputs)
	if phaseCtx.Err() != nil {
		// The barrier released on the deadline, not on the full roster. The
		// eventual decision must carry the partial-evidence flag.
		r.mu.Lock()
		r.truncated = true
		r.mu.Unlock()
	}

	persistCtx, persistCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer persistCancel()
	if err := o.store.SavePhaseResult(persistCtx, r.request.ID, result); err != nil {
		return nil, fmt.Errorf("save %s phase: %w", phase, err)
	}

	o.appendEvent(r.request.ID, event.TypePhaseCompleted, map[string]any{
		"phase":    phase,
		"duration": result.Duration.String(),
		"agents":   len(result.Responses),
	})
	o.broadcast(ctx, "phase_status", map[string]any{
		"request_id": r.request.ID, "phase": phase, "state": "completed",
	})
	return result, nil
}

// arbitrate assembles the arbitration input and produces the decision.
func (o *Orchestrator) arbitrate(ctx context.Context, r *run, evidence *assessment.PhaseResult) *assessment.FinalDecision {
	conflicts := o.detector.Detect(ctx, evidence)
	for i := range conflicts {
		o.appendEvent(r.request.ID, event.TypeConflictDetected, conflicts[i])
	}

	r.mu.Lock()
	initial, revised, truncated := r.audit.Initial, r.audit.Revision, r.truncated
	r.mu.Unlock()

	var evo assessment.EvolutionSummary
	if revised != nil {
		evo = o.tracker.Diff(initial, revised)
	}

	return o.arbiter.Arbitrate(ctx, ArbitrationInput{
		Request:   r.request,
		Evidence:  evidence,
		Conflicts: conflicts,
		Evolution: evo,
		Surviving: o.detector.Surviving(initial, revised),
		Partial:   revised == nil || truncated,
	})
}

// fail moves the run to FAILED. Only infrastructure faults land here.
func (o *Orchestrator) fail(ctx context.Context, r *run, cause error) {
	slog.Error("assessment failed", "request_id", r.request.ID, "error", cause)

	r.mu.Lock()
	r.stage = StageFailed
	r.errMsg = cause.Error()
	r.mu.Unlock()

	persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.store.UpdateAssessmentStatus(persistCtx, r.request.ID, disruption.StatusError, cause.Error()); err != nil {
		// The store never learned the terminal status, so Poll must keep
		// serving this run from memory.
		slog.Error("mark assessment failed", "request_id", r.request.ID, "error", err)
	} else {
		o.forget(r.request.ID)
	}

	o.appendEvent(r.request.ID, event.TypeFailed, map[string]any{"error": cause.Error()})
	o.publish(messagequeue.SubjectAssessmentFailed, map[string]any{
		"request_id": r.request.ID, "error": cause.Error(),
	})
	o.broadcast(ctx, "assessment_status", map[string]any{
		"request_id": r.request.ID, "status": disruption.StatusError,
	})
	close(r.done)
}

// forget evicts a terminal run from memory. Poll and Await callers holding
// the run pointer are unaffected; new Poll calls fall through to the store.
func (o *Orchestrator) forget(requestID string) {
	o.mu.Lock()
	delete(o.runs, requestID)
	o.mu.Unlock()
}

// Poll returns the current state of an assessment, serving in-flight runs
// from memory and finished ones from the store.
func (o *Orchestrator) Poll(ctx context.Context, requestID string) (*PollResult, error) {
	o.mu.Lock()
	r, ok := o.runs[requestID]
	o.mu.Unlock()
	if ok {
		r.mu.Lock()
		defer r.mu.Unlock()
		return &PollResult{
			RequestID: requestID,
			Status:    stageStatus(r.stage),
			Stage:     r.stage,
			Decision:  r.decision,
			Error:     r.errMsg,
		}, nil
	}

	a, err := o.store.GetAssessment(ctx, requestID)
	if err != nil {
		return nil, err
	}
	out := &PollResult{RequestID: requestID, Status: a.Status, Error: a.Error}
	if a.Status == disruption.StatusComplete {
		d, err := o.store.GetDecision(ctx, requestID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		out.Decision = d
	}
	return out, nil
}

// Await blocks until the run reaches a terminal state or the context ends.
func (o *Orchestrator) Await(ctx context.Context, requestID string) (*PollResult, error) {
	o.mu.Lock()
	r, ok := o.runs[requestID]
	o.mu.Unlock()
	if ok {
		select {
		case <-r.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return o.Poll(ctx, requestID)
}

// Audit returns the retained phase payloads for one assessment.
func (o *Orchestrator) Audit(ctx context.Context, requestID string) (*assessment.AuditTrail, error) {
	return o.store.GetAuditTrail(ctx, requestID)
}

// List returns the persisted assessments, most recent first.
func (o *Orchestrator) List(ctx context.Context) ([]disruption.Assessment, error) {
	return o.store.ListAssessments(ctx)
}

func stageStatus(s Stage) disruption.Status {
	switch s {
	case StageComplete:
		return disruption.StatusComplete
	case StageFailed:
		return disruption.StatusError
	default:
		return disruption.StatusRunning
	}
}

// appendEvent records one lifecycle event, best effort.
func (o *Orchestrator) appendEvent(requestID string, t event.Type, payload any) {
	if o.events == nil {
		return
	}
	data, _ := json.Marshal(payload)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.events.Append(ctx, &event.AssessmentEvent{
		RequestID: requestID,
		Type:      t,
		Payload:   data,
	}); err != nil {
		slog.Warn("append event", "request_id", requestID, "type", t, "error", err)
	}
}

// publish emits one queue message, best effort.
func (o *Orchestrator) publish(subject string, payload any) {
	if o.queue == nil {
		return
	}
	data, _ := json.Marshal(payload)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.queue.Publish(ctx, subject, data); err != nil {
		slog.Warn("publish", "subject", subject, "error", err)
	}
}

func (o *Orchestrator) broadcast(ctx context.Context, eventType string, payload any) {
	if o.hub == nil {
		return
	}
	o.hub.BroadcastEvent(ctx, eventType, payload)
}
