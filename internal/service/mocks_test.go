package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skywise-ai/irops/internal/domain"
	"github.com/skywise-ai/irops/internal/domain/assessment"
	"github.com/skywise-ai/irops/internal/domain/disruption"
	"github.com/skywise-ai/irops/internal/domain/event"
	"github.com/skywise-ai/irops/internal/port/agentbackend"
	"github.com/skywise-ai/irops/internal/port/messagequeue"
)

// stubBackend answers with a canned per-agent result, or an error.
type stubBackend struct {
	name    string
	results map[assessment.AgentName]agentbackend.Result
	err     error
	delay   time.Duration

	mu    sync.Mutex
	calls []agentbackend.PromptContext
}

func (b *stubBackend) Name() string { return b.name }

func (b *stubBackend) Call(ctx context.Context, pc *agentbackend.PromptContext) (*agentbackend.Result, error) {
	b.mu.Lock()
	b.calls = append(b.calls, *pc)
	b.mu.Unlock()

	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	if r, ok := b.results[pc.Agent]; ok {
		return &r, nil
	}
	return &agentbackend.Result{
		Recommendation: fmt.Sprintf("proceed as planned per %s review", pc.Agent),
		Confidence:     0.8,
	}, nil
}

func (b *stubBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// funcBackend delegates to a closure, for tests where the answer depends on
// the agent or the phase.
type funcBackend struct {
	name string
	fn   func(ctx context.Context, pc *agentbackend.PromptContext) (*agentbackend.Result, error)
}

func (b *funcBackend) Name() string { return b.name }

func (b *funcBackend) Call(ctx context.Context, pc *agentbackend.PromptContext) (*agentbackend.Result, error) {
	return b.fn(ctx, pc)
}

// mockStore is an in-memory database.Store.
type mockStore struct {
	mu          sync.Mutex
	assessments map[string]*disruption.Assessment
	phases      map[string][]*assessment.PhaseResult
	decisions   map[string]*assessment.FinalDecision

	failCreate bool
	failPhase  bool
	failUpdate bool
}

func newMockStore() *mockStore {
	return &mockStore{
		assessments: make(map[string]*disruption.Assessment),
		phases:      make(map[string][]*assessment.PhaseResult),
		decisions:   make(map[string]*assessment.FinalDecision),
	}
}

func (s *mockStore) CreateAssessment(_ context.Context, a *disruption.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return fmt.Errorf("create: %w", domain.ErrInfrastructure)
	}
	cp := *a
	s.assessments[a.ID] = &cp
	return nil
}

func (s *mockStore) GetAssessment(_ context.Context, id string) (*disruption.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *mockStore) ListAssessments(_ context.Context) ([]disruption.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]disruption.Assessment, 0, len(s.assessments))
	for _, a := range s.assessments {
		out = append(out, *a)
	}
	return out, nil
}

func (s *mockStore) UpdateAssessmentStatus(_ context.Context, id string, status disruption.Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate {
		return fmt.Errorf("update: %w", domain.ErrInfrastructure)
	}
	a, ok := s.assessments[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	a.Error = errMsg
	a.UpdatedAt = time.Now()
	return nil
}

func (s *mockStore) SavePhaseResult(_ context.Context, requestID string, pr *assessment.PhaseResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPhase {
		return fmt.Errorf("save phase: %w", domain.ErrInfrastructure)
	}
	s.phases[requestID] = append(s.phases[requestID], pr)
	return nil
}

func (s *mockStore) SaveDecision(_ context.Context, d *assessment.FinalDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[d.RequestID] = d
	return nil
}

func (s *mockStore) GetDecision(_ context.Context, requestID string) (*assessment.FinalDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decisions[requestID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (s *mockStore) GetAuditTrail(_ context.Context, requestID string) (*assessment.AuditTrail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assessments[requestID]; !ok {
		return nil, domain.ErrNotFound
	}
	trail := &assessment.AuditTrail{RequestID: requestID}
	for _, pr := range s.phases[requestID] {
		switch pr.Phase {
		case assessment.PhaseInitial:
			trail.Initial = pr
		case assessment.PhaseRevision:
			trail.Revision = pr
		}
	}
	trail.Arbitration = s.decisions[requestID]
	return trail, nil
}

func (s *mockStore) phaseCount(requestID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.phases[requestID])
}

// mockEventStore is an in-memory eventstore.Store.
type mockEventStore struct {
	mu     sync.Mutex
	events []event.AssessmentEvent
}

func (s *mockEventStore) Append(_ context.Context, ev *event.AssessmentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *ev)
	return nil
}

func (s *mockEventStore) LoadByRequest(_ context.Context, requestID string) ([]event.AssessmentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.AssessmentEvent
	for _, ev := range s.events {
		if ev.RequestID == requestID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *mockEventStore) types() []event.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Type, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

// mockQueue records published messages.
type mockQueue struct {
	mu        sync.Mutex
	published map[string]int
}

func newMockQueue() *mockQueue { return &mockQueue{published: make(map[string]int)} }

func (q *mockQueue) Publish(_ context.Context, subject string, _ []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published[subject]++
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *mockQueue) Close() error { return nil }

func (q *mockQueue) count(subject string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.published[subject]
}

// mockBroadcaster records broadcast event types.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
}

func (b *mockBroadcaster) has(eventType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e == eventType {
			return true
		}
	}
	return false
}
