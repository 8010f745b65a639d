package http

import (
	"context"
	"net/http"
	"time"

	"github.com/skywise-ai/irops/internal/adapter/litellm"
	"github.com/skywise-ai/irops/internal/adapter/ws"
	"github.com/skywise-ai/irops/internal/domain/assessment"
	"github.com/skywise-ai/irops/internal/domain/disruption"
	"github.com/skywise-ai/irops/internal/service"
)

// AssessmentService is the orchestration surface the handlers depend on.
type AssessmentService interface {
	Submit(ctx context.Context, sr *disruption.SubmitRequest) (*disruption.Request, error)
	Poll(ctx context.Context, requestID string) (*service.PollResult, error)
	Await(ctx context.Context, requestID string) (*service.PollResult, error)
	Audit(ctx context.Context, requestID string) (*assessment.AuditTrail, error)
	List(ctx context.Context) ([]disruption.Assessment, error)
}

// Pinger checks connectivity of a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Assessments AssessmentService
	LiteLLM     *litellm.Client
	Hub         *ws.Hub
	DB          Pinger
}

// SubmitAssessment accepts a disruption description and starts an
// asynchronous assessment run.
func (h *Handlers) SubmitAssessment(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[disruption.SubmitRequest](w, r)
	if !ok {
		return
	}

	created, err := h.Assessments.Submit(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "assessment not found")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"request_id": created.ID,
		"status":     disruption.StatusPending,
	})
}

// ListAssessments returns recent assessment records.
func (h *Handlers) ListAssessments(w http.ResponseWriter, r *http.Request) {
	items, err := h.Assessments.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "assessments not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assessments": items})
}

// GetAssessment returns the current state of one assessment. With ?wait=true
// the request blocks until the run reaches a terminal state or the client
// gives up.
func (h *Handlers) GetAssessment(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	var (
		res *service.PollResult
		err error
	)
	if wait := r.URL.Query().Get("wait"); wait == "true" || wait == "1" {
		res, err = h.Assessments.Await(r.Context(), id)
	} else {
		res, err = h.Assessments.Poll(r.Context(), id)
	}
	if err != nil {
		writeDomainError(w, err, "assessment not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetAuditTrail returns the full phase-by-phase record of one assessment.
func (h *Handlers) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	trail, err := h.Assessments.Audit(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "assessment not found")
		return
	}
	writeJSON(w, http.StatusOK, trail)
}

// ListLLMModels proxies the model inventory from LiteLLM.
func (h *Handlers) ListLLMModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.LiteLLM.ListModels(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "LiteLLM unreachable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// LLMHealth reports LiteLLM proxy liveness.
func (h *Handlers) LLMHealth(w http.ResponseWriter, r *http.Request) {
	healthy, err := h.LiteLLM.Health(r.Context())
	status := http.StatusOK
	if err != nil || !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"healthy": healthy})
}

// Health reports overall service health including backing components.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	components := map[string]string{}
	status := http.StatusOK

	if h.DB != nil {
		if err := h.DB.Ping(ctx); err != nil {
			components["postgres"] = "down"
			status = http.StatusServiceUnavailable
		} else {
			components["postgres"] = "up"
		}
	}
	if h.LiteLLM != nil {
		if healthy, err := h.LiteLLM.Health(ctx); err != nil || !healthy {
			components["litellm"] = "down"
			status = http.StatusServiceUnavailable
		} else {
			components["litellm"] = "up"
		}
	}

	body := map[string]any{
		"status":     "ok",
		"components": components,
	}
	if h.Hub != nil {
		body["ws_connections"] = h.Hub.ConnectionCount()
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}
