// Package llmagent implements the agent backend port on top of the LiteLLM
// proxy. One Backend instance is one model; fallback chains are ordered
// lists of these. Each call assembles the agent's charter, the disruption
// description, any revision cross-context and relevant ops-data records into
// a prompt, and parses the model's JSON reply into a structured result.
package llmagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/skywise-ai/irops/internal/adapter/litellm"
	"github.com/skywise-ai/irops/internal/domain"
	"github.com/skywise-ai/irops/internal/port/agentbackend"
	"github.com/skywise-ai/irops/internal/port/opsdata"
)

// Backend calls one model through the LiteLLM proxy.
type Backend struct {
	model      string
	client     *litellm.Client
	ops        opsdata.Source // optional
	opsTimeout time.Duration
}

// New creates a backend for one model. ops may be nil; prompts then carry no
// operational-data context.
func New(model string, client *litellm.Client, ops opsdata.Source) *Backend {
	return &Backend{
		model:      model,
		client:     client,
		ops:        ops,
		opsTimeout: 3 * time.Second,
	}
}

func (b *Backend) Name() string { return b.model }

// Call runs one reasoning request. Transport failures, malformed replies and
// breaker rejections all surface as errors so the invoker can walk the
// fallback chain.
func (b *Backend) Call(ctx context.Context, pc *agentbackend.PromptContext) (*agentbackend.Result, error) {
	records, sources := b.lookupContext(ctx, pc)

	system := charterFor(pc.Agent)
	user := buildUserPrompt(pc, records)

	resp, err := b.client.ChatCompletion(ctx, litellm.ChatRequest{
		Model: b.model,
		Messages: []litellm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}

	result, err := parseResult(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", b.model, err)
	}
	result.Sources = append(result.Sources, sources...)
	return result, nil
}

// lookupContext fetches the ops-data records relevant to the agent's domain.
// Lookups are best effort under a short timeout; a cold ops-data service
// must not take the whole attempt down.
func (b *Backend) lookupContext(ctx context.Context, pc *agentbackend.PromptContext) ([]opsdata.Record, []string) {
	if b.ops == nil {
		return nil, nil
	}
	keys := flightDesignators(pc.Disruption)
	if len(keys) == 0 {
		return nil, nil
	}

	opsCtx, cancel := context.WithTimeout(ctx, b.opsTimeout)
	defer cancel()

	var records []opsdata.Record
	var sources []string
	for _, kind := range kindsFor(pc.Agent) {
		for _, key := range keys {
			rec, err := b.ops.Lookup(opsCtx, kind, key)
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					// Degraded enrichment only; the agent still reasons from
					// the description.
					return records, sources
				}
				continue
			}
			records = append(records, *rec)
			sources = append(sources, fmt.Sprintf("opsdata:%s/%s", kind, key))
		}
	}
	return records, sources
}

// rawResult mirrors the JSON contract every agent charter demands.
type rawResult struct {
	Recommendation string   `json:"recommendation"`
	Confidence     float64  `json:"confidence"`
	Constraints    []string `json:"constraints"`
	Reasoning      string   `json:"reasoning"`
	Sources        []string `json:"sources"`
}

func parseResult(content string) (*agentbackend.Result, error) {
	var raw rawResult
	if err := json.Unmarshal([]byte(extractJSON(content)), &raw); err != nil {
		return nil, fmt.Errorf("parse agent reply: %w", err)
	}
	if raw.Recommendation == "" {
		return nil, errors.New("agent reply missing recommendation")
	}
	return &agentbackend.Result{
		Recommendation: raw.Recommendation,
		Confidence:     raw.Confidence,
		Constraints:    raw.Constraints,
		Reasoning:      raw.Reasoning,
		Sources:        raw.Sources,
	}, nil
}
