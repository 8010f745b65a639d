package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "irops"

// Metrics holds all irops metric instruments.
type Metrics struct {
	InvocationsStarted   metric.Int64Counter
	InvocationsCompleted metric.Int64Counter
	InvocationsFailed    metric.Int64Counter
	AttemptDuration      metric.Float64Histogram
	PhaseDuration        metric.Float64Histogram
	DecisionsMade        metric.Int64Counter
	ConflictsDetected    metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.InvocationsStarted, err = meter.Int64Counter("irops.invocations.started",
		metric.WithDescription("Number of agent invocations started"))
	if err != nil {
		return nil, err
	}

	m.InvocationsCompleted, err = meter.Int64Counter("irops.invocations.completed",
		metric.WithDescription("Number of agent invocations completed"))
	if err != nil {
		return nil, err
	}

	m.InvocationsFailed, err = meter.Int64Counter("irops.invocations.failed",
		metric.WithDescription("Number of agent invocations exhausted across the whole fallback chain"))
	if err != nil {
		return nil, err
	}

	m.AttemptDuration, err = meter.Float64Histogram("irops.attempt.duration_seconds",
		metric.WithDescription("Per-backend attempt duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.PhaseDuration, err = meter.Float64Histogram("irops.phase.duration_seconds",
		metric.WithDescription("Barrier-to-barrier phase duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.DecisionsMade, err = meter.Int64Counter("irops.decisions",
		metric.WithDescription("Number of final decisions produced"))
	if err != nil {
		return nil, err
	}

	m.ConflictsDetected, err = meter.Int64Counter("irops.conflicts",
		metric.WithDescription("Number of agent conflicts detected"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
