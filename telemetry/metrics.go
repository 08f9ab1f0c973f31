//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric instrument names.
const (
	MetricStepCount    = "maintenance.agent.step.count"
	MetricStepDuration = "maintenance.agent.step.duration"
	MetricRunCount     = "maintenance.agent.run.count"
)

// StepMetrics records per-step counters and latencies.
type StepMetrics struct {
	steps    metric.Int64Counter
	duration metric.Float64Histogram
	runs     metric.Int64Counter
}

// NewStepMetrics creates the instruments on the given meter. Pass
// telemetry.Meter to use the globally configured provider.
func NewStepMetrics(meter metric.Meter) (*StepMetrics, error) {
	steps, err := meter.Int64Counter(MetricStepCount,
		metric.WithDescription("Number of executed workflow steps"))
	if err != nil {
		return nil, fmt.Errorf("create step counter: %w", err)
	}
	duration, err := meter.Float64Histogram(MetricStepDuration,
		metric.WithDescription("Workflow step latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create step histogram: %w", err)
	}
	runs, err := meter.Int64Counter(MetricRunCount,
		metric.WithDescription("Number of finished workflow runs"))
	if err != nil {
		return nil, fmt.Errorf("create run counter: %w", err)
	}
	return &StepMetrics{steps: steps, duration: duration, runs: runs}, nil
}

// RecordStep records a finished step.
func (m *StepMetrics) RecordStep(ctx context.Context, step string, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("step", step),
		attribute.Bool("error", err != nil),
	)
	m.steps.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordRun records a finished run with its outcome ("completed" or "failed").
func (m *StepMetrics) RecordRun(ctx context.Context, outcome string) {
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
