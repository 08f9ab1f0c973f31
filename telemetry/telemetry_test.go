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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	noopt "go.opentelemetry.io/otel/trace/noop"
)

func TestEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "traces:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	assert.Equal(t, "traces:4317", endpoint(signalTraces))
	assert.Equal(t, "collector:4317", endpoint(signalMetrics))

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	assert.Equal(t, defaultEndpoint, endpoint(signalMetrics))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(2).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestStartAndClean(t *testing.T) {
	prevTracer, prevMeter := Tracer, Meter
	t.Cleanup(func() { Tracer, Meter = prevTracer, prevMeter })

	assert.IsType(t, noopt.Tracer{}, Tracer)
	clean, err := Start(context.Background(),
		WithTracesEndpoint("localhost:4317"),
		WithMetricsEndpoint("localhost:4317"),
		WithServiceName("maintenance-agent-test"),
		WithServiceVersion("test"),
		WithSampleRatio(0.5),
	)
	require.NoError(t, err)
	require.NotNil(t, clean)
	assert.NotEqual(t, noopt.Tracer{}, Tracer)
	// No collector is listening, so the final flush may fail.
	_ = clean()
}
