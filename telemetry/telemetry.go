//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry wires OpenTelemetry tracing and metrics for the
// maintenance agent. Until Start is called the global Tracer and Meter are
// no-ops.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	noopm "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
	noopt "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"

	itelemetry "trpc.group/trpc-go/maintenance-agent-go/internal/telemetry"
)

var (
	// Tracer is the global tracer used for run and step spans.
	Tracer trace.Tracer = noopt.Tracer{}
	// Meter is the global meter used by StepMetrics.
	Meter metric.Meter = noopm.Meter{}
)

// Signals exported over OTLP.
const (
	signalTraces  = "TRACES"
	signalMetrics = "METRICS"
)

// Default OTLP gRPC collector address.
const defaultEndpoint = "localhost:4317"

// Start installs OTLP gRPC exporters for traces and metrics and points the
// global Tracer and Meter at them. The returned function flushes and shuts
// both providers down.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	o := &options{
		tracesEndpoint:   endpoint(signalTraces),
		metricsEndpoint:  endpoint(signalMetrics),
		serviceName:      itelemetry.ServiceName,
		serviceVersion:   itelemetry.ServiceVersion,
		serviceNamespace: itelemetry.ServiceNamespace,
		sampleRatio:      1,
	}
	for _, opt := range opts {
		opt(o)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNamespace(o.serviceNamespace),
			semconv.ServiceName(o.serviceName),
			semconv.ServiceVersion(o.serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	conns := map[string]*grpc.ClientConn{}
	dial := func(target string) (*grpc.ClientConn, error) {
		if c, ok := conns[target]; ok {
			return c, nil
		}
		c, err := itelemetry.NewGRPCConn(target)
		if err != nil {
			return nil, err
		}
		conns[target] = c
		return c, nil
	}

	tracesConn, err := dial(o.tracesEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry: dial traces endpoint: %w", err)
	}
	tp, err := newTracerProvider(ctx, res, tracesConn, o.sampleRatio)
	if err != nil {
		return nil, err
	}
	metricsConn, err := dial(o.metricsEndpoint)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("telemetry: dial metrics endpoint: %w", err), tp.Shutdown(ctx))
	}
	mp, err := newMeterProvider(ctx, res, metricsConn)
	if err != nil {
		return nil, errors.Join(err, tp.Shutdown(ctx))
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	Tracer = otel.Tracer(itelemetry.InstrumentName)
	Meter = otel.Meter(itelemetry.InstrumentName)

	return func() error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
		for _, c := range conns {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close collector connection: %w", err))
			}
		}
		return errors.Join(errs...)
	}, nil
}

// endpoint resolves the collector address of one signal:
// OTEL_EXPORTER_OTLP_<SIGNAL>_ENDPOINT, then OTEL_EXPORTER_OTLP_ENDPOINT,
// then localhost:4317.
func endpoint(signal string) string {
	for _, key := range []string{"OTEL_EXPORTER_OTLP_" + signal + "_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return defaultEndpoint
}

func newTracerProvider(ctx context.Context, res *resource.Resource, conn *grpc.ClientConn,
	ratio float64) (*sdktrace.TracerProvider, error) {
	exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler(ratio)),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
	), nil
}

func newMeterProvider(ctx context.Context, res *resource.Resource, conn *grpc.ClientConn) (*sdkmetric.MeterProvider, error) {
	exp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	), nil
}

// sampler samples every run at ratio 1 and none at 0; child spans follow
// their parent.
func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// Option configures Start.
type Option func(*options)

type options struct {
	tracesEndpoint   string
	metricsEndpoint  string
	serviceName      string
	serviceVersion   string
	serviceNamespace string
	sampleRatio      float64
}

// WithTracesEndpoint sets the collector address ("host:port", no scheme) for
// traces. It takes precedence over the OTEL_EXPORTER_OTLP_* variables.
func WithTracesEndpoint(endpoint string) Option {
	return func(o *options) {
		o.tracesEndpoint = endpoint
	}
}

// WithMetricsEndpoint sets the collector address for metrics. When it equals
// the traces endpoint both signals share one connection.
func WithMetricsEndpoint(endpoint string) Option {
	return func(o *options) {
		o.metricsEndpoint = endpoint
	}
}

// WithServiceName overrides the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(o *options) {
		o.serviceName = name
	}
}

// WithServiceVersion overrides the service.version resource attribute.
func WithServiceVersion(version string) Option {
	return func(o *options) {
		o.serviceVersion = version
	}
}

// WithSampleRatio sets the fraction of runs that are traced.
func WithSampleRatio(ratio float64) Option {
	return func(o *options) {
		o.sampleRatio = ratio
	}
}
