//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the span names, attribute keys and span helpers
// shared by the graph engine, the model clients and the runner.
package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// telemetry service constants.
const (
	ServiceName      = "maintenance-agent"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "maintenance-agent-go"
	InstrumentName   = "maintenance.agent.go"

	SpanNameInvokeGraph       = "invoke_graph"
	SpanNameResumeGraph       = "resume_graph"
	SpanNamePrefixExecuteNode = "execute_node"
	SpanNameCallLLM           = "call_llm"
	SpanNameEmbed             = "embed"
	SpanNameVectorSearch      = "vector_search"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// telemetry attributes constants.
var (
	KeyThreadID    = "maintenance.agent.thread_id"
	KeyNodeID      = "maintenance.agent.node_id"
	KeyNodeName    = "maintenance.agent.node_name"
	KeyStep        = "maintenance.agent.step"
	KeyNextNode    = "maintenance.agent.next_node"
	KeyError       = "maintenance.agent.error"
	KeyLLMRequest  = "maintenance.agent.llm_request"
	KeyLLMResponse = "maintenance.agent.llm_response"
	KeyCollection  = "maintenance.agent.collection"
)

// maxAttributeLen bounds prompt and completion attributes.
const maxAttributeLen = 4096

// TraceCallLLM annotates a chat completion span.
func TraceCallLLM(span trace.Span, provider, modelName, prompt, completion string) {
	span.SetAttributes(
		attribute.String("gen_ai.system", provider),
		attribute.String("gen_ai.operation.name", "chat"),
		attribute.String("gen_ai.request.model", modelName),
		attribute.String(KeyLLMRequest, truncate(prompt)),
		attribute.String(KeyLLMResponse, truncate(completion)),
	)
}

// TraceEmbed annotates an embedding span.
func TraceEmbed(span trace.Span, provider, modelName string, dimensions int) {
	span.SetAttributes(
		attribute.String("gen_ai.system", provider),
		attribute.String("gen_ai.operation.name", "embeddings"),
		attribute.String("gen_ai.request.model", modelName),
		attribute.Int("gen_ai.embeddings.dimensions", dimensions),
	)
}

func truncate(s string) string {
	if len(s) <= maxAttributeLen {
		return s
	}
	return s[:maxAttributeLen]
}

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	// Note the use of insecure transport here. TLS is recommended in production.
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
