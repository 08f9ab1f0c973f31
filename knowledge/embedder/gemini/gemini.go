//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini provides Gemini embedder implementation.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	itelemetry "trpc.group/trpc-go/maintenance-agent-go/internal/telemetry"
	"trpc.group/trpc-go/maintenance-agent-go/knowledge/embedder"
	"trpc.group/trpc-go/maintenance-agent-go/log"
	"trpc.group/trpc-go/maintenance-agent-go/telemetry"
)

// Verify that Embedder implements the embedder.Embedder interface.
var _ embedder.Embedder = (*Embedder)(nil)

const (
	// DefaultModel is the default Gemini embedding model.
	DefaultModel = "gemini-embedding-001"
	// DefaultTaskType is the default task type.
	DefaultTaskType = TaskTypeSemanticSimilarity

	// TaskTypeSemanticSimilarity is a task type for assessing text similarity.
	TaskTypeSemanticSimilarity = "SEMANTIC_SIMILARITY"
	// TaskTypeRetrievalDocument is a task type for document search.
	TaskTypeRetrievalDocument = "RETRIEVAL_DOCUMENT"
	// TaskTypeRetrievalQuery is a task type for general search queries.
	TaskTypeRetrievalQuery = "RETRIEVAL_QUERY"

	// ProviderName is recorded on embed spans.
	ProviderName = "gemini"
)

// Embedder implements the embedder.Embedder interface for Gemini API.
type Embedder struct {
	client        *genai.Client
	model         string
	dimensions    int
	taskType      string
	apiKey        string
	clientOptions *genai.ClientConfig
}

// Option represents a functional option for configuring the Embedder.
type Option func(*Embedder)

// WithModel sets the embedding model to use.
func WithModel(model string) Option {
	return func(e *Embedder) {
		if model != "" {
			e.model = model
		}
	}
}

// WithDimensions sets the number of dimensions for the embedding.
func WithDimensions(dimensions int) Option {
	return func(e *Embedder) {
		if dimensions > 0 {
			e.dimensions = dimensions
		}
	}
}

// WithTaskType sets the task type to optimize embedding results.
func WithTaskType(taskType string) Option {
	return func(e *Embedder) {
		e.taskType = taskType
	}
}

// WithAPIKey sets the Google API key.
// APIKey priority: WithClientOptions > WithAPIKey.
func WithAPIKey(apiKey string) Option {
	return func(e *Embedder) {
		e.apiKey = apiKey
	}
}

// WithClientOptions sets additional options for the Gemini client config.
func WithClientOptions(clientOptions *genai.ClientConfig) Option {
	return func(e *Embedder) {
		c := *clientOptions
		e.clientOptions = &c
	}
}

// New creates a new Gemini embedder with the given options.
func New(ctx context.Context, opts ...Option) (*Embedder, error) {
	e := &Embedder{
		model:         DefaultModel,
		dimensions:    embedder.DefaultDimensions,
		taskType:      DefaultTaskType,
		clientOptions: &genai.ClientConfig{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clientOptions.APIKey == "" {
		e.clientOptions.APIKey = e.apiKey
	}
	if e.clientOptions.APIKey == "" {
		return nil, errors.New("gemini: api key is not provided")
	}
	client, err := genai.NewClient(ctx, e.clientOptions)
	if err != nil {
		return nil, err
	}
	e.client = client
	return e, nil
}

// GetEmbedding implements the embedder.Embedder interface.
func (e *Embedder) GetEmbedding(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, embedder.ErrEmptyText
	}
	ctx, span := telemetry.Tracer.Start(ctx, itelemetry.SpanNameEmbed)
	defer span.End()

	// Remove the `models/` prefix from the model id if it exists.
	model := strings.TrimPrefix(e.model, "models/")
	d := int32(e.dimensions)
	request := &genai.EmbedContentConfig{
		OutputDimensionality: &d,
		TaskType:             e.taskType,
	}
	content := genai.NewContentFromText(text, genai.RoleUser)
	response, err := e.client.Models.EmbedContent(ctx, model, []*genai.Content{content}, request)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(response.Embeddings) == 0 || len(response.Embeddings[0].Values) == 0 {
		log.Warn("received empty embedding response from Gemini API")
		return []float64{}, nil
	}
	embedding := make([]float64, len(response.Embeddings[0].Values))
	for i, v := range response.Embeddings[0].Values {
		embedding[i] = float64(v)
	}
	itelemetry.TraceEmbed(span, ProviderName, model, len(embedding))
	return embedding, nil
}

// GetDimensions implements the embedder.Embedder interface.
func (e *Embedder) GetDimensions() int {
	return e.dimensions
}
