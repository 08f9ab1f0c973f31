//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package embedder provides interfaces and implementations for text embedding.
package embedder

import (
	"context"
	"errors"
)

// DefaultDimensions is the vector length expected by the similarity index.
const DefaultDimensions = 1024

// ErrEmptyText is returned when asked to embed an empty string.
var ErrEmptyText = errors.New("text cannot be empty")

// Embedder is the interface that all embedders must implement.
//
// An error means the embedding could not be produced. An empty slice with
// a nil error means the API answered without a vector; callers treat both
// the same way.
type Embedder interface {
	// GetEmbedding generates an embedding vector for the given text.
	GetEmbedding(ctx context.Context, text string) ([]float64, error)

	// GetDimensions returns the dimensionality of the embeddings produced by this embedder.
	GetDimensions() int
}

// ZeroVector returns a vector of n zeros.
func ZeroVector(n int) []float64 {
	if n <= 0 {
		n = DefaultDimensions
	}
	return make([]float64, n)
}
