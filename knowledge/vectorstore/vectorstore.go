//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package vectorstore provides interfaces for vector storage and similarity search
// over historical vehicle issues.
package vectorstore

import (
	"context"
	"errors"
)

// Default $vectorSearch parameters.
const (
	DefaultPath          = "embedding"
	DefaultNumCandidates = 5
	DefaultLimit         = 2
	EmbeddingSuffix      = "_embedding"
)

var (
	// ErrEmptyVector is returned when a search has no query vector.
	ErrEmptyVector = errors.New("vectorstore: query vector is empty")
	// ErrDocumentNotFound is returned when a document id is unknown.
	ErrDocumentNotFound = errors.New("vectorstore: document not found")
)

// VectorStore defines the interface for vector storage and similarity search operations.
type VectorStore interface {
	// Add stores a document with its embedding vectors.
	Add(ctx context.Context, doc *Document) error

	// Search performs similarity search and returns the most similar documents.
	Search(ctx context.Context, query *SearchQuery) (*SearchResult, error)

	// Count counts documents in the vector store.
	Count(ctx context.Context) (int, error)

	// Close closes the vector store connection.
	Close() error
}

// Document is one past issue with its recommendation.
type Document struct {
	ID             string
	Issue          string
	Recommendation string

	// Embeddings maps a vector path (e.g. "issue_embedding") to its vector.
	Embeddings map[string][]float64
}

// SearchQuery represents a vector similarity search query.
type SearchQuery struct {
	// Vector is the query embedding vector.
	Vector []float64

	// Path is the document field holding the indexed vector.
	Path string

	// NumCandidates is the number of nearest neighbours considered.
	NumCandidates int

	// Limit specifies the number of top results to return.
	Limit int
}

// SearchResult represents the result of a vector similarity search.
type SearchResult struct {
	Results []*ScoredDocument
}

// ScoredDocument represents a document with its similarity score.
type ScoredDocument struct {
	Document *Document

	// Score is the similarity score, higher is more similar.
	Score float64
}

// ResolvePath picks the vector path: an explicit override, else
// "<collection>_embedding", else "embedding".
func ResolvePath(override, collection string) string {
	if override != "" {
		return override
	}
	if collection != "" {
		return collection + EmbeddingSuffix
	}
	return DefaultPath
}

// Normalize fills zero-valued query fields with the defaults.
func (q *SearchQuery) Normalize() {
	if q.Path == "" {
		q.Path = DefaultPath
	}
	if q.NumCandidates <= 0 {
		q.NumCandidates = DefaultNumCandidates
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
}
