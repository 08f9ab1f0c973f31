//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory vector store implementation.
package inmemory

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"sync"

	"trpc.group/trpc-go/maintenance-agent-go/knowledge/vectorstore"
)

var (
	// errDocumentCannotBeNil is the error when the document is nil.
	errDocumentCannotBeNil = errors.New("document cannot be nil")
	// errStoreClosed is returned after Close.
	errStoreClosed = errors.New("vector store is closed")
)

var _ vectorstore.VectorStore = (*VectorStore)(nil)

// VectorStore implements vectorstore.VectorStore using in-memory storage and
// exact cosine similarity.
type VectorStore struct {
	mutex     sync.RWMutex
	documents map[string]*vectorstore.Document
	order     []string
	nextID    int
	closed    bool
}

// New creates a new in-memory vector store instance.
func New() *VectorStore {
	return &VectorStore{documents: make(map[string]*vectorstore.Document)}
}

// Add implements vectorstore.VectorStore interface. Documents without an ID
// get a sequential one.
func (vs *VectorStore) Add(ctx context.Context, doc *vectorstore.Document) error {
	if doc == nil {
		return errDocumentCannotBeNil
	}
	vs.mutex.Lock()
	defer vs.mutex.Unlock()
	if vs.closed {
		return errStoreClosed
	}
	c := clone(doc)
	if c.ID == "" {
		vs.nextID++
		c.ID = strconv.Itoa(vs.nextID)
	}
	if _, exists := vs.documents[c.ID]; !exists {
		vs.order = append(vs.order, c.ID)
	}
	vs.documents[c.ID] = c
	doc.ID = c.ID
	return nil
}

// Search implements vectorstore.VectorStore interface.
func (vs *VectorStore) Search(ctx context.Context, query *vectorstore.SearchQuery) (*vectorstore.SearchResult, error) {
	if query == nil || len(query.Vector) == 0 {
		return nil, vectorstore.ErrEmptyVector
	}
	q := *query
	q.Normalize()

	vs.mutex.RLock()
	defer vs.mutex.RUnlock()
	if vs.closed {
		return nil, errStoreClosed
	}
	var results []*vectorstore.ScoredDocument
	for _, id := range vs.order {
		doc := vs.documents[id]
		embedding, ok := doc.Embeddings[q.Path]
		if !ok || len(embedding) != len(q.Vector) {
			continue
		}
		results = append(results, &vectorstore.ScoredDocument{
			Document: clone(doc),
			Score:    cosineSimilarity(q.Vector, embedding),
		})
	}
	sortByScore(results)
	if len(results) > q.NumCandidates {
		results = results[:q.NumCandidates]
	}
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return &vectorstore.SearchResult{Results: results}, nil
}

// Count implements vectorstore.VectorStore interface.
func (vs *VectorStore) Count(ctx context.Context) (int, error) {
	vs.mutex.RLock()
	defer vs.mutex.RUnlock()
	return len(vs.documents), nil
}

// Close implements vectorstore.VectorStore interface.
func (vs *VectorStore) Close() error {
	vs.mutex.Lock()
	defer vs.mutex.Unlock()
	vs.documents = map[string]*vectorstore.Document{}
	vs.order = nil
	vs.closed = true
	return nil
}

func clone(doc *vectorstore.Document) *vectorstore.Document {
	c := *doc
	if doc.Embeddings != nil {
		c.Embeddings = make(map[string][]float64, len(doc.Embeddings))
		for k, v := range doc.Embeddings {
			c.Embeddings[k] = append([]float64(nil), v...)
		}
	}
	return &c
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}
	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortByScore sorts results by score in descending order, keeping insertion
// order for ties.
func sortByScore(results []*vectorstore.ScoredDocument) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
