//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package mongodb implements vectorstore.VectorStore on MongoDB Atlas
// Vector Search.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.opentelemetry.io/otel/attribute"

	itelemetry "trpc.group/trpc-go/maintenance-agent-go/internal/telemetry"
	"trpc.group/trpc-go/maintenance-agent-go/knowledge/vectorstore"
	"trpc.group/trpc-go/maintenance-agent-go/telemetry"
)

const (
	// DefaultIndex is the Atlas search index name.
	DefaultIndex = "vector_index"
	// DefaultSimilarity is the similarity function of the index.
	DefaultSimilarity = "cosine"

	fieldIssue          = "issue"
	fieldRecommendation = "recommendation"
	fieldScore          = "score"
)

var _ vectorstore.VectorStore = (*VectorStore)(nil)

// VectorStore runs $vectorSearch aggregations against one collection.
type VectorStore struct {
	coll  *mongo.Collection
	index string
}

// Option configures a VectorStore.
type Option func(*VectorStore)

// WithIndex sets the search index name.
func WithIndex(index string) Option {
	return func(vs *VectorStore) {
		if index != "" {
			vs.index = index
		}
	}
}

// New creates a vector store over coll.
func New(coll *mongo.Collection, opts ...Option) (*VectorStore, error) {
	if coll == nil {
		return nil, errors.New("mongodb vectorstore: collection is nil")
	}
	vs := &VectorStore{coll: coll, index: DefaultIndex}
	for _, opt := range opts {
		opt(vs)
	}
	return vs, nil
}

// Add inserts the document with every embedding stored under its path.
func (vs *VectorStore) Add(ctx context.Context, doc *vectorstore.Document) error {
	if doc == nil {
		return errors.New("document cannot be nil")
	}
	res, err := vs.coll.InsertOne(ctx, toBSON(doc))
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	doc.ID = IDString(res.InsertedID)
	return nil
}

// Search implements vectorstore.VectorStore.
func (vs *VectorStore) Search(ctx context.Context, query *vectorstore.SearchQuery) (*vectorstore.SearchResult, error) {
	if query == nil || len(query.Vector) == 0 {
		return nil, vectorstore.ErrEmptyVector
	}
	q := *query
	q.Normalize()

	ctx, span := telemetry.Tracer.Start(ctx, itelemetry.SpanNameVectorSearch)
	defer span.End()
	span.SetAttributes(attribute.String(itelemetry.KeyCollection, vs.coll.Name()))

	cursor, err := vs.coll.Aggregate(ctx, Pipeline(vs.index, &q))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode vector search results: %w", err)
	}
	result := &vectorstore.SearchResult{}
	for _, m := range raw {
		result.Results = append(result.Results, fromBSON(m))
	}
	return result, nil
}

// Count implements vectorstore.VectorStore.
func (vs *VectorStore) Count(ctx context.Context) (int, error) {
	n, err := vs.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return int(n), nil
}

// Close is a no-op; the client is owned by the connector.
func (vs *VectorStore) Close() error {
	return nil
}

// CreateIndex creates the vector search index over path.
func (vs *VectorStore) CreateIndex(ctx context.Context, path string, dimensions int) (string, error) {
	model := mongo.SearchIndexModel{
		Definition: IndexDefinition(path, dimensions, DefaultSimilarity),
		Options:    options.SearchIndexes().SetName(vs.index).SetType("vectorSearch"),
	}
	name, err := vs.coll.SearchIndexes().CreateOne(ctx, model)
	if err != nil {
		return "", fmt.Errorf("create search index %q: %w", vs.index, err)
	}
	return name, nil
}

// Pipeline builds the $vectorSearch aggregation. The vector field itself
// is projected out and the search score added.
func Pipeline(index string, q *vectorstore.SearchQuery) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: index},
			{Key: "path", Value: q.Path},
			{Key: "queryVector", Value: q.Vector},
			{Key: "numCandidates", Value: q.NumCandidates},
			{Key: "limit", Value: q.Limit},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: fieldScore, Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
		{{Key: "$project", Value: bson.D{{Key: q.Path, Value: 0}}}},
	}
}

// IndexDefinition is the Atlas vectorSearch index definition for path.
func IndexDefinition(path string, dimensions int, similarity string) bson.D {
	return bson.D{{Key: "fields", Value: bson.A{
		bson.D{
			{Key: "type", Value: "vector"},
			{Key: "path", Value: path},
			{Key: "numDimensions", Value: dimensions},
			{Key: "similarity", Value: similarity},
		},
	}}}
}

// IDString renders a document id as a string; ObjectIDs become hex.
func IDString(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case bson.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func toBSON(doc *vectorstore.Document) bson.D {
	d := bson.D{}
	if doc.ID != "" {
		if oid, err := bson.ObjectIDFromHex(doc.ID); err == nil {
			d = append(d, bson.E{Key: "_id", Value: oid})
		} else {
			d = append(d, bson.E{Key: "_id", Value: doc.ID})
		}
	}
	d = append(d,
		bson.E{Key: fieldIssue, Value: doc.Issue},
		bson.E{Key: fieldRecommendation, Value: doc.Recommendation},
	)
	for path, vec := range doc.Embeddings {
		d = append(d, bson.E{Key: path, Value: vec})
	}
	return d
}

func fromBSON(m bson.M) *vectorstore.ScoredDocument {
	doc := &vectorstore.Document{ID: IDString(m["_id"])}
	doc.Issue, _ = m[fieldIssue].(string)
	doc.Recommendation, _ = m[fieldRecommendation].(string)
	var score float64
	switch v := m[fieldScore].(type) {
	case float64:
		score = v
	case float32:
		score = float64(v)
	case int32:
		score = float64(v)
	case int64:
		score = float64(v)
	}
	return &vectorstore.ScoredDocument{Document: doc, Score: score}
}
