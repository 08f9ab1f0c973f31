//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"trpc.group/trpc-go/maintenance-agent-go/knowledge/embedder"
	"trpc.group/trpc-go/maintenance-agent-go/knowledge/vectorstore"
	vsmongodb "trpc.group/trpc-go/maintenance-agent-go/knowledge/vectorstore/mongodb"
	"trpc.group/trpc-go/maintenance-agent-go/log"
)

// DefaultConcurrency is the embedding pool size.
const DefaultConcurrency = 4

// PendingDocument is a document whose attribute still needs an embedding.
type PendingDocument struct {
	ID   any
	Text string
}

// EmbedStats summarizes an embedding job.
type EmbedStats struct {
	Total    int
	Embedded int
	Failed   int
}

// WriteFunc stores the vector computed for the document with the given id.
type WriteFunc func(ctx context.Context, id any, vector []float64) error

// EmbeddingField names the field holding the embedding of attr.
func EmbeddingField(attr string) string {
	return attr + vectorstore.EmbeddingSuffix
}

// PendingFilter selects documents with a non-empty attr. Unless overwrite
// is set, documents that already carry an embedding are skipped.
func PendingFilter(attr string, overwrite bool) bson.D {
	filter := bson.D{{Key: attr, Value: bson.D{
		{Key: "$exists", Value: true},
		{Key: "$ne", Value: ""},
	}}}
	if !overwrite {
		filter = append(filter, bson.E{Key: EmbeddingField(attr), Value: bson.D{{Key: "$exists", Value: false}}})
	}
	return filter
}

// FindPending lists the documents of coll that EmbedCollection would embed.
func FindPending(ctx context.Context, coll *mongo.Collection, attr string, overwrite bool) ([]PendingDocument, error) {
	opts := options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}, {Key: attr, Value: 1}})
	cursor, err := coll.Find(ctx, PendingFilter(attr, overwrite), opts)
	if err != nil {
		return nil, fmt.Errorf("find documents to embed: %w", err)
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode documents to embed: %w", err)
	}
	docs := make([]PendingDocument, 0, len(raw))
	for _, m := range raw {
		text, ok := m[attr].(string)
		if !ok || text == "" {
			continue
		}
		docs = append(docs, PendingDocument{ID: m["_id"], Text: text})
	}
	return docs, nil
}

// EmbedDocuments embeds every document on a pool of the given size and
// hands each vector to write. Per-document failures are logged and counted.
func EmbedDocuments(
	ctx context.Context,
	docs []PendingDocument,
	emb embedder.Embedder,
	write WriteFunc,
	concurrency int,
) (EmbedStats, error) {
	stats := EmbedStats{Total: len(docs)}
	if emb == nil || write == nil {
		return stats, errors.New("dataset: embedder and writer are required")
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return stats, fmt.Errorf("failed to create embedding worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		embedded atomic.Int64
		failed   atomic.Int64
	)
	for i, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		idx, d := i, doc
		err := pool.Submit(func() {
			defer wg.Done()
			vec, err := emb.GetEmbedding(ctx, d.Text)
			if err == nil && len(vec) == 0 {
				err = errors.New("empty embedding")
			}
			if err == nil {
				err = write(ctx, d.ID, vec)
			}
			if err != nil {
				failed.Add(1)
				log.Errorf("[LLM] embedding document %d/%d (%v): %v", idx+1, len(docs), d.ID, err)
				return
			}
			embedded.Add(1)
		})
		if err != nil {
			wg.Done()
			failed.Add(1)
			log.Errorf("failed to submit embedding task: %v", err)
		}
	}
	wg.Wait()
	stats.Embedded = int(embedded.Load())
	stats.Failed = int(failed.Load())
	return stats, ctx.Err()
}

// EmbedCollection computes <attr>_embedding for the documents of coll.
func EmbedCollection(
	ctx context.Context,
	coll *mongo.Collection,
	emb embedder.Embedder,
	attr string,
	overwrite bool,
	concurrency int,
) (EmbedStats, error) {
	docs, err := FindPending(ctx, coll, attr, overwrite)
	if err != nil {
		return EmbedStats{}, err
	}
	field := EmbeddingField(attr)
	log.Infof("[LLM] embedding %d documents of %s into %s", len(docs), coll.Name(), field)
	write := func(ctx context.Context, id any, vector []float64) error {
		_, err := coll.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: id}},
			bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: vector}}}})
		return err
	}
	stats, err := EmbedDocuments(ctx, docs, emb, write, concurrency)
	log.Infof("[LLM] embedded %d/%d documents (%d failed)", stats.Embedded, stats.Total, stats.Failed)
	return stats, err
}

// CreateVectorIndex creates the Atlas vector search index over the
// embedding of attr.
func CreateVectorIndex(ctx context.Context, coll *mongo.Collection, index, attr string, dimensions int) (string, error) {
	if dimensions <= 0 {
		dimensions = embedder.DefaultDimensions
	}
	vs, err := vsmongodb.New(coll, vsmongodb.WithIndex(index))
	if err != nil {
		return "", err
	}
	field := EmbeddingField(attr)
	log.Infof("[MongoDB] creating vector search index %q on %s.%s (%d dims, %s)",
		index, coll.Name(), field, dimensions, vsmongodb.DefaultSimilarity)
	return vs.CreateIndex(ctx, field, dimensions)
}
