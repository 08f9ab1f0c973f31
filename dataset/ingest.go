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
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"trpc.group/trpc-go/maintenance-agent-go/log"
	"trpc.group/trpc-go/maintenance-agent-go/persistence"
)

// IngestThreadID tags telemetry loaded by IngestTelemetry.
const IngestThreadID = "ingest"

// DefaultBatchSize is the number of documents per InsertMany call.
const DefaultBatchSize = 500

// Inserter is the part of *mongo.Collection used by IngestDocuments.
type Inserter interface {
	InsertMany(ctx context.Context, documents any, opts ...options.Lister[options.InsertManyOptions]) (*mongo.InsertManyResult, error)
}

// IngestTelemetry loads telemetry CSV rows into the time-series collection
// of store, creating it when missing.
func IngestTelemetry(ctx context.Context, store persistence.Store, r io.Reader) (int, error) {
	records, err := ReadTelemetry(r)
	if err != nil {
		return 0, err
	}
	if err := store.EnsureTelemetryCollection(ctx); err != nil {
		return 0, fmt.Errorf("ensure telemetry collection: %w", err)
	}
	n, err := store.InsertTelemetry(ctx, IngestThreadID, records)
	if err != nil {
		return n, fmt.Errorf("insert telemetry: %w", err)
	}
	log.Infof("[MongoDB] ingested %d telemetry records", n)
	return n, nil
}

// IngestDocuments loads generic CSV rows, such as the issue catalogue, into
// coll in batches. Numeric-looking fields are stored as numbers.
func IngestDocuments(ctx context.Context, coll Inserter, r io.Reader, batchSize int) (int, error) {
	rows, err := ReadRows(r)
	if err != nil {
		return 0, err
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	total := 0
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		docs := make([]any, 0, end-start)
		for _, row := range rows[start:end] {
			docs = append(docs, RowDocument(row))
		}
		res, err := coll.InsertMany(ctx, docs)
		if err != nil {
			return total, fmt.Errorf("insert rows %d-%d: %w", start+1, end, err)
		}
		total += len(res.InsertedIDs)
	}
	log.Infof("[MongoDB] ingested %d documents", total)
	return total, nil
}

// RowDocument converts a CSV row into a BSON document with sorted keys.
func RowDocument(row map[string]string) bson.D {
	keys := make([]string, 0, len(row))
	for k := range row {
		if k != "" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	doc := make(bson.D, 0, len(keys))
	for _, k := range keys {
		doc = append(doc, bson.E{Key: k, Value: fieldValue(row[k])})
	}
	return doc
}

func fieldValue(v string) any {
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return v
}
