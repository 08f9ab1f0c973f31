//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package mongodb provides a MongoDB-backed checkpointer, one document per
// checkpoint.
package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"trpc.group/trpc-go/maintenance-agent-go/graph"
)

// checkpointDocument is the stored form of a graph.Checkpoint. The state
// is kept as JSON text so any state type round-trips unchanged.
type checkpointDocument struct {
	ThreadID     string    `bson:"thread_id"`
	CheckpointID string    `bson:"checkpoint_id"`
	ParentID     string    `bson:"parent_id,omitempty"`
	Source       string    `bson:"source"`
	Step         int       `bson:"step"`
	Node         string    `bson:"node,omitempty"`
	NextNode     string    `bson:"next_node"`
	State        string    `bson:"state"`
	Timestamp    time.Time `bson:"ts"`
	Seq          int64     `bson:"seq"`
}

func toDocument(threadID string, cp *graph.Checkpoint) checkpointDocument {
	return checkpointDocument{
		ThreadID:     threadID,
		CheckpointID: cp.ID,
		ParentID:     cp.ParentID,
		Source:       cp.Source,
		Step:         cp.Step,
		Node:         cp.Node,
		NextNode:     cp.NextNode,
		State:        string(cp.State),
		Timestamp:    cp.Timestamp,
		Seq:          cp.Timestamp.UnixNano(),
	}
}

func (d checkpointDocument) checkpoint() *graph.Checkpoint {
	return &graph.Checkpoint{
		ID:        d.CheckpointID,
		ThreadID:  d.ThreadID,
		ParentID:  d.ParentID,
		Source:    d.Source,
		Step:      d.Step,
		Node:      d.Node,
		NextNode:  d.NextNode,
		State:     json.RawMessage(d.State),
		Timestamp: d.Timestamp.UTC(),
	}
}

// newestFirst orders by save time, then by step for saves within the same
// nanosecond.
var newestFirst = bson.D{{Key: "seq", Value: -1}, {Key: "step", Value: -1}}

// Saver stores checkpoints in a MongoDB collection.
type Saver struct {
	coll *mongo.Collection
}

// NewSaver creates a saver on coll and ensures its indexes.
func NewSaver(ctx context.Context, coll *mongo.Collection) (*Saver, error) {
	if coll == nil {
		return nil, errors.New("mongodb collection is nil")
	}
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "thread_id", Value: 1}, {Key: "seq", Value: -1}}},
		{
			Keys:    bson.D{{Key: "thread_id", Value: 1}, {Key: "checkpoint_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create checkpoint indexes: %w", err)
	}
	return &Saver{coll: coll}, nil
}

// Save upserts the checkpoint by (thread_id, checkpoint_id).
func (s *Saver) Save(ctx context.Context, threadID string, cp *graph.Checkpoint) error {
	if threadID == "" {
		return graph.ErrThreadIDRequired
	}
	doc := toDocument(threadID, cp)
	filter := bson.D{{Key: "thread_id", Value: threadID}, {Key: "checkpoint_id", Value: cp.ID}}
	_, err := s.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb save checkpoint: %w", err)
	}
	return nil
}

// Load returns the latest checkpoint of the thread.
func (s *Saver) Load(ctx context.Context, threadID string) (*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	var doc checkpointDocument
	err := s.coll.FindOne(ctx,
		bson.D{{Key: "thread_id", Value: threadID}},
		options.FindOne().SetSort(newestFirst),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, graph.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("mongodb load checkpoint: %w", err)
	}
	return doc.checkpoint(), nil
}

// List returns checkpoints of the thread, newest first.
func (s *Saver) List(ctx context.Context, threadID string, limit int) ([]*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	findOpts := options.Find().SetSort(newestFirst)
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}
	cursor, err := s.coll.Find(ctx, bson.D{{Key: "thread_id", Value: threadID}}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("mongodb list checkpoints: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []checkpointDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb decode checkpoints: %w", err)
	}
	out := make([]*graph.Checkpoint, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.checkpoint())
	}
	return out, nil
}

// Delete removes all checkpoints of the thread.
func (s *Saver) Delete(ctx context.Context, threadID string) error {
	if threadID == "" {
		return graph.ErrThreadIDRequired
	}
	if _, err := s.coll.DeleteMany(ctx, bson.D{{Key: "thread_id", Value: threadID}}); err != nil {
		return fmt.Errorf("mongodb delete checkpoints: %w", err)
	}
	return nil
}

// Close is a no-op; the connector owns the client.
func (s *Saver) Close() error {
	return nil
}
