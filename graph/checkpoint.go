//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Checkpoint sources.
const (
	// CheckpointSourceInput marks the snapshot taken before the first step.
	CheckpointSourceInput = "input"
	// CheckpointSourceLoop marks a snapshot taken after a step.
	CheckpointSourceLoop = "loop"
)

// DefaultMaxCheckpointsPerThread is the default number of checkpoints an
// in-process saver keeps for one thread.
const DefaultMaxCheckpointsPerThread = 100

// Checkpoint is a snapshot of a run's state at a step boundary.
type Checkpoint struct {
	// ID is the unique identifier for this checkpoint.
	ID string `json:"id"`
	// ThreadID is the run the checkpoint belongs to.
	ThreadID string `json:"thread_id"`
	// ParentID is the checkpoint this one follows, empty for the first.
	ParentID string `json:"parent_id,omitempty"`
	// Source is one of the CheckpointSource constants.
	Source string `json:"source"`
	// Step is the number of steps executed when the snapshot was taken.
	Step int `json:"step"`
	// Node is the node that just ran, empty for the input snapshot.
	Node string `json:"node,omitempty"`
	// NextNode is where execution continues; End when the run finished.
	NextNode string `json:"next_node"`
	// State is the JSON-encoded state.
	State json.RawMessage `json:"state"`
	// Timestamp is when the checkpoint was created.
	Timestamp time.Time `json:"ts"`
}

// Done reports whether the checkpoint was taken after the run reached End.
func (c *Checkpoint) Done() bool {
	return c.NextNode == End
}

// NewCheckpoint creates a checkpoint for the thread with a fresh ID.
func NewCheckpoint(threadID string, state json.RawMessage) *Checkpoint {
	return &Checkpoint{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		State:     state,
		Timestamp: time.Now().UTC(),
	}
}

// Checkpointer stores run snapshots keyed by thread id. Writes for
// different threads never interact.
type Checkpointer interface {
	// Save stores a checkpoint for the thread.
	Save(ctx context.Context, threadID string, checkpoint *Checkpoint) error
	// Load returns the latest checkpoint for the thread or
	// ErrCheckpointNotFound.
	Load(ctx context.Context, threadID string) (*Checkpoint, error)
	// List returns checkpoints for the thread, newest first. A limit of
	// zero or less returns all of them.
	List(ctx context.Context, threadID string, limit int) ([]*Checkpoint, error)
	// Delete removes every checkpoint of the thread.
	Delete(ctx context.Context, threadID string) error
	// Close releases resources held by the checkpointer.
	Close() error
}

// Config configures a single run.
type Config struct {
	// ThreadID correlates the run with its checkpoints.
	ThreadID string
}
