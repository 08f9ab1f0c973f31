//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-process checkpointer.
package inmemory

import (
	"context"
	"sync"

	"trpc.group/trpc-go/maintenance-agent-go/graph"
)

// Saver keeps checkpoints in memory, in save order per thread.
// This is suitable for testing and single-process use; checkpoints do not
// survive a restart.
type Saver struct {
	mu      sync.RWMutex
	threads map[string][]*graph.Checkpoint
	// maxCheckpointsPerThread limits the number of checkpoints kept per thread.
	maxCheckpointsPerThread int
}

// NewSaver creates a new in-memory checkpoint saver.
func NewSaver() *Saver {
	return &Saver{
		threads:                 make(map[string][]*graph.Checkpoint),
		maxCheckpointsPerThread: graph.DefaultMaxCheckpointsPerThread,
	}
}

// WithMaxCheckpointsPerThread sets the maximum number of checkpoints per thread.
func (s *Saver) WithMaxCheckpointsPerThread(max int) *Saver {
	s.maxCheckpointsPerThread = max
	return s
}

// Save stores a copy of the checkpoint, evicting the oldest ones beyond
// the per-thread limit.
func (s *Saver) Save(_ context.Context, threadID string, cp *graph.Checkpoint) error {
	if threadID == "" {
		return graph.ErrThreadIDRequired
	}
	c := clone(cp)
	c.ThreadID = threadID

	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.threads[threadID], c)
	if s.maxCheckpointsPerThread > 0 && len(list) > s.maxCheckpointsPerThread {
		list = list[len(list)-s.maxCheckpointsPerThread:]
	}
	s.threads[threadID] = list
	return nil
}

// Load returns the most recently saved checkpoint of the thread.
func (s *Saver) Load(_ context.Context, threadID string) (*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.threads[threadID]
	if len(list) == 0 {
		return nil, graph.ErrCheckpointNotFound
	}
	return clone(list[len(list)-1]), nil
}

// List returns checkpoints of the thread, newest first.
func (s *Saver) List(_ context.Context, threadID string, limit int) ([]*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.threads[threadID]
	out := make([]*graph.Checkpoint, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, clone(list[i]))
	}
	return out, nil
}

// Delete removes all checkpoints of the thread.
func (s *Saver) Delete(_ context.Context, threadID string) error {
	if threadID == "" {
		return graph.ErrThreadIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

// Close is a no-op for the in-memory saver.
func (s *Saver) Close() error {
	return nil
}

func clone(cp *graph.Checkpoint) *graph.Checkpoint {
	c := *cp
	c.State = append([]byte(nil), cp.State...)
	return &c
}
