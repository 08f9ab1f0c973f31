//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package redis provides a Redis-backed checkpointer. Each thread is a
// Redis list of JSON-encoded checkpoints in save order.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trpc.group/trpc-go/maintenance-agent-go/graph"
)

const defaultKeyPrefix = "maintenance-agent:checkpoint:"

// Option configures the Saver.
type Option func(*Saver)

// WithKeyPrefix overrides the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Saver) {
		s.prefix = prefix
	}
}

// WithTTL expires a thread's checkpoints ttl after its last save.
func WithTTL(ttl time.Duration) Option {
	return func(s *Saver) {
		s.ttl = ttl
	}
}

// WithMaxCheckpointsPerThread sets how many checkpoints are kept per thread.
// Zero keeps everything.
func WithMaxCheckpointsPerThread(n int) Option {
	return func(s *Saver) {
		s.maxPerThread = n
	}
}

// Saver stores checkpoints in Redis.
type Saver struct {
	client       redis.UniversalClient
	prefix       string
	ttl          time.Duration
	maxPerThread int
}

// NewSaver creates a saver on an existing client. Close closes the client.
func NewSaver(client redis.UniversalClient, opts ...Option) (*Saver, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	s := &Saver{
		client:       client,
		prefix:       defaultKeyPrefix,
		maxPerThread: graph.DefaultMaxCheckpointsPerThread,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Saver) key(threadID string) string {
	return s.prefix + threadID
}

// Save appends the checkpoint to the thread list and trims old entries.
func (s *Saver) Save(ctx context.Context, threadID string, cp *graph.Checkpoint) error {
	if threadID == "" {
		return graph.ErrThreadIDRequired
	}
	c := *cp
	c.ThreadID = threadID
	data, err := json.Marshal(&c)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	key := s.key(threadID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.maxPerThread > 0 {
		pipe.LTrim(ctx, key, int64(-s.maxPerThread), -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save checkpoint: %w", err)
	}
	return nil
}

// Load returns the last checkpoint of the thread.
func (s *Saver) Load(ctx context.Context, threadID string) (*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	data, err := s.client.LIndex(ctx, s.key(threadID), -1).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, graph.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("redis load checkpoint: %w", err)
	}
	return decode(data)
}

// List returns checkpoints of the thread, newest first.
func (s *Saver) List(ctx context.Context, threadID string, limit int) ([]*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	items, err := s.client.LRange(ctx, s.key(threadID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list checkpoints: %w", err)
	}
	out := make([]*graph.Checkpoint, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		cp, err := decode([]byte(items[i]))
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// Delete removes the thread list.
func (s *Saver) Delete(ctx context.Context, threadID string) error {
	if threadID == "" {
		return graph.ErrThreadIDRequired
	}
	if err := s.client.Del(ctx, s.key(threadID)).Err(); err != nil {
		return fmt.Errorf("redis delete checkpoints: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *Saver) Close() error {
	return s.client.Close()
}

func decode(data []byte) (*graph.Checkpoint, error) {
	var cp graph.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}
