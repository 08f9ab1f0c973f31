//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package redis provides a Redis-backed session store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trpc.group/trpc-go/maintenance-agent-go/session"
)

var _ session.Store = (*Store)(nil)

const defaultKeyPrefix = "maintenance-agent:session:"

// Option configures the Store.
type Option func(*Store)

// WithKeyPrefix overrides the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// Store keeps sessions in Redis.
// storage structure:
// Session: prefix + "data" -> hash [threadID -> Session(json)]
// Index: prefix + "index" -> sorted set [member: threadID score: created_at]
type Store struct {
	client redis.UniversalClient
	prefix string
}

// New creates a store on an existing client. Close closes the client.
func New(client redis.UniversalClient, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	s := &Store{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) dataKey() string  { return s.prefix + "data" }
func (s *Store) indexKey() string { return s.prefix + "index" }

// Create implements session.Store.
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	if err := session.Prepare(sess); err != nil {
		return err
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.dataKey(), sess.ThreadID, data)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(sess.CreatedAt.UnixMilli()),
		Member: sess.ThreadID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis session store create failed: %w", err)
	}
	return nil
}

// UpdateStatus implements session.Store.
func (s *Store) UpdateStatus(ctx context.Context, threadID string, status session.Status, errMsg string) error {
	if !status.Valid() {
		return session.ErrInvalidStatus
	}
	sess, err := s.Get(ctx, threadID)
	if err != nil {
		return err
	}
	sess.Status = status
	sess.Error = errMsg
	sess.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.HSet(ctx, s.dataKey(), threadID, data).Err(); err != nil {
		return fmt.Errorf("redis session store update failed: %w", err)
	}
	return nil
}

// Get implements session.Store.
func (s *Store) Get(ctx context.Context, threadID string) (*session.Session, error) {
	if threadID == "" {
		return nil, session.ErrThreadIDRequired
	}
	data, err := s.client.HGet(ctx, s.dataKey(), threadID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("redis session store get failed: %w", err)
	}
	return decode(data)
}

// Recent implements session.Store.
func (s *Store) Recent(ctx context.Context, limit int) ([]*session.Session, error) {
	n := session.RecentLimit(limit)
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis session store list failed: %w", err)
	}
	if len(ids) == 0 {
		return []*session.Session{}, nil
	}
	values, err := s.client.HMGet(ctx, s.dataKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis session store list failed: %w", err)
	}
	out := make([]*session.Session, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		sess, err := decode([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func decode(data []byte) (*session.Session, error) {
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}
