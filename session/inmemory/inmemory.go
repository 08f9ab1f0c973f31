//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-process session store.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trpc.group/trpc-go/maintenance-agent-go/session"
)

var _ session.Store = (*Store)(nil)

// Store keeps sessions in a map guarded by a mutex.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// New creates an empty store.
func New() *Store {
	return &Store{sessions: make(map[string]*session.Session)}
}

// Create implements session.Store. An existing session of the same thread
// is replaced.
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	if err := session.Prepare(sess); err != nil {
		return err
	}
	c := *sess
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ThreadID] = &c
	return nil
}

// UpdateStatus implements session.Store.
func (s *Store) UpdateStatus(ctx context.Context, threadID string, status session.Status, errMsg string) error {
	if threadID == "" {
		return session.ErrThreadIDRequired
	}
	if !status.Valid() {
		return session.ErrInvalidStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[threadID]
	if !ok {
		return session.ErrNotFound
	}
	sess.Status = status
	sess.Error = errMsg
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

// Get implements session.Store.
func (s *Store) Get(ctx context.Context, threadID string) (*session.Session, error) {
	if threadID == "" {
		return nil, session.ErrThreadIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[threadID]
	if !ok {
		return nil, session.ErrNotFound
	}
	c := *sess
	return &c, nil
}

// Recent implements session.Store.
func (s *Store) Recent(ctx context.Context, limit int) ([]*session.Session, error) {
	s.mu.RLock()
	out := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		c := *sess
		out = append(out, &c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ThreadID < out[j].ThreadID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if n := session.RecentLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Close implements session.Store.
func (s *Store) Close() error { return nil }
