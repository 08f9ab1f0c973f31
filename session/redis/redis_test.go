//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/maintenance-agent-go/session"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	opt, err := redis.ParseURL("redis://" + mr.Addr())
	require.NoError(t, err)
	s, err := New(redis.NewClient(opt), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestNew_NilClient(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestStore_CreateGetUpdate(t *testing.T) {
	s, mr := newTestStore(t, WithKeyPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, session.New("t1", "engine noise")))
	assert.True(t, mr.Exists("test:data"))
	assert.True(t, mr.Exists("test:index"))

	require.NoError(t, s.UpdateStatus(ctx, "t1", session.StatusCompleted, ""))
	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "engine noise", got.IssueReport)
	assert.Equal(t, session.StatusCompleted, got.Status)
}

func TestStore_Errors(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, session.ErrNotFound)
	require.ErrorIs(t, s.UpdateStatus(ctx, "missing", session.StatusFailed, "x"), session.ErrNotFound)
	require.ErrorIs(t, s.UpdateStatus(ctx, "t", "paused", ""), session.ErrInvalidStatus)
	require.ErrorIs(t, s.Create(ctx, &session.Session{}), session.ErrThreadIDRequired)
}

func TestStore_Recent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	base := time.Date(2025, 2, 19, 13, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		require.NoError(t, s.Create(ctx, &session.Session{
			ThreadID:  fmt.Sprintf("t%02d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	recent, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, session.DefaultRecentLimit)
	assert.Equal(t, "t11", recent[0].ThreadID)
	assert.Equal(t, "t02", recent[9].ThreadID)
	assert.True(t, base.Add(11*time.Minute).Equal(recent[0].CreatedAt))
}
