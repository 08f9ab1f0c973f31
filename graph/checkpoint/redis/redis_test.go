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
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/maintenance-agent-go/graph"
)

func newTestSaver(t *testing.T, opts ...Option) (*Saver, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	opt, err := redis.ParseURL("redis://" + mr.Addr())
	require.NoError(t, err)
	s, err := NewSaver(redis.NewClient(opt), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func checkpointAt(step int) *graph.Checkpoint {
	cp := graph.NewCheckpoint("", json.RawMessage(fmt.Sprintf(`{"step":%d}`, step)))
	cp.Step = step
	cp.NextNode = "embed"
	return cp
}

func TestNewSaver_NilClient(t *testing.T) {
	_, err := NewSaver(nil)
	require.Error(t, err)
}

func TestRedisSaver_SaveLoad(t *testing.T) {
	s, mr := newTestSaver(t)
	ctx := context.Background()

	_, err := s.Load(ctx, "t1")
	require.ErrorIs(t, err, graph.ErrCheckpointNotFound)

	require.NoError(t, s.Save(ctx, "t1", checkpointAt(1)))
	require.NoError(t, s.Save(ctx, "t1", checkpointAt(2)))

	got, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Step)
	assert.Equal(t, "t1", got.ThreadID)
	assert.True(t, mr.Exists(defaultKeyPrefix+"t1"))
}

func TestRedisSaver_TrimAndList(t *testing.T) {
	s, _ := newTestSaver(t, WithMaxCheckpointsPerThread(3), WithKeyPrefix("cp:"))
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Save(ctx, "t", checkpointAt(i)))
	}
	all, err := s.List(ctx, "t", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int{5, 4, 3}, []int{all[0].Step, all[1].Step, all[2].Step})

	two, err := s.List(ctx, "t", 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, 5, two[0].Step)
	assert.Equal(t, 4, two[1].Step)
}

func TestRedisSaver_TTL(t *testing.T) {
	s, mr := newTestSaver(t, WithTTL(time.Minute))
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "t", checkpointAt(1)))
	mr.FastForward(2 * time.Minute)
	_, err := s.Load(ctx, "t")
	require.ErrorIs(t, err, graph.ErrCheckpointNotFound)
}

func TestRedisSaver_Delete(t *testing.T) {
	s, _ := newTestSaver(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "t", checkpointAt(1)))
	require.NoError(t, s.Delete(ctx, "t"))
	_, err := s.Load(ctx, "t")
	require.ErrorIs(t, err, graph.ErrCheckpointNotFound)
}

func TestRedisSaver_ThreadIDRequired(t *testing.T) {
	s, _ := newTestSaver(t)
	ctx := context.Background()
	require.ErrorIs(t, s.Save(ctx, "", checkpointAt(1)), graph.ErrThreadIDRequired)
	_, err := s.Load(ctx, "")
	require.ErrorIs(t, err, graph.ErrThreadIDRequired)
	_, err = s.List(ctx, "", 1)
	require.ErrorIs(t, err, graph.ErrThreadIDRequired)
	require.ErrorIs(t, s.Delete(ctx, ""), graph.ErrThreadIDRequired)
}

func TestRedisSaver_ResumeThroughGraph(t *testing.T) {
	s, _ := newTestSaver(t)
	type st struct{ N int }
	type up struct{ N *int }
	inc := func(ctx context.Context, v st) (up, error) {
		n := v.N + 1
		return up{N: &n}, nil
	}
	merge := func(v st, u up) st {
		if u.N != nil {
			v.N = *u.N
		}
		return v
	}
	r, err := graph.NewStateGraph(merge).
		AddNode("a", inc).
		AddNode("b", inc).
		AddEdge("a", "b").
		SetEntryPoint("a").
		SetFinishPoint("b").
		Compile(graph.WithCheckpointer(s))
	require.NoError(t, err)

	ctx := context.Background()
	out, err := r.Invoke(ctx, st{}, graph.Config{ThreadID: "g"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.N)

	list, err := s.List(ctx, "g", 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.True(t, list[0].Done())

	again, err := r.Resume(ctx, graph.Config{ThreadID: "g"})
	require.NoError(t, err)
	assert.Equal(t, 2, again.N)
}
