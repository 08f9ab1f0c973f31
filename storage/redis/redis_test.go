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
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetClientBuilder(t *testing.T) {
	oldBuilder := GetClientBuilder()
	defer SetClientBuilder(oldBuilder)

	invoked := false
	SetClientBuilder(func(opts ...ClientBuilderOpt) (redis.UniversalClient, error) {
		invoked = true
		return nil, nil
	})
	_, err := GetClientBuilder()(WithClientBuilderURL("redis://localhost:6379"))
	require.NoError(t, err)
	require.True(t, invoked)
}

func TestDefaultClientBuilder_EmptyURL(t *testing.T) {
	_, err := DefaultClientBuilder()
	require.EqualError(t, err, "redis: url is empty")
}

func TestDefaultClientBuilder_InvalidURL(t *testing.T) {
	_, err := DefaultClientBuilder(WithClientBuilderURL("127.0.0.1:6379"))
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "redis: parse url 127.0.0.1:6379:"))
}

func TestRegisterAndGetRedisInstance(t *testing.T) {
	RegisterRedisInstance("checkpoints", WithClientBuilderURL("redis://127.0.0.1:6379/1"))
	opts, ok := GetRedisInstance("checkpoints")
	require.True(t, ok)
	o := &ClientBuilderOpts{}
	for _, opt := range opts {
		opt(o)
	}
	assert.Equal(t, "redis://127.0.0.1:6379/1", o.URL)

	_, ok = GetRedisInstance("nope")
	assert.False(t, ok)
}

func TestOpen_URL(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Open(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestOpen_RegisteredName(t *testing.T) {
	mr := miniredis.RunT(t)
	RegisterRedisInstance("local-test", WithClientBuilderURL("redis://"+mr.Addr()), WithClientName("agent"))
	client, err := Open(context.Background(), "local-test")
	require.NoError(t, err)
	client.Close()
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), "unregistered")
	require.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = Open(context.Background(), "redis://"+addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: ping")
}
