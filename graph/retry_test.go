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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

func TestRetryPolicy_NextDelay(t *testing.T) {
	p := RetryPolicy{
		InitialInterval: 100 * time.Millisecond,
		BackoffFactor:   2,
		MaxInterval:     time.Second,
	}
	assert.Equal(t, 100*time.Millisecond, p.NextDelay(0))
	assert.Equal(t, 100*time.Millisecond, p.NextDelay(1))
	assert.Equal(t, 200*time.Millisecond, p.NextDelay(2))
	assert.Equal(t, 400*time.Millisecond, p.NextDelay(3))
	assert.Equal(t, time.Second, p.NextDelay(10))
}

func TestRetryPolicy_NextDelayJitterBounds(t *testing.T) {
	p := RetryPolicy{InitialInterval: 10 * time.Millisecond, Jitter: true}
	for i := 0; i < 50; i++ {
		d := p.NextDelay(1)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 20*time.Millisecond)
	}
}

func TestDefaultTransientCondition(t *testing.T) {
	cond := DefaultTransientCondition()
	assert.True(t, cond.Match(context.DeadlineExceeded))
	assert.True(t, cond.Match(timeoutErr{}))
	assert.False(t, cond.Match(errors.New("bad request")))
	assert.False(t, cond.Match(nil))
}

func TestRetryOnErrors(t *testing.T) {
	sentinel := errors.New("sentinel")
	cond := RetryOnErrors(nil, sentinel)
	assert.True(t, cond.Match(errors.Join(errors.New("wrapped"), sentinel)))
	assert.False(t, cond.Match(errors.New("other")))
}

func TestDo_RetriesTransientErrors(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		RetryOn:         []RetryCondition{DefaultTransientCondition()},
	}
	calls := 0
	got, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", timeoutErr{}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	p := WithSimpleRetry(5)
	permanent := errors.New("permanent")
	calls := 0
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_PerAttemptTimeout(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 1, PerAttemptTimeout: 10 * time.Millisecond}
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_MaxElapsedTime(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:     10,
		InitialInterval: 50 * time.Millisecond,
		MaxElapsedTime:  20 * time.Millisecond,
		RetryOn:         []RetryCondition{DefaultTransientCondition()},
	}
	calls := 0
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 0, timeoutErr{}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		RetryOn:         []RetryCondition{DefaultTransientCondition()},
	}
	ctx, cancel := context.WithCancel(context.Background())
	_, err := Do(ctx, p, func(ctx context.Context) (int, error) {
		cancel()
		return 0, timeoutErr{}
	})
	require.Error(t, err)
}
