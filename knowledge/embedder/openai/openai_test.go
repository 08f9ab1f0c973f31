//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/maintenance-agent-go/knowledge/embedder"
)

func TestNew_Defaults(t *testing.T) {
	e := New()
	assert.Equal(t, DefaultModel, e.model)
	assert.Equal(t, embedder.DefaultDimensions, e.GetDimensions())

	e = New(WithModel("text-embedding-3-large"), WithDimensions(256), WithModel(""), WithDimensions(0))
	assert.Equal(t, "text-embedding-3-large", e.model)
	assert.Equal(t, 256, e.GetDimensions())
}

func TestGetEmbedding(t *testing.T) {
	var seen map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  DefaultModel,
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float64{0.1, 0.2, 0.3}},
			},
			"usage": map[string]any{"prompt_tokens": 2, "total_tokens": 2},
		})
	}))
	defer srv.Close()

	e := New(WithAPIKey("test-key"), WithBaseURL(srv.URL))
	vec, err := e.GetEmbedding(context.Background(), "engine noise")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "engine noise", seen["input"])
	assert.EqualValues(t, embedder.DefaultDimensions, seen["dimensions"])
}

func TestGetEmbedding_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[],"usage":{"prompt_tokens":0,"total_tokens":0}}`))
	}))
	defer srv.Close()

	vec, err := New(WithAPIKey("k"), WithBaseURL(srv.URL)).GetEmbedding(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, vec)
}

func TestGetEmbedding_Errors(t *testing.T) {
	_, err := New().GetEmbedding(context.Background(), "")
	require.ErrorIs(t, err, embedder.ErrEmptyText)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()
	_, err = New(WithAPIKey("k"), WithBaseURL(srv.URL)).GetEmbedding(context.Background(), "x")
	require.Error(t, err)
}
