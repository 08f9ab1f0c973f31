//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
mongodb:
  uri: mongodb://localhost:27017
  database: fleet
collections:
  vectors: past_issues
vector_search:
  index: issues_idx
models:
  provider: gemini
  timeout: 45s
agent:
  profile_chosen: strict
  profiles:
    - name: strict
      profile: Strict mechanic
      rules: No guessing
      goals: Safety first
workflow:
  severity_mode: branch
`

func envOf(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault_IsValidWithURI(t *testing.T) {
	cfg := Default()
	cfg.MongoDB.URI = "mongodb://localhost:27017"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "logs", cfg.Collections.Logs)
	assert.Equal(t, "historical_recommendations", cfg.Collections.Recommendations)
	assert.Equal(t, "checkpoints", cfg.Collections.Checkpoints)
	assert.Equal(t, "agent_sessions", cfg.Collections.Sessions)
	assert.Equal(t, "vector_index", cfg.VectorSearch.Index)
	assert.Equal(t, 1024, cfg.VectorSearch.Dimensions)
	assert.Equal(t, SeverityModeCosmetic, cfg.Workflow.SeverityMode)
}

func TestDecode_MergesOverDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, Decode([]byte(sampleYAML), cfg))

	assert.Equal(t, "fleet", cfg.MongoDB.Database)
	assert.Equal(t, "past_issues", cfg.Collections.Vectors)
	assert.Equal(t, "logs", cfg.Collections.Logs)
	assert.Equal(t, "issues_idx", cfg.VectorSearch.Index)
	assert.Equal(t, ProviderGemini, cfg.Models.Provider)
	assert.Equal(t, 45*time.Second, cfg.Models.Timeout)
	assert.Equal(t, SeverityModeBranch, cfg.Workflow.SeverityMode)

	p := cfg.Profile()
	assert.Equal(t, "Strict mechanic", p.Profile)
	assert.Equal(t, "Safety first", p.Goals)
}

func TestDecode_UnknownKey(t *testing.T) {
	err := Decode([]byte("workflow:\n  severity: branch\n"), Default())
	require.Error(t, err)
}

func TestDecode_Empty(t *testing.T) {
	cfg := Default()
	require.NoError(t, Decode([]byte(""), cfg))
	assert.Equal(t, Default(), cfg)
}

func TestProfile_FallsBackToDefault(t *testing.T) {
	cfg := Default()
	cfg.Agent.ProfileChosen = "missing"
	assert.Equal(t, DefaultProfile, cfg.Profile())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	ApplyEnv(cfg, envOf(map[string]string{
		"MONGODB_URI":               "mongodb://env:27017",
		"MDB_VECTOR_SEARCH_INDEX":   "env_index",
		"MDB_VECTORS_COLLECTION":    "from_vectors",
		"MDB_EMBEDDINGS_COLLECTION": "from_embeddings",
		"EMBEDDING_DIMENSIONS":      "not-a-number",
		"MODEL_TIMEOUT":             "5s",
		"GEMINI_API_KEY":            "g-key",
		"OTEL_ENABLED":              "true",
		"CORS_ALLOWED_ORIGINS":      "http://localhost:3000, https://ops.example",
	}))
	assert.Equal(t, "mongodb://env:27017", cfg.MongoDB.URI)
	assert.Equal(t, "env_index", cfg.VectorSearch.Index)
	assert.Equal(t, "from_embeddings", cfg.Collections.Vectors)
	assert.Equal(t, 1024, cfg.VectorSearch.Dimensions)
	assert.Equal(t, 5*time.Second, cfg.Models.Timeout)
	assert.Equal(t, "g-key", cfg.Models.Gemini.APIKey)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, []string{"http://localhost:3000", "https://ops.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, []string{"*"}, Default().Server.AllowedOrigins)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))
	t.Setenv("DATABASE_NAME", "from_env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.MongoDB.Database)
	assert.Equal(t, "issues_idx", cfg.VectorSearch.Index)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"memory backend without uri", func(c *Config) { c.Checkpoint.Backend = BackendMemory }, true},
		{"mongo backend without uri", func(c *Config) {}, false},
		{"bad severity mode", func(c *Config) {
			c.Checkpoint.Backend = BackendMemory
			c.Workflow.SeverityMode = "loud"
		}, false},
		{"redis without url", func(c *Config) { c.Checkpoint.Backend = BackendRedis }, false},
		{"postgres with dsn", func(c *Config) {
			c.Checkpoint.Backend = BackendPostgres
			c.Checkpoint.PostgresDSN = "postgres://localhost/db"
		}, true},
		{"unknown provider", func(c *Config) {
			c.Checkpoint.Backend = BackendMemory
			c.Models.Provider = "bedrock"
		}, false},
		{"mongo source without uri", func(c *Config) {
			c.Checkpoint.Backend = BackendMemory
			c.Workflow.TelemetrySource = SourceMongoDB
		}, false},
		{"sample ratio above one", func(c *Config) {
			c.Checkpoint.Backend = BackendMemory
			c.Telemetry.SampleRatio = 1.5
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestEmbeddingProvider(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ProviderOpenAI, cfg.EmbeddingProvider())
	cfg.Models.EmbeddingProvider = ProviderGemini
	assert.Equal(t, ProviderGemini, cfg.EmbeddingProvider())
}

func TestLoad_NoPath(t *testing.T) {
	_, err := Load("")
	require.NoError(t, err)
}
