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
	"strconv"
	"strings"
	"time"

	"trpc.group/trpc-go/maintenance-agent-go/log"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type envBinding struct {
	keys  []string
	apply func(c *Config, v string) error
}

func str(set func(c *Config, v string)) func(*Config, string) error {
	return func(c *Config, v string) error {
		set(c, v)
		return nil
	}
}

func integer(set func(c *Config, v int)) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		set(c, n)
		return nil
	}
}

// envBindings lists the supported environment overrides. The upper-case
// MDB_* and model names are the keys of the legacy flat config file.
var envBindings = []envBinding{
	{[]string{"MONGODB_URI"}, str(func(c *Config, v string) { c.MongoDB.URI = v })},
	{[]string{"DATABASE_NAME"}, str(func(c *Config, v string) { c.MongoDB.Database = v })},
	{[]string{"APP_NAME"}, str(func(c *Config, v string) { c.MongoDB.AppName = v })},
	{[]string{"MDB_TIMESERIES_COLLECTION", "MDB_DATA_COLLECTION"}, str(func(c *Config, v string) { c.Collections.Telemetry = v })},
	{[]string{"MDB_EMBEDDINGS_COLLECTION", "MDB_VECTORS_COLLECTION"}, str(func(c *Config, v string) { c.Collections.Vectors = v })},
	{[]string{"MDB_LOGS_COLLECTION"}, str(func(c *Config, v string) { c.Collections.Logs = v })},
	{[]string{"MDB_HISTORICAL_RECOMMENDATIONS_COLLECTION"}, str(func(c *Config, v string) { c.Collections.Recommendations = v })},
	{[]string{"MDB_CHECKPOINTER_COLLECTION"}, str(func(c *Config, v string) { c.Collections.Checkpoints = v })},
	{[]string{"MDB_AGENT_SESSIONS_COLLECTION"}, str(func(c *Config, v string) { c.Collections.Sessions = v })},
	{[]string{"MDB_VECTOR_SEARCH_INDEX"}, str(func(c *Config, v string) { c.VectorSearch.Index = v })},
	{[]string{"EMBEDDING_KEY"}, str(func(c *Config, v string) { c.VectorSearch.EmbeddingKey = v })},
	{[]string{"EMBEDDING_DIMENSIONS"}, integer(func(c *Config, v int) { c.VectorSearch.Dimensions = v })},
	{[]string{"MODEL_PROVIDER"}, str(func(c *Config, v string) { c.Models.Provider = v })},
	{[]string{"EMBEDDINGS_PROVIDER"}, str(func(c *Config, v string) { c.Models.EmbeddingProvider = v })},
	{[]string{"CHATCOMPLETIONS_MODEL_NAME"}, str(func(c *Config, v string) { c.Models.ChatModel = v })},
	{[]string{"EMBEDDINGS_MODEL_NAME"}, str(func(c *Config, v string) { c.Models.EmbeddingModel = v })},
	{[]string{"MODEL_TIMEOUT"}, func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.Models.Timeout = d
		return nil
	}},
	{[]string{"OPENAI_API_KEY"}, str(func(c *Config, v string) { c.Models.OpenAI.APIKey = v })},
	{[]string{"OPENAI_BASE_URL"}, str(func(c *Config, v string) { c.Models.OpenAI.BaseURL = v })},
	{[]string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}, str(func(c *Config, v string) { c.Models.Gemini.APIKey = v })},
	{[]string{"AGENT_PROFILE_CHOSEN"}, str(func(c *Config, v string) { c.Agent.ProfileChosen = v })},
	{[]string{"AGENT_MOTIVE"}, str(func(c *Config, v string) { c.Agent.Motive = v })},
	{[]string{"AGENT_DATA_CONSUMED"}, str(func(c *Config, v string) { c.Agent.DataConsumed = v })},
	{[]string{"SEVERITY_MODE"}, str(func(c *Config, v string) { c.Workflow.SeverityMode = v })},
	{[]string{"TELEMETRY_SOURCE"}, str(func(c *Config, v string) { c.Workflow.TelemetrySource = v })},
	{[]string{"CSV_DATA"}, str(func(c *Config, v string) { c.Workflow.CSVPath = v })},
	{[]string{"CSV_TO_VECTORIZE"}, str(func(c *Config, v string) { c.Data.IssuesCSV = v })},
	{[]string{"CHECKPOINT_BACKEND"}, str(func(c *Config, v string) { c.Checkpoint.Backend = v })},
	{[]string{"REDIS_URL"}, str(func(c *Config, v string) { c.Checkpoint.RedisURL = v })},
	{[]string{"POSTGRES_DSN"}, str(func(c *Config, v string) { c.Checkpoint.PostgresDSN = v })},
	{[]string{"SQLITE_PATH"}, str(func(c *Config, v string) { c.Checkpoint.SQLitePath = v })},
	{[]string{"SERVER_ADDR"}, str(func(c *Config, v string) { c.Server.Addr = v })},
	{[]string{"CORS_ALLOWED_ORIGINS"}, str(func(c *Config, v string) {
		c.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	})},
	{[]string{"LOG_LEVEL"}, str(func(c *Config, v string) { c.Log.Level = v })},
	{[]string{"OTEL_ENABLED"}, func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Telemetry.Enabled = b
		return nil
	}},
}

// ApplyEnv applies environment overrides to cfg. When several keys are
// bound to one setting the first one set wins. Unparsable values are
// logged and ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	for _, b := range envBindings {
		for _, key := range b.keys {
			v, ok := lookup(key)
			if !ok || v == "" {
				continue
			}
			if err := b.apply(cfg, v); err != nil {
				log.Warnf("ignoring %s=%q: %v", key, v, err)
			}
			break
		}
	}
}
