//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // Import SQLite driver.

	"trpc.group/trpc-go/maintenance-agent-go/config"
	"trpc.group/trpc-go/maintenance-agent-go/dataset"
	"trpc.group/trpc-go/maintenance-agent-go/diagnosis"
	"trpc.group/trpc-go/maintenance-agent-go/graph"
	cpinmemory "trpc.group/trpc-go/maintenance-agent-go/graph/checkpoint/inmemory"
	cpmongodb "trpc.group/trpc-go/maintenance-agent-go/graph/checkpoint/mongodb"
	cppostgres "trpc.group/trpc-go/maintenance-agent-go/graph/checkpoint/postgres"
	cpredis "trpc.group/trpc-go/maintenance-agent-go/graph/checkpoint/redis"
	cpsqlite "trpc.group/trpc-go/maintenance-agent-go/graph/checkpoint/sqlite"
	"trpc.group/trpc-go/maintenance-agent-go/knowledge/embedder"
	geminiembedder "trpc.group/trpc-go/maintenance-agent-go/knowledge/embedder/gemini"
	openaiembedder "trpc.group/trpc-go/maintenance-agent-go/knowledge/embedder/openai"
	"trpc.group/trpc-go/maintenance-agent-go/knowledge/vectorstore"
	vsmongodb "trpc.group/trpc-go/maintenance-agent-go/knowledge/vectorstore/mongodb"
	"trpc.group/trpc-go/maintenance-agent-go/log"
	"trpc.group/trpc-go/maintenance-agent-go/model"
	"trpc.group/trpc-go/maintenance-agent-go/model/gemini"
	"trpc.group/trpc-go/maintenance-agent-go/model/openai"
	"trpc.group/trpc-go/maintenance-agent-go/persistence"
	pinmemory "trpc.group/trpc-go/maintenance-agent-go/persistence/inmemory"
	pmongodb "trpc.group/trpc-go/maintenance-agent-go/persistence/mongodb"
	"trpc.group/trpc-go/maintenance-agent-go/session"
	sinmemory "trpc.group/trpc-go/maintenance-agent-go/session/inmemory"
	smongodb "trpc.group/trpc-go/maintenance-agent-go/session/mongodb"
	sredis "trpc.group/trpc-go/maintenance-agent-go/session/redis"
	"trpc.group/trpc-go/maintenance-agent-go/storage/mongodb"
	"trpc.group/trpc-go/maintenance-agent-go/storage/postgres"
	"trpc.group/trpc-go/maintenance-agent-go/storage/redis"
	"trpc.group/trpc-go/maintenance-agent-go/telemetry"
)

// Components is everything FromConfig wires together. Close releases
// them in reverse order of creation.
type Components struct {
	Config       *config.Config
	Mongo        *mongodb.Connector
	ChatModel    model.Model
	Embedder     embedder.Embedder
	VectorStore  vectorstore.VectorStore
	Telemetry    diagnosis.TelemetrySource
	Store        persistence.Store
	Checkpointer graph.Checkpointer
	Sessions     session.Store
	Metrics      *telemetry.StepMetrics
	Workflow     *diagnosis.Runnable
	Runner       *Runner

	closers []func(ctx context.Context) error
}

// FromConfig builds the runner and its collaborators from cfg. On error
// whatever was already opened is closed.
func FromConfig(ctx context.Context, cfg *config.Config) (c *Components, err error) {
	if cfg == nil {
		return nil, errors.New("runner: config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c = &Components{Config: cfg}
	defer func() {
		if err != nil {
			if cerr := c.Close(ctx); cerr != nil {
				log.Warnf("closing partially built components: %v", cerr)
			}
			c = nil
		}
	}()

	if cfg.MongoDB.URI != "" {
		c.Mongo, err = mongodb.Connect(ctx, cfg.MongoDB.Database,
			mongodb.WithClientBuilderURI(cfg.MongoDB.URI),
			mongodb.WithClientBuilderAppName(cfg.MongoDB.AppName))
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		c.addCloser(c.Mongo.Disconnect)
	}
	if c.ChatModel, err = NewChatModel(ctx, cfg); err != nil {
		return nil, err
	}
	if c.Embedder, err = NewEmbedder(ctx, cfg); err != nil {
		return nil, err
	}
	if err = c.buildStores(ctx); err != nil {
		return nil, err
	}
	if c.Checkpointer, err = c.newCheckpointer(ctx); err != nil {
		return nil, err
	}
	c.addCloser(func(context.Context) error { return c.Checkpointer.Close() })
	if c.Sessions, err = c.newSessionStore(ctx); err != nil {
		return nil, err
	}
	c.addCloser(func(context.Context) error { return c.Sessions.Close() })
	if c.Metrics, err = telemetry.NewStepMetrics(telemetry.Meter); err != nil {
		return nil, err
	}

	severity, err := diagnosis.ParseSeverityMode(cfg.Workflow.SeverityMode)
	if err != nil {
		return nil, err
	}
	profile := cfg.Profile()
	c.Workflow, err = diagnosis.Build(diagnosis.Dependencies{
		ChatModel:   c.ChatModel,
		Embedder:    c.Embedder,
		VectorStore: c.VectorStore,
		Telemetry:   c.Telemetry,
		Store:       c.Store,
	},
		diagnosis.WithProfile(diagnosis.Profile{
			Name:    profile.Name,
			Profile: profile.Profile,
			Rules:   profile.Rules,
			Goals:   profile.Goals,
		}),
		diagnosis.WithMotive(cfg.Agent.Motive),
		diagnosis.WithDataConsumed(cfg.Agent.DataConsumed),
		diagnosis.WithModelNames(cfg.Models.ChatModel, cfg.Models.EmbeddingModel),
		diagnosis.WithVectorCollection(cfg.Collections.Vectors),
		diagnosis.WithSearchLimits(cfg.VectorSearch.NumCandidates, cfg.VectorSearch.Limit),
		diagnosis.WithDimensions(cfg.VectorSearch.Dimensions),
		diagnosis.WithSeverityMode(severity),
		diagnosis.WithCallTimeout(cfg.Models.Timeout),
		diagnosis.WithRetryPolicy(graph.WithSimpleRetry(cfg.Models.MaxAttempts)),
		diagnosis.WithCompileOptions(
			graph.WithCheckpointer(c.Checkpointer),
			graph.WithMaxSteps(cfg.Workflow.MaxSteps),
			graph.WithNodeCallbacks(StepCallbacks(c.Metrics)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build workflow: %w", err)
	}
	c.Runner, err = New(c.Workflow,
		WithSessionStore(c.Sessions),
		WithRunDocuments(c.Store),
		WithMetrics(c.Metrics),
		WithEmbeddingKey(cfg.VectorSearch.EmbeddingKey),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewChatModel creates the configured chat model.
func NewChatModel(ctx context.Context, cfg *config.Config) (model.Model, error) {
	switch cfg.Models.Provider {
	case config.ProviderGemini:
		m, err := gemini.New(ctx, cfg.Models.ChatModel, gemini.WithAPIKey(cfg.Models.Gemini.APIKey))
		if err != nil {
			return nil, fmt.Errorf("create gemini model: %w", err)
		}
		return m, nil
	case config.ProviderOpenAI:
		opts := []openai.Option{openai.WithAPIKey(cfg.Models.OpenAI.APIKey)}
		if cfg.Models.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Models.OpenAI.BaseURL))
		}
		return openai.New(cfg.Models.ChatModel, opts...), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Models.Provider)
	}
}

// NewEmbedder creates the configured embedder.
func NewEmbedder(ctx context.Context, cfg *config.Config) (embedder.Embedder, error) {
	switch cfg.EmbeddingProvider() {
	case config.ProviderGemini:
		e, err := geminiembedder.New(ctx,
			geminiembedder.WithModel(cfg.Models.EmbeddingModel),
			geminiembedder.WithDimensions(cfg.VectorSearch.Dimensions),
			geminiembedder.WithAPIKey(cfg.Models.Gemini.APIKey))
		if err != nil {
			return nil, fmt.Errorf("create gemini embedder: %w", err)
		}
		return e, nil
	case config.ProviderOpenAI:
		opts := []openaiembedder.Option{
			openaiembedder.WithModel(cfg.Models.EmbeddingModel),
			openaiembedder.WithDimensions(cfg.VectorSearch.Dimensions),
			openaiembedder.WithAPIKey(cfg.Models.OpenAI.APIKey),
		}
		if cfg.Models.OpenAI.BaseURL != "" {
			opts = append(opts, openaiembedder.WithBaseURL(cfg.Models.OpenAI.BaseURL))
		}
		return openaiembedder.New(opts...), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider())
	}
}

func (c *Components) buildStores(ctx context.Context) error {
	cfg := c.Config
	switch cfg.Workflow.TelemetrySource {
	case config.SourceMongoDB:
		if c.Mongo == nil {
			return errors.New("mongodb telemetry source requires mongodb.uri")
		}
		src, err := dataset.NewMongoSource(c.Mongo.Collection(cfg.Collections.Telemetry))
		if err != nil {
			return err
		}
		c.Telemetry = src
	default:
		c.Telemetry = dataset.NewCSVSource(cfg.Workflow.CSVPath)
	}

	if c.Mongo == nil {
		log.Warn("[MongoDB] no connection configured; run documents are kept in memory and vector search is disabled")
		c.Store = pinmemory.New()
		return nil
	}
	vs, err := vsmongodb.New(c.Mongo.Collection(cfg.Collections.Vectors), vsmongodb.WithIndex(cfg.VectorSearch.Index))
	if err != nil {
		return err
	}
	c.VectorStore = vs
	store, err := pmongodb.New(c.Mongo, pmongodb.Collections{
		Telemetry:       cfg.Collections.Telemetry,
		Logs:            cfg.Collections.Logs,
		Recommendations: cfg.Collections.Recommendations,
	})
	if err != nil {
		return err
	}
	c.Store = store
	return nil
}

func (c *Components) newCheckpointer(ctx context.Context) (graph.Checkpointer, error) {
	cfg := c.Config.Checkpoint
	switch cfg.Backend {
	case config.BackendMemory:
		return cpinmemory.NewSaver().WithMaxCheckpointsPerThread(cfg.MaxPerRun), nil
	case config.BackendSQLite:
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		saver, err := cpsqlite.NewSaver(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return saver, nil
	case config.BackendRedis:
		client, err := redis.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		saver, err := cpredis.NewSaver(client, cpredis.WithMaxCheckpointsPerThread(cfg.MaxPerRun))
		if err != nil {
			client.Close()
			return nil, err
		}
		return saver, nil
	case config.BackendPostgres:
		client, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		saver, err := cppostgres.NewSaver(ctx, client)
		if err != nil {
			client.Close()
			return nil, err
		}
		return saver, nil
	case config.BackendMongoDB:
		if c.Mongo == nil {
			return nil, errors.New("mongodb checkpoint backend requires mongodb.uri")
		}
		return cpmongodb.NewSaver(ctx, c.Mongo.Collection(c.Config.Collections.Checkpoints))
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}

// newSessionStore keeps sessions next to the checkpoints when they live in
// redis, otherwise in MongoDB when connected, else in memory.
func (c *Components) newSessionStore(ctx context.Context) (session.Store, error) {
	cfg := c.Config
	switch {
	case cfg.Checkpoint.Backend == config.BackendRedis:
		client, err := redis.Open(ctx, cfg.Checkpoint.RedisURL)
		if err != nil {
			return nil, err
		}
		store, err := sredis.New(client)
		if err != nil {
			client.Close()
			return nil, err
		}
		return store, nil
	case c.Mongo != nil:
		return smongodb.New(ctx, c.Mongo.Collection(cfg.Collections.Sessions))
	default:
		return sinmemory.New(), nil
	}
}

func (c *Components) addCloser(fn func(ctx context.Context) error) {
	c.closers = append(c.closers, fn)
}

// Close releases every opened resource.
func (c *Components) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
