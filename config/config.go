//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads the maintenance agent configuration.
//
// A YAML file is decoded into a generic map, the map is decoded into Config
// with mapstructure, and environment variables are applied last. Keys not
// present in the file keep the values from Default.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Severity routing modes.
const (
	SeverityModeCosmetic = "cosmetic"
	SeverityModeBranch   = "branch"
)

// Telemetry sources.
const (
	SourceCSV     = "csv"
	SourceMongoDB = "mongodb"
)

// Model providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Checkpoint backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMongoDB  = "mongodb"
)

// ErrInvalidConfig is wrapped by every error returned from Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full agent configuration.
type Config struct {
	MongoDB      MongoDBConfig      `mapstructure:"mongodb"`
	Collections  CollectionsConfig  `mapstructure:"collections"`
	VectorSearch VectorSearchConfig `mapstructure:"vector_search"`
	Models       ModelsConfig       `mapstructure:"models"`
	Agent        AgentConfig        `mapstructure:"agent"`
	Workflow     WorkflowConfig     `mapstructure:"workflow"`
	Checkpoint   CheckpointConfig   `mapstructure:"checkpoint"`
	Data         DataConfig         `mapstructure:"data"`
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

// MongoDBConfig holds the connection settings.
type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
	AppName  string `mapstructure:"app_name"`
}

// CollectionsConfig names every collection the agent touches.
type CollectionsConfig struct {
	Telemetry       string `mapstructure:"telemetry"`
	Vectors         string `mapstructure:"vectors"`
	Logs            string `mapstructure:"logs"`
	Recommendations string `mapstructure:"recommendations"`
	Checkpoints     string `mapstructure:"checkpoints"`
	Sessions        string `mapstructure:"sessions"`
}

// VectorSearchConfig configures the $vectorSearch stage and index.
type VectorSearchConfig struct {
	Index         string `mapstructure:"index"`
	EmbeddingKey  string `mapstructure:"embedding_key"`
	Dimensions    int    `mapstructure:"dimensions"`
	NumCandidates int    `mapstructure:"num_candidates"`
	Limit         int    `mapstructure:"limit"`
}

// ModelsConfig selects and configures the chat and embedding models.
type ModelsConfig struct {
	Provider          string        `mapstructure:"provider"`
	EmbeddingProvider string        `mapstructure:"embedding_provider"`
	ChatModel         string        `mapstructure:"chat_model"`
	EmbeddingModel    string        `mapstructure:"embedding_model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	OpenAI            OpenAIConfig  `mapstructure:"openai"`
	Gemini            GeminiConfig  `mapstructure:"gemini"`
}

// OpenAIConfig holds OpenAI-compatible endpoint credentials.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// GeminiConfig holds Gemini credentials.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// AgentConfig describes the agent persona used by the reasoning step.
type AgentConfig struct {
	ProfileChosen string    `mapstructure:"profile_chosen"`
	Motive        string    `mapstructure:"motive"`
	DataConsumed  string    `mapstructure:"data_consumed"`
	Profiles      []Profile `mapstructure:"profiles"`
}

// Profile is one named agent persona.
type Profile struct {
	Name    string `mapstructure:"name"`
	Profile string `mapstructure:"profile"`
	Rules   string `mapstructure:"rules"`
	Goals   string `mapstructure:"goals"`
}

// WorkflowConfig tunes the diagnosis workflow.
type WorkflowConfig struct {
	SeverityMode    string `mapstructure:"severity_mode"`
	MaxSteps        int    `mapstructure:"max_steps"`
	TelemetrySource string `mapstructure:"telemetry_source"`
	CSVPath         string `mapstructure:"csv_path"`
	BatchSize       int    `mapstructure:"batch_concurrency"`
}

// CheckpointConfig selects the checkpoint backend.
type CheckpointConfig struct {
	Backend     string `mapstructure:"backend"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	RedisURL    string `mapstructure:"redis_url"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	MaxPerRun   int    `mapstructure:"max_per_run"`
}

// DataConfig configures the ingestion and embedding tooling.
type DataConfig struct {
	IssuesCSV      string `mapstructure:"issues_csv"`
	EmbedAttribute string `mapstructure:"embed_attribute"`
	Concurrency    int    `mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	TracesEndpoint  string  `mapstructure:"traces_endpoint"`
	MetricsEndpoint string  `mapstructure:"metrics_endpoint"`
	SampleRatio     float64 `mapstructure:"sample_ratio"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MongoDB: MongoDBConfig{
			Database: "vehicle_maintenance",
			AppName:  "maintenance-agent",
		},
		Collections: CollectionsConfig{
			Telemetry:       "engine_telemetry",
			Vectors:         "issues",
			Logs:            "logs",
			Recommendations: "historical_recommendations",
			Checkpoints:     "checkpoints",
			Sessions:        "agent_sessions",
		},
		VectorSearch: VectorSearchConfig{
			Index:         "vector_index",
			Dimensions:    1024,
			NumCandidates: 5,
			Limit:         2,
		},
		Models: ModelsConfig{
			Provider:       ProviderOpenAI,
			ChatModel:      "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Timeout:        30 * time.Second,
			MaxAttempts:    3,
		},
		Agent: AgentConfig{
			ProfileChosen: DefaultProfile.Name,
			Motive:        "diagnose vehicle issues and recommend maintenance actions",
			DataConsumed:  "engine telemetry data",
		},
		Workflow: WorkflowConfig{
			SeverityMode:    SeverityModeCosmetic,
			MaxSteps:        100,
			TelemetrySource: SourceCSV,
			CSVPath:         "data/engine_telemetry.csv",
			BatchSize:       4,
		},
		Checkpoint: CheckpointConfig{
			Backend:    BackendMongoDB,
			SQLitePath: "checkpoints.db",
			MaxPerRun:  100,
		},
		Data: DataConfig{
			IssuesCSV:      "data/issues.csv",
			EmbedAttribute: "issue",
			Concurrency:    4,
		},
		Server:    ServerConfig{Addr: ":8000", AllowedOrigins: []string{"*"}},
		Log:       LogConfig{Level: "info", Format: "console"},
		Telemetry: TelemetryConfig{SampleRatio: 1},
	}
}

// Load reads the YAML file at path (optional) and applies environment
// overrides on top of Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	ApplyEnv(cfg, os.LookupEnv)
	return cfg, nil
}

// Decode merges YAML data into cfg.
func Decode(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// Profile returns the chosen agent profile, falling back to DefaultProfile
// when it is not configured.
func (c *Config) Profile() Profile {
	for _, p := range c.Agent.Profiles {
		if p.Name == c.Agent.ProfileChosen {
			return p
		}
	}
	return DefaultProfile
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	var errs []error
	needMongo := c.Workflow.TelemetrySource == SourceMongoDB || c.Checkpoint.Backend == BackendMongoDB
	if c.MongoDB.URI == "" && needMongo {
		errs = append(errs, errors.New("mongodb.uri (MONGODB_URI) is required"))
	}
	if c.MongoDB.Database == "" {
		errs = append(errs, errors.New("mongodb.database (DATABASE_NAME) is required"))
	}
	switch c.Workflow.SeverityMode {
	case SeverityModeCosmetic, SeverityModeBranch:
	default:
		errs = append(errs, fmt.Errorf("workflow.severity_mode %q is not one of cosmetic, branch", c.Workflow.SeverityMode))
	}
	switch c.Workflow.TelemetrySource {
	case SourceCSV:
		if c.Workflow.CSVPath == "" {
			errs = append(errs, errors.New("workflow.csv_path (CSV_DATA) is required for the csv source"))
		}
	case SourceMongoDB:
	default:
		errs = append(errs, fmt.Errorf("workflow.telemetry_source %q is not one of csv, mongodb", c.Workflow.TelemetrySource))
	}
	switch c.Models.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("models.provider %q is not one of openai, gemini", c.Models.Provider))
	}
	switch c.EmbeddingProvider() {
	case ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("models.embedding_provider %q is not one of openai, gemini", c.Models.EmbeddingProvider))
	}
	switch c.Checkpoint.Backend {
	case BackendMemory, BackendMongoDB:
	case BackendSQLite:
		if c.Checkpoint.SQLitePath == "" {
			errs = append(errs, errors.New("checkpoint.sqlite_path is required for the sqlite backend"))
		}
	case BackendRedis:
		if c.Checkpoint.RedisURL == "" {
			errs = append(errs, errors.New("checkpoint.redis_url is required for the redis backend"))
		}
	case BackendPostgres:
		if c.Checkpoint.PostgresDSN == "" {
			errs = append(errs, errors.New("checkpoint.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("checkpoint.backend %q is unknown", c.Checkpoint.Backend))
	}
	if c.VectorSearch.Dimensions <= 0 {
		errs = append(errs, errors.New("vector_search.dimensions must be positive"))
	}
	if c.VectorSearch.Index == "" {
		errs = append(errs, errors.New("vector_search.index (MDB_VECTOR_SEARCH_INDEX) is required"))
	}
	if c.Workflow.MaxSteps <= 0 {
		errs = append(errs, errors.New("workflow.max_steps must be positive"))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio %v is not within [0, 1]", c.Telemetry.SampleRatio))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// EmbeddingProvider returns the embedding provider, defaulting to the chat
// provider.
func (c *Config) EmbeddingProvider() string {
	if c.Models.EmbeddingProvider != "" {
		return c.Models.EmbeddingProvider
	}
	return c.Models.Provider
}
