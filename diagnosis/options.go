//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package diagnosis

import (
	"context"
	"time"

	"trpc.group/trpc-go/maintenance-agent-go/graph"
	"trpc.group/trpc-go/maintenance-agent-go/knowledge/embedder"
	"trpc.group/trpc-go/maintenance-agent-go/knowledge/vectorstore"
	"trpc.group/trpc-go/maintenance-agent-go/model"
	"trpc.group/trpc-go/maintenance-agent-go/persistence"
	"trpc.group/trpc-go/maintenance-agent-go/vehicle"
)

// Defaults for external calls.
const (
	DefaultCallTimeout = 30 * time.Second
	DefaultMaxAttempts = 3
)

// TelemetrySource loads the telemetry a run diagnoses.
type TelemetrySource interface {
	// Load returns every available record.
	Load(ctx context.Context) ([]vehicle.TelemetryRecord, error)
	// Description names the source in progress messages, e.g. "CSV file".
	Description() string
}

// Dependencies are the external collaborators of the steps. VectorStore
// may be nil, in which case the search step returns the built-in examples.
type Dependencies struct {
	ChatModel   model.Model
	Embedder    embedder.Embedder
	VectorStore vectorstore.VectorStore
	Telemetry   TelemetrySource
	Store       persistence.Store
}

// Profile is the persona fed to the reasoning prompt.
type Profile struct {
	Name    string
	Profile string
	Rules   string
	Goals   string
}

type options struct {
	profile          Profile
	motive           string
	dataConsumed     string
	chatModelName    string
	embedModelName   string
	vectorCollection string
	numCandidates    int
	searchLimit      int
	dimensions       int
	severityMode     SeverityMode
	callTimeout      time.Duration
	retry            graph.RetryPolicy
	compileOptions   []graph.CompileOption
}

func defaultOptions() *options {
	retry := graph.WithSimpleRetry(DefaultMaxAttempts)
	return &options{
		motive:        "diagnose vehicle issues and recommend maintenance actions",
		dataConsumed:  "vehicle telemetry data",
		dimensions:    embedder.DefaultDimensions,
		numCandidates: vectorstore.DefaultNumCandidates,
		searchLimit:   vectorstore.DefaultLimit,
		severityMode:  SeverityModeCosmetic,
		callTimeout:   DefaultCallTimeout,
		retry:         retry,
	}
}

// Option configures the workflow.
type Option func(*options)

// WithProfile sets the agent persona.
func WithProfile(p Profile) Option {
	return func(o *options) {
		o.profile = p
	}
}

// WithMotive sets what the agent is designed to do.
func WithMotive(motive string) Option {
	return func(o *options) {
		if motive != "" {
			o.motive = motive
		}
	}
}

// WithDataConsumed names the data the agent consumes.
func WithDataConsumed(data string) Option {
	return func(o *options) {
		if data != "" {
			o.dataConsumed = data
		}
	}
}

// WithModelNames sets the model names quoted in the reasoning prompt.
func WithModelNames(chat, embedding string) Option {
	return func(o *options) {
		o.chatModelName = chat
		o.embedModelName = embedding
	}
}

// WithVectorCollection sets the collection name used to derive the
// default vector path "<collection>_embedding".
func WithVectorCollection(name string) Option {
	return func(o *options) {
		o.vectorCollection = name
	}
}

// WithSearchLimits sets numCandidates and limit of the vector search.
// Non-positive values keep the defaults.
func WithSearchLimits(numCandidates, limit int) Option {
	return func(o *options) {
		if numCandidates > 0 {
			o.numCandidates = numCandidates
		}
		if limit > 0 {
			o.searchLimit = limit
		}
	}
}

// WithDimensions sets the length of the fallback zero vector.
func WithDimensions(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.dimensions = n
		}
	}
}

// WithSeverityMode selects cosmetic or branch routing.
func WithSeverityMode(mode SeverityMode) Option {
	return func(o *options) {
		o.severityMode = mode
	}
}

// WithCallTimeout bounds each attempt of an external call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

// WithRetryPolicy replaces the retry policy of external calls.
func WithRetryPolicy(p graph.RetryPolicy) Option {
	return func(o *options) {
		o.retry = p
	}
}

// WithCompileOptions forwards options to graph compilation, e.g. a
// checkpointer or node callbacks.
func WithCompileOptions(opts ...graph.CompileOption) Option {
	return func(o *options) {
		o.compileOptions = append(o.compileOptions, opts...)
	}
}
