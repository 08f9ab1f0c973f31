//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package runner drives diagnosis runs: it assigns thread ids, keeps the
// session records up to date and runs batches on a worker pool.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/maintenance-agent-go/diagnosis"
	"trpc.group/trpc-go/maintenance-agent-go/graph"
	"trpc.group/trpc-go/maintenance-agent-go/log"
	"trpc.group/trpc-go/maintenance-agent-go/persistence"
	"trpc.group/trpc-go/maintenance-agent-go/session"
	"trpc.group/trpc-go/maintenance-agent-go/session/inmemory"
	"trpc.group/trpc-go/maintenance-agent-go/telemetry"
)

// DefaultBatchConcurrency is the pool size of RunBatch.
const DefaultBatchConcurrency = 4

// Run outcomes recorded in metrics.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

var (
	// ErrEmptyIssueReport is returned when a run has no issue report.
	ErrEmptyIssueReport = errors.New("runner: issue_report is required")
	// ErrThreadIDRequired is returned when resuming without a thread id.
	ErrThreadIDRequired = errors.New("runner: thread_id is required")
	// ErrNoRunDocuments is returned when no persistence store is wired.
	ErrNoRunDocuments = errors.New("runner: run documents are not available")
)

// Option is a function that configures a Runner.
type Option func(*Options)

// Options is the options for the Runner.
type Options struct {
	sessions     session.Store
	documents    persistence.Store
	metrics      *telemetry.StepMetrics
	newID        func() string
	embeddingKey string
}

// WithSessionStore sets the session store. Defaults to an in-memory store.
func WithSessionStore(store session.Store) Option {
	return func(opts *Options) {
		opts.sessions = store
	}
}

// WithRunDocuments sets the store RunDocuments reads from.
func WithRunDocuments(store persistence.Store) Option {
	return func(opts *Options) {
		opts.documents = store
	}
}

// WithMetrics records run outcomes.
func WithMetrics(m *telemetry.StepMetrics) Option {
	return func(opts *Options) {
		opts.metrics = m
	}
}

// WithIDGenerator overrides the thread id generator.
func WithIDGenerator(gen func() string) Option {
	return func(opts *Options) {
		opts.newID = gen
	}
}

// WithEmbeddingKey sets the default embedding field override of runs.
func WithEmbeddingKey(key string) Option {
	return func(opts *Options) {
		opts.embeddingKey = key
	}
}

// RunOption configures a single run.
type RunOption func(*runOptions)

type runOptions struct {
	threadID     string
	embeddingKey string
}

// WithThreadID runs under the given thread id instead of a generated one.
func WithThreadID(id string) RunOption {
	return func(o *runOptions) {
		o.threadID = id
	}
}

// WithRunEmbeddingKey overrides the embedding field for one run.
func WithRunEmbeddingKey(key string) RunOption {
	return func(o *runOptions) {
		o.embeddingKey = key
	}
}

// Result is the outcome of a run.
type Result struct {
	ThreadID string
	State    diagnosis.State
}

// BatchResult is the outcome of one report of a batch.
type BatchResult struct {
	Index       int
	IssueReport string
	Result      *Result
	Err         error
}

// Runner runs the diagnosis workflow.
type Runner struct {
	workflow *diagnosis.Runnable
	opts     Options
}

// New creates a runner around a compiled workflow.
func New(workflow *diagnosis.Runnable, opts ...Option) (*Runner, error) {
	if workflow == nil {
		return nil, errors.New("runner: workflow is nil")
	}
	options := Options{newID: uuid.NewString}
	for _, opt := range opts {
		opt(&options)
	}
	if options.sessions == nil {
		options.sessions = inmemory.New()
	}
	if options.newID == nil {
		options.newID = uuid.NewString
	}
	return &Runner{workflow: workflow, opts: options}, nil
}

// Workflow returns the compiled workflow.
func (r *Runner) Workflow() *diagnosis.Runnable {
	return r.workflow
}

// Sessions returns the session store.
func (r *Runner) Sessions() session.Store {
	return r.opts.sessions
}

// Run starts a new run for issueReport and waits for it to finish.
func (r *Runner) Run(ctx context.Context, issueReport string, opts ...RunOption) (*Result, error) {
	issueReport = strings.TrimSpace(issueReport)
	if issueReport == "" {
		return nil, ErrEmptyIssueReport
	}
	ro := runOptions{embeddingKey: r.opts.embeddingKey}
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.threadID == "" {
		ro.threadID = r.opts.newID()
	}
	log.Infof("starting run %s: %s", ro.threadID, issueReport)
	if err := r.opts.sessions.Create(ctx, session.New(ro.threadID, issueReport)); err != nil {
		log.Errorf("[MongoDB] error creating session %s: %v", ro.threadID, err)
	}

	initial := diagnosis.NewState(issueReport, ro.threadID, ro.embeddingKey)
	final, err := r.workflow.Invoke(ctx, initial, graph.Config{ThreadID: ro.threadID})
	return r.finish(ctx, ro.threadID, final, err)
}

// Resume continues the run of threadID from its latest checkpoint.
func (r *Runner) Resume(ctx context.Context, threadID string) (*Result, error) {
	if threadID == "" {
		return nil, ErrThreadIDRequired
	}
	log.Infof("resuming run %s", threadID)
	if err := r.opts.sessions.UpdateStatus(ctx, threadID, session.StatusRunning, ""); err != nil &&
		!errors.Is(err, session.ErrNotFound) {
		log.Errorf("[MongoDB] error updating session %s: %v", threadID, err)
	}
	final, err := r.workflow.Resume(ctx, graph.Config{ThreadID: threadID})
	return r.finish(ctx, threadID, final, err)
}

func (r *Runner) finish(ctx context.Context, threadID string, final diagnosis.State, runErr error) (*Result, error) {
	status, outcome, msg := session.StatusCompleted, OutcomeCompleted, ""
	if runErr != nil {
		status, outcome, msg = session.StatusFailed, OutcomeFailed, runErr.Error()
		log.Errorf("run %s failed: %v", threadID, runErr)
	} else {
		log.Infof("run %s completed", threadID)
	}
	if err := r.opts.sessions.UpdateStatus(ctx, threadID, status, msg); err != nil &&
		!errors.Is(err, session.ErrNotFound) {
		log.Errorf("[MongoDB] error updating session %s: %v", threadID, err)
	}
	if r.opts.metrics != nil {
		r.opts.metrics.RecordRun(ctx, outcome)
	}
	if runErr != nil {
		return nil, fmt.Errorf("run %s: %w", threadID, runErr)
	}
	return &Result{ThreadID: threadID, State: final}, nil
}

// RunBatch runs every report independently on a pool of concurrency
// workers. Results are returned in input order.
func (r *Runner) RunBatch(ctx context.Context, reports []string, concurrency int) ([]BatchResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]BatchResult, len(reports))
	var wg sync.WaitGroup
	for i, report := range reports {
		idx, rep := i, report
		results[idx] = BatchResult{Index: idx, IssueReport: rep}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			res, err := r.Run(ctx, rep)
			results[idx].Result = res
			results[idx].Err = err
		})
		if err != nil {
			wg.Done()
			results[idx].Err = fmt.Errorf("failed to submit batch task: %w", err)
		}
	}
	wg.Wait()
	return results, nil
}

// RecentSessions lists recent sessions in summary form.
func (r *Runner) RecentSessions(ctx context.Context, limit int) ([]session.Summary, error) {
	sessions, err := r.opts.sessions.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return session.Summaries(sessions), nil
}

// RunDocuments returns the logs and recommendations of threadID.
func (r *Runner) RunDocuments(ctx context.Context, threadID string) (*persistence.RunDocuments, error) {
	if threadID == "" {
		return nil, ErrThreadIDRequired
	}
	if r.opts.documents == nil {
		return nil, ErrNoRunDocuments
	}
	return r.opts.documents.RunDocuments(ctx, threadID)
}

// Mermaid renders the workflow graph.
func (r *Runner) Mermaid() string {
	return r.workflow.Graph().Mermaid()
}

// StepCallbacks returns node callbacks that record step metrics and log
// each finished step. Compile them into the workflow with
// diagnosis.WithCompileOptions(graph.WithNodeCallbacks(...)).
func StepCallbacks(metrics *telemetry.StepMetrics) *graph.NodeCallbacks {
	return graph.NewNodeCallbacks().RegisterAfterNode(
		func(ctx context.Context, c *graph.NodeCallbackContext, nodeErr error) {
			elapsed := time.Since(c.ExecutionStartTime)
			log.Debugf("[Workflow] thread %s step %d %s finished in %s", c.ThreadID, c.StepNumber, c.NodeID, elapsed)
			if metrics != nil {
				metrics.RecordStep(ctx, c.NodeID, elapsed, nodeErr)
			}
		})
}
