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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	itelemetry "trpc.group/trpc-go/maintenance-agent-go/internal/telemetry"
	"trpc.group/trpc-go/maintenance-agent-go/log"
	"trpc.group/trpc-go/maintenance-agent-go/telemetry"
)

const defaultMaxSteps = 100

// CompileOption is a function that configures a Runnable.
type CompileOption func(*compileOptions)

type compileOptions struct {
	checkpointer Checkpointer
	maxSteps     int
	callbacks    *NodeCallbacks
}

// WithCheckpointer wires a checkpointer. The runnable saves a checkpoint
// after every step of a run that has a thread id.
func WithCheckpointer(cp Checkpointer) CompileOption {
	return func(opts *compileOptions) {
		opts.checkpointer = cp
	}
}

// WithMaxSteps sets the maximum number of steps for a run (default: 100).
func WithMaxSteps(maxSteps int) CompileOption {
	return func(opts *compileOptions) {
		if maxSteps > 0 {
			opts.maxSteps = maxSteps
		}
	}
}

// WithNodeCallbacks sets callbacks invoked around every node.
func WithNodeCallbacks(callbacks *NodeCallbacks) CompileOption {
	return func(opts *compileOptions) {
		opts.callbacks = callbacks
	}
}

// Runnable executes a compiled graph. It holds no per-run state and is
// safe for concurrent runs with distinct thread ids.
type Runnable[S, U any] struct {
	graph        *Graph[S, U]
	checkpointer Checkpointer
	maxSteps     int
	callbacks    *NodeCallbacks
}

// Graph returns the compiled graph.
func (r *Runnable[S, U]) Graph() *Graph[S, U] {
	return r.graph
}

// Checkpointer returns the wired checkpointer, or nil.
func (r *Runnable[S, U]) Checkpointer() Checkpointer {
	return r.checkpointer
}

// Invoke executes the graph synchronously from the entry point to End and
// returns the final state.
func (r *Runnable[S, U]) Invoke(ctx context.Context, initial S, cfg Config) (S, error) {
	ctx, span := telemetry.Tracer.Start(ctx, itelemetry.SpanNameInvokeGraph)
	defer span.End()
	span.SetAttributes(attribute.String(itelemetry.KeyThreadID, cfg.ThreadID))

	run := &execution[S, U]{r: r, cfg: cfg, state: initial}
	if r.checkpointer != nil && cfg.ThreadID == "" {
		log.Warn("run has no thread_id; checkpoints are disabled for it")
	}
	run.save(ctx, CheckpointSourceInput, "", r.graph.EntryPoint())
	return run.loop(ctx, r.graph.EntryPoint())
}

// Resume loads the latest checkpoint for cfg.ThreadID and continues the run
// from the recorded next node. A finished run returns its final state.
func (r *Runnable[S, U]) Resume(ctx context.Context, cfg Config) (S, error) {
	var zero S
	if r.checkpointer == nil {
		return zero, ErrNoCheckpointer
	}
	if cfg.ThreadID == "" {
		return zero, ErrThreadIDRequired
	}
	ctx, span := telemetry.Tracer.Start(ctx, itelemetry.SpanNameResumeGraph)
	defer span.End()
	span.SetAttributes(attribute.String(itelemetry.KeyThreadID, cfg.ThreadID))

	cp, err := r.checkpointer.Load(ctx, cfg.ThreadID)
	if err != nil {
		return zero, fmt.Errorf("load checkpoint for %s: %w", cfg.ThreadID, err)
	}
	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return zero, fmt.Errorf("decode checkpoint %s: %w", cp.ID, err)
	}
	if cp.Done() {
		log.Infof("thread %s already finished; returning saved state", cfg.ThreadID)
		return state, nil
	}
	if cp.NextNode != End {
		if _, ok := r.graph.Node(cp.NextNode); !ok {
			return zero, fmt.Errorf("checkpoint %s next node %s: %w", cp.ID, cp.NextNode, ErrUnknownNode)
		}
	}
	log.Infof("resuming thread %s at node %s (step %d)", cfg.ThreadID, cp.NextNode, cp.Step)
	run := &execution[S, U]{r: r, cfg: cfg, state: state, step: cp.Step, parentID: cp.ID}
	return run.loop(ctx, cp.NextNode)
}

// execution carries the state of one run.
type execution[S, U any] struct {
	r        *Runnable[S, U]
	cfg      Config
	state    S
	step     int
	parentID string
}

func (e *execution[S, U]) loop(ctx context.Context, current string) (S, error) {
	for {
		select {
		case <-ctx.Done():
			return e.state, ctx.Err()
		default:
		}
		if current == End {
			return e.state, nil
		}
		e.step++
		if e.step > e.r.maxSteps {
			return e.state, fmt.Errorf("%w (%d)", ErrMaxStepsExceeded, e.r.maxSteps)
		}
		next, err := e.executeNode(ctx, current)
		if err != nil {
			return e.state, fmt.Errorf("error executing node %s: %w", current, err)
		}
		e.save(ctx, CheckpointSourceLoop, current, next)
		current = next
	}
}

// executeNode executes a single node and returns the next node ID.
func (e *execution[S, U]) executeNode(ctx context.Context, nodeID string) (string, error) {
	node, exists := e.r.graph.Node(nodeID)
	if !exists {
		return "", fmt.Errorf("node %s: %w", nodeID, ErrUnknownNode)
	}

	ctx, span := telemetry.Tracer.Start(ctx, fmt.Sprintf("%s %s", itelemetry.SpanNamePrefixExecuteNode, nodeID))
	defer span.End()
	span.SetAttributes(
		attribute.String(itelemetry.KeyNodeID, nodeID),
		attribute.String(itelemetry.KeyNodeName, node.Name),
		attribute.Int(itelemetry.KeyStep, e.step),
	)

	cbCtx := &NodeCallbackContext{
		NodeID:             nodeID,
		NodeName:           node.Name,
		StepNumber:         e.step,
		ExecutionStartTime: time.Now(),
		ThreadID:           e.cfg.ThreadID,
	}
	if err := e.r.callbacks.RunBeforeNode(ctx, cbCtx); err != nil {
		return "", fmt.Errorf("before node callback: %w", err)
	}
	update, err := node.Function(ctx, e.state)
	e.r.callbacks.RunAfterNode(ctx, cbCtx, err)
	if err != nil {
		span.SetAttributes(attribute.String(itelemetry.KeyError, err.Error()))
		return "", fmt.Errorf("node function execution failed: %w", err)
	}
	e.state = e.r.graph.Merge(e.state, update)

	next, err := e.selectNextNode(ctx, nodeID)
	if err == nil {
		span.SetAttributes(attribute.String(itelemetry.KeyNextNode, next))
	}
	return next, err
}

// selectNextNode selects the next node based on edges and conditional logic.
func (e *execution[S, U]) selectNextNode(ctx context.Context, currentNodeID string) (string, error) {
	if condEdge, exists := e.r.graph.ConditionalEdge(currentNodeID); exists {
		result, err := condEdge.Condition(ctx, e.state)
		if err != nil {
			return "", fmt.Errorf("conditional edge evaluation failed: %w", err)
		}
		if next, ok := condEdge.PathMap[result]; ok {
			return next, nil
		}
		return "", fmt.Errorf("%w: %q from %s", ErrRoutingTargetUndeclared, result, currentNodeID)
	}
	edges := e.r.graph.Edges(currentNodeID)
	if len(edges) == 0 {
		return "", fmt.Errorf("node %s: %w", currentNodeID, ErrDeadEnd)
	}
	return edges[0].To, nil
}

// save writes a checkpoint when the run is checkpointed. Storage failures
// are logged and do not stop the run.
func (e *execution[S, U]) save(ctx context.Context, source, node, next string) {
	if e.r.checkpointer == nil || e.cfg.ThreadID == "" {
		return
	}
	data, err := json.Marshal(e.state)
	if err != nil {
		log.Errorf("encode state for thread %s: %v", e.cfg.ThreadID, err)
		return
	}
	cp := NewCheckpoint(e.cfg.ThreadID, data)
	cp.ParentID = e.parentID
	cp.Source = source
	cp.Step = e.step
	cp.Node = node
	cp.NextNode = next
	if err := e.r.checkpointer.Save(ctx, e.cfg.ThreadID, cp); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Errorf("save checkpoint for thread %s at step %d: %v", e.cfg.ThreadID, e.step, err)
		return
	}
	e.parentID = cp.ID
}
