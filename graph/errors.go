//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import "errors"

// Configuration errors are returned while building or compiling a graph.
var (
	// ErrDuplicateNode is returned when a node ID is registered twice.
	ErrDuplicateNode = errors.New("node already exists")
	// ErrUnknownNode is returned when an edge references an unregistered node.
	ErrUnknownNode = errors.New("node does not exist")
	// ErrReservedNode is returned when a node uses a reserved ID.
	ErrReservedNode = errors.New("node id is reserved")
	// ErrNoEntryPoint is returned when Compile is called without an entry point.
	ErrNoEntryPoint = errors.New("graph must have an entry point")
	// ErrDeadEnd is returned when a non-terminal node has no outgoing edge.
	ErrDeadEnd = errors.New("node has no outgoing edge")
	// ErrNoTargets is returned when a conditional edge declares no targets.
	ErrNoTargets = errors.New("conditional edge declares no targets")
)

// Runtime errors are returned while executing a compiled graph.
var (
	// ErrRoutingTargetUndeclared is returned when a router picks a target
	// that was not declared for its conditional edge.
	ErrRoutingTargetUndeclared = errors.New("routing target not declared")
	// ErrMaxStepsExceeded is returned when a run exceeds the step limit.
	ErrMaxStepsExceeded = errors.New("maximum execution steps exceeded")
	// ErrThreadIDRequired is returned when a checkpoint operation has no thread id.
	ErrThreadIDRequired = errors.New("thread_id is required")
	// ErrCheckpointNotFound is returned when no checkpoint exists for a thread.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrNoCheckpointer is returned when Resume is called on a graph compiled
	// without a checkpointer.
	ErrNoCheckpointer = errors.New("graph compiled without a checkpointer")
)
