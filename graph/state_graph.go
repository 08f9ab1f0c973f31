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
	"errors"
	"fmt"

	"trpc.group/trpc-go/maintenance-agent-go/log"
)

// StateGraph provides a fluent interface for building graphs.
// This is the primary public API for creating executable graphs.
//
// Builder calls never panic. The first configuration error is kept and
// every later error is joined to it; Compile reports them all.
//
// Example usage:
//
//	runnable, err := NewStateGraph(merge).
//	  AddNode("increment", incrementFunc).
//	  SetEntryPoint("increment").
//	  SetFinishPoint("increment").
//	  Compile(WithCheckpointer(saver))
type StateGraph[S, U any] struct {
	graph *Graph[S, U]
	errs  []error
}

// NewStateGraph creates a new graph builder using merge to apply updates.
func NewStateGraph[S, U any](merge MergeFunc[S, U]) *StateGraph[S, U] {
	return &StateGraph[S, U]{
		graph: New(merge),
	}
}

// Option is a function that configures a Node.
type Option func(*nodeOptions)

type nodeOptions struct {
	name        string
	description string
}

// WithName sets the name of the node.
func WithName(name string) Option {
	return func(o *nodeOptions) {
		o.name = name
	}
}

// WithDescription sets the description of the node.
func WithDescription(description string) Option {
	return func(o *nodeOptions) {
		o.description = description
	}
}

// AddNode adds a node with the given ID and function.
// Reusing an ID is a configuration error.
func (sg *StateGraph[S, U]) AddNode(id string, function NodeFunc[S, U], opts ...Option) *StateGraph[S, U] {
	o := nodeOptions{name: id}
	for _, opt := range opts {
		opt(&o)
	}
	sg.record(sg.graph.addNode(&Node[S, U]{
		ID:          id,
		Name:        o.name,
		Description: o.description,
		Function:    function,
	}))
	return sg
}

// AddEdge adds a normal edge between two registered nodes.
func (sg *StateGraph[S, U]) AddEdge(from, to string) *StateGraph[S, U] {
	sg.record(sg.graph.addEdge(&Edge{From: from, To: to}))
	return sg
}

// AddConditionalEdges adds conditional routing from a node. The keys of
// pathMap are the values the condition may return; the values are the
// declared target nodes.
func (sg *StateGraph[S, U]) AddConditionalEdges(
	from string,
	condition ConditionalFunc[S],
	pathMap map[string]string,
) *StateGraph[S, U] {
	sg.record(sg.graph.addConditionalEdge(&ConditionalEdge[S]{
		From:      from,
		Condition: condition,
		PathMap:   pathMap,
	}))
	return sg
}

// SetEntryPoint sets the entry point of the graph.
func (sg *StateGraph[S, U]) SetEntryPoint(nodeID string) *StateGraph[S, U] {
	sg.record(sg.graph.setEntryPoint(nodeID))
	return sg
}

// SetFinishPoint adds an edge from the node to End.
func (sg *StateGraph[S, U]) SetFinishPoint(nodeID string) *StateGraph[S, U] {
	return sg.AddEdge(nodeID, End)
}

// Err returns the configuration errors recorded so far.
func (sg *StateGraph[S, U]) Err() error {
	return errors.Join(sg.errs...)
}

// Compile validates the graph and returns a runnable.
func (sg *StateGraph[S, U]) Compile(opts ...CompileOption) (*Runnable[S, U], error) {
	if err := sg.Err(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	if err := sg.graph.validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	options := compileOptions{maxSteps: defaultMaxSteps}
	for _, opt := range opts {
		opt(&options)
	}
	if options.checkpointer == nil {
		log.Warn("graph compiled without a checkpointer; state is kept in memory only")
	}
	return &Runnable[S, U]{
		graph:        sg.graph,
		checkpointer: options.checkpointer,
		maxSteps:     options.maxSteps,
		callbacks:    options.callbacks,
	}, nil
}

// MustCompile compiles the graph or panics.
func (sg *StateGraph[S, U]) MustCompile(opts ...CompileOption) *Runnable[S, U] {
	r, err := sg.Compile(opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Graph returns the graph under construction.
func (sg *StateGraph[S, U]) Graph() *Graph[S, U] {
	return sg.graph
}

func (sg *StateGraph[S, U]) record(err error) {
	if err != nil {
		sg.errs = append(sg.errs, err)
	}
}
