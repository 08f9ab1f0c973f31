//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package graph provides a typed workflow graph: nodes are step functions
// over a state record, edges are fixed or routed, and execution is
// synchronous from an entry point to End with optional checkpointing.
package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Special node identifiers for graph routing.
const (
	// Start represents the virtual start node used in visualizations.
	Start = "__start__"
	// End represents the virtual end node for routing.
	End = "__end__"
)

// NodeFunc is a function that can be executed by a node.
// It reads the full state and returns a partial update.
type NodeFunc[S, U any] func(ctx context.Context, state S) (U, error)

// ConditionalFunc is a function that determines the next route based on state.
// The returned key is looked up in the conditional edge's path map.
type ConditionalFunc[S any] func(ctx context.Context, state S) (string, error)

// MergeFunc applies a partial update to a state and returns the new state.
type MergeFunc[S, U any] func(state S, update U) S

// Node represents a node in the graph.
type Node[S, U any] struct {
	ID          string
	Name        string
	Description string
	Function    NodeFunc[S, U]
}

// Edge represents an unconditional edge in the graph.
type Edge struct {
	From string
	To   string
}

// ConditionalEdge represents a conditional edge with routing logic.
type ConditionalEdge[S any] struct {
	From      string
	Condition ConditionalFunc[S]
	PathMap   map[string]string // Maps condition result to target node.
}

// Targets returns the declared targets of the edge in sorted order.
func (c *ConditionalEdge[S]) Targets() []string {
	seen := make(map[string]struct{}, len(c.PathMap))
	targets := make([]string, 0, len(c.PathMap))
	for _, to := range c.PathMap {
		if _, ok := seen[to]; ok {
			continue
		}
		seen[to] = struct{}{}
		targets = append(targets, to)
	}
	sort.Strings(targets)
	return targets
}

// Graph represents a directed graph of nodes and edges.
// Users build it through StateGraph and execute it through a Runnable.
type Graph[S, U any] struct {
	mu               sync.RWMutex
	merge            MergeFunc[S, U]
	nodes            map[string]*Node[S, U]
	order            []string
	edges            map[string][]*Edge
	conditionalEdges map[string]*ConditionalEdge[S]
	entryPoint       string
}

// New creates a new empty graph using merge to apply node updates.
func New[S, U any](merge MergeFunc[S, U]) *Graph[S, U] {
	return &Graph[S, U]{
		merge:            merge,
		nodes:            make(map[string]*Node[S, U]),
		edges:            make(map[string][]*Edge),
		conditionalEdges: make(map[string]*ConditionalEdge[S]),
	}
}

// Node returns a node by ID.
func (g *Graph[S, U]) Node(id string) (*Node[S, U], bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, exists := g.nodes[id]
	return node, exists
}

// Nodes returns the node IDs in registration order.
func (g *Graph[S, U]) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Edges returns all outgoing unconditional edges from a node.
func (g *Graph[S, U]) Edges(nodeID string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[nodeID]
}

// ConditionalEdge returns the conditional edge from a node.
func (g *Graph[S, U]) ConditionalEdge(nodeID string) (*ConditionalEdge[S], bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edge, exists := g.conditionalEdges[nodeID]
	return edge, exists
}

// EntryPoint returns the entry point node ID.
func (g *Graph[S, U]) EntryPoint() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.entryPoint
}

// Merge applies update to state with the graph's merge function.
func (g *Graph[S, U]) Merge(state S, update U) S {
	return g.merge(state, update)
}

// addNode adds a node to the graph.
func (g *Graph[S, U]) addNode(node *Node[S, U]) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if node.ID == "" {
		return fmt.Errorf("node ID cannot be empty")
	}
	if node.ID == End || node.ID == Start {
		return fmt.Errorf("node %s: %w", node.ID, ErrReservedNode)
	}
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("node %s: %w", node.ID, ErrDuplicateNode)
	}
	if node.Function == nil {
		return fmt.Errorf("node %s has no function", node.ID)
	}
	g.nodes[node.ID] = node
	g.order = append(g.order, node.ID)
	return nil
}

// addEdge adds an edge to the graph.
func (g *Graph[S, U]) addEdge(edge *Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if edge.From == "" || edge.To == "" {
		return fmt.Errorf("edge from and to cannot be empty")
	}
	if _, exists := g.nodes[edge.From]; !exists {
		return fmt.Errorf("source node %s: %w", edge.From, ErrUnknownNode)
	}
	if edge.To != End {
		if _, exists := g.nodes[edge.To]; !exists {
			return fmt.Errorf("target node %s: %w", edge.To, ErrUnknownNode)
		}
	}
	g.edges[edge.From] = append(g.edges[edge.From], edge)
	return nil
}

// addConditionalEdge adds a conditional edge to the graph.
func (g *Graph[S, U]) addConditionalEdge(condEdge *ConditionalEdge[S]) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[condEdge.From]; !exists {
		return fmt.Errorf("source node %s: %w", condEdge.From, ErrUnknownNode)
	}
	if condEdge.Condition == nil {
		return fmt.Errorf("conditional edge from %s has no condition", condEdge.From)
	}
	if len(condEdge.PathMap) == 0 {
		return fmt.Errorf("conditional edge from %s: %w", condEdge.From, ErrNoTargets)
	}
	for _, to := range condEdge.PathMap {
		if to == End {
			continue
		}
		if _, exists := g.nodes[to]; !exists {
			return fmt.Errorf("target node %s: %w", to, ErrUnknownNode)
		}
	}
	g.conditionalEdges[condEdge.From] = condEdge
	return nil
}

// setEntryPoint sets the entry point of the graph.
func (g *Graph[S, U]) setEntryPoint(nodeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[nodeID]; !exists {
		return fmt.Errorf("entry point %s: %w", nodeID, ErrUnknownNode)
	}
	g.entryPoint = nodeID
	return nil
}

// validate validates the graph structure.
func (g *Graph[S, U]) validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.entryPoint == "" {
		return ErrNoEntryPoint
	}
	if _, exists := g.nodes[g.entryPoint]; !exists {
		return fmt.Errorf("entry point %s: %w", g.entryPoint, ErrUnknownNode)
	}
	for _, id := range g.order {
		_, routed := g.conditionalEdges[id]
		if !routed && len(g.edges[id]) == 0 {
			return fmt.Errorf("node %s: %w", id, ErrDeadEnd)
		}
	}
	return nil
}
