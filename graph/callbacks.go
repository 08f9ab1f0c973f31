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
	"time"
)

// NodeCallbackContext provides context information for node callbacks.
type NodeCallbackContext struct {
	// NodeID is the ID of the node being executed.
	NodeID string
	// NodeName is the name of the node being executed.
	NodeName string
	// StepNumber is the current step number in the run, starting at 1.
	StepNumber int
	// ExecutionStartTime is when the node execution started.
	ExecutionStartTime time.Time
	// ThreadID is the run's thread id, empty for in-memory runs.
	ThreadID string
}

// BeforeNodeCallback is called before a node is executed.
// A non-nil error stops the run.
type BeforeNodeCallback func(ctx context.Context, callbackCtx *NodeCallbackContext) error

// AfterNodeCallback is called after a node is executed, with the node's
// error if it failed.
type AfterNodeCallback func(ctx context.Context, callbackCtx *NodeCallbackContext, nodeErr error)

// NodeCallbacks holds callbacks for node operations.
type NodeCallbacks struct {
	// BeforeNode is a list of callbacks that are called before the node is executed.
	BeforeNode []BeforeNodeCallback
	// AfterNode is a list of callbacks that are called after the node is executed.
	AfterNode []AfterNodeCallback
}

// NewNodeCallbacks creates a new NodeCallbacks instance.
func NewNodeCallbacks() *NodeCallbacks {
	return &NodeCallbacks{}
}

// RegisterBeforeNode registers a before node callback.
func (c *NodeCallbacks) RegisterBeforeNode(cb BeforeNodeCallback) *NodeCallbacks {
	c.BeforeNode = append(c.BeforeNode, cb)
	return c
}

// RegisterAfterNode registers an after node callback.
func (c *NodeCallbacks) RegisterAfterNode(cb AfterNodeCallback) *NodeCallbacks {
	c.AfterNode = append(c.AfterNode, cb)
	return c
}

// RunBeforeNode runs all before node callbacks in order and stops at the
// first error.
func (c *NodeCallbacks) RunBeforeNode(ctx context.Context, callbackCtx *NodeCallbackContext) error {
	if c == nil {
		return nil
	}
	for _, cb := range c.BeforeNode {
		if err := cb(ctx, callbackCtx); err != nil {
			return err
		}
	}
	return nil
}

// RunAfterNode runs all after node callbacks in order.
func (c *NodeCallbacks) RunAfterNode(ctx context.Context, callbackCtx *NodeCallbackContext, nodeErr error) {
	if c == nil {
		return
	}
	for _, cb := range c.AfterNode {
		cb(ctx, callbackCtx, nodeErr)
	}
}
