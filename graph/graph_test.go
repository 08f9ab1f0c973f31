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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	Count int      `json:"count"`
	Path  []string `json:"path"`
	Route string   `json:"route"`
}

type testUpdate struct {
	Add   int
	Visit string
	Route *string
}

func mergeTest(s testState, u testUpdate) testState {
	s.Count += u.Add
	if u.Visit != "" {
		s.Path = append(append([]string(nil), s.Path...), u.Visit)
	}
	if u.Route != nil {
		s.Route = *u.Route
	}
	return s
}

func visit(id string) NodeFunc[testState, testUpdate] {
	return func(ctx context.Context, s testState) (testUpdate, error) {
		return testUpdate{Add: 1, Visit: id}, nil
	}
}

func TestStateGraph_DuplicateNode(t *testing.T) {
	sg := NewStateGraph(mergeTest).
		AddNode("a", visit("a")).
		AddNode("a", visit("a"))
	require.ErrorIs(t, sg.Err(), ErrDuplicateNode)

	_, err := sg.SetEntryPoint("a").SetFinishPoint("a").Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid graph")
}

func TestStateGraph_ReservedNode(t *testing.T) {
	sg := NewStateGraph(mergeTest).AddNode(End, visit("x"))
	require.ErrorIs(t, sg.Err(), ErrReservedNode)
}

func TestStateGraph_EdgeToUnregisteredNode(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
	}{
		{name: "unknown source", from: "ghost", to: "a"},
		{name: "unknown target", from: "a", to: "ghost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sg := NewStateGraph(mergeTest).
				AddNode("a", visit("a")).
				AddEdge(tt.from, tt.to)
			require.ErrorIs(t, sg.Err(), ErrUnknownNode)
		})
	}
}

func TestStateGraph_EdgeToEndIsAllowed(t *testing.T) {
	sg := NewStateGraph(mergeTest).
		AddNode("a", visit("a")).
		AddEdge("a", End)
	require.NoError(t, sg.Err())
}

func TestStateGraph_ConditionalEdgeValidation(t *testing.T) {
	cond := func(ctx context.Context, s testState) (string, error) { return "x", nil }

	sg := NewStateGraph(mergeTest).
		AddNode("a", visit("a")).
		AddConditionalEdges("a", cond, nil)
	require.ErrorIs(t, sg.Err(), ErrNoTargets)

	sg = NewStateGraph(mergeTest).
		AddNode("a", visit("a")).
		AddConditionalEdges("a", cond, map[string]string{"x": "ghost"})
	require.ErrorIs(t, sg.Err(), ErrUnknownNode)
}

func TestStateGraph_CompileRequiresEntryPoint(t *testing.T) {
	_, err := NewStateGraph(mergeTest).
		AddNode("a", visit("a")).
		SetFinishPoint("a").
		Compile()
	require.ErrorIs(t, err, ErrNoEntryPoint)
}

func TestStateGraph_CompileRejectsDeadEnd(t *testing.T) {
	_, err := NewStateGraph(mergeTest).
		AddNode("a", visit("a")).
		AddNode("b", visit("b")).
		AddEdge("a", "b").
		SetEntryPoint("a").
		Compile()
	require.ErrorIs(t, err, ErrDeadEnd)
	assert.Contains(t, err.Error(), "node b")
}

func TestStateGraph_CompileCollectsAllErrors(t *testing.T) {
	sg := NewStateGraph(mergeTest).
		AddNode("a", visit("a")).
		AddNode("a", visit("a")).
		AddEdge("a", "ghost")
	err := sg.Err()
	require.ErrorIs(t, err, ErrDuplicateNode)
	require.ErrorIs(t, err, ErrUnknownNode)
}

func TestGraph_NodesKeepRegistrationOrder(t *testing.T) {
	sg := NewStateGraph(mergeTest).
		AddNode("c", visit("c")).
		AddNode("a", visit("a")).
		AddNode("b", visit("b"))
	assert.Equal(t, []string{"c", "a", "b"}, sg.Graph().Nodes())
}

func TestConditionalEdge_Targets(t *testing.T) {
	ce := &ConditionalEdge[testState]{PathMap: map[string]string{
		"hot":  "persist",
		"cold": "embed",
		"warm": "embed",
	}}
	assert.Equal(t, []string{"embed", "persist"}, ce.Targets())
}

func TestStateGraph_WithNameAndDescription(t *testing.T) {
	sg := NewStateGraph(mergeTest).
		AddNode("a", visit("a"), WithName("Alpha"), WithDescription("first"))
	n, ok := sg.Graph().Node("a")
	require.True(t, ok)
	assert.Equal(t, "Alpha", n.Name)
	assert.Equal(t, "first", n.Description)
}
