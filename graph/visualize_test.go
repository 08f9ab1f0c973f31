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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vizGraph(t *testing.T) *Graph[testState, testUpdate] {
	t.Helper()
	route := func(ctx context.Context, s testState) (string, error) { return "ok", nil }
	sg := NewStateGraph(mergeTest).
		AddNode("load", visit("load"), WithName("Load data")).
		AddNode("check", visit("check")).
		AddNode("save", visit("save")).
		AddEdge("load", "check").
		AddConditionalEdges("check", route, map[string]string{"ok": "save", "skip": End}).
		SetEntryPoint("load").
		SetFinishPoint("save")
	require.NoError(t, sg.Err())
	return sg.Graph()
}

func TestGraph_DOT(t *testing.T) {
	dot := vizGraph(t).DOT()
	assert.True(t, strings.HasPrefix(dot, "digraph G {\n"))
	assert.Contains(t, dot, "rankdir=LR;")
	assert.Contains(t, dot, `"load" [label="Load data"`)
	assert.Contains(t, dot, `"__start__" -> "load";`)
	assert.Contains(t, dot, `"load" -> "check";`)
	assert.Contains(t, dot, `"check" -> "save" [style=dashed, color="#999999", label="ok"];`)
	assert.Contains(t, dot, `"save" -> "__end__";`)
}

func TestGraph_DOTWithoutStartEnd(t *testing.T) {
	dot := vizGraph(t).DOT(WithIncludeStartEnd(false), WithRankDir(RankDirTB), WithGraphLabel(`say "hi"`))
	assert.Contains(t, dot, "rankdir=TB;")
	assert.Contains(t, dot, `label="say \"hi\"";`)
	assert.NotContains(t, dot, "__start__")
	assert.NotContains(t, dot, "__end__")
}

func TestGraph_Mermaid(t *testing.T) {
	m := vizGraph(t).Mermaid()
	lines := strings.Split(strings.TrimSpace(m), "\n")
	require.Equal(t, "graph TD", lines[0])
	assert.Contains(t, m, `    load["Load data"]`)
	assert.Contains(t, m, "    __start__ --> load\n")
	assert.Contains(t, m, "    load --> check\n")
	assert.Contains(t, m, `    check -. "ok" .-> save`)
	assert.Contains(t, m, `    check -. "skip" .-> __end__`)
	assert.Contains(t, m, "    save --> __end__\n")
}
