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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/maintenance-agent-go/graph"
)

func TestParseStepID(t *testing.T) {
	for _, id := range Steps {
		got, err := ParseStepID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
	got, err := ParseStepID("end")
	require.NoError(t, err)
	assert.Equal(t, StepEnd, got)

	_, err = ParseStepID("launch")
	require.ErrorIs(t, err, ErrUnknownStep)
}

func TestStepID_NodeID(t *testing.T) {
	assert.Equal(t, graph.End, StepEnd.NodeID())
	assert.Equal(t, "process_search", StepProcessSearch.NodeID())
}

func TestMerge(t *testing.T) {
	s := NewState("noise", "t1", "custom_embedding")
	s = Merge(s, Update{ChainOfThought: ptr("plan"), NextStep: ptr(StepRetrieve), Updates: []string{"one"}})
	s = Merge(s, Update{Updates: []string{"two"}})

	assert.Equal(t, "plan", s.ChainOfThought)
	assert.Equal(t, StepRetrieve, s.NextStep)
	assert.Equal(t, []string{"one", "two"}, s.Updates)
	assert.Equal(t, "noise", s.IssueReport)
	assert.Equal(t, "t1", s.ThreadID)
	assert.Equal(t, "custom_embedding", s.EmbeddingKey)
}

func TestMerge_DoesNotAliasUpdates(t *testing.T) {
	base := Merge(NewState("x", "", ""), Update{Updates: []string{"a"}})
	left := Merge(base, Update{Updates: []string{"b"}})
	right := Merge(base, Update{Updates: []string{"c"}})
	assert.Equal(t, []string{"a", "b"}, left.Updates)
	assert.Equal(t, []string{"a", "c"}, right.Updates)
	assert.Equal(t, []string{"a"}, base.Updates)
}

func TestState_JSONFieldNames(t *testing.T) {
	s := NewState("noise", "t1", "")
	s.SimilarIssues = []SimilarIssue{{ID: "abc", Issue: "i", Recommendation: "r"}}
	s.NextStep = StepEmbed
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "noise", raw["issue_report"])
	assert.Equal(t, "embed", raw["next_step"])
	assert.Contains(t, raw, "similar_issues_list")
	assert.Contains(t, raw, "updates")
	issue := raw["similar_issues_list"].([]any)[0].(map[string]any)
	assert.Equal(t, "abc", issue["_id"])
}
