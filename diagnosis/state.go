//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package diagnosis implements the vehicle maintenance workflow: the state
// threaded through the run, the steps, the severity router and the graph
// that wires them together.
package diagnosis

import (
	"fmt"

	"trpc.group/trpc-go/maintenance-agent-go/graph"
	"trpc.group/trpc-go/maintenance-agent-go/vehicle"
)

// StepID names one workflow step.
type StepID string

// Workflow steps in execution order.
const (
	StepReasoning     StepID = "reasoning"
	StepRetrieve      StepID = "retrieve"
	StepProcess       StepID = "process"
	StepEmbed         StepID = "embed"
	StepSearch        StepID = "search"
	StepProcessSearch StepID = "process_search"
	StepPersist       StepID = "persist"
	StepRecommend     StepID = "recommend"
	StepEnd           StepID = "end"
)

// Steps lists every executable step in execution order.
var Steps = []StepID{
	StepReasoning, StepRetrieve, StepProcess, StepEmbed, StepSearch,
	StepProcessSearch, StepPersist, StepRecommend,
}

func (s StepID) String() string {
	return string(s)
}

// Valid reports whether s is a known step or the terminal.
func (s StepID) Valid() bool {
	if s == StepEnd {
		return true
	}
	for _, id := range Steps {
		if id == s {
			return true
		}
	}
	return false
}

// NodeID maps the step to its graph node name.
func (s StepID) NodeID() string {
	if s == StepEnd {
		return graph.End
	}
	return string(s)
}

// ParseStepID converts a name into a StepID.
func ParseStepID(name string) (StepID, error) {
	if name == graph.End {
		return StepEnd, nil
	}
	id := StepID(name)
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, name)
	}
	return id, nil
}

// SimilarIssue is one past issue returned by the similarity search.
type SimilarIssue struct {
	ID             string  `json:"_id,omitempty"`
	Issue          string  `json:"issue"`
	Recommendation string  `json:"recommendation"`
	Score          float64 `json:"score,omitempty"`
}

// State is the record threaded through every step.
type State struct {
	IssueReport        string                    `json:"issue_report"`
	ChainOfThought     string                    `json:"chain_of_thought,omitempty"`
	TelemetryData      []vehicle.TelemetryRecord `json:"telemetry_data,omitempty"`
	EmbeddingVector    []float64                 `json:"embedding_vector,omitempty"`
	SimilarIssues      []SimilarIssue            `json:"similar_issues_list,omitempty"`
	RecommendationText string                    `json:"recommendation_text,omitempty"`
	NextStep           StepID                    `json:"next_step,omitempty"`
	Updates            []string                  `json:"updates"`
	ThreadID           string                    `json:"thread_id,omitempty"`
	EmbeddingKey       string                    `json:"embedding_key,omitempty"`
	CriticalConditions []string                  `json:"critical_conditions,omitempty"`
}

// Update is the partial result of one step. Nil fields leave the state
// unchanged. Updates are appended, never replaced.
type Update struct {
	ChainOfThought     *string
	TelemetryData      *[]vehicle.TelemetryRecord
	EmbeddingVector    *[]float64
	SimilarIssues      *[]SimilarIssue
	RecommendationText *string
	NextStep           *StepID
	CriticalConditions *[]string
	Updates            []string
}

// Merge applies u to s field by field. The issue report, thread id and
// embedding key belong to the caller and are never touched.
func Merge(s State, u Update) State {
	if u.ChainOfThought != nil {
		s.ChainOfThought = *u.ChainOfThought
	}
	if u.TelemetryData != nil {
		s.TelemetryData = *u.TelemetryData
	}
	if u.EmbeddingVector != nil {
		s.EmbeddingVector = *u.EmbeddingVector
	}
	if u.SimilarIssues != nil {
		s.SimilarIssues = *u.SimilarIssues
	}
	if u.RecommendationText != nil {
		s.RecommendationText = *u.RecommendationText
	}
	if u.NextStep != nil {
		s.NextStep = *u.NextStep
	}
	if u.CriticalConditions != nil {
		s.CriticalConditions = *u.CriticalConditions
	}
	if len(u.Updates) > 0 {
		updates := make([]string, 0, len(s.Updates)+len(u.Updates))
		updates = append(updates, s.Updates...)
		s.Updates = append(updates, u.Updates...)
	}
	return s
}

// ptr returns a pointer to v.
func ptr[T any](v T) *T {
	return &v
}
