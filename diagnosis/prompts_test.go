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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"trpc.group/trpc-go/maintenance-agent-go/vehicle"
)

func TestChainOfThoughtPrompt(t *testing.T) {
	p := ChainOfThoughtPrompt(ChainOfThoughtParams{
		Profile:        "You are a maintenance expert.",
		AgentMotive:    "diagnose vehicles",
		IssueReport:    "engine noise",
		DataConsumed:   "telemetry",
		EmbeddingModel: "text-embedding-3-small",
		ChatModel:      "gpt-4o",
	})
	assert.True(t, strings.HasPrefix(p, "Agent Profile:"))
	assert.Contains(t, p, "Instructions: You are a maintenance expert.")
	assert.Contains(t, p, "You are an AI agent designed to diagnose vehicles. Given the issue report:\nengine noise")
	assert.Contains(t, p, "1. Consume telemetry.")
	assert.Contains(t, p, "using text-embedding-3-small")
	assert.Contains(t, p, "Use gpt-4o's ChatCompletion model")
}

func TestCriticalInfo(t *testing.T) {
	assert.Equal(t, "", CriticalInfo(nil))
	assert.Equal(t, "The following critical conditions were detected: a; b.", CriticalInfo([]string{"a", "b"}))
}

func TestRecommendationPrompt(t *testing.T) {
	s := State{
		TelemetryData: []vehicle.TelemetryRecord{{EngineTemperature: 99, OilPressure: 33}},
		SimilarIssues: []SimilarIssue{{ID: "x", Issue: "knock", Recommendation: "plugs", Score: 0.9}},
	}
	p := RecommendationPrompt(s, nil)
	assert.True(t, strings.HasPrefix(p, "You are a vehicle maintenance advisor."))
	assert.Contains(t, p, `"engine_temperature":99`)
	assert.Contains(t, p, `Similar Past Issues: [{"issue":"knock","recommendation":"plugs"}]`)
	assert.NotContains(t, p, "0.9")

	critical := RecommendationPrompt(s, []string{"Critical engine temperature: 105.0°C"})
	assert.True(t, strings.HasPrefix(critical, CriticalAlertPrefix+"You are a vehicle maintenance advisor. The following"))
}

func TestRecommendationPrompt_EmptyState(t *testing.T) {
	p := RecommendationPrompt(State{}, nil)
	assert.Contains(t, p, "Telemetry Data: []")
	assert.Contains(t, p, "Similar Past Issues: []")
}
