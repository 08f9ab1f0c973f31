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
	"strings"
	"text/template"
)

// CriticalAlertPrefix starts every recommendation prompt of a critical run.
const CriticalAlertPrefix = "CRITICAL ALERT: "

// FallbackChainOfThought is used when the chat model cannot plan.
const FallbackChainOfThought = "1. Consume  data.\n" +
	"2. Generate an embedding for the complaint.\n" +
	"3. Perform a vector search on past issues.\n" +
	"4. Persist data into MongoDB.\n" +
	"5. Generate a final summary and recommendation."

// FallbackRecommendation is returned when the chat model cannot answer.
const FallbackRecommendation = "Unable to generate recommendation at this time"

var chainOfThoughtTemplate = template.Must(template.New("chain_of_thought").Parse(`
Agent Profile:
Instructions: {{.Profile}}
Rules: {{.Rules}}
Goals: {{.Goals}}


You are an AI agent designed to {{.AgentMotive}}. Given the issue report:
{{.IssueReport}}

Generate a detailed chain-of-thought reasoning that outlines the following steps:
1. Consume {{.DataConsumed}}.
2. Generate an embedding for the complaint using {{.EmbeddingModel}}
3. Perform a vector search on past issues in MongoDB Atlas.
4. Persist {{.DataConsumed}} into MongoDB.
5. Use {{.ChatModel}}'s ChatCompletion model to generate a final summary and recommendation.

Please provide your chain-of-thought as a numbered list with explanations for each step.
`))

var recommendationTemplate = template.Must(template.New("recommendation").Parse(`
You are a vehicle maintenance advisor. {{.CriticalInfo}}

Given the following telemetry data and past similar issues, please analyze the data and recommend an immediate action (continue driving, pull off the road, or schedule maintenance) with a clear explanation.

Telemetry Data: {{.TelemetryData}}

Similar Past Issues: {{.SimilarIssues}}
`))

// ChainOfThoughtParams fills the reasoning prompt.
type ChainOfThoughtParams struct {
	Profile        string
	Rules          string
	Goals          string
	AgentMotive    string
	IssueReport    string
	DataConsumed   string
	EmbeddingModel string
	ChatModel      string
}

// ChainOfThoughtPrompt renders the reasoning prompt.
func ChainOfThoughtPrompt(p ChainOfThoughtParams) string {
	var b strings.Builder
	_ = chainOfThoughtTemplate.Execute(&b, p)
	return strings.TrimSpace(b.String())
}

// CriticalInfo summarizes the findings for the recommendation prompt.
func CriticalInfo(findings []string) string {
	if len(findings) == 0 {
		return ""
	}
	return "The following critical conditions were detected: " + strings.Join(findings, "; ") + "."
}

// RecommendationPrompt renders the final prompt. Critical runs get the
// CRITICAL ALERT prefix.
func RecommendationPrompt(s State, findings []string) string {
	var b strings.Builder
	_ = recommendationTemplate.Execute(&b, struct {
		CriticalInfo  string
		TelemetryData string
		SimilarIssues string
	}{
		CriticalInfo:  CriticalInfo(findings),
		TelemetryData: toJSON(s.TelemetryData),
		SimilarIssues: toJSON(similarForPrompt(s.SimilarIssues)),
	})
	prompt := strings.TrimSpace(b.String())
	if len(findings) > 0 {
		prompt = CriticalAlertPrefix + prompt
	}
	return prompt
}

type promptIssue struct {
	Issue          string `json:"issue"`
	Recommendation string `json:"recommendation"`
}

func similarForPrompt(issues []SimilarIssue) []promptIssue {
	out := make([]promptIssue, 0, len(issues))
	for _, i := range issues {
		out = append(out, promptIssue{Issue: i.Issue, Recommendation: i.Recommendation})
	}
	return out
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return "[]"
	}
	return string(b)
}
