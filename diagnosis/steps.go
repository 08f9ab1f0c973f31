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
	"context"
	"strings"

	"trpc.group/trpc-go/maintenance-agent-go/graph"
	"trpc.group/trpc-go/maintenance-agent-go/knowledge/embedder"
	"trpc.group/trpc-go/maintenance-agent-go/knowledge/vectorstore"
	"trpc.group/trpc-go/maintenance-agent-go/log"
	"trpc.group/trpc-go/maintenance-agent-go/model"
	"trpc.group/trpc-go/maintenance-agent-go/persistence"
	"trpc.group/trpc-go/maintenance-agent-go/vehicle"
)

// Progress messages appended to State.Updates.
const (
	MsgChainOfThought         = "Chain-of-thought generated."
	MsgChainOfThoughtFallback = "[LLM] Error generating chain of thought; using default plan."
	MsgDataProcessed          = "[Tool] Processed telemetry data."
	MsgEmbedded               = "[LLM] Generated embedding for the issue report."
	MsgEmbedFallback          = "[LLM] Embedding failed; using zero vector."
	MsgVectorSearch           = "[Tool] Performing MongoDB Atlas Vector Search"
	MsgSimilarFound           = "[MongoDB] Retrieved similar data."
	MsgSimilarNotFound        = "[MongoDB] No similar data found."
	MsgSimilarError           = "[MongoDB] Error during Vector Search operation."
	MsgSearchProcessed        = "[Tool] Processed vector search results."
	MsgPersisted              = "[MongoDB] Persisted telemetry data and run log."
	MsgPersistFailed          = "[MongoDB] Error during data persistence."
	MsgCritical               = "[Tool] Critical telemetry conditions detected."
	MsgRecommendation         = "[LLM] Recommendation generated."
	MsgRecommendationFallback = "[LLM] Error generating recommendation."
	MsgRecommendationSaveFail = "[MongoDB] Error saving recommendation."
)

// InitialSimilarIssues is returned when no vector store is configured.
var InitialSimilarIssues = []SimilarIssue{
	{Issue: "Engine knocking when turning", Recommendation: "Inspect spark plugs and engine oil."},
	{Issue: "Suspension noise under load", Recommendation: "Check suspension components for wear."},
}

// NoSimilarIssues is returned when the search finds nothing.
var NoSimilarIssues = []SimilarIssue{
	{Issue: "No similar issues found", Recommendation: "No immediate action based on past data."},
}

// SearchErrorIssues is returned when the search fails.
var SearchErrorIssues = []SimilarIssue{
	{Issue: "MongoDB Vector Search operation error", Recommendation: "Please try again later."},
}

// stepRunner holds the collaborators of every step.
type stepRunner struct {
	deps Dependencies
	opts *options
}

// call runs fn under the retry policy with a per-attempt timeout.
func call[T any](ctx context.Context, o *options, fn func(ctx context.Context) (T, error)) (T, error) {
	p := o.retry
	p.PerAttemptTimeout = o.callTimeout
	return graph.Do(ctx, p, fn)
}

// write runs a non-idempotent call once with the per-call timeout.
func write[T any](ctx context.Context, o *options, fn func(ctx context.Context) (T, error)) (T, error) {
	p := o.retry
	p.MaxAttempts = 1
	p.PerAttemptTimeout = o.callTimeout
	return graph.Do(ctx, p, fn)
}

func (r *stepRunner) reasoning(ctx context.Context, s State) (Update, error) {
	log.Info("[LLM] Chain-of-Thought Reasoning")
	prompt := ChainOfThoughtPrompt(ChainOfThoughtParams{
		Profile:        r.opts.profile.Profile,
		Rules:          r.opts.profile.Rules,
		Goals:          r.opts.profile.Goals,
		AgentMotive:    r.opts.motive,
		IssueReport:    s.IssueReport,
		DataConsumed:   r.opts.dataConsumed,
		EmbeddingModel: r.opts.embedModelName,
		ChatModel:      r.opts.chatModelName,
	})
	log.Debugf("chain-of-thought prompt:\n%s", prompt)

	msgs := []string{MsgChainOfThought}
	cot, err := call(ctx, r.opts, func(ctx context.Context) (string, error) {
		return model.Predict(ctx, r.deps.ChatModel, prompt)
	})
	if err != nil {
		log.Errorf("[LLM] error generating chain of thought: %v", err)
		cot = FallbackChainOfThought
		msgs = []string{MsgChainOfThoughtFallback, MsgChainOfThought}
	}
	log.Debugf("chain of thought:\n%s", cot)
	return Update{
		ChainOfThought: ptr(cot),
		NextStep:       ptr(StepRetrieve),
		Updates:        msgs,
	}, nil
}

func (r *stepRunner) retrieve(ctx context.Context, s State) (Update, error) {
	desc := r.deps.Telemetry.Description()
	records, err := call(ctx, r.opts, r.deps.Telemetry.Load)
	if err != nil {
		log.Errorf("[Tool] error retrieving data from %s: %v", desc, err)
		return Update{
			TelemetryData: ptr([]vehicle.TelemetryRecord{}),
			NextStep:      ptr(StepProcess),
			Updates:       []string{"[Tool] Error retrieving data from " + desc + "."},
		}, nil
	}
	msg := "[Tool] Retrieved data from " + desc + "."
	log.Info(msg)
	for i := range records {
		if reset := records[i].Sanitize(); len(reset) > 0 {
			log.Warnf("[Tool] telemetry record %d from %s: non-finite %v reset to 0", i, desc, reset)
		}
		log.Debugf("%+v", records[i])
	}
	return Update{
		TelemetryData: ptr(records),
		NextStep:      ptr(StepProcess),
		Updates:       []string{msg},
	}, nil
}

func (r *stepRunner) process(ctx context.Context, s State) (Update, error) {
	next := StepEmbed
	if r.opts.severityMode == SeverityModeBranch && IsCritical(s.TelemetryData) {
		next = StepPersist
	}
	return Update{NextStep: ptr(next), Updates: []string{MsgDataProcessed}}, nil
}

func (r *stepRunner) embed(ctx context.Context, s State) (Update, error) {
	vec, err := call(ctx, r.opts, func(ctx context.Context) ([]float64, error) {
		return r.deps.Embedder.GetEmbedding(ctx, s.IssueReport)
	})
	if err == nil && len(vec) == 0 {
		err = errEmptyEmbedding
	}
	if err != nil {
		log.Errorf("[LLM] error generating embedding: %v", err)
		return Update{
			EmbeddingVector: ptr(embedder.ZeroVector(r.opts.dimensions)),
			NextStep:        ptr(StepSearch),
			Updates:         []string{MsgEmbedFallback},
		}, nil
	}
	return Update{
		EmbeddingVector: ptr(vec),
		NextStep:        ptr(StepSearch),
		Updates:         []string{MsgEmbedded},
	}, nil
}

func (r *stepRunner) search(ctx context.Context, s State) (Update, error) {
	log.Info(MsgVectorSearch)
	msgs := []string{MsgVectorSearch}
	if r.deps.VectorStore == nil {
		return Update{
			SimilarIssues: ptr(cloneIssues(InitialSimilarIssues)),
			NextStep:      ptr(StepProcessSearch),
			Updates:       msgs,
		}, nil
	}
	query := &vectorstore.SearchQuery{
		Vector:        s.EmbeddingVector,
		Path:          vectorstore.ResolvePath(s.EmbeddingKey, r.opts.vectorCollection),
		NumCandidates: r.opts.numCandidates,
		Limit:         r.opts.searchLimit,
	}
	result, err := call(ctx, r.opts, func(ctx context.Context) (*vectorstore.SearchResult, error) {
		return r.deps.VectorStore.Search(ctx, query)
	})
	var issues []SimilarIssue
	switch {
	case err != nil:
		log.Errorf("[MongoDB] error during vector search on %s: %v", query.Path, err)
		issues = cloneIssues(SearchErrorIssues)
		msgs = append(msgs, MsgSimilarError)
	case len(result.Results) == 0:
		log.Info("[MongoDB] No similar data found. Returning default message.")
		issues = cloneIssues(NoSimilarIssues)
		msgs = append(msgs, MsgSimilarNotFound)
	default:
		log.Info("[MongoDB] Retrieved similar data from vector search.")
		for _, sd := range result.Results {
			issues = append(issues, SimilarIssue{
				ID:             sd.Document.ID,
				Issue:          sd.Document.Issue,
				Recommendation: sd.Document.Recommendation,
				Score:          sd.Score,
			})
		}
		msgs = append(msgs, MsgSimilarFound)
	}
	return Update{
		SimilarIssues: ptr(issues),
		NextStep:      ptr(StepProcessSearch),
		Updates:       msgs,
	}, nil
}

func (r *stepRunner) processSearch(ctx context.Context, s State) (Update, error) {
	return Update{NextStep: ptr(StepPersist), Updates: []string{MsgSearchProcessed}}, nil
}

func (r *stepRunner) persist(ctx context.Context, s State) (Update, error) {
	_, err := call(ctx, r.opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.deps.Store.EnsureTelemetryCollection(ctx)
	})
	if err == nil {
		_, err = write(ctx, r.opts, func(ctx context.Context) (int, error) {
			return r.deps.Store.InsertTelemetry(ctx, s.ThreadID, s.TelemetryData)
		})
	}
	if err == nil {
		_, err = write(ctx, r.opts, func(ctx context.Context) (string, error) {
			return r.deps.Store.AppendLog(ctx, persistence.LogEntry{
				ThreadID: s.ThreadID,
				Step:     StepPersist.String(),
				Message:  MsgPersisted,
				Updates:  s.Updates,
			})
		})
	}
	msg := MsgPersisted
	if err != nil {
		log.Errorf("[MongoDB] error persisting run data: %v", err)
		msg = MsgPersistFailed
	} else {
		log.Info(msg)
	}
	return Update{NextStep: ptr(StepRecommend), Updates: []string{msg}}, nil
}

func (r *stepRunner) recommend(ctx context.Context, s State) (Update, error) {
	findings := EvaluateSeverity(s.TelemetryData)
	var msgs []string
	if len(findings) > 0 {
		log.Warnf("critical conditions: %s", strings.Join(findings, "; "))
		msgs = append(msgs, MsgCritical)
	}
	prompt := RecommendationPrompt(s, findings)
	log.Debugf("recommendation prompt:\n%s", prompt)

	text, err := call(ctx, r.opts, func(ctx context.Context) (string, error) {
		return model.Predict(ctx, r.deps.ChatModel, prompt)
	})
	if err != nil {
		log.Errorf("[LLM] error generating recommendation: %v", err)
		text = FallbackRecommendation
		msgs = append(msgs, MsgRecommendationFallback)
	} else {
		msgs = append(msgs, MsgRecommendation)
	}

	_, err = write(ctx, r.opts, func(ctx context.Context) (string, error) {
		return r.deps.Store.InsertRecommendation(ctx, persistence.Recommendation{
			ThreadID:           s.ThreadID,
			IssueReport:        s.IssueReport,
			Recommendation:     text,
			CriticalConditions: findings,
		})
	})
	if err != nil {
		log.Errorf("[MongoDB] error saving recommendation: %v", err)
		msgs = append(msgs, MsgRecommendationSaveFail)
	}
	if findings == nil {
		findings = []string{}
	}
	return Update{
		RecommendationText: ptr(text),
		CriticalConditions: ptr(findings),
		NextStep:           ptr(StepEnd),
		Updates:            msgs,
	}, nil
}

func cloneIssues(in []SimilarIssue) []SimilarIssue {
	return append([]SimilarIssue(nil), in...)
}
