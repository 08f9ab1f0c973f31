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
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/maintenance-agent-go/dataset"
	"trpc.group/trpc-go/maintenance-agent-go/graph"
	checkpointinmemory "trpc.group/trpc-go/maintenance-agent-go/graph/checkpoint/inmemory"
	"trpc.group/trpc-go/maintenance-agent-go/knowledge/vectorstore"
	vsinmemory "trpc.group/trpc-go/maintenance-agent-go/knowledge/vectorstore/inmemory"
	"trpc.group/trpc-go/maintenance-agent-go/persistence/inmemory"
	"trpc.group/trpc-go/maintenance-agent-go/vehicle"
)

var normalRecords = []vehicle.TelemetryRecord{
	{Timestamp: time.Date(2025, 2, 19, 13, 0, 0, 0, time.UTC), EngineTemperature: 99, OilPressure: 33, AvgFuelConsumption: 8.8},
}

var criticalRecords = []vehicle.TelemetryRecord{
	{Timestamp: time.Date(2025, 2, 19, 13, 0, 0, 0, time.UTC), EngineTemperature: 105, OilPressure: 33, AvgFuelConsumption: 9.1},
}

type fixture struct {
	chat   *fakeModel
	emb    *fakeEmbedder
	source *fakeSource
	store  *inmemory.Store
	vs     vectorstore.VectorStore
}

func newFixture(records []vehicle.TelemetryRecord) *fixture {
	return &fixture{
		chat:   &fakeModel{cot: "1. Consume data.", reply: "Schedule maintenance."},
		emb:    &fakeEmbedder{vec: []float64{1, 0, 0}},
		source: &fakeSource{records: records},
		store:  inmemory.New(),
	}
}

func (f *fixture) deps() Dependencies {
	return Dependencies{
		ChatModel:   f.chat,
		Embedder:    f.emb,
		VectorStore: f.vs,
		Telemetry:   f.source,
		Store:       f.store,
	}
}

func (f *fixture) run(t *testing.T, threadID string, opts ...Option) State {
	t.Helper()
	r, err := Build(f.deps(), opts...)
	require.NoError(t, err)
	final, err := r.Invoke(context.Background(), NewState("engine noise", threadID, ""), graph.Config{ThreadID: threadID})
	require.NoError(t, err)
	return final
}

func TestBuild_MissingDependencies(t *testing.T) {
	f := newFixture(normalRecords)
	for name, mutate := range map[string]func(*Dependencies){
		"chat":      func(d *Dependencies) { d.ChatModel = nil },
		"embedder":  func(d *Dependencies) { d.Embedder = nil },
		"telemetry": func(d *Dependencies) { d.Telemetry = nil },
		"store":     func(d *Dependencies) { d.Store = nil },
	} {
		t.Run(name, func(t *testing.T) {
			d := f.deps()
			mutate(&d)
			_, err := Build(d)
			require.ErrorIs(t, err, ErrMissingDependency)
		})
	}
}

func TestBuild_InvalidSeverityMode(t *testing.T) {
	_, err := Build(newFixture(nil).deps(), WithSeverityMode("loud"))
	require.ErrorIs(t, err, ErrInvalidSeverityMode)
}

func TestBuild_GraphShape(t *testing.T) {
	r, err := Build(newFixture(nil).deps())
	require.NoError(t, err)
	g := r.Graph()
	assert.Equal(t, "reasoning", g.EntryPoint())
	assert.Len(t, g.Nodes(), len(Steps))
	cond, ok := g.ConditionalEdge("process")
	require.True(t, ok)
	assert.Equal(t, "embed", cond.PathMap[RouteStandard])
	assert.Equal(t, "persist", cond.PathMap[RouteCritical])
}

func TestWorkflow_NormalRun(t *testing.T) {
	f := newFixture(normalRecords)
	final := f.run(t, "thread-1")

	assert.Equal(t, "engine noise", final.IssueReport)
	assert.Equal(t, "1. Consume data.", final.ChainOfThought)
	assert.Equal(t, normalRecords, final.TelemetryData)
	assert.Equal(t, []float64{1, 0, 0}, final.EmbeddingVector)
	assert.Equal(t, InitialSimilarIssues, final.SimilarIssues)
	assert.Equal(t, "Schedule maintenance.", final.RecommendationText)
	assert.Empty(t, final.CriticalConditions)
	assert.Equal(t, StepEnd, final.NextStep)
	assert.Equal(t, []string{
		MsgChainOfThought,
		"[Tool] Retrieved data from CSV file.",
		MsgDataProcessed,
		MsgEmbedded,
		MsgVectorSearch,
		MsgSearchProcessed,
		MsgPersisted,
		MsgRecommendation,
	}, final.Updates)

	prompt := f.chat.lastPrompt()
	assert.NotContains(t, prompt, CriticalAlertPrefix)
	assert.Contains(t, prompt, `"engine_temperature":99`)
	assert.Contains(t, prompt, "Engine knocking when turning")

	docs, err := f.store.RunDocuments(context.Background(), "thread-1")
	require.NoError(t, err)
	require.Len(t, docs.Logs, 1)
	assert.Equal(t, "persist", docs.Logs[0].Step)
	assert.Equal(t, final.Updates[:6], docs.Logs[0].Updates)
	require.Len(t, docs.Recommendations, 1)
	assert.Equal(t, "Schedule maintenance.", docs.Recommendations[0].Recommendation)
	assert.Equal(t, 1, f.store.TelemetryCount("thread-1"))
	assert.True(t, f.store.Ensured())
}

func TestWorkflow_CriticalRunCosmeticMode(t *testing.T) {
	f := newFixture(criticalRecords)
	final := f.run(t, "thread-critical")

	assert.Equal(t, []string{"Critical engine temperature: 105.0°C"}, final.CriticalConditions)
	assert.Equal(t, 1, f.emb.calls)
	assert.Contains(t, final.Updates, MsgEmbedded)
	assert.Contains(t, final.Updates, MsgCritical)

	prompt := f.chat.lastPrompt()
	assert.True(t, len(prompt) > len(CriticalAlertPrefix))
	assert.Equal(t, CriticalAlertPrefix, prompt[:len(CriticalAlertPrefix)])
	assert.Contains(t, prompt, "Critical engine temperature: 105.0°C")

	docs, err := f.store.RunDocuments(context.Background(), "thread-critical")
	require.NoError(t, err)
	require.Len(t, docs.Recommendations, 1)
	assert.Equal(t, final.CriticalConditions, docs.Recommendations[0].CriticalConditions)
}

func TestWorkflow_CriticalRunBranchMode(t *testing.T) {
	f := newFixture(criticalRecords)
	final := f.run(t, "thread-branch", WithSeverityMode(SeverityModeBranch))

	assert.Zero(t, f.emb.calls)
	assert.Empty(t, final.EmbeddingVector)
	assert.Empty(t, final.SimilarIssues)
	assert.NotContains(t, final.Updates, MsgVectorSearch)
	assert.Contains(t, final.Updates, MsgPersisted)
	assert.Equal(t, CriticalAlertPrefix, f.chat.lastPrompt()[:len(CriticalAlertPrefix)])
}

func TestWorkflow_NormalRunBranchModeTakesStandardPath(t *testing.T) {
	f := newFixture(normalRecords)
	final := f.run(t, "thread-branch-ok", WithSeverityMode(SeverityModeBranch))
	assert.Equal(t, 1, f.emb.calls)
	assert.Contains(t, final.Updates, MsgVectorSearch)
}

func TestWorkflow_EmbeddingFailureUsesZeroVector(t *testing.T) {
	f := newFixture(normalRecords)
	f.emb.err = errors.New("quota exceeded")
	final := f.run(t, "thread-embed")

	require.Len(t, final.EmbeddingVector, 1024)
	for _, v := range final.EmbeddingVector {
		require.Zero(t, v)
	}
	assert.Contains(t, final.Updates, MsgEmbedFallback)
	assert.Equal(t, StepEnd, final.NextStep)
}

func TestWorkflow_EmbeddingFailureHonoursDimensions(t *testing.T) {
	f := newFixture(normalRecords)
	f.emb.err = errors.New("quota exceeded")
	final := f.run(t, "thread-dims", WithDimensions(8))
	assert.Len(t, final.EmbeddingVector, 8)
}

func TestWorkflow_SearchResults(t *testing.T) {
	ctx := context.Background()
	vs := vsinmemory.New()
	require.NoError(t, vs.Add(ctx, &vectorstore.Document{
		Issue:          "Engine rattles at idle",
		Recommendation: "Check the timing chain.",
		Embeddings:     map[string][]float64{"historical_recommendations_embedding": {1, 0, 0}},
	}))
	f := newFixture(normalRecords)
	f.vs = vs
	final := f.run(t, "thread-search", WithVectorCollection("historical_recommendations"))

	require.Len(t, final.SimilarIssues, 1)
	assert.Equal(t, "Engine rattles at idle", final.SimilarIssues[0].Issue)
	assert.InDelta(t, 1.0, final.SimilarIssues[0].Score, 1e-9)
	assert.Contains(t, final.Updates, MsgSimilarFound)
	assert.Contains(t, f.chat.lastPrompt(), "Check the timing chain.")
}

func TestWorkflow_SearchEmpty(t *testing.T) {
	f := newFixture(normalRecords)
	f.vs = vsinmemory.New()
	final := f.run(t, "thread-empty")

	assert.Equal(t, NoSimilarIssues, final.SimilarIssues)
	assert.Contains(t, final.Updates, MsgVectorSearch)
	assert.Contains(t, final.Updates, MsgSimilarNotFound)
}

func TestWorkflow_SearchError(t *testing.T) {
	f := newFixture(normalRecords)
	f.vs = failingVectorStore{}
	final := f.run(t, "thread-search-error")

	assert.Equal(t, SearchErrorIssues, final.SimilarIssues)
	assert.Contains(t, final.Updates, MsgSimilarError)
	assert.Equal(t, StepEnd, final.NextStep)
}

func TestWorkflow_ChatFailureUsesFallbacks(t *testing.T) {
	f := newFixture(normalRecords)
	f.chat.err = errors.New("unauthorized")
	final := f.run(t, "thread-chat")

	assert.Equal(t, FallbackChainOfThought, final.ChainOfThought)
	assert.Equal(t, FallbackRecommendation, final.RecommendationText)
	assert.Contains(t, final.Updates, MsgRecommendationFallback)
}

func TestWorkflow_RetrieveFailure(t *testing.T) {
	f := newFixture(nil)
	f.source.err = errors.New("file not found")
	final := f.run(t, "thread-retrieve")

	assert.Empty(t, final.TelemetryData)
	assert.Contains(t, final.Updates, "[Tool] Error retrieving data from CSV file.")
	assert.Equal(t, StepEnd, final.NextStep)
}

func TestWorkflow_UpdatesGrowMonotonically(t *testing.T) {
	f := newFixture(normalRecords)
	saver := checkpointinmemory.NewSaver()
	r, err := Build(f.deps(), WithCompileOptions(graph.WithCheckpointer(saver)))
	require.NoError(t, err)
	_, err = r.Invoke(context.Background(), NewState("engine noise", "thread-mono", ""), graph.Config{ThreadID: "thread-mono"})
	require.NoError(t, err)

	cps, err := saver.List(context.Background(), "thread-mono", 0)
	require.NoError(t, err)
	require.Len(t, cps, len(Steps)+1)
	prev := []string{}
	for i := len(cps) - 1; i >= 0; i-- {
		var s State
		require.NoError(t, json.Unmarshal(cps[i].State, &s))
		require.GreaterOrEqual(t, len(s.Updates), len(prev))
		assert.Equal(t, prev, s.Updates[:len(prev)])
		prev = s.Updates
	}
	assert.Len(t, prev, 8)
}

func TestWorkflow_PersistTwiceKeepsBothLogs(t *testing.T) {
	f := newFixture(normalRecords)
	f.run(t, "thread-twice")
	f.run(t, "thread-twice")

	docs, err := f.store.RunDocuments(context.Background(), "thread-twice")
	require.NoError(t, err)
	assert.Len(t, docs.Logs, 2)
	assert.Len(t, docs.Recommendations, 2)
	assert.Equal(t, 2, f.store.TelemetryCount("thread-twice"))
}

func TestWorkflow_ResumeAfterInterruption(t *testing.T) {
	f := newFixture(normalRecords)
	saver := checkpointinmemory.NewSaver()
	interrupted := errors.New("interrupted")

	cb := graph.NewNodeCallbacks().RegisterBeforeNode(func(ctx context.Context, c *graph.NodeCallbackContext) error {
		if c.NodeID == StepSearch.NodeID() {
			return interrupted
		}
		return nil
	})
	first, err := Build(f.deps(), WithCompileOptions(graph.WithCheckpointer(saver), graph.WithNodeCallbacks(cb)))
	require.NoError(t, err)
	_, err = first.Invoke(context.Background(), NewState("engine noise", "thread-resume", ""), graph.Config{ThreadID: "thread-resume"})
	require.ErrorIs(t, err, interrupted)

	cp, err := saver.Load(context.Background(), "thread-resume")
	require.NoError(t, err)
	assert.Equal(t, StepSearch.NodeID(), cp.NextNode)

	second, err := Build(f.deps(), WithCompileOptions(graph.WithCheckpointer(saver)))
	require.NoError(t, err)
	final, err := second.Resume(context.Background(), graph.Config{ThreadID: "thread-resume"})
	require.NoError(t, err)
	assert.Equal(t, "Schedule maintenance.", final.RecommendationText)
	assert.Equal(t, 1, f.emb.calls)
	assert.Len(t, final.Updates, 8)
}

const telemetryHeader = "timestamp,engine_temperature,oil_pressure,avg_fuel_consumption\n"

func TestWorkflow_FromCSVTelemetry(t *testing.T) {
	tests := []struct {
		name     string
		rows     string
		critical []string
		inPrompt []string
	}{
		{
			name:     "normal readings",
			rows:     "2025-02-19T13:00:00Z,99,33,8.8\n",
			inPrompt: []string{`"engine_temperature":99`, `"oil_pressure":33`},
		},
		{
			name:     "hot engine",
			rows:     "2025-02-19T13:00:00Z,105,33,8.8\n",
			critical: []string{"Critical engine temperature: 105.0°C"},
			inPrompt: []string{`"engine_temperature":105`},
		},
		{
			name:     "non-finite cell next to a hot row",
			rows:     "2025-02-19T13:00:00Z,NaN,33,8.8\n2025-02-19T13:05:00Z,105,33,8.8\n",
			critical: []string{"Critical engine temperature: 105.0°C"},
			inPrompt: []string{`"engine_temperature":0`, `"engine_temperature":105`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := dataset.ReadTelemetry(strings.NewReader(telemetryHeader + tt.rows))
			require.NoError(t, err)

			f := newFixture(records)
			saver := checkpointinmemory.NewSaver()
			r, err := Build(f.deps(), WithCompileOptions(graph.WithCheckpointer(saver)))
			require.NoError(t, err)
			final, err := r.Invoke(context.Background(), NewState("engine noise", "thread-csv", ""), graph.Config{ThreadID: "thread-csv"})
			require.NoError(t, err)

			if len(tt.critical) == 0 {
				assert.Empty(t, final.CriticalConditions)
			} else {
				assert.Equal(t, tt.critical, final.CriticalConditions)
			}
			prompt := f.chat.lastPrompt()
			assert.Equal(t, len(tt.critical) > 0, strings.HasPrefix(prompt, CriticalAlertPrefix))
			for _, want := range tt.inPrompt {
				assert.Contains(t, prompt, want)
			}

			cps, err := saver.List(context.Background(), "thread-csv", 0)
			require.NoError(t, err)
			assert.Len(t, cps, len(Steps)+1)
		})
	}
}

func TestWorkflow_NonFiniteSourceReadingsStayCheckpointed(t *testing.T) {
	f := newFixture([]vehicle.TelemetryRecord{
		{EngineTemperature: math.NaN(), OilPressure: 25, AvgFuelConsumption: math.Inf(1)},
	})
	saver := checkpointinmemory.NewSaver()
	r, err := Build(f.deps(), WithCompileOptions(graph.WithCheckpointer(saver)))
	require.NoError(t, err)
	final, err := r.Invoke(context.Background(), NewState("engine noise", "thread-inf", ""), graph.Config{ThreadID: "thread-inf"})
	require.NoError(t, err)

	require.Len(t, final.TelemetryData, 1)
	assert.Zero(t, final.TelemetryData[0].EngineTemperature)
	assert.Zero(t, final.TelemetryData[0].AvgFuelConsumption)
	assert.Equal(t, []string{"Low oil pressure: 25.0 psi"}, final.CriticalConditions)

	cps, err := saver.List(context.Background(), "thread-inf", 0)
	require.NoError(t, err)
	assert.Len(t, cps, len(Steps)+1)
}

// lateTimeoutStore applies every telemetry insert and then reports a
// deadline, as a server does when the reply is lost.
type lateTimeoutStore struct {
	*inmemory.Store
	inserts atomic.Int32
}

func (s *lateTimeoutStore) InsertTelemetry(ctx context.Context, threadID string, records []vehicle.TelemetryRecord) (int, error) {
	s.inserts.Add(1)
	if _, err := s.Store.InsertTelemetry(ctx, threadID, records); err != nil {
		return 0, err
	}
	return 0, context.DeadlineExceeded
}

func TestWorkflow_PersistDoesNotRetryInserts(t *testing.T) {
	f := newFixture(normalRecords)
	store := &lateTimeoutStore{Store: f.store}
	deps := f.deps()
	deps.Store = store
	policy := graph.WithSimpleRetry(3)
	policy.InitialInterval = time.Millisecond
	r, err := Build(deps, WithRetryPolicy(policy))
	require.NoError(t, err)
	final, err := r.Invoke(context.Background(), NewState("engine noise", "thread-once", ""), graph.Config{ThreadID: "thread-once"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), store.inserts.Load())
	assert.Equal(t, 1, f.store.TelemetryCount("thread-once"))
	assert.Contains(t, final.Updates, MsgPersistFailed)
	assert.True(t, f.store.Ensured())
}
