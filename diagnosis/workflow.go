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
	"fmt"

	"trpc.group/trpc-go/maintenance-agent-go/graph"
)

// Runnable is the compiled diagnosis workflow.
type Runnable = graph.Runnable[State, Update]

var stepNames = map[StepID]string{
	StepReasoning:     "Chain-of-thought reasoning",
	StepRetrieve:      "Retrieve telemetry",
	StepProcess:       "Process telemetry",
	StepEmbed:         "Embed issue report",
	StepSearch:        "Vector search",
	StepProcessSearch: "Process search results",
	StepPersist:       "Persist run data",
	StepRecommend:     "Generate recommendation",
}

// NewState returns the initial state of a run.
func NewState(issueReport, threadID, embeddingKey string) State {
	return State{
		IssueReport:  issueReport,
		ThreadID:     threadID,
		EmbeddingKey: embeddingKey,
		Updates:      []string{},
	}
}

// Build wires the steps into a compiled graph:
//
//	reasoning -> retrieve -> process -(standard)-> embed -> search
//	  -> process_search -> persist -> recommend -> end
//
// In branch severity mode a critical process step jumps straight to persist.
func Build(deps Dependencies, opts ...Option) (*Runnable, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if _, err := ParseSeverityMode(string(o.severityMode)); err != nil {
		return nil, err
	}

	r := &stepRunner{deps: deps, opts: o}
	funcs := map[StepID]graph.NodeFunc[State, Update]{
		StepReasoning:     r.reasoning,
		StepRetrieve:      r.retrieve,
		StepProcess:       r.process,
		StepEmbed:         r.embed,
		StepSearch:        r.search,
		StepProcessSearch: r.processSearch,
		StepPersist:       r.persist,
		StepRecommend:     r.recommend,
	}

	sg := graph.NewStateGraph(Merge)
	for _, id := range Steps {
		fn, ok := funcs[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStep, id)
		}
		sg.AddNode(id.NodeID(), fn, graph.WithName(stepNames[id]))
	}
	sg.AddEdge(StepReasoning.NodeID(), StepRetrieve.NodeID()).
		AddEdge(StepRetrieve.NodeID(), StepProcess.NodeID()).
		AddConditionalEdges(StepProcess.NodeID(), SeverityRouter(o.severityMode), RouteTargets()).
		AddEdge(StepEmbed.NodeID(), StepSearch.NodeID()).
		AddEdge(StepSearch.NodeID(), StepProcessSearch.NodeID()).
		AddEdge(StepProcessSearch.NodeID(), StepPersist.NodeID()).
		AddEdge(StepPersist.NodeID(), StepRecommend.NodeID()).
		SetEntryPoint(StepReasoning.NodeID()).
		SetFinishPoint(StepRecommend.NodeID())
	return sg.Compile(o.compileOptions...)
}

func (d Dependencies) validate() error {
	switch {
	case d.ChatModel == nil:
		return fmt.Errorf("%w: chat model", ErrMissingDependency)
	case d.Embedder == nil:
		return fmt.Errorf("%w: embedder", ErrMissingDependency)
	case d.Telemetry == nil:
		return fmt.Errorf("%w: telemetry source", ErrMissingDependency)
	case d.Store == nil:
		return fmt.Errorf("%w: persistence store", ErrMissingDependency)
	}
	return nil
}
