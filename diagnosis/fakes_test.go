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
	"errors"
	"strings"
	"sync"

	"trpc.group/trpc-go/maintenance-agent-go/knowledge/vectorstore"
	"trpc.group/trpc-go/maintenance-agent-go/model"
	"trpc.group/trpc-go/maintenance-agent-go/vehicle"
)

// fakeModel answers reasoning prompts with cot and everything else with
// reply. Prompts are recorded in call order.
type fakeModel struct {
	mu      sync.Mutex
	cot     string
	reply   string
	err     error
	prompts []string
}

func (m *fakeModel) GenerateContent(ctx context.Context, req *model.Request) (<-chan *model.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prompt := req.Messages[len(req.Messages)-1].Content
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return nil, m.err
	}
	text := m.reply
	if strings.Contains(prompt, "chain-of-thought reasoning") {
		text = m.cot
	}
	ch := make(chan *model.Response, 1)
	ch <- &model.Response{Choices: []model.Choice{{Message: model.NewAssistantMessage(text)}}, Done: true}
	close(ch)
	return ch, nil
}

func (m *fakeModel) Info() model.Info { return model.Info{Name: "fake-chat", Provider: "test"} }

func (m *fakeModel) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

type fakeEmbedder struct {
	vec   []float64
	err   error
	calls int
}

func (e *fakeEmbedder) GetEmbedding(ctx context.Context, text string) ([]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

func (e *fakeEmbedder) GetDimensions() int { return len(e.vec) }

type fakeSource struct {
	records []vehicle.TelemetryRecord
	err     error
}

func (s *fakeSource) Load(ctx context.Context) ([]vehicle.TelemetryRecord, error) {
	return s.records, s.err
}

func (s *fakeSource) Description() string { return "CSV file" }

// failingVectorStore fails every search.
type failingVectorStore struct{}

var errSearchFailed = errors.New("search failed")

func (failingVectorStore) Add(ctx context.Context, doc *vectorstore.Document) error { return nil }

func (failingVectorStore) Search(ctx context.Context, q *vectorstore.SearchQuery) (*vectorstore.SearchResult, error) {
	return nil, errSearchFailed
}

func (failingVectorStore) Count(ctx context.Context) (int, error) { return 0, nil }

func (failingVectorStore) Close() error { return nil }
