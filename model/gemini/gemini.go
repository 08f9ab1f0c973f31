//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini provides a Gemini chat model backed by google.golang.org/genai.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	itelemetry "trpc.group/trpc-go/maintenance-agent-go/internal/telemetry"
	"trpc.group/trpc-go/maintenance-agent-go/log"
	"trpc.group/trpc-go/maintenance-agent-go/model"
	"trpc.group/trpc-go/maintenance-agent-go/telemetry"
)

// ProviderName is reported by Info.
const ProviderName = "gemini"

var _ model.Model = (*Model)(nil)

// Model implements model.Model for the Gemini API.
type Model struct {
	client *genai.Client
	name   string
}

type options struct {
	apiKey        string
	clientOptions *genai.ClientConfig
}

// Option configures a Gemini model.
type Option func(*options)

// WithAPIKey sets the Google API key.
// APIKey priority: WithClientOptions > WithAPIKey.
func WithAPIKey(apiKey string) Option {
	return func(o *options) {
		o.apiKey = apiKey
	}
}

// WithClientOptions sets the genai client config.
func WithClientOptions(clientOptions *genai.ClientConfig) Option {
	return func(o *options) {
		c := *clientOptions
		o.clientOptions = &c
	}
}

// New creates a Gemini chat model.
func New(ctx context.Context, name string, opts ...Option) (*Model, error) {
	o := &options{clientOptions: &genai.ClientConfig{}}
	for _, opt := range opts {
		opt(o)
	}
	if o.clientOptions.APIKey == "" {
		o.clientOptions.APIKey = o.apiKey
	}
	if o.clientOptions.APIKey == "" {
		return nil, errors.New("gemini: api key is not provided")
	}
	if o.clientOptions.Backend == genai.BackendUnspecified {
		o.clientOptions.Backend = genai.BackendGeminiAPI
	}
	client, err := genai.NewClient(ctx, o.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Model{client: client, name: strings.TrimPrefix(name, "models/")}, nil
}

// Info implements the model.Model interface.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name, Provider: ProviderName}
}

// GenerateContent implements the model.Model interface.
func (m *Model) GenerateContent(ctx context.Context, request *model.Request) (<-chan *model.Response, error) {
	if request == nil {
		return nil, errors.New("request cannot be nil")
	}
	contents, config := convertRequest(request)
	if len(contents) == 0 {
		return nil, errors.New("request has no user or assistant messages")
	}

	responseChan := make(chan *model.Response, 1)
	go func() {
		defer close(responseChan)
		ctx, span := telemetry.Tracer.Start(ctx, itelemetry.SpanNameCallLLM)
		defer span.End()

		var response *model.Response
		rsp, err := m.client.Models.GenerateContent(ctx, m.name, contents, config)
		if err != nil {
			log.Errorf("[LLM] gemini generate content failed: %v", err)
			response = model.NewErrorResponse(model.ErrorTypeAPIError, err.Error())
		} else {
			response = convertResponse(m.name, rsp)
		}
		itelemetry.TraceCallLLM(span, ProviderName, m.name, lastUserText(request), response.Text())

		select {
		case responseChan <- response:
		case <-ctx.Done():
		}
	}()
	return responseChan, nil
}

func convertRequest(request *model.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}
	var (
		contents []*genai.Content
		system   []string
	)
	for _, msg := range request.Messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, msg.Content)
		case model.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser)
	}
	if request.MaxTokens != nil {
		config.MaxOutputTokens = int32(*request.MaxTokens)
	}
	if request.Temperature != nil {
		t := float32(*request.Temperature)
		config.Temperature = &t
	}
	if request.TopP != nil {
		p := float32(*request.TopP)
		config.TopP = &p
	}
	if len(request.Stop) > 0 {
		config.StopSequences = request.Stop
	}
	return contents, config
}

func convertResponse(name string, rsp *genai.GenerateContentResponse) *model.Response {
	response := &model.Response{
		ID:        rsp.ResponseID,
		Object:    model.ObjectTypeChatCompletion,
		Model:     name,
		Timestamp: time.Now(),
		Done:      true,
	}
	for i, cand := range rsp.Candidates {
		var text strings.Builder
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if part != nil && !part.Thought {
					text.WriteString(part.Text)
				}
			}
		}
		choice := model.Choice{Index: i, Message: model.NewAssistantMessage(text.String())}
		if cand.FinishReason != "" {
			reason := strings.ToLower(string(cand.FinishReason))
			choice.FinishReason = &reason
		}
		response.Choices = append(response.Choices, choice)
	}
	if u := rsp.UsageMetadata; u != nil {
		response.Usage = &model.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return response
}

func lastUserText(request *model.Request) string {
	for i := len(request.Messages) - 1; i >= 0; i-- {
		if request.Messages[i].Role == model.RoleUser {
			return request.Messages[i].Content
		}
	}
	return ""
}
