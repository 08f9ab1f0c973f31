//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned by Predict when the model produced no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Predict sends prompt as a single user message and returns the trimmed
// completion text.
func Predict(ctx context.Context, m Model, prompt string) (string, error) {
	return Generate(ctx, m, NewPromptRequest(prompt))
}

// Generate drains the response channel of req and returns the text.
func Generate(ctx context.Context, m Model, req *Request) (string, error) {
	if m == nil {
		return "", errors.New("model is nil")
	}
	ch, err := m.GenerateContent(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	var (
		b      strings.Builder
		apiErr error
	)
	for rsp := range ch {
		if rsp.Error != nil {
			apiErr = rsp.Error
			continue
		}
		b.WriteString(rsp.Text())
	}
	if apiErr != nil {
		return "", apiErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
