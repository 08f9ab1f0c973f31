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
	"strings"
	"time"
)

// Error types carried in ResponseError.Type.
const (
	ErrorTypeAPIError   = "api_error"
	ErrorTypeEmptyReply = "empty_reply"
)

// ObjectTypeChatCompletion is the object type for chat completion responses.
const ObjectTypeChatCompletion = "chat.completion"

// Choice is one completion alternative.
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`

	// FinishReason is "stop", "length", "content_filter", etc.
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ResponseError is an API-level failure. It implements error.
type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

func (e *ResponseError) Error() string {
	if e.Code != "" {
		return e.Type + " (" + e.Code + "): " + e.Message
	}
	return e.Type + ": " + e.Message
}

// Response is one message on the GenerateContent channel.
type Response struct {
	ID        string         `json:"id"`
	Object    string         `json:"object"`
	Created   int64          `json:"created"`
	Model     string         `json:"model"`
	Choices   []Choice       `json:"choices"`
	Usage     *Usage         `json:"usage,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Done      bool           `json:"done"`
}

// NewErrorResponse builds a final response carrying an API error.
func NewErrorResponse(errType, message string) *Response {
	return &Response{
		Error:     &ResponseError{Type: errType, Message: message},
		Timestamp: time.Now(),
		Done:      true,
	}
}

// Text concatenates the content of all choices.
func (rsp *Response) Text() string {
	if rsp == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range rsp.Choices {
		b.WriteString(c.Message.Content)
	}
	return b.String()
}
