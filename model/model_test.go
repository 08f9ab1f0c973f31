//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package model_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/maintenance-agent-go/model"
)

type stubModel struct {
	responses []*model.Response
	err       error
	lastReq   *model.Request
}

func (s *stubModel) GenerateContent(ctx context.Context, req *model.Request) (<-chan *model.Response, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan *model.Response, len(s.responses))
	for _, r := range s.responses {
		ch <- r
	}
	close(ch)
	return ch, nil
}

func (s *stubModel) Info() model.Info { return model.Info{Name: "stub", Provider: "test"} }

func textResponse(s string) *model.Response {
	return &model.Response{Choices: []model.Choice{{Message: model.NewAssistantMessage(s)}}, Done: true}
}

func TestPredict(t *testing.T) {
	m := &stubModel{responses: []*model.Response{textResponse("  Schedule maintenance. \n")}}
	got, err := model.Predict(context.Background(), m, "engine noise")
	require.NoError(t, err)
	assert.Equal(t, "Schedule maintenance.", got)
	require.Len(t, m.lastReq.Messages, 1)
	assert.Equal(t, model.RoleUser, m.lastReq.Messages[0].Role)
	assert.Equal(t, "engine noise", m.lastReq.Messages[0].Content)
}

func TestPredict_Errors(t *testing.T) {
	sendErr := errors.New("no route")
	_, err := model.Predict(context.Background(), &stubModel{err: sendErr}, "x")
	require.ErrorIs(t, err, sendErr)

	_, err = model.Predict(context.Background(), &stubModel{responses: []*model.Response{
		model.NewErrorResponse(model.ErrorTypeAPIError, "rate limited"),
	}}, "x")
	var rspErr *model.ResponseError
	require.ErrorAs(t, err, &rspErr)
	assert.Equal(t, "api_error: rate limited", rspErr.Error())

	_, err = model.Predict(context.Background(), &stubModel{responses: []*model.Response{textResponse(" ")}}, "x")
	require.ErrorIs(t, err, model.ErrEmptyResponse)

	_, err = model.Predict(context.Background(), nil, "x")
	require.Error(t, err)
}

func TestResponse_Text(t *testing.T) {
	rsp := &model.Response{Choices: []model.Choice{
		{Message: model.NewAssistantMessage("a")},
		{Message: model.NewAssistantMessage("b")},
	}}
	assert.Equal(t, "ab", rsp.Text())
	var nilRsp *model.Response
	assert.Equal(t, "", nilRsp.Text())
}

func TestRole_IsValid(t *testing.T) {
	assert.True(t, model.RoleSystem.IsValid())
	assert.False(t, model.Role("tool").IsValid())
	assert.Equal(t, "user", model.RoleUser.String())
}

func TestResponseError_WithCode(t *testing.T) {
	e := &model.ResponseError{Type: model.ErrorTypeAPIError, Code: "429", Message: "slow down"}
	assert.Equal(t, "api_error (429): slow down", e.Error())
}
