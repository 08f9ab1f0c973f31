//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package mcp exposes diagnosis runs as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"trpc.group/trpc-go/maintenance-agent-go/log"
	"trpc.group/trpc-go/maintenance-agent-go/runner"
	"trpc.group/trpc-go/maintenance-agent-go/session"
)

// Tool names.
const (
	ToolDiagnoseIssue = "diagnose_issue"
	ToolResumeRun     = "resume_run"
	ToolListSessions  = "list_sessions"
)

// Agent is the part of runner.Runner the tools drive.
type Agent interface {
	Run(ctx context.Context, issueReport string, opts ...runner.RunOption) (*runner.Result, error)
	Resume(ctx context.Context, threadID string) (*runner.Result, error)
	RecentSessions(ctx context.Context, limit int) ([]session.Summary, error)
}

var _ Agent = (*runner.Runner)(nil)

// RunResult is the JSON payload returned by the run tools.
type RunResult struct {
	ThreadID           string   `json:"thread_id"`
	Recommendation     string   `json:"recommendation"`
	CriticalConditions []string `json:"critical_conditions"`
	Updates            []string `json:"updates"`
}

// Server wraps the runner as an MCP server.
type Server struct {
	agent     Agent
	mcpServer *server.MCPServer
}

// NewServer creates the server and registers its tools.
func NewServer(agent Agent, version string) *Server {
	s := &Server{
		agent:     agent,
		mcpServer: server.NewMCPServer("maintenance-agent", version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

// ServeStdio serves on stdin and stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(ToolDiagnoseIssue,
		mcp.WithDescription("Diagnose a vehicle issue from telemetry and return a maintenance recommendation."),
		mcp.WithString("issue_report", mcp.Required(), mcp.Description("Free-text description of the problem")),
		mcp.WithString("embedding_key", mcp.Description("Vector field to search (optional)")),
	), s.handleDiagnose)

	s.mcpServer.AddTool(mcp.NewTool(ToolResumeRun,
		mcp.WithDescription("Resume an interrupted diagnosis run from its last checkpoint."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread id of the run")),
	), s.handleResume)

	s.mcpServer.AddTool(mcp.NewTool(ToolListSessions,
		mcp.WithDescription("List the most recent diagnosis runs."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of sessions (default 10)")),
	), s.handleListSessions)
}

func (s *Server) handleDiagnose(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issue, err := request.RequireString("issue_report")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var opts []runner.RunOption
	if key := request.GetString("embedding_key", ""); key != "" {
		opts = append(opts, runner.WithRunEmbeddingKey(key))
	}
	res, err := s.agent.Run(ctx, issue, opts...)
	if err != nil {
		log.Errorf("[MCP] diagnose_issue failed: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("diagnosis failed: %v", err)), nil
	}
	return jsonResult(toRunResult(res))
}

func (s *Server) handleResume(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threadID, err := request.RequireString("thread_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.agent.Resume(ctx, threadID)
	if err != nil {
		log.Errorf("[MCP] resume_run failed: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("resume failed: %v", err)), nil
	}
	return jsonResult(toRunResult(res))
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", session.DefaultRecentLimit)
	sessions, err := s.agent.RecentSessions(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list sessions failed: %v", err)), nil
	}
	if sessions == nil {
		sessions = []session.Summary{}
	}
	return jsonResult(sessions)
}

func toRunResult(res *runner.Result) RunResult {
	critical := res.State.CriticalConditions
	if critical == nil {
		critical = []string{}
	}
	return RunResult{
		ThreadID:           res.ThreadID,
		Recommendation:     res.State.RecommendationText,
		CriticalConditions: critical,
		Updates:            res.State.Updates,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
