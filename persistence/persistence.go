//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package persistence stores what a diagnosis run produces: telemetry
// snapshots, an append-only log and the final recommendations.
package persistence

import (
	"context"
	"errors"
	"time"

	"trpc.group/trpc-go/maintenance-agent-go/vehicle"
)

// ErrThreadIDRequired is returned when a thread-scoped call has no id.
var ErrThreadIDRequired = errors.New("persistence: thread id is required")

// LogEntry is one audit line of a run.
type LogEntry struct {
	ID        string    `json:"_id"`
	ThreadID  string    `json:"thread_id"`
	Step      string    `json:"step"`
	Message   string    `json:"message"`
	Updates   []string  `json:"updates,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Recommendation is the final advice of a run.
type Recommendation struct {
	ID                 string    `json:"_id"`
	ThreadID           string    `json:"thread_id"`
	IssueReport        string    `json:"issue_report"`
	Recommendation     string    `json:"recommendation"`
	CriticalConditions []string  `json:"critical_conditions,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// RunDocuments groups everything recorded for one thread.
type RunDocuments struct {
	ThreadID        string           `json:"thread_id"`
	Logs            []LogEntry       `json:"logs"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Store persists run output. IDs are returned as hex strings.
type Store interface {
	// EnsureTelemetryCollection creates the telemetry time-series
	// collection when it is missing.
	EnsureTelemetryCollection(ctx context.Context) error

	// InsertTelemetry stores records tagged with the thread id.
	InsertTelemetry(ctx context.Context, threadID string, records []vehicle.TelemetryRecord) (int, error)

	// AppendLog stores one log entry and returns its id.
	AppendLog(ctx context.Context, entry LogEntry) (string, error)

	// InsertRecommendation stores one recommendation and returns its id.
	InsertRecommendation(ctx context.Context, rec Recommendation) (string, error)

	// RunDocuments returns the logs and recommendations of a thread, oldest first.
	RunDocuments(ctx context.Context, threadID string) (*RunDocuments, error)
}
