//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package session records one entry per diagnosis run so recent runs can be
// listed and resumed.
package session

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"
)

// DefaultRecentLimit is the number of sessions Recent returns when the
// limit is not positive.
const DefaultRecentLimit = 10

// Issue truncation used by summaries.
const (
	maxIssueLen       = 30
	truncatedIssueLen = 27
)

// SummaryTimeLayout formats CreatedAt in summaries.
const SummaryTimeLayout = "2006-01-02 15:04"

var (
	// ErrThreadIDRequired is returned when a session has no thread id.
	ErrThreadIDRequired = errors.New("session: thread_id is required")
	// ErrNotFound is returned when no session exists for a thread id.
	ErrNotFound = errors.New("session: not found")
	// ErrInvalidStatus is returned for a status outside the enum.
	ErrInvalidStatus = errors.New("session: invalid status")
)

// Status is the lifecycle state of a run.
type Status string

// Session statuses.
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Session is the record kept for one run.
type Session struct {
	ThreadID    string    `json:"thread_id" bson:"thread_id"`
	IssueReport string    `json:"issue_report" bson:"issue_report"`
	Status      Status    `json:"status" bson:"status"`
	Error       string    `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// Summary is the listing view of a session.
type Summary struct {
	ThreadID  string `json:"thread_id"`
	CreatedAt string `json:"created_at"`
	Issue     string `json:"issue_report"`
	Status    Status `json:"status"`
}

// Store persists sessions.
type Store interface {
	// Create records a new session. CreatedAt and UpdatedAt default to now.
	Create(ctx context.Context, sess *Session) error
	// UpdateStatus sets the status of the session and the error message of
	// a failed run.
	UpdateStatus(ctx context.Context, threadID string, status Status, errMsg string) error
	// Get returns the session of threadID or ErrNotFound.
	Get(ctx context.Context, threadID string) (*Session, error)
	// Recent returns up to limit sessions, newest first.
	Recent(ctx context.Context, limit int) ([]*Session, error)
	// Close releases resources held by the store.
	Close() error
}

// New returns a running session for threadID.
func New(threadID, issueReport string) *Session {
	now := time.Now().UTC()
	return &Session{
		ThreadID:    threadID,
		IssueReport: issueReport,
		Status:      StatusRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Prepare validates sess and fills its defaults. Stores call it from Create.
func Prepare(sess *Session) error {
	if sess == nil || sess.ThreadID == "" {
		return ErrThreadIDRequired
	}
	if sess.Status == "" {
		sess.Status = StatusRunning
	}
	if !sess.Status.Valid() {
		return ErrInvalidStatus
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = sess.CreatedAt
	}
	return nil
}

// RecentLimit normalizes a Recent limit.
func RecentLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}

// TruncateIssue shortens issue reports longer than 30 characters to 27
// characters followed by "...".
func TruncateIssue(issue string) string {
	if utf8.RuneCountInString(issue) <= maxIssueLen {
		return issue
	}
	return string([]rune(issue)[:truncatedIssueLen]) + "..."
}

// Summarize returns the listing view of sess.
func Summarize(sess *Session) Summary {
	return Summary{
		ThreadID:  sess.ThreadID,
		CreatedAt: sess.CreatedAt.Format(SummaryTimeLayout),
		Issue:     TruncateIssue(sess.IssueReport),
		Status:    sess.Status,
	}
}

// Summaries maps Summarize over sessions.
func Summaries(sessions []*Session) []Summary {
	out := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, Summarize(s))
	}
	return out
}
