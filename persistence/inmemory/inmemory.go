//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory persistence.Store.
package inmemory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"trpc.group/trpc-go/maintenance-agent-go/persistence"
	"trpc.group/trpc-go/maintenance-agent-go/vehicle"
)

var _ persistence.Store = (*Store)(nil)

type telemetryRow struct {
	threadID string
	record   vehicle.TelemetryRecord
}

// Store keeps everything in process memory.
type Store struct {
	mu              sync.RWMutex
	ensured         bool
	telemetry       []telemetryRow
	logs            []persistence.LogEntry
	recommendations []persistence.Recommendation
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// EnsureTelemetryCollection implements persistence.Store.
func (s *Store) EnsureTelemetryCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensured = true
	return nil
}

// InsertTelemetry implements persistence.Store.
func (s *Store) InsertTelemetry(ctx context.Context, threadID string, records []vehicle.TelemetryRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.telemetry = append(s.telemetry, telemetryRow{threadID: threadID, record: r})
	}
	return len(records), nil
}

// AppendLog implements persistence.Store.
func (s *Store) AppendLog(ctx context.Context, entry persistence.LogEntry) (string, error) {
	entry.ID = bson.NewObjectID().Hex()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return entry.ID, nil
}

// InsertRecommendation implements persistence.Store.
func (s *Store) InsertRecommendation(ctx context.Context, rec persistence.Recommendation) (string, error) {
	rec.ID = bson.NewObjectID().Hex()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recommendations = append(s.recommendations, rec)
	return rec.ID, nil
}

// RunDocuments implements persistence.Store.
func (s *Store) RunDocuments(ctx context.Context, threadID string) (*persistence.RunDocuments, error) {
	if threadID == "" {
		return nil, persistence.ErrThreadIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := &persistence.RunDocuments{
		ThreadID:        threadID,
		Logs:            []persistence.LogEntry{},
		Recommendations: []persistence.Recommendation{},
	}
	for _, l := range s.logs {
		if l.ThreadID == threadID {
			docs.Logs = append(docs.Logs, l)
		}
	}
	for _, r := range s.recommendations {
		if r.ThreadID == threadID {
			docs.Recommendations = append(docs.Recommendations, r)
		}
	}
	return docs, nil
}

// TelemetryCount returns the number of stored telemetry records of a thread.
func (s *Store) TelemetryCount(threadID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, row := range s.telemetry {
		if row.threadID == threadID {
			n++
		}
	}
	return n
}

// Ensured reports whether EnsureTelemetryCollection was called.
func (s *Store) Ensured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ensured
}
