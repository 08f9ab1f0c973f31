//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package postgres provides a PostgreSQL-backed checkpointer.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"trpc.group/trpc-go/maintenance-agent-go/graph"
	storage "trpc.group/trpc-go/maintenance-agent-go/storage/postgres"
)

const (
	pgCreateCheckpoints = `CREATE TABLE IF NOT EXISTS %s (
	seq BIGSERIAL PRIMARY KEY,
	thread_id TEXT NOT NULL,
	checkpoint_id TEXT NOT NULL,
	parent_checkpoint_id TEXT,
	step INTEGER NOT NULL,
	next_node TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	checkpoint_json JSONB NOT NULL,
	UNIQUE (thread_id, checkpoint_id)
)`
	pgCreateThreadIndex = `CREATE INDEX IF NOT EXISTS %s_thread_seq ON %s (thread_id, seq DESC)`
	pgInsertCheckpoint  = `INSERT INTO %s (thread_id, checkpoint_id, parent_checkpoint_id, step, next_node, ts, checkpoint_json)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (thread_id, checkpoint_id) DO UPDATE SET checkpoint_json = EXCLUDED.checkpoint_json`
	pgSelectList = `SELECT checkpoint_json FROM %s WHERE thread_id = $1 ORDER BY seq DESC LIMIT $2`
	pgDeleteThread = `DELETE FROM %s WHERE thread_id = $1`

	defaultTable = "graph_checkpoints"
)

// Option configures the Saver.
type Option func(*Saver)

// WithTable overrides the table name.
func WithTable(name string) Option {
	return func(s *Saver) {
		s.table = name
	}
}

// WithSkipSchema skips table creation, for databases migrated elsewhere.
func WithSkipSchema() Option {
	return func(s *Saver) {
		s.skipSchema = true
	}
}

// Saver stores checkpoints in PostgreSQL.
type Saver struct {
	client     storage.Client
	table      string
	skipSchema bool
}

// NewSaver creates the saver and, unless disabled, the schema.
func NewSaver(ctx context.Context, client storage.Client, opts ...Option) (*Saver, error) {
	if client == nil {
		return nil, errors.New("postgres client is nil")
	}
	s := &Saver{client: client, table: defaultTable}
	for _, opt := range opts {
		opt(s)
	}
	if s.skipSchema {
		return s, nil
	}
	err := client.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(pgCreateCheckpoints, s.table)); err != nil {
			return fmt.Errorf("create checkpoints table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(pgCreateThreadIndex, s.table, s.table)); err != nil {
			return fmt.Errorf("create checkpoints index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Save stores a checkpoint for the thread.
func (s *Saver) Save(ctx context.Context, threadID string, cp *graph.Checkpoint) error {
	if threadID == "" {
		return graph.ErrThreadIDRequired
	}
	c := *cp
	c.ThreadID = threadID
	data, err := json.Marshal(&c)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	_, err = s.client.ExecContext(ctx, fmt.Sprintf(pgInsertCheckpoint, s.table),
		threadID, c.ID, c.ParentID, c.Step, c.NextNode, c.Timestamp, data)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// Load returns the latest checkpoint for the thread.
func (s *Saver) Load(ctx context.Context, threadID string) (*graph.Checkpoint, error) {
	list, err := s.List(ctx, threadID, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, graph.ErrCheckpointNotFound
	}
	return list[0], nil
}

// List returns checkpoints of the thread, newest first. A non-positive
// limit returns all of them.
func (s *Saver) List(ctx context.Context, threadID string, limit int) ([]*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	var (
		query = fmt.Sprintf(pgSelectList, s.table)
		args  = []any{threadID, limit}
	)
	if limit <= 0 {
		args[1] = nil // LIMIT NULL means no limit.
	}
	var out []*graph.Checkpoint
	err := s.client.Query(ctx, func(rows *sql.Rows) error {
		for rows.Next() {
			var data []byte
			if err := rows.Scan(&data); err != nil {
				return fmt.Errorf("scan checkpoint: %w", err)
			}
			var cp graph.Checkpoint
			if err := json.Unmarshal(data, &cp); err != nil {
				return fmt.Errorf("unmarshal checkpoint: %w", err)
			}
			out = append(out, &cp)
		}
		return nil
	}, query, args...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes all checkpoints of the thread.
func (s *Saver) Delete(ctx context.Context, threadID string) error {
	if threadID == "" {
		return graph.ErrThreadIDRequired
	}
	if _, err := s.client.ExecContext(ctx, fmt.Sprintf(pgDeleteThread, s.table), threadID); err != nil {
		return fmt.Errorf("delete checkpoints: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *Saver) Close() error {
	return s.client.Close()
}
