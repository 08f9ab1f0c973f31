//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/maintenance-agent-go/graph"
	storage "trpc.group/trpc-go/maintenance-agent-go/storage/postgres"
)

func newMockSaver(t *testing.T, opts ...Option) (*Saver, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS graph_checkpoints").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS graph_checkpoints_thread_seq").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	s, err := NewSaver(context.Background(), storage.NewClient(db), opts...)
	require.NoError(t, err)
	return s, mock
}

func encoded(t *testing.T, step int, next string) []byte {
	cp := graph.NewCheckpoint("t1", json.RawMessage(`{"issue_report":"noise"}`))
	cp.Step = step
	cp.NextNode = next
	data, err := json.Marshal(cp)
	require.NoError(t, err)
	return data
}

func TestNewSaver_NilClient(t *testing.T) {
	_, err := NewSaver(context.Background(), nil)
	require.Error(t, err)
}

func TestNewSaver_SchemaError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("denied"))
	mock.ExpectRollback()
	_, err = NewSaver(context.Background(), storage.NewClient(db))
	require.ErrorContains(t, err, "create checkpoints table")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSaver_IndexErrorRollsBackTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS graph_checkpoints").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()
	_, err = NewSaver(context.Background(), storage.NewClient(db))
	require.ErrorContains(t, err, "create checkpoints index")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSaver_SchemaInOneTransaction(t *testing.T) {
	_, mock := newMockSaver(t)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSaver_SkipSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	_, err = NewSaver(context.Background(), storage.NewClient(db), WithSkipSchema(), WithTable("cp"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaver_Save(t *testing.T) {
	s, mock := newMockSaver(t)
	cp := graph.NewCheckpoint("", json.RawMessage(`{}`))
	cp.Step = 2
	cp.NextNode = "embed"
	cp.ParentID = "parent"

	mock.ExpectExec("INSERT INTO graph_checkpoints").
		WithArgs("t1", cp.ID, "parent", 2, "embed", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, s.Save(context.Background(), "t1", cp))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaver_LoadAndList(t *testing.T) {
	s, mock := newMockSaver(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT checkpoint_json FROM graph_checkpoints").
		WithArgs("t1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"checkpoint_json"}).AddRow(encoded(t, 3, "search")))
	got, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Step)
	assert.Equal(t, "search", got.NextNode)

	mock.ExpectQuery("SELECT checkpoint_json FROM graph_checkpoints").
		WithArgs("t1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"checkpoint_json"}).
			AddRow(encoded(t, 2, "embed")).
			AddRow(encoded(t, 1, "retrieve")))
	list, err := s.List(ctx, "t1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Step)

	mock.ExpectQuery("SELECT checkpoint_json").
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"checkpoint_json"}))
	_, err = s.Load(ctx, "missing")
	require.ErrorIs(t, err, graph.ErrCheckpointNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaver_CorruptRow(t *testing.T) {
	s, mock := newMockSaver(t)
	mock.ExpectQuery("SELECT checkpoint_json").
		WillReturnRows(sqlmock.NewRows([]string{"checkpoint_json"}).AddRow([]byte("{")))
	_, err := s.Load(context.Background(), "t1")
	require.ErrorContains(t, err, "unmarshal checkpoint")
}

func TestPostgresSaver_Delete(t *testing.T) {
	s, mock := newMockSaver(t)
	mock.ExpectExec("DELETE FROM graph_checkpoints").WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	require.NoError(t, s.Delete(context.Background(), "t1"))
	require.ErrorIs(t, s.Delete(context.Background(), ""), graph.ErrThreadIDRequired)
	require.NoError(t, mock.ExpectationsWereMet())
}
