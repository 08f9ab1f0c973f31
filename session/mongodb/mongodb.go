//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package mongodb provides a MongoDB-backed session store.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"trpc.group/trpc-go/maintenance-agent-go/session"
)

var _ session.Store = (*Store)(nil)

var newestFirst = bson.D{{Key: "created_at", Value: -1}}

// Store keeps one document per thread in a collection.
type Store struct {
	coll *mongo.Collection
}

// New creates a store on coll and ensures its indexes.
func New(ctx context.Context, coll *mongo.Collection) (*Store, error) {
	if coll == nil {
		return nil, errors.New("mongodb collection is nil")
	}
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "thread_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: newestFirst},
	})
	if err != nil {
		return nil, fmt.Errorf("create session indexes: %w", err)
	}
	return &Store{coll: coll}, nil
}

// ThreadFilter selects the session of threadID.
func ThreadFilter(threadID string) bson.D {
	return bson.D{{Key: "thread_id", Value: threadID}}
}

// StatusUpdate is the update document written by UpdateStatus.
func StatusUpdate(status session.Status, errMsg string, now time.Time) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: status},
		{Key: "error", Value: errMsg},
		{Key: "updated_at", Value: now},
	}}}
}

// RecentOptions returns the find options used by Recent.
func RecentOptions(limit int) *options.FindOptionsBuilder {
	return options.Find().SetSort(newestFirst).SetLimit(int64(session.RecentLimit(limit)))
}

// Create upserts the session of sess.ThreadID.
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	if err := session.Prepare(sess); err != nil {
		return err
	}
	_, err := s.coll.ReplaceOne(ctx, ThreadFilter(sess.ThreadID), sess, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb create session: %w", err)
	}
	return nil
}

// UpdateStatus implements session.Store.
func (s *Store) UpdateStatus(ctx context.Context, threadID string, status session.Status, errMsg string) error {
	if threadID == "" {
		return session.ErrThreadIDRequired
	}
	if !status.Valid() {
		return session.ErrInvalidStatus
	}
	res, err := s.coll.UpdateOne(ctx, ThreadFilter(threadID), StatusUpdate(status, errMsg, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("mongodb update session: %w", err)
	}
	if res.MatchedCount == 0 {
		return session.ErrNotFound
	}
	return nil
}

// Get implements session.Store.
func (s *Store) Get(ctx context.Context, threadID string) (*session.Session, error) {
	if threadID == "" {
		return nil, session.ErrThreadIDRequired
	}
	var sess session.Session
	if err := s.coll.FindOne(ctx, ThreadFilter(threadID)).Decode(&sess); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb get session: %w", err)
	}
	return &sess, nil
}

// Recent implements session.Store.
func (s *Store) Recent(ctx context.Context, limit int) ([]*session.Session, error) {
	cursor, err := s.coll.Find(ctx, bson.D{}, RecentOptions(limit))
	if err != nil {
		return nil, fmt.Errorf("mongodb list sessions: %w", err)
	}
	out := []*session.Session{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongodb decode sessions: %w", err)
	}
	return out, nil
}

// Close is a no-op; the client is owned by the connector.
func (s *Store) Close() error { return nil }
