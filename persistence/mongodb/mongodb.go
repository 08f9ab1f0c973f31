//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package mongodb provides a MongoDB persistence.Store.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"trpc.group/trpc-go/maintenance-agent-go/log"
	"trpc.group/trpc-go/maintenance-agent-go/persistence"
	"trpc.group/trpc-go/maintenance-agent-go/storage/mongodb"
	"trpc.group/trpc-go/maintenance-agent-go/vehicle"
)

// Time-series settings of the telemetry collection.
const (
	TimeField   = "timestamp"
	MetaField   = "thread_id"
	Granularity = "minutes"
)

var _ persistence.Store = (*Store)(nil)

// Collections names the collections the store writes to.
type Collections struct {
	Telemetry       string
	Logs            string
	Recommendations string
}

// Store writes run output to MongoDB.
type Store struct {
	conn        *mongodb.Connector
	collections Collections
}

// New creates a store over conn.
func New(conn *mongodb.Connector, collections Collections) (*Store, error) {
	if conn == nil {
		return nil, errors.New("persistence: connector is nil")
	}
	if collections.Telemetry == "" || collections.Logs == "" || collections.Recommendations == "" {
		return nil, errors.New("persistence: collection names are required")
	}
	return &Store{conn: conn, collections: collections}, nil
}

type telemetryDocument struct {
	ThreadID                string `bson:"thread_id"`
	vehicle.TelemetryRecord `bson:",inline"`
}

type logDocument struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	ThreadID  string        `bson:"thread_id"`
	Step      string        `bson:"step"`
	Message   string        `bson:"message"`
	Updates   []string      `bson:"updates,omitempty"`
	Timestamp time.Time     `bson:"timestamp"`
}

type recommendationDocument struct {
	ID                 bson.ObjectID `bson:"_id,omitempty"`
	ThreadID           string        `bson:"thread_id"`
	IssueReport        string        `bson:"issue_report"`
	Recommendation     string        `bson:"recommendation"`
	CriticalConditions []string      `bson:"critical_conditions,omitempty"`
	Timestamp          time.Time     `bson:"timestamp"`
}

// TimeSeriesOptions returns the create options of the telemetry collection.
func TimeSeriesOptions() *options.CreateCollectionOptionsBuilder {
	return options.CreateCollection().SetTimeSeriesOptions(
		options.TimeSeries().
			SetTimeField(TimeField).
			SetMetaField(MetaField).
			SetGranularity(Granularity),
	)
}

// EnsureTelemetryCollection implements persistence.Store.
func (s *Store) EnsureTelemetryCollection(ctx context.Context) error {
	exists, err := s.conn.CollectionExists(ctx, s.collections.Telemetry)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := s.conn.Database().CreateCollection(ctx, s.collections.Telemetry, TimeSeriesOptions()); err != nil {
		return fmt.Errorf("create time series collection %s: %w", s.collections.Telemetry, err)
	}
	log.Infof("[MongoDB] created time series collection %s", s.collections.Telemetry)
	return nil
}

// InsertTelemetry implements persistence.Store.
func (s *Store) InsertTelemetry(ctx context.Context, threadID string, records []vehicle.TelemetryRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	docs := make([]any, 0, len(records))
	for _, r := range records {
		docs = append(docs, telemetryDocument{ThreadID: threadID, TelemetryRecord: r})
	}
	res, err := s.conn.Collection(s.collections.Telemetry).InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("insert telemetry: %w", err)
	}
	return len(res.InsertedIDs), nil
}

// AppendLog implements persistence.Store.
func (s *Store) AppendLog(ctx context.Context, entry persistence.LogEntry) (string, error) {
	doc := logDocument{
		ThreadID:  entry.ThreadID,
		Step:      entry.Step,
		Message:   entry.Message,
		Updates:   entry.Updates,
		Timestamp: nowIfZero(entry.Timestamp),
	}
	res, err := s.conn.Collection(s.collections.Logs).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert log: %w", err)
	}
	return hexID(res.InsertedID), nil
}

// InsertRecommendation implements persistence.Store.
func (s *Store) InsertRecommendation(ctx context.Context, rec persistence.Recommendation) (string, error) {
	doc := recommendationDocument{
		ThreadID:           rec.ThreadID,
		IssueReport:        rec.IssueReport,
		Recommendation:     rec.Recommendation,
		CriticalConditions: rec.CriticalConditions,
		Timestamp:          nowIfZero(rec.Timestamp),
	}
	res, err := s.conn.Collection(s.collections.Recommendations).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert recommendation: %w", err)
	}
	return hexID(res.InsertedID), nil
}

// RunDocuments implements persistence.Store.
func (s *Store) RunDocuments(ctx context.Context, threadID string) (*persistence.RunDocuments, error) {
	if threadID == "" {
		return nil, persistence.ErrThreadIDRequired
	}
	filter := ThreadFilter(threadID)
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	var logs []logDocument
	if err := s.findAll(ctx, s.collections.Logs, filter, opts, &logs); err != nil {
		return nil, err
	}
	var recs []recommendationDocument
	if err := s.findAll(ctx, s.collections.Recommendations, filter, opts, &recs); err != nil {
		return nil, err
	}

	docs := &persistence.RunDocuments{
		ThreadID:        threadID,
		Logs:            make([]persistence.LogEntry, 0, len(logs)),
		Recommendations: make([]persistence.Recommendation, 0, len(recs)),
	}
	for _, l := range logs {
		docs.Logs = append(docs.Logs, l.entry())
	}
	for _, r := range recs {
		docs.Recommendations = append(docs.Recommendations, r.recommendation())
	}
	return docs, nil
}

func (s *Store) findAll(ctx context.Context, coll string, filter bson.D, opts *options.FindOptionsBuilder, out any) error {
	cursor, err := s.conn.Collection(coll).Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("find %s: %w", coll, err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s: %w", coll, err)
	}
	return nil
}

// ThreadFilter selects the documents of one thread.
func ThreadFilter(threadID string) bson.D {
	return bson.D{{Key: "thread_id", Value: threadID}}
}

func (d logDocument) entry() persistence.LogEntry {
	return persistence.LogEntry{
		ID:        d.ID.Hex(),
		ThreadID:  d.ThreadID,
		Step:      d.Step,
		Message:   d.Message,
		Updates:   d.Updates,
		Timestamp: d.Timestamp.UTC(),
	}
}

func (d recommendationDocument) recommendation() persistence.Recommendation {
	return persistence.Recommendation{
		ID:                 d.ID.Hex(),
		ThreadID:           d.ThreadID,
		IssueReport:        d.IssueReport,
		Recommendation:     d.Recommendation,
		CriticalConditions: d.CriticalConditions,
		Timestamp:          d.Timestamp.UTC(),
	}
}

func hexID(id any) string {
	if oid, ok := id.(bson.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

