//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package dataset

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"trpc.group/trpc-go/maintenance-agent-go/log"
	"trpc.group/trpc-go/maintenance-agent-go/vehicle"
)

// MongoSource reads telemetry from a MongoDB collection, oldest first.
type MongoSource struct {
	coll   *mongo.Collection
	filter bson.D
	limit  int64
}

// MongoSourceOption configures a MongoSource.
type MongoSourceOption func(*MongoSource)

// WithFilter restricts the documents read.
func WithFilter(filter bson.D) MongoSourceOption {
	return func(s *MongoSource) {
		s.filter = filter
	}
}

// WithLimit caps the number of records read. Zero reads everything.
func WithLimit(n int64) MongoSourceOption {
	return func(s *MongoSource) {
		if n >= 0 {
			s.limit = n
		}
	}
}

// NewMongoSource returns a source reading coll.
func NewMongoSource(coll *mongo.Collection, opts ...MongoSourceOption) (*MongoSource, error) {
	if coll == nil {
		return nil, errors.New("dataset: collection is nil")
	}
	s := &MongoSource{coll: coll, filter: bson.D{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Description implements diagnosis.TelemetrySource.
func (s *MongoSource) Description() string { return "MongoDB collection" }

// FindOptions returns the options used by Load.
func (s *MongoSource) FindOptions() *options.FindOptionsBuilder {
	opts := options.Find().
		SetSort(bson.D{{Key: vehicle.ColumnTimestamp, Value: 1}}).
		SetProjection(bson.D{{Key: "_id", Value: 0}})
	if s.limit > 0 {
		opts.SetLimit(s.limit)
	}
	return opts
}

// Load implements diagnosis.TelemetrySource.
func (s *MongoSource) Load(ctx context.Context) ([]vehicle.TelemetryRecord, error) {
	cursor, err := s.coll.Find(ctx, s.filter, s.FindOptions())
	if err != nil {
		return nil, fmt.Errorf("find telemetry in %s: %w", s.coll.Name(), err)
	}
	var records []vehicle.TelemetryRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode telemetry from %s: %w", s.coll.Name(), err)
	}
	if records == nil {
		records = []vehicle.TelemetryRecord{}
	}
	sanitizeRecords(records)
	return records, nil
}

// sanitizeRecords zeroes non-finite readings in place, logging each record
// it touched.
func sanitizeRecords(records []vehicle.TelemetryRecord) {
	for i := range records {
		if reset := records[i].Sanitize(); len(reset) > 0 {
			log.Warnf("[MongoDB] telemetry record %d: non-finite %v reset to 0", i, reset)
		}
	}
}
