//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package vehicle holds the vehicle telemetry record shared by the data
// loaders, the diagnosis workflow and the persistence layer.
package vehicle

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Telemetry column names.
const (
	ColumnTimestamp          = "timestamp"
	ColumnEngineTemperature  = "engine_temperature"
	ColumnOilPressure        = "oil_pressure"
	ColumnAvgFuelConsumption = "avg_fuel_consumption"
)

// Columns lists the telemetry columns in CSV order.
var Columns = []string{ColumnTimestamp, ColumnEngineTemperature, ColumnOilPressure, ColumnAvgFuelConsumption}

// timestampLayouts are tried in order after normalization.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04Z",
	"2006-01-02T15Z",
}

// TelemetryRecord is one timestamped sensor reading.
type TelemetryRecord struct {
	Timestamp          time.Time `json:"timestamp" bson:"timestamp"`
	RawTimestamp       string    `json:"raw_timestamp,omitempty" bson:"raw_timestamp,omitempty"`
	EngineTemperature  float64   `json:"engine_temperature" bson:"engine_temperature"`
	OilPressure        float64   `json:"oil_pressure" bson:"oil_pressure"`
	AvgFuelConsumption float64   `json:"avg_fuel_consumption" bson:"avg_fuel_consumption"`
}

// ParseTimestamp parses an ISO-8601 UTC timestamp. The input is upper-cased
// and a missing trailing Z is added before matching.
func ParseTimestamp(s string) (time.Time, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	v = strings.Replace(v, " ", "T", 1)
	if !strings.HasSuffix(v, "Z") {
		v += "Z"
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ErrNonFinite reports a NaN or infinite reading.
var ErrNonFinite = errors.New("non-finite value")

// ParseFloat parses a numeric field, treating blanks as zero. Junk, NaN and
// infinities yield zero and an error.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parse %q: %w", s, ErrNonFinite)
	}
	return f, nil
}

// Sanitize zeroes NaN and infinite readings and returns the columns it
// reset. Records must stay JSON-encodable to be checkpointed.
func (r *TelemetryRecord) Sanitize() []string {
	var reset []string
	for _, f := range []struct {
		column string
		v      *float64
	}{
		{ColumnEngineTemperature, &r.EngineTemperature},
		{ColumnOilPressure, &r.OilPressure},
		{ColumnAvgFuelConsumption, &r.AvgFuelConsumption},
	} {
		if math.IsNaN(*f.v) || math.IsInf(*f.v, 0) {
			*f.v = 0
			reset = append(reset, f.column)
		}
	}
	return reset
}

// RecordFromFields builds a record from string fields keyed by column name.
// It always returns a usable record; the error lists the fields that could
// not be parsed.
func RecordFromFields(fields map[string]string) (TelemetryRecord, error) {
	var (
		rec  TelemetryRecord
		errs []string
	)
	raw := fields[ColumnTimestamp]
	ts, err := ParseTimestamp(raw)
	if err != nil {
		rec.RawTimestamp = raw
		errs = append(errs, err.Error())
	} else {
		rec.Timestamp = ts
	}
	for _, f := range []struct {
		column string
		dst    *float64
	}{
		{ColumnEngineTemperature, &rec.EngineTemperature},
		{ColumnOilPressure, &rec.OilPressure},
		{ColumnAvgFuelConsumption, &rec.AvgFuelConsumption},
	} {
		v, err := ParseFloat(fields[f.column])
		if err != nil {
			errs = append(errs, f.column+": "+err.Error())
			continue
		}
		*f.dst = v
	}
	if len(errs) > 0 {
		return rec, fmt.Errorf("telemetry record: %s", strings.Join(errs, "; "))
	}
	return rec, nil
}
