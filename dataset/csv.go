//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package dataset loads, ingests and embeds the data the maintenance agent
// works on: engine telemetry and the historical issue catalogue.
package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"trpc.group/trpc-go/maintenance-agent-go/log"
	"trpc.group/trpc-go/maintenance-agent-go/vehicle"
)

// ErrNoHeader is returned for a CSV input without a header row.
var ErrNoHeader = errors.New("dataset: csv has no header row")

// CSVSource reads telemetry from a CSV file.
type CSVSource struct {
	path string
}

// NewCSVSource returns a source reading the file at path on every Load.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Description implements diagnosis.TelemetrySource.
func (s *CSVSource) Description() string { return "CSV file" }

// Path returns the file the source reads.
func (s *CSVSource) Path() string { return s.path }

// Load implements diagnosis.TelemetrySource.
func (s *CSVSource) Load(ctx context.Context) ([]vehicle.TelemetryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry csv: %w", err)
	}
	defer f.Close()
	return ReadTelemetry(f)
}

// ReadTelemetry parses telemetry rows. Rows with unparsable fields are
// logged and kept with the fields that did parse.
func ReadTelemetry(r io.Reader) ([]vehicle.TelemetryRecord, error) {
	rows, err := ReadRows(r)
	if err != nil {
		return nil, err
	}
	records := make([]vehicle.TelemetryRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := vehicle.RecordFromFields(row)
		if err != nil {
			log.Warnf("[Tool] csv row %d: %v", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadRows decodes a CSV document into one map per row keyed by the
// lower-cased header names. Input may be UTF-8 with or without a BOM, or
// Windows-1252.
func ReadRows(r io.Reader) ([]map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(all) == 0 {
		return nil, ErrNoHeader
	}
	header := make([]string, len(all[0]))
	for i, h := range all[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	rows := make([]map[string]string, 0, len(all)-1)
	for _, rec := range all[1:] {
		if isBlank(rec) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// decodeText strips a UTF-8 BOM and falls back to Windows-1252 when the
// input is not valid UTF-8.
func decodeText(data []byte) (string, error) {
	var dec transform.Transformer = unicode.BOMOverride(unicode.UTF8.NewDecoder())
	if !utf8.Valid(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))) {
		dec = charmap.Windows1252.NewDecoder()
	}
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", fmt.Errorf("decode csv: %w", err)
	}
	return string(out), nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
