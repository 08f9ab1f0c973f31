//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package diagnosis

import "errors"

var (
	// ErrUnknownStep is returned for a step name outside the enum.
	ErrUnknownStep = errors.New("diagnosis: unknown step")
	// ErrMissingDependency is returned when a required collaborator is nil.
	ErrMissingDependency = errors.New("diagnosis: missing dependency")
	// ErrInvalidSeverityMode is returned for an unknown routing mode.
	ErrInvalidSeverityMode = errors.New("diagnosis: invalid severity mode")
)

var errEmptyEmbedding = errors.New("embedder returned an empty vector")
