//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package diagnosis

import (
	"context"
	"fmt"

	"trpc.group/trpc-go/maintenance-agent-go/vehicle"
)

// Critical thresholds.
const (
	MaxEngineTemperature = 100.0
	MinOilPressure       = 30.0
)

// SeverityMode controls what the severity evaluation does to routing.
type SeverityMode string

const (
	// SeverityModeCosmetic always routes to embed; severity only shapes the
	// recommendation prompt.
	SeverityModeCosmetic SeverityMode = "cosmetic"
	// SeverityModeBranch sends critical runs straight to persist, skipping
	// embed, search and process_search.
	SeverityModeBranch SeverityMode = "branch"
)

// ParseSeverityMode validates a mode name. Empty selects cosmetic.
func ParseSeverityMode(s string) (SeverityMode, error) {
	switch SeverityMode(s) {
	case "", SeverityModeCosmetic:
		return SeverityModeCosmetic, nil
	case SeverityModeBranch:
		return SeverityModeBranch, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverityMode, s)
	}
}

// EvaluateSeverity returns one finding per threshold breach, in record order.
func EvaluateSeverity(records []vehicle.TelemetryRecord) []string {
	var findings []string
	for _, r := range records {
		if r.EngineTemperature > MaxEngineTemperature {
			findings = append(findings, fmt.Sprintf("Critical engine temperature: %.1f°C", r.EngineTemperature))
		}
		if r.OilPressure < MinOilPressure {
			findings = append(findings, fmt.Sprintf("Low oil pressure: %.1f psi", r.OilPressure))
		}
	}
	return findings
}

// IsCritical reports whether any record breaches a threshold.
func IsCritical(records []vehicle.TelemetryRecord) bool {
	return len(EvaluateSeverity(records)) > 0
}

// Route labels returned by the severity router.
const (
	RouteStandard = "standard"
	RouteCritical = "critical"
)

// SeverityRouter is the conditional edge out of the process step.
func SeverityRouter(mode SeverityMode) func(ctx context.Context, s State) (string, error) {
	return func(ctx context.Context, s State) (string, error) {
		if mode == SeverityModeBranch && IsCritical(s.TelemetryData) {
			return RouteCritical, nil
		}
		return RouteStandard, nil
	}
}

// RouteTargets maps router labels to the nodes they lead to.
func RouteTargets() map[string]string {
	return map[string]string{
		RouteStandard: StepEmbed.NodeID(),
		RouteCritical: StepPersist.NodeID(),
	}
}
