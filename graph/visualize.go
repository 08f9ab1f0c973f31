//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Layout directions for DOT export.
const (
	// RankDirLR sets a left-to-right layout in Graphviz.
	RankDirLR = "LR"
	// RankDirTB sets a top-to-bottom layout in Graphviz.
	RankDirTB = "TB"
)

const (
	shapeBox  = "box"
	shapeOval = "oval"

	colorNodeFill        = "#e3f2fd"
	colorNodeBorder      = "#2196f3"
	colorStartFill       = "#e1f5e1"
	colorStartBorder     = "#4caf50"
	colorEndFill         = "#ffe1e1"
	colorEndBorder       = "#f44336"
	colorConditionalEdge = "#999999"
)

// VizOptions configures DOT and Mermaid export.
type VizOptions struct {
	// RankDir sets DOT graph direction: "LR" or "TB".
	RankDir string
	// IncludeStartEnd toggles visualization of virtual Start/End nodes.
	IncludeStartEnd bool
	// GraphLabel optionally labels the whole graph.
	GraphLabel string
}

// VizOption mutates VizOptions.
type VizOption func(*VizOptions)

// WithRankDir sets DOT graph direction. Valid values: "LR", "TB".
func WithRankDir(dir string) VizOption {
	return func(o *VizOptions) {
		if dir == RankDirLR || dir == RankDirTB {
			o.RankDir = dir
		}
	}
}

// WithIncludeStartEnd toggles rendering of Start/End virtual nodes.
func WithIncludeStartEnd(include bool) VizOption {
	return func(o *VizOptions) { o.IncludeStartEnd = include }
}

// WithGraphLabel sets an optional label for the graph.
func WithGraphLabel(label string) VizOption {
	return func(o *VizOptions) { o.GraphLabel = label }
}

func defaultVizOptions() *VizOptions {
	return &VizOptions{
		RankDir:         RankDirLR,
		IncludeStartEnd: true,
	}
}

// vizEdge is one rendered transition.
type vizEdge struct {
	from, to, label string
	conditional     bool
}

// snapshot returns node IDs in registration order, their labels, and all
// transitions in a stable order.
func (g *Graph[S, U]) snapshot() ([]string, map[string]string, []vizEdge, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	labels := make(map[string]string, len(ids))
	var edges []vizEdge
	for _, id := range ids {
		n := g.nodes[id]
		labels[id] = n.Name
		for _, e := range g.edges[id] {
			edges = append(edges, vizEdge{from: e.From, to: e.To})
		}
		if ce, ok := g.conditionalEdges[id]; ok {
			keys := make([]string, 0, len(ce.PathMap))
			for k := range ce.PathMap {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				edges = append(edges, vizEdge{from: id, to: ce.PathMap[k], label: k, conditional: true})
			}
		}
	}
	return ids, labels, edges, g.entryPoint
}

// DOT returns a Graphviz DOT representation of the graph.
// Fixed edges are solid; conditional edges are dashed and labeled by route.
func (g *Graph[S, U]) DOT(opts ...VizOption) string {
	o := defaultVizOptions()
	for _, fn := range opts {
		fn(o)
	}
	ids, labels, edges, entry := g.snapshot()

	var b strings.Builder
	b.WriteString("digraph G {\n")
	fmt.Fprintf(&b, "  rankdir=%s;\n", o.RankDir)
	b.WriteString("  node [fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\"];\n")
	if o.GraphLabel != "" {
		fmt.Fprintf(&b, "  label=\"%s\";\n  labelloc=t;\n", escapeLabel(o.GraphLabel))
	}
	if o.IncludeStartEnd {
		fmt.Fprintf(&b, "  \"%s\" [label=\"start\", shape=%s, style=filled, fillcolor=\"%s\", color=\"%s\"];\n",
			Start, shapeOval, colorStartFill, colorStartBorder)
		fmt.Fprintf(&b, "  \"%s\" [label=\"end\", shape=%s, style=filled, fillcolor=\"%s\", color=\"%s\"];\n",
			End, shapeOval, colorEndFill, colorEndBorder)
	}
	for _, id := range ids {
		fmt.Fprintf(&b, "  \"%s\" [label=\"%s\", shape=%s, style=filled, fillcolor=\"%s\", color=\"%s\"];\n",
			escapeLabel(id), escapeLabel(labels[id]), shapeBox, colorNodeFill, colorNodeBorder)
	}
	if o.IncludeStartEnd && entry != "" {
		fmt.Fprintf(&b, "  \"%s\" -> \"%s\";\n", Start, escapeLabel(entry))
	}
	for _, e := range edges {
		if !o.IncludeStartEnd && e.to == End {
			continue
		}
		if e.conditional {
			fmt.Fprintf(&b, "  \"%s\" -> \"%s\" [style=dashed, color=\"%s\", label=\"%s\"];\n",
				escapeLabel(e.from), escapeLabel(e.to), colorConditionalEdge, escapeLabel(e.label))
			continue
		}
		fmt.Fprintf(&b, "  \"%s\" -> \"%s\";\n", escapeLabel(e.from), escapeLabel(e.to))
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid returns a Mermaid flowchart of the graph.
func (g *Graph[S, U]) Mermaid() string {
	ids, labels, edges, entry := g.snapshot()

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    __start__((\"start\"))\n")
	for _, id := range ids {
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", sanitizeMermaidID(id), strings.ReplaceAll(labels[id], "\"", "'"))
	}
	sb.WriteString("    __end__((\"end\"))\n")
	if entry != "" {
		fmt.Fprintf(&sb, "    __start__ --> %s\n", sanitizeMermaidID(entry))
	}
	for _, e := range edges {
		arrow := "-->"
		if e.conditional {
			arrow = fmt.Sprintf("-. \"%s\" .->", strings.ReplaceAll(e.label, "\"", "'"))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.from), arrow, sanitizeMermaidID(e.to))
	}
	return sb.String()
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "\"", "\\\"")
}
