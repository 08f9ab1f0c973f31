//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/maintenance-agent-go/graph"
	"trpc.group/trpc-go/maintenance-agent-go/runner"
	"trpc.group/trpc-go/maintenance-agent-go/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")
		return withComponents(cmd, func(ctx context.Context, c *runner.Components) error {
			sessions, err := c.Runner.RecentSessions(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sessions)
			}
			return printSessions(cmd.OutOrStdout(), sessions)
		})
	},
}

var documentsCmd = &cobra.Command{
	Use:   "documents <thread id>",
	Short: "Print the logs and recommendations recorded for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withComponents(cmd, func(ctx context.Context, c *runner.Components) error {
			docs, err := c.Runner.RunDocuments(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(docs)
		})
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the workflow graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		dot, _ := cmd.Flags().GetBool("dot")
		return withComponents(cmd, func(ctx context.Context, c *runner.Components) error {
			g := c.Workflow.Graph()
			out := g.Mermaid()
			if dot {
				out = g.DOT(graph.WithRankDir(graph.RankDirLR))
			}
			_, err := io.WriteString(cmd.OutOrStdout(), out)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd, documentsCmd, graphCmd)
	sessionsCmd.Flags().Int("limit", session.DefaultRecentLimit, "Maximum number of sessions")
	sessionsCmd.Flags().Bool("json", false, "Print JSON instead of a table")
	graphCmd.Flags().Bool("dot", false, "Print Graphviz DOT instead of Mermaid")
}

func printSessions(w io.Writer, sessions []session.Summary) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "THREAD ID\tCREATED\tSTATUS\tISSUE")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ThreadID, s.CreatedAt, s.Status, s.Issue)
	}
	return tw.Flush()
}
