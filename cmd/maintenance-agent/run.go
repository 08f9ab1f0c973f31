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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"trpc.group/trpc-go/maintenance-agent-go/runner"
)

var runCmd = &cobra.Command{
	Use:   "run <issue report>",
	Short: "Diagnose one issue report",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID, _ := cmd.Flags().GetString("thread-id")
		key, _ := cmd.Flags().GetString("embedding-key")
		plain, _ := cmd.Flags().GetBool("plain")
		var opts []runner.RunOption
		if threadID != "" {
			opts = append(opts, runner.WithThreadID(threadID))
		}
		if key != "" {
			opts = append(opts, runner.WithRunEmbeddingKey(key))
		}
		return withComponents(cmd, func(ctx context.Context, c *runner.Components) error {
			res, err := c.Runner.Run(ctx, strings.Join(args, " "), opts...)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res, plain)
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <thread id>",
	Short: "Resume an interrupted run from its last checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		return withComponents(cmd, func(ctx context.Context, c *runner.Components) error {
			res, err := c.Runner.Resume(ctx, args[0])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res, plain)
		})
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Diagnose every issue report of a file, one per line",
	Long:  `Reads issue reports from the file ("-" for stdin), one per line, and runs them concurrently.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := readReports(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		return withComponents(cmd, func(ctx context.Context, c *runner.Components) error {
			if concurrency <= 0 {
				concurrency = c.Config.Workflow.BatchSize
			}
			results, err := c.Runner.RunBatch(ctx, reports, concurrency)
			if err != nil {
				return err
			}
			failed := 0
			out := cmd.OutOrStdout()
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "[%d] FAILED %q: %v\n", r.Index+1, r.IssueReport, r.Err)
					continue
				}
				fmt.Fprintf(out, "[%d] %s %q\n%s\n\n", r.Index+1, r.Result.ThreadID, r.IssueReport,
					r.Result.State.RecommendationText)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d runs failed", failed, len(results))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd, resumeCmd, batchCmd)

	runCmd.Flags().String("thread-id", "", "Run under this thread id instead of a generated one")
	runCmd.Flags().String("embedding-key", "", "Vector field to search")
	for _, c := range []*cobra.Command{runCmd, resumeCmd} {
		c.Flags().Bool("plain", false, "Print markdown without terminal styling")
	}
	batchCmd.Flags().Int("concurrency", 0, "Number of concurrent runs (defaults to workflow.batch_concurrency)")
}

// readReports returns the non-blank lines of path, or of in when path is "-".
func readReports(in io.Reader, path string) ([]string, error) {
	r := in
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open reports: %w", err)
		}
		defer f.Close()
		r = f
	}
	var reports []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			reports = append(reports, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read reports: %w", err)
	}
	return reports, nil
}

// resultMarkdown renders the outcome of a run as markdown.
func resultMarkdown(res *runner.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", res.ThreadID)
	fmt.Fprintf(&b, "**Issue:** %s\n\n", res.State.IssueReport)
	if len(res.State.CriticalConditions) > 0 {
		b.WriteString("## Critical conditions\n\n")
		for _, c := range res.State.CriticalConditions {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		b.WriteString("\n")
	}
	b.WriteString("## Progress\n\n")
	for _, u := range res.State.Updates {
		fmt.Fprintf(&b, "- %s\n", u)
	}
	b.WriteString("\n## Recommendation\n\n")
	b.WriteString(res.State.RecommendationText)
	b.WriteString("\n")
	return b.String()
}

func printResult(w io.Writer, res *runner.Result, plain bool) error {
	md := resultMarkdown(res)
	if plain {
		_, err := io.WriteString(w, md)
		return err
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render result: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
