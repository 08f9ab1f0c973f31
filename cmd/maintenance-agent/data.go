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
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/maintenance-agent-go/config"
	"trpc.group/trpc-go/maintenance-agent-go/dataset"
	"trpc.group/trpc-go/maintenance-agent-go/log"
	pmongodb "trpc.group/trpc-go/maintenance-agent-go/persistence/mongodb"
	"trpc.group/trpc-go/maintenance-agent-go/runner"
	"trpc.group/trpc-go/maintenance-agent-go/storage/mongodb"
)

// Ingest kinds.
const (
	kindTelemetry = "telemetry"
	kindIssues    = "issues"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Load a CSV file into MongoDB",
	Long: `Loads telemetry rows into the time-series telemetry collection (--kind telemetry)
or issue rows into the vector collection (--kind issues). The file defaults to
workflow.csv_path or data.issues_csv respectively.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		batch, _ := cmd.Flags().GetInt("batch-size")
		return withMongo(cmd, func(ctx context.Context, cfg *config.Config, conn *mongodb.Connector) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			switch kind {
			case kindTelemetry:
				if path == "" {
					path = cfg.Workflow.CSVPath
				}
				store, err := pmongodb.New(conn, pmongodb.Collections{
					Telemetry:       cfg.Collections.Telemetry,
					Logs:            cfg.Collections.Logs,
					Recommendations: cfg.Collections.Recommendations,
				})
				if err != nil {
					return err
				}
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				n, err := dataset.IngestTelemetry(ctx, store, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d telemetry records into %s\n", n, cfg.Collections.Telemetry)
			case kindIssues:
				if path == "" {
					path = cfg.Data.IssuesCSV
				}
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				n, err := dataset.IngestDocuments(ctx, conn.Collection(cfg.Collections.Vectors), f, batch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d documents into %s\n", n, cfg.Collections.Vectors)
			default:
				return fmt.Errorf("unknown kind %q: use %s or %s", kind, kindTelemetry, kindIssues)
			}
			return nil
		})
	},
}

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Compute <attribute>_embedding for every document of the vector collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		attr, _ := cmd.Flags().GetString("attribute")
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		return withMongo(cmd, func(ctx context.Context, cfg *config.Config, conn *mongodb.Connector) error {
			if attr == "" {
				attr = cfg.Data.EmbedAttribute
			}
			if concurrency <= 0 {
				concurrency = cfg.Data.Concurrency
			}
			emb, err := runner.NewEmbedder(ctx, cfg)
			if err != nil {
				return err
			}
			stats, err := dataset.EmbedCollection(ctx, conn.Collection(cfg.Collections.Vectors), emb, attr, overwrite, concurrency)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d of %d documents (%d failed)\n", stats.Embedded, stats.Total, stats.Failed)
			if stats.Failed > 0 {
				return errors.New("some documents could not be embedded")
			}
			return nil
		})
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Create the vector search index over <attribute>_embedding",
	RunE: func(cmd *cobra.Command, args []string) error {
		attr, _ := cmd.Flags().GetString("attribute")
		return withMongo(cmd, func(ctx context.Context, cfg *config.Config, conn *mongodb.Connector) error {
			if attr == "" {
				attr = cfg.Data.EmbedAttribute
			}
			name, err := dataset.CreateVectorIndex(ctx, conn.Collection(cfg.Collections.Vectors),
				cfg.VectorSearch.Index, attr, cfg.VectorSearch.Dimensions)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created vector search index %s\n", name)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd, embedCmd, indexCmd)
	ingestCmd.Flags().String("kind", kindTelemetry, "What the file holds: telemetry or issues")
	ingestCmd.Flags().Int("batch-size", dataset.DefaultBatchSize, "Documents per insert")
	embedCmd.Flags().String("attribute", "", "Field to embed (defaults to data.embed_attribute)")
	embedCmd.Flags().Bool("overwrite", false, "Recompute embeddings that already exist")
	embedCmd.Flags().Int("concurrency", 0, "Concurrent embedding calls (defaults to data.concurrency)")
	indexCmd.Flags().String("attribute", "", "Embedded field (defaults to data.embed_attribute)")
}

// withMongo connects to MongoDB only; the data commands need neither the
// workflow nor a checkpointer.
func withMongo(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, conn *mongodb.Connector) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.MongoDB.URI == "" {
		return errors.New("mongodb.uri (MONGODB_URI) is required")
	}
	ctx := cmd.Context()
	conn, err := mongodb.Connect(ctx, cfg.MongoDB.Database,
		mongodb.WithClientBuilderURI(cfg.MongoDB.URI),
		mongodb.WithClientBuilderAppName(cfg.MongoDB.AppName))
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() {
		if err := conn.Disconnect(context.Background()); err != nil {
			log.Warnf("[MongoDB] disconnect: %v", err)
		}
	}()
	return fn(ctx, cfg, conn)
}
