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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/maintenance-agent-go/config"
	"trpc.group/trpc-go/maintenance-agent-go/log"
	"trpc.group/trpc-go/maintenance-agent-go/runner"
	"trpc.group/trpc-go/maintenance-agent-go/telemetry"
)

var version = "v0.1.0"

var rootCmd = &cobra.Command{
	Use:           "maintenance-agent",
	Short:         "Diagnose vehicle issues from engine telemetry",
	Long:          `maintenance-agent runs a fixed diagnosis workflow over engine telemetry, similar past issues and an LLM, and records every run in MongoDB.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Interrupts cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides the config)")
}

// loadConfig reads the configuration named by --config and applies the
// logging flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	log.Configure(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

// startTelemetry starts OTLP export when enabled. The returned function
// flushes and stops it.
func startTelemetry(ctx context.Context, cfg *config.Config) func() {
	if !cfg.Telemetry.Enabled {
		return func() {}
	}
	var opts []telemetry.Option
	if cfg.Telemetry.TracesEndpoint != "" {
		opts = append(opts, telemetry.WithTracesEndpoint(cfg.Telemetry.TracesEndpoint))
	}
	if cfg.Telemetry.MetricsEndpoint != "" {
		opts = append(opts, telemetry.WithMetricsEndpoint(cfg.Telemetry.MetricsEndpoint))
	}
	opts = append(opts,
		telemetry.WithServiceVersion(version),
		telemetry.WithSampleRatio(cfg.Telemetry.SampleRatio),
	)
	clean, err := telemetry.Start(ctx, opts...)
	if err != nil {
		log.Warnf("telemetry disabled: %v", err)
		return func() {}
	}
	return func() {
		if err := clean(); err != nil {
			log.Warnf("telemetry shutdown: %v", err)
		}
	}
}

// withComponents builds every component from the configuration, runs fn
// and releases everything afterwards.
func withComponents(cmd *cobra.Command, fn func(ctx context.Context, c *runner.Components) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	stop := startTelemetry(ctx, cfg)
	defer stop()

	c, err := runner.FromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(context.Background()); err != nil {
			log.Warnf("closing components: %v", err)
		}
	}()
	return fn(ctx, c)
}
