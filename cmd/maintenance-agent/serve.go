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
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/maintenance-agent-go/log"
	"trpc.group/trpc-go/maintenance-agent-go/runner"
	"trpc.group/trpc-go/maintenance-agent-go/server/api"
	"trpc.group/trpc-go/maintenance-agent-go/server/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		return withComponents(cmd, func(ctx context.Context, c *runner.Components) error {
			if addr == "" {
				addr = c.Config.Server.Addr
			}
			srv := api.New(c.Runner, api.WithAllowedOrigins(c.Config.Server.AllowedOrigins...))
			err := srv.ListenAndServe(ctx, addr)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol server on stdio",
	Long: `Exposes the tools diagnose_issue, resume_run and list_sessions to MCP clients.
Logs go to stderr so they do not corrupt the JSON-RPC stream on stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.SetOutput(os.Stderr)
		return withComponents(cmd, func(ctx context.Context, c *runner.Components) error {
			log.Info("starting MCP server (stdio)")
			return mcp.NewServer(c.Runner, version).ServeStdio()
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, mcpCmd)
	serveCmd.Flags().String("addr", "", "Listen address (defaults to server.addr)")
}
