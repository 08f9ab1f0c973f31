//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Command maintenance-agent diagnoses vehicle issues from engine telemetry
// and serves the workflow over HTTP and MCP.
package main

func main() {
	Execute()
}
