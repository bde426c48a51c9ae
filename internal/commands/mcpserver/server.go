// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcpserver

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tombee/supervisor-mcp/internal/commands/shared"
	"github.com/tombee/supervisor-mcp/internal/log"
	"github.com/tombee/supervisor-mcp/internal/mcp/server"
)

// NewCommand creates the mcp-server command
func NewCommand() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve supervisord control as MCP tools",
		Long: `Start the supervisor MCP (Model Context Protocol) server.

The server exposes supervisord process control as tools that AI assistants can
call. Each tool returns a JSON {status, message, data} envelope; error results
are also flagged as tool errors.

The server runs in stdio mode by default. With --http it serves the streamable
HTTP transport on /mcp and Prometheus metrics on /metrics instead.

Configuration example for an MCP client:
  {
    "mcpServers": {
      "supervisor": {
        "command": "supervisor-mcp",
        "env": {"SUPERVISOR_URL": "http://localhost:9001/RPC2"}
      }
    }
  }

The server exposes these tools:
  - start_process, stop_process, restart_process
  - get_process_status, list_processes, get_logs
  - get_system_info, reload_config, add_process

Logs are written to stderr; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPServer(cmd, httpAddr)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "Serve streamable HTTP on this address (e.g. 127.0.0.1:8080) instead of stdio")

	return cmd
}

func runMCPServer(cmd *cobra.Command, httpAddr string) error {
	session, err := shared.OpenServer(cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	versionStr, _, _ := shared.GetVersion()
	srv, err := server.NewServer(server.ServerConfig{
		Version:        versionStr,
		Manager:        session.Manager,
		Logger:         session.Logger,
		CallsPerMinute: session.Config.MCP.CallsPerMinute,
		Burst:          session.Config.MCP.Burst,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A failed first connect is not fatal; every tool call reconnects.
	if res := session.Manager.Connect(ctx); res.IsError() {
		session.Logger.Warn("supervisor not reachable yet", log.URLKey, log.SanitizeURL(session.Manager.URL()), "reason", res.Message)
	}

	if httpAddr != "" {
		return srv.RunHTTP(ctx, httpAddr)
	}
	return srv.Run(ctx)
}
