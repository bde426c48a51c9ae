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

// Package server exposes the supervisor manager as MCP tools.
package server

import (
	"context"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tombee/supervisor-mcp/internal/log"
	"github.com/tombee/supervisor-mcp/internal/manager"
)

// Operations is the part of the manager the tools call.
type Operations interface {
	Start(ctx context.Context, name string) manager.Result
	Stop(ctx context.Context, name string) manager.Result
	Restart(ctx context.Context, name string) manager.Result
	Status(ctx context.Context, name string) manager.Result
	List(ctx context.Context) manager.Result
	Logs(ctx context.Context, name string, lines int, stderr bool) manager.Result
	SystemInfo(ctx context.Context) manager.Result
	ReloadConfig(ctx context.Context) manager.Result
	AddProcess(ctx context.Context, spec manager.ProcessSpec) manager.Result
}

var _ Operations = (*manager.Manager)(nil)

// Server wraps the MCP server and provides the supervisor tools.
type Server struct {
	mcpServer   *server.MCPServer
	name        string
	version     string
	ops         Operations
	rateLimiter *RateLimiter
	tools       *log.ToolMiddleware
	logger      *slog.Logger
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	// Name is the server name (default: "supervisor-mcp")
	Name string

	// Version is the supervisor-mcp version
	Version string

	// Manager serves every tool call. Required.
	Manager Operations

	// Logger receives tool call logs. It must not write to stdout.
	Logger *slog.Logger

	// CallsPerMinute and Burst limit tool calls. Zero CallsPerMinute
	// disables the limit.
	CallsPerMinute int
	Burst          int
}

// NewServer creates a new MCP server instance.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Manager == nil {
		return nil, fmt.Errorf("manager is required")
	}
	if config.Name == "" {
		config.Name = "supervisor-mcp"
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(log.FromEnv())
	}
	logger = log.WithComponent(logger, "mcp")

	s := &Server{
		mcpServer:   server.NewMCPServer(config.Name, config.Version, server.WithToolCapabilities(false)),
		name:        config.Name,
		version:     config.Version,
		ops:         config.Manager,
		rateLimiter: NewRateLimiter(config.CallsPerMinute, config.Burst),
		tools:       log.NewToolMiddleware(logger),
		logger:      logger,
	}
	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Run serves MCP over stdin and stdout until ctx ends or stdin closes.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("version", s.version), slog.String("transport", "stdio"))

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(stdlog.New(os.Stderr, "", 0))

	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	s.logger.Info("MCP server stopped")
	return nil
}

// toolResponse renders an envelope as the tool's text content.
func toolResponse(res manager.Result) *mcp.CallToolResult {
	body, err := res.JSON()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(body))},
		IsError: res.IsError(),
	}
}
