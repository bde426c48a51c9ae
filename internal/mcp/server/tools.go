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

package server

import (
	"context"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tombee/supervisor-mcp/internal/log"
	"github.com/tombee/supervisor-mcp/internal/manager"
)

// Tool argument defaults.
const (
	defaultLogLines    = 100
	defaultAutorestart = "unexpected"
	defaultNumprocs    = 1
)

// kindRateLimited marks calls rejected before reaching the manager.
const kindRateLimited manager.Kind = "rate_limited"

var toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "supervisor_mcp_tool_calls_total",
	Help: "MCP tool calls by tool and envelope status.",
}, []string{"tool", "status"})

var nameProperty = map[string]interface{}{
	"type":        "string",
	"description": "Process name, or group:name for grouped processes",
}

// registerTools registers the supervisor tools with the MCP server.
func (s *Server) registerTools() {
	nameOnly := mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]interface{}{"name": nameProperty},
		Required:   []string{"name"},
	}
	noArgs := mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]interface{}{},
	}

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "start_process",
		Description: "Start a supervised process and wait until it is running.",
		InputSchema: nameOnly,
	}, s.handle("start_process", s.handleStart))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "stop_process",
		Description: "Stop a supervised process and wait until it has stopped.",
		InputSchema: nameOnly,
	}, s.handle("stop_process", s.handleStop))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "restart_process",
		Description: "Stop a process if it is running, then start it again.",
		InputSchema: nameOnly,
	}, s.handle("restart_process", s.handleRestart))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_processes",
		Description: "List every process known to supervisord with its current state.",
		InputSchema: noArgs,
	}, s.handle("list_processes", s.handleList))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_process_status",
		Description: "Return the live state of one process.",
		InputSchema: nameOnly,
	}, s.handle("get_process_status", s.handleStatus))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_logs",
		Description: "Return the last lines of a process's stdout or stderr log.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": nameProperty,
				"lines": map[string]interface{}{
					"type":        "integer",
					"description": "Number of trailing lines to return (default: 100)",
					"default":     defaultLogLines,
					"minimum":     1,
				},
				"stderr": map[string]interface{}{
					"type":        "boolean",
					"description": "Read the stderr log instead of stdout (default: false)",
					"default":     false,
				},
			},
			Required: []string{"name"},
		},
	}, s.handle("get_logs", s.handleLogs))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_system_info",
		Description: "Report supervisord version, API version, identification, PID and state.",
		InputSchema: noArgs,
	}, s.handle("get_system_info", s.handleSystemInfo))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "reload_config",
		Description: "Ask supervisord to reread its configuration and report added, changed and removed programs.",
		InputSchema: noArgs,
	}, s.handle("reload_config", s.handleReload))

	s.mcpServer.AddTool(mcp.Tool{
		Name: "add_process",
		Description: "Render the [program:x] section for a new process. supervisord cannot register " +
			"programs over its API, so the result is a warning with the configuration to install.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Program name",
				},
				"command": map[string]interface{}{
					"type":        "string",
					"description": "Command line to run",
				},
				"directory": map[string]interface{}{
					"type":        "string",
					"description": "Working directory",
				},
				"autostart": map[string]interface{}{
					"type":        "boolean",
					"description": "Start when supervisord starts (default: false)",
					"default":     false,
				},
				"autorestart": map[string]interface{}{
					"type":        "string",
					"description": "Restart policy (default: unexpected)",
					"enum":        []string{"true", "false", "unexpected"},
					"default":     defaultAutorestart,
				},
				"numprocs": map[string]interface{}{
					"type":        "integer",
					"description": "Number of instances (default: 1)",
					"default":     defaultNumprocs,
					"minimum":     1,
				},
			},
			Required: []string{"name", "command"},
		},
	}, s.handle("add_process", s.handleAddProcess))
}

type toolFunc func(ctx context.Context, request mcp.CallToolRequest) manager.Result

// handle wraps a tool with rate limiting, request logging and metrics.
func (s *Server) handle(tool string, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		call := &log.ToolCall{
			Tool:      tool,
			RequestID: uuid.NewString(),
			Process:   request.GetString("name", ""),
		}

		var res manager.Result
		s.tools.Handle(call, func() (string, string) {
			if !s.rateLimiter.AllowCall() {
				res = manager.Errorf(kindRateLimited, "rate limit exceeded; try again later")
			} else {
				res = fn(ctx, request)
			}
			return string(res.Status), string(res.Kind)
		})

		toolCalls.WithLabelValues(tool, string(res.Status)).Inc()
		return toolResponse(res), nil
	}
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest) manager.Result {
	return s.ops.Start(ctx, request.GetString("name", ""))
}

func (s *Server) handleStop(ctx context.Context, request mcp.CallToolRequest) manager.Result {
	return s.ops.Stop(ctx, request.GetString("name", ""))
}

func (s *Server) handleRestart(ctx context.Context, request mcp.CallToolRequest) manager.Result {
	return s.ops.Restart(ctx, request.GetString("name", ""))
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) manager.Result {
	return s.ops.Status(ctx, request.GetString("name", ""))
}

func (s *Server) handleList(ctx context.Context, _ mcp.CallToolRequest) manager.Result {
	return s.ops.List(ctx)
}

func (s *Server) handleLogs(ctx context.Context, request mcp.CallToolRequest) manager.Result {
	return s.ops.Logs(ctx,
		request.GetString("name", ""),
		request.GetInt("lines", defaultLogLines),
		request.GetBool("stderr", false),
	)
}

func (s *Server) handleSystemInfo(ctx context.Context, _ mcp.CallToolRequest) manager.Result {
	return s.ops.SystemInfo(ctx)
}

func (s *Server) handleReload(ctx context.Context, _ mcp.CallToolRequest) manager.Result {
	return s.ops.ReloadConfig(ctx)
}

func (s *Server) handleAddProcess(ctx context.Context, request mcp.CallToolRequest) manager.Result {
	return s.ops.AddProcess(ctx, manager.ProcessSpec{
		Name:        request.GetString("name", ""),
		Command:     request.GetString("command", ""),
		Directory:   request.GetString("directory", ""),
		Autostart:   request.GetBool("autostart", false),
		Autorestart: request.GetString("autorestart", defaultAutorestart),
		Numprocs:    request.GetInt("numprocs", defaultNumprocs),
	})
}
