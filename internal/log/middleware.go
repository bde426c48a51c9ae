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

package log

import (
	"context"
	"log/slog"
	"time"
)

// ToolCall describes one MCP tool invocation for logging.
type ToolCall struct {
	// Tool is the tool name (e.g., "start_process").
	Tool string

	// RequestID is the unique ID for this invocation.
	RequestID string

	// Process is the target process, if any.
	Process string
}

// ToolOutcome describes how a tool invocation ended.
type ToolOutcome struct {
	// Status is the envelope status: ok, warning or error.
	Status string

	// Kind classifies error and warning outcomes.
	Kind string

	DurationMs int64
}

func (c *ToolCall) attrs() []any {
	attrs := []any{ToolKey, c.Tool, RequestIDKey, c.RequestID}
	if c.Process != "" {
		attrs = append(attrs, ProcessKey, c.Process)
	}
	return attrs
}

// LogToolCall logs an incoming tool call at debug level.
func LogToolCall(logger *slog.Logger, call *ToolCall) {
	logger.Debug("tool call received", call.attrs()...)
}

// LogToolOutcome logs a finished tool call. Error outcomes are logged at warn
// level; the caller already receives them in the envelope.
func LogToolOutcome(logger *slog.Logger, call *ToolCall, out *ToolOutcome) {
	attrs := append(call.attrs(), "status", out.Status, DurationKey, out.DurationMs)
	if out.Kind != "" {
		attrs = append(attrs, "kind", out.Kind)
	}

	level := slog.LevelInfo
	if out.Status == "error" {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "tool call finished", attrs...)
}

// ToolMiddleware logs tool calls around a handler.
type ToolMiddleware struct {
	logger *slog.Logger
}

// NewToolMiddleware creates a tool logging middleware.
func NewToolMiddleware(logger *slog.Logger) *ToolMiddleware {
	return &ToolMiddleware{logger: logger}
}

// Handle logs call, runs handler and logs the outcome it reports.
func (m *ToolMiddleware) Handle(call *ToolCall, handler func() (status, kind string)) {
	start := time.Now()
	LogToolCall(m.logger, call)

	status, kind := handler()

	LogToolOutcome(m.logger, call, &ToolOutcome{
		Status:     status,
		Kind:       kind,
		DurationMs: time.Since(start).Milliseconds(),
	})
}
