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
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/supervisor-mcp/internal/manager"
	"github.com/tombee/supervisor-mcp/internal/supervisor"
	"github.com/tombee/supervisor-mcp/internal/supervisor/supervisortest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, d *supervisortest.FakeDaemon, cfg ServerConfig) *Server {
	t.Helper()
	m, err := manager.New(manager.Config{}, manager.WithDaemon(d), manager.WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	cfg.Manager = m
	cfg.Logger = quietLogger()
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

// rpc sends one JSON-RPC request through the MCP server and returns its result.
func rpc(t *testing.T, s *Server, method string, params interface{}) map[string]interface{} {
	t.Helper()
	msg, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	resp := s.MCPServer().HandleMessage(context.Background(), msg)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Contains(t, out, "result", string(raw))
	return out["result"].(map[string]interface{})
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func callTool(t *testing.T, s *Server, tool string, args map[string]interface{}) (envelope, bool) {
	t.Helper()
	if args == nil {
		args = map[string]interface{}{}
	}
	result := rpc(t, s, "tools/call", map[string]interface{}{"name": tool, "arguments": args})

	content := result["content"].([]interface{})
	require.Len(t, content, 1)
	text := content[0].(map[string]interface{})["text"].(string)

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(text), &env), text)
	isError, _ := result["isError"].(bool)
	return env, isError
}

func TestNewServerRequiresManager(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestToolsAreRegistered(t *testing.T) {
	s := newTestServer(t, supervisortest.NewFakeDaemon(), ServerConfig{})

	result := rpc(t, s, "tools/list", map[string]interface{}{})
	var names []string
	for _, tool := range result["tools"].([]interface{}) {
		names = append(names, tool.(map[string]interface{})["name"].(string))
	}
	sort.Strings(names)

	assert.Equal(t, []string{
		"add_process", "get_logs", "get_process_status", "get_system_info", "list_processes",
		"reload_config", "restart_process", "start_process", "stop_process",
	}, names)
}

func TestProcessTools(t *testing.T) {
	d := supervisortest.NewFakeDaemon(&supervisortest.Process{Name: "web"})
	s := newTestServer(t, d, ServerConfig{})

	env, isError := callTool(t, s, "start_process", map[string]interface{}{"name": "web"})
	assert.Equal(t, "ok", env.Status, env.Message)
	assert.False(t, isError)

	env, isError = callTool(t, s, "start_process", map[string]interface{}{"name": "web"})
	assert.Equal(t, "error", env.Status)
	assert.True(t, isError)
	assert.Equal(t, "process 'web' is already running", env.Message)

	env, _ = callTool(t, s, "get_process_status", map[string]interface{}{"name": "web"})
	require.Equal(t, "ok", env.Status, env.Message)
	var proc manager.Process
	require.NoError(t, json.Unmarshal(env.Data, &proc))
	assert.Equal(t, supervisor.StateRunning, proc.State)
	assert.NotZero(t, proc.PID)

	env, _ = callTool(t, s, "restart_process", map[string]interface{}{"name": "web"})
	assert.Equal(t, "ok", env.Status, env.Message)

	env, _ = callTool(t, s, "stop_process", map[string]interface{}{"name": "web"})
	assert.Equal(t, "ok", env.Status, env.Message)

	env, isError = callTool(t, s, "get_process_status", map[string]interface{}{"name": "ghost"})
	assert.True(t, isError)
	assert.Equal(t, "process 'ghost' not found", env.Message)

	env, isError = callTool(t, s, "stop_process", nil)
	assert.True(t, isError, "missing name is invalid input")
	assert.Equal(t, "error", env.Status)
}

func TestListProcesses(t *testing.T) {
	d := supervisortest.NewFakeDaemon(
		&supervisortest.Process{Name: "web", State: supervisor.StateRunning},
		&supervisortest.Process{Name: "worker"},
	)
	s := newTestServer(t, d, ServerConfig{})

	env, isError := callTool(t, s, "list_processes", nil)
	require.False(t, isError, env.Message)

	var procs []manager.Process
	require.NoError(t, json.Unmarshal(env.Data, &procs))
	require.Len(t, procs, 2)
	assert.Equal(t, "web", procs[0].Name)
	assert.Equal(t, "worker", procs[1].Name)
	assert.Equal(t, "2 processes, 1 running", env.Message)
}

func TestGetLogs(t *testing.T) {
	d := supervisortest.NewFakeDaemon(&supervisortest.Process{
		Name:   "web",
		Stdout: "one\ntwo\nthree\n",
		Stderr: "oops\n",
	})
	s := newTestServer(t, d, ServerConfig{})

	tests := []struct {
		name      string
		args      map[string]interface{}
		wantLines []string
		wantErr   bool
	}{
		{
			name:      "default lines from stdout",
			args:      map[string]interface{}{"name": "web"},
			wantLines: []string{"one", "two", "three"},
		},
		{
			name:      "explicit lines",
			args:      map[string]interface{}{"name": "web", "lines": 2},
			wantLines: []string{"two", "three"},
		},
		{
			name:      "stderr",
			args:      map[string]interface{}{"name": "web", "stderr": true},
			wantLines: []string{"oops"},
		},
		{
			name:    "zero lines",
			args:    map[string]interface{}{"name": "web", "lines": 0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, isError := callTool(t, s, "get_logs", tt.args)
			if tt.wantErr {
				assert.True(t, isError)
				return
			}
			require.False(t, isError, env.Message)
			var tail manager.LogTail
			require.NoError(t, json.Unmarshal(env.Data, &tail))
			assert.Equal(t, tt.wantLines, tail.Lines)
		})
	}
}

func TestSystemTools(t *testing.T) {
	d := supervisortest.NewFakeDaemon()
	d.SetChanges(supervisor.Changes{Added: []string{"api"}})
	s := newTestServer(t, d, ServerConfig{})

	env, isError := callTool(t, s, "get_system_info", nil)
	require.False(t, isError, env.Message)
	var info manager.SystemInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "3.0", info.APIVersion)
	assert.Equal(t, "RUNNING", info.State)

	env, isError = callTool(t, s, "reload_config", nil)
	require.False(t, isError, env.Message)
	assert.Equal(t, "configuration reloaded: 1 added, 0 changed, 0 removed", env.Message)
}

func TestAddProcess(t *testing.T) {
	d := supervisortest.NewFakeDaemon()
	s := newTestServer(t, d, ServerConfig{})

	env, isError := callTool(t, s, "add_process", map[string]interface{}{
		"name":    "api",
		"command": "/usr/bin/api --port 8080",
	})
	assert.False(t, isError, "a warning is not an error")
	assert.Equal(t, "warning", env.Status)

	var pending manager.PendingConfig
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	assert.Equal(t, "program:api", pending.Section)
	assert.Contains(t, pending.Config, "[program:api]")
	assert.Contains(t, pending.Config, "unexpected")
	assert.NotContains(t, pending.Config, "process_name")
	assert.Zero(t, d.TotalCalls(), "add_process never calls the daemon")

	env, isError = callTool(t, s, "add_process", map[string]interface{}{"name": "api"})
	assert.True(t, isError)
	assert.Equal(t, "error", env.Status)
}

func TestConnectionFailureIsAnErrorEnvelope(t *testing.T) {
	d := supervisortest.NewFakeDaemon(&supervisortest.Process{Name: "web"})
	d.SetDown(&supervisor.ConnectionError{Endpoint: supervisor.DefaultURL, Err: syscall.ECONNREFUSED})
	s := newTestServer(t, d, ServerConfig{})

	env, isError := callTool(t, s, "start_process", map[string]interface{}{"name": "web"})
	assert.True(t, isError)
	assert.Contains(t, env.Message, "cannot reach supervisor")
}

func TestRateLimit(t *testing.T) {
	d := supervisortest.NewFakeDaemon()
	s := newTestServer(t, d, ServerConfig{CallsPerMinute: 1, Burst: 1})

	env, isError := callTool(t, s, "list_processes", nil)
	require.False(t, isError, env.Message)
	calls := d.TotalCalls()

	env, isError = callTool(t, s, "list_processes", nil)
	assert.True(t, isError)
	assert.Contains(t, env.Message, "rate limit exceeded")
	assert.Equal(t, calls, d.TotalCalls(), "rejected calls never reach the daemon")
}

func TestRateLimiterUnlimited(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 1000; i++ {
		require.True(t, rl.AllowCall())
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	s := newTestServer(t, supervisortest.NewFakeDaemon(), ServerConfig{})
	callTool(t, s, "list_processes", nil)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "supervisor_mcp_tool_calls_total")
}
