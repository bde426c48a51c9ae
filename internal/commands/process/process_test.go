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

package process

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/supervisor-mcp/internal/commands/commandtest"
	"github.com/tombee/supervisor-mcp/internal/commands/shared"
	"github.com/tombee/supervisor-mcp/internal/supervisor"
	"github.com/tombee/supervisor-mcp/internal/supervisor/supervisortest"
)

func newDaemon(t *testing.T) (*supervisortest.FakeDaemon, string) {
	t.Helper()
	d := supervisortest.NewFakeDaemon(
		&supervisortest.Process{Name: "web", Stdout: "one\ntwo\nthree\n", Stderr: "warn: slow\n"},
		&supervisortest.Process{Name: "worker_00", Group: "worker"},
		&supervisortest.Process{Name: "worker_01", Group: "worker"},
		&supervisortest.Process{Name: "broken", FailStart: true},
	)
	srv := supervisortest.NewServer(t, d)
	return d, srv.URL + "/RPC2"
}

func run(t *testing.T, url string, args ...string) commandtest.Output {
	t.Helper()
	return commandtest.Run(t, NewCommands(), append(args, "--url", url)...)
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return shared.ExitSuccess
	}
	var exitErr *shared.ExitError
	require.ErrorAs(t, err, &exitErr)
	return exitErr.Code
}

func TestStartStopRestart(t *testing.T) {
	d, url := newDaemon(t)

	out := run(t, url, "start", "web")
	require.NoError(t, out.Err)
	assert.Contains(t, out.Stdout, "process 'web' started")
	p, _ := d.Process("web")
	assert.Equal(t, supervisor.StateRunning, p.State)

	out = run(t, url, "start", "web")
	assert.Equal(t, shared.ExitOperationFailed, exitCode(t, out.Err))
	assert.Contains(t, out.Err.Error(), "process 'web' is already running")

	out = run(t, url, "restart", "web", "--json")
	require.NoError(t, out.Err)
	assert.Equal(t, "process 'web' restarted", out.Envelope(t)["message"])

	out = run(t, url, "stop", "worker:worker_00")
	assert.Equal(t, shared.ExitOperationFailed, exitCode(t, out.Err))
	assert.Contains(t, out.Err.Error(), "is not running")

	out = run(t, url, "stop", "web", "-q")
	require.NoError(t, out.Err)
	assert.Empty(t, out.Stdout)
}

func TestRestartFailureCarriesProcess(t *testing.T) {
	_, url := newDaemon(t)

	out := run(t, url, "restart", "broken", "--json")
	assert.Equal(t, shared.ExitOperationFailed, exitCode(t, out.Err))

	env := out.Envelope(t)
	assert.Equal(t, "error", env["status"])
	data, ok := env["data"].(map[string]any)
	require.True(t, ok, "expected process data, got %v", env["data"])
	assert.Equal(t, "FATAL", data["state"])
}

func TestStatus(t *testing.T) {
	_, url := newDaemon(t)

	out := run(t, url, "status", "web")
	require.NoError(t, out.Err)
	assert.Contains(t, out.Stdout, "web")
	assert.Contains(t, out.Stdout, "STOPPED")

	out = run(t, url, "status", "ghost", "--json")
	assert.Equal(t, shared.ExitOperationFailed, exitCode(t, out.Err))
	assert.Equal(t, "process 'ghost' not found", out.Envelope(t)["message"])

	out = run(t, url, "status", "web", "--jq", ".data.group")
	require.NoError(t, out.Err)
	assert.Equal(t, "web\n", out.Stdout)
}

func TestInvalidArguments(t *testing.T) {
	_, url := newDaemon(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing name", []string{"start"}},
		{"two names", []string{"stop", "web", "worker"}},
		{"bad characters", []string{"start", "web;rm -rf"}},
		{"unknown flag", []string{"status", "web", "--bogus"}},
		{"zero lines", []string{"logs", "web", "--lines", "0"}},
		{"bad glob", []string{"list", "--match", "web["}},
		{"bad expression", []string{"list", "--where", "cpu >"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, url, tt.args...)
			assert.Equal(t, shared.ExitInvalidInput, exitCode(t, out.Err), "err: %v", out.Err)
		})
	}
}

func TestList(t *testing.T) {
	d, url := newDaemon(t)
	require.NoError(t, d.StartProcess("worker:worker_01", true))

	out := run(t, url, "list")
	require.NoError(t, out.Err)
	lines := strings.Split(strings.TrimRight(out.Stdout, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[2], "worker:worker_00")
	assert.Contains(t, lines[3], "RUNNING")

	out = run(t, url, "list", "--match", "worker:*", "--json")
	require.NoError(t, out.Err)
	env := out.Envelope(t)
	assert.Equal(t, "2 of 4 processes match", env["message"])
	assert.Len(t, env["data"], 2)

	out = run(t, url, "list", "--where", "running", "--jq", ".data[].name")
	require.NoError(t, out.Err)
	assert.Equal(t, "worker:worker_01\n", out.Stdout)
}

func TestLogs(t *testing.T) {
	_, url := newDaemon(t)

	out := run(t, url, "logs", "web", "-n", "2")
	require.NoError(t, out.Err)
	assert.Equal(t, "two\nthree\n", out.Stdout)

	out = run(t, url, "logs", "web", "--stderr", "--json")
	require.NoError(t, out.Err)
	data := out.Envelope(t)["data"].(map[string]any)
	assert.Equal(t, "stderr", data["stream"])
	assert.Equal(t, []any{"warn: slow"}, data["lines"])
}

func TestAdd(t *testing.T) {
	d, url := newDaemon(t)
	before := d.TotalCalls()

	out := run(t, url, "add", "api", "--command", "/opt/api/bin/serve --port 8080", "--numprocs", "2")
	require.NoError(t, out.Err, "a pending configuration is a warning, not a failure")
	assert.Contains(t, out.Stdout, "[program:api]")
	assert.Contains(t, out.Stdout, "numprocs")
	assert.Contains(t, out.Stdout, "Next steps")
	assert.Equal(t, before, d.TotalCalls(), "add must not call the daemon")

	out = run(t, url, "add", "api", "--json", "--command", "/bin/true")
	require.NoError(t, out.Err)
	env := out.Envelope(t)
	assert.Equal(t, "warning", env["status"])
	assert.Equal(t, "program:api", env["data"].(map[string]any)["section"])

	out = run(t, url, "add", "api")
	assert.Equal(t, shared.ExitInvalidInput, exitCode(t, out.Err))

	out = run(t, url, "add", "api", "--command", "/bin/true", "--autorestart", "sometimes")
	assert.Equal(t, shared.ExitInvalidInput, exitCode(t, out.Err))
}

func TestUnreachableDaemon(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "http://" + ln.Addr().String() + "/RPC2"
	ln.Close()

	out := run(t, url, "list")
	assert.Equal(t, shared.ExitConnection, exitCode(t, out.Err))
	assert.Contains(t, out.Err.Error(), "cannot reach supervisor")
}
