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

// Package commandtest runs supctl commands in tests against a fake daemon.
package commandtest

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"

	"github.com/tombee/supervisor-mcp/internal/cli"
	"github.com/tombee/supervisor-mcp/internal/manager"
)

// Output is what a command wrote.
type Output struct {
	Stdout string
	Stderr string
	Err    error
}

// Envelope decodes Stdout as a JSON result.
func (o Output) Envelope(t testing.TB) map[string]any {
	t.Helper()
	var env map[string]any
	if err := json.Unmarshal([]byte(o.Stdout), &env); err != nil {
		t.Fatalf("stdout is not a JSON envelope: %v\n%s", err, o.Stdout)
	}
	return env
}

// Isolate points config lookup at an empty directory and clears the
// environment config reads.
func Isolate(t testing.TB) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{
		"SUPERVISOR_URL", "SUPERVISOR_USERNAME", "SUPERVISOR_PASSWORD",
		"SUPERVISOR_TIMEOUT", "SUPERVISOR_MAX_IN_FLIGHT",
		"SUPERVISOR_MCP_LOG_LEVEL", "SUPERVISOR_MCP_DEBUG", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

// Run executes args on a fresh supctl root holding cmds.
func Run(t testing.TB, cmds []*cobra.Command, args ...string) Output {
	t.Helper()
	Isolate(t)

	root := cli.NewRootCommand()
	root.AddCommand(cmds...)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return Output{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}

// Status returns the envelope status, or "" when Stdout is not JSON.
func (o Output) Status() manager.Status {
	var env struct {
		Status manager.Status `json:"status"`
	}
	if json.Unmarshal([]byte(o.Stdout), &env) != nil {
		return ""
	}
	return env.Status
}
