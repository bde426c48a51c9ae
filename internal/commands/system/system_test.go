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

package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/supervisor-mcp/internal/commands/commandtest"
	"github.com/tombee/supervisor-mcp/internal/commands/shared"
	"github.com/tombee/supervisor-mcp/internal/supervisor"
	"github.com/tombee/supervisor-mcp/internal/supervisor/supervisortest"
)

func setup(t *testing.T) (*supervisortest.FakeDaemon, func(args ...string) commandtest.Output) {
	t.Helper()
	d := supervisortest.NewFakeDaemon(&supervisortest.Process{Name: "web"})
	srv := supervisortest.NewServer(t, d)
	return d, func(args ...string) commandtest.Output {
		return commandtest.Run(t, NewCommands(), append(args, "--url", srv.URL+"/RPC2")...)
	}
}

func TestInfo(t *testing.T) {
	d, run := setup(t)

	out := run("info")
	require.NoError(t, out.Err)
	assert.Contains(t, out.Stdout, "api version")
	assert.Contains(t, out.Stdout, "3.0")
	assert.Contains(t, out.Stdout, "RUNNING")

	d.FailMethod("supervisor.getIdentification", supervisortest.Fault(supervisor.FaultFailed, "boom"))
	out = run("info", "--json")
	var exitErr *shared.ExitError
	require.ErrorAs(t, out.Err, &exitErr)
	assert.Equal(t, shared.ExitOperationFailed, exitErr.Code)

	env := out.Envelope(t)
	assert.Equal(t, "error", env["status"])
	data := env["data"].(map[string]any)
	assert.Equal(t, "3.0", data["api_version"], "partial data is still reported")
	assert.Contains(t, data["errors"], "identification")
}

func TestReload(t *testing.T) {
	d, run := setup(t)

	out := run("reload")
	require.NoError(t, out.Err)
	assert.Contains(t, out.Stdout, "no changes")

	d.SetChanges(supervisor.Changes{Added: []string{"api"}, Removed: []string{"old"}})
	out = run("reload")
	require.NoError(t, out.Err)
	assert.Contains(t, out.Stdout, "1 added, 0 changed, 1 removed")
	assert.Contains(t, out.Stdout, "api")
	assert.Contains(t, out.Stdout, "old")

	out = run("reload", "--jq", ".data.added[0]")
	require.NoError(t, out.Err)
	assert.Equal(t, "api\n", out.Stdout)
}

func TestPing(t *testing.T) {
	d, run := setup(t)

	out := run("ping")
	require.NoError(t, out.Err)
	assert.Contains(t, out.Stdout, "connected to supervisor")

	d.SetDown(supervisortest.Fault(supervisor.FaultShutdownState, ""))
	out = run("ping")
	require.Error(t, out.Err)
}
