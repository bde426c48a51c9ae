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
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/supervisor-mcp/internal/commands/commandtest"
	"github.com/tombee/supervisor-mcp/internal/commands/shared"
)

func TestNewCommand(t *testing.T) {
	cmd := NewCommand()

	assert.Equal(t, "mcp-server", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	require.NotNil(t, cmd.Flags().Lookup("http"))
	assert.Equal(t, "", cmd.Flags().Lookup("http").DefValue)
}

func TestRejectsBadEndpoint(t *testing.T) {
	out := commandtest.Run(t, []*cobra.Command{NewCommand()}, "mcp-server", "--url", "ftp://box/RPC2")

	var exitErr *shared.ExitError
	require.ErrorAs(t, out.Err, &exitErr)
	assert.Equal(t, shared.ExitInvalidInput, exitErr.Code)
}

func TestRejectsArguments(t *testing.T) {
	out := commandtest.Run(t, []*cobra.Command{NewCommand()}, "mcp-server", "extra")
	require.Error(t, out.Err)
}
