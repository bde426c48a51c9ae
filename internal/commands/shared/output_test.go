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

package shared

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/supervisor-mcp/internal/manager"
)

func TestEmitJSON(t *testing.T) {
	res := manager.OK("process 'web' is RUNNING", map[string]any{"name": "web", "pid": 42})

	t.Run("indented envelope", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, emitJSON(context.Background(), &buf, res, ""))
		assert.Contains(t, buf.String(), "\n  \"status\": \"ok\"")
		assert.Contains(t, buf.String(), "\"message\": \"process 'web' is RUNNING\"")
	})

	t.Run("jq string results are raw", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, emitJSON(context.Background(), &buf, res, ".data.name"))
		assert.Equal(t, "web\n", buf.String())
	})

	t.Run("jq emits one result per line", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, emitJSON(context.Background(), &buf, res, ".data.pid, .status"))
		assert.Equal(t, "42\nok\n", buf.String())
	})

	t.Run("bad filter is invalid input", func(t *testing.T) {
		var buf bytes.Buffer
		err := emitJSON(context.Background(), &buf, res, ".data[")
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, ExitInvalidInput, exitErr.Code)
	})
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(
		[]string{"NAME", "STATE", "PID"},
		[][]string{
			{"web", RenderState("RUNNING"), "42"},
			{"worker:worker_00", RenderState("STOPPED"), ""},
		},
	)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)

	// The second column starts at the same visible offset on every line.
	offset := func(line, cell string) int {
		i := strings.Index(line, cell)
		require.GreaterOrEqual(t, i, 0, "%q not in %q", cell, line)
		return lipgloss.Width(line[:i])
	}
	want := offset(lines[0], "STATE")
	assert.Equal(t, want, offset(lines[1], "RUNNING"))
	assert.Equal(t, want, offset(lines[2], "STOPPED"))
	assert.Equal(t, len("worker:worker_00")+2, want)
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		secs int
		want string
	}{
		{0, "0s"},
		{12, "12s"},
		{60, "1m"},
		{83, "1m 23s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatElapsed(time.Duration(tt.secs)*time.Second))
	}
}
