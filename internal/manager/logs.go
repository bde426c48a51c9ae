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

package manager

import (
	"context"
	"fmt"
	"strings"

	"github.com/tombee/supervisor-mcp/internal/supervisor"
)

// Log streams.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// LogTail is the data of a Logs result.
type LogTail struct {
	Name   string   `json:"name"`
	Stream string   `json:"stream"`
	Lines  []string `json:"lines"`
}

// Logs returns up to lines most recent lines of a process's stdout, or
// stderr when stderr is set.
func (m *Manager) Logs(ctx context.Context, name string, lines int, stderr bool) Result {
	ctx, done := m.begin(ctx, "logs", name)
	return done(m.logs(ctx, name, lines, stderr))
}

func (m *Manager) logs(ctx context.Context, name string, lines int, stderr bool) Result {
	if err := ValidateName(name); err != nil {
		return failure("read logs of", name, err)
	}
	if err := validateLines(lines); err != nil {
		return failure("read logs of", name, err)
	}
	if err := m.ensureConnected(ctx); err != nil {
		return failure("read logs of", name, err)
	}

	stream := StreamStdout
	method := "supervisor.readProcessStdoutLog"
	if stderr {
		stream = StreamStderr
		method = "supervisor.readProcessStderrLog"
	}

	window := m.tailWindow(lines)
	text, err := call(ctx, m, method, func(d Daemon) (string, error) {
		if stderr {
			return d.ReadProcessStderrLog(name, -window, 0)
		}
		return d.ReadProcessStdoutLog(name, -window, 0)
	})
	if err != nil {
		if !supervisor.IsFault(err, supervisor.FaultNoFile) {
			return failure("read logs of", name, err)
		}
		// NO_FILE: the log does not exist yet unless logging is disabled.
		if err := m.checkLogfile(ctx, name, stream); err != nil {
			return failure("read logs of", name, err)
		}
		text = ""
	}

	tail := LogTail{
		Name:   name,
		Stream: stream,
		Lines:  lastLines(text, lines, len(text) >= window),
	}
	return OK(fmt.Sprintf("%d lines from %s of '%s'", len(tail.Lines), stream, name), tail)
}

// checkLogfile reports whether the stream has a configured log file. A
// process with one simply has not written to it yet.
func (m *Manager) checkLogfile(ctx context.Context, name, stream string) error {
	info, err := call(ctx, m, "supervisor.getProcessInfo", func(d Daemon) (supervisor.ProcessInfo, error) {
		return d.GetProcessInfo(name)
	})
	if err != nil {
		return err
	}

	path := info.StdoutLogfile
	if path == "" {
		path = info.Logfile
	}
	if stream == StreamStderr {
		path = info.StderrLogfile
	}
	if path == "" {
		return &supervisor.Fault{
			Code:   supervisor.FaultNoFile,
			String: fmt.Sprintf("NO_FILE: %s logging is disabled for '%s'", stream, name),
		}
	}
	return nil
}

func (m *Manager) tailWindow(lines int) int {
	perLine := m.cfg.LogBytesPerLine
	if lines > m.cfg.MaxLogBytes/perLine {
		return m.cfg.MaxLogBytes
	}
	return lines * perLine
}

// lastLines splits text into lines and keeps the last n. When the read
// window was filled, the first line is likely cut off and is dropped.
func lastLines(text string, n int, filled bool) []string {
	if filled {
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		}
	}
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{}
	}

	all := strings.Split(text, "\n")
	for i, line := range all {
		all[i] = strings.TrimSuffix(line, "\r")
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}
