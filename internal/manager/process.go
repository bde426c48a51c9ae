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
	"time"

	"github.com/tombee/supervisor-mcp/internal/supervisor"
)

// Process is a live snapshot of one managed process.
type Process struct {
	// Name is the name the daemon accepts back: group:name when the group
	// differs from the process name.
	Name          string                  `json:"name"`
	Group         string                  `json:"group"`
	State         supervisor.ProcessState `json:"state"`
	PID           int                     `json:"pid,omitempty"`
	Description   string                  `json:"description"`
	StartedAt     *time.Time              `json:"started_at,omitempty"`
	StoppedAt     *time.Time              `json:"stopped_at,omitempty"`
	ExitStatus    int                     `json:"exit_status"`
	SpawnError    string                  `json:"spawn_error,omitempty"`
	StdoutLogfile string                  `json:"stdout_logfile,omitempty"`
	StderrLogfile string                  `json:"stderr_logfile,omitempty"`
}

func newProcess(info supervisor.ProcessInfo) Process {
	p := Process{
		Name:          info.FullName(),
		Group:         info.Group,
		State:         info.CurrentState(),
		Description:   info.Description,
		ExitStatus:    info.ExitStatus,
		SpawnError:    info.SpawnErr,
		StdoutLogfile: info.StdoutLogfile,
		StderrLogfile: info.StderrLogfile,
	}
	if p.State.IsRunning() && info.PID > 0 {
		p.PID = info.PID
	}
	if t := info.StartedAt(); !t.IsZero() {
		p.StartedAt = &t
	}
	if t := info.StoppedAt(); !t.IsZero() {
		p.StoppedAt = &t
	}
	return p
}

// Start starts a process and waits until the daemon reports it started.
func (m *Manager) Start(ctx context.Context, name string) Result {
	ctx, done := m.begin(ctx, "start", name)
	return done(m.start(ctx, name))
}

func (m *Manager) start(ctx context.Context, name string) Result {
	if err := ValidateName(name); err != nil {
		return failure("start", name, err)
	}
	if err := m.ensureConnected(ctx); err != nil {
		return failure("start", name, err)
	}

	err := callErr(ctx, m, "supervisor.startProcess", func(d Daemon) error {
		return d.StartProcess(name, true)
	})
	if err != nil {
		return failure("start", name, err)
	}
	return OK(fmt.Sprintf("process '%s' started", name), nil)
}

// Stop stops a process and waits until the daemon reports it stopped.
func (m *Manager) Stop(ctx context.Context, name string) Result {
	ctx, done := m.begin(ctx, "stop", name)
	return done(m.stop(ctx, name))
}

func (m *Manager) stop(ctx context.Context, name string) Result {
	if err := ValidateName(name); err != nil {
		return failure("stop", name, err)
	}
	if err := m.ensureConnected(ctx); err != nil {
		return failure("stop", name, err)
	}

	err := callErr(ctx, m, "supervisor.stopProcess", func(d Daemon) error {
		return d.StopProcess(name, true)
	})
	if err != nil {
		return failure("stop", name, err)
	}
	return OK(fmt.Sprintf("process '%s' stopped", name), nil)
}

// Restart stops then starts a process. A process that is not running is
// simply started. When the start fails, the result carries the process as
// the daemon reports it afterwards.
func (m *Manager) Restart(ctx context.Context, name string) Result {
	ctx, done := m.begin(ctx, "restart", name)
	return done(m.restart(ctx, name))
}

func (m *Manager) restart(ctx context.Context, name string) Result {
	if err := ValidateName(name); err != nil {
		return failure("restart", name, err)
	}
	if err := m.ensureConnected(ctx); err != nil {
		return failure("restart", name, err)
	}

	err := callErr(ctx, m, "supervisor.stopProcess", func(d Daemon) error {
		return d.StopProcess(name, true)
	})
	wasRunning := err == nil
	if err != nil && !supervisor.IsFault(err, supervisor.FaultNotRunning) {
		return failure("stop", name, err)
	}

	err = callErr(ctx, m, "supervisor.startProcess", func(d Daemon) error {
		return d.StartProcess(name, true)
	})
	if err != nil {
		res := failure("start", name, err)
		if kindOf(err) == KindCancelled || kindOf(err) == KindConnection {
			return res
		}
		// Report what the daemon says now rather than guessing.
		info, infoErr := call(ctx, m, "supervisor.getProcessInfo", func(d Daemon) (supervisor.ProcessInfo, error) {
			return d.GetProcessInfo(name)
		})
		if infoErr != nil {
			m.logger.Debug("fetching process after failed restart", "process", name, "error", infoErr)
			return res
		}
		return res.WithData(newProcess(info))
	}

	if !wasRunning {
		return OK(fmt.Sprintf("process '%s' was not running; started", name), nil)
	}
	return OK(fmt.Sprintf("process '%s' restarted", name), nil)
}

// Status returns one process.
func (m *Manager) Status(ctx context.Context, name string) Result {
	ctx, done := m.begin(ctx, "status", name)
	return done(m.status(ctx, name))
}

func (m *Manager) status(ctx context.Context, name string) Result {
	if err := ValidateName(name); err != nil {
		return failure("get status of", name, err)
	}
	if err := m.ensureConnected(ctx); err != nil {
		return failure("get status of", name, err)
	}

	info, err := call(ctx, m, "supervisor.getProcessInfo", func(d Daemon) (supervisor.ProcessInfo, error) {
		return d.GetProcessInfo(name)
	})
	if err != nil {
		return failure("get status of", name, err)
	}

	p := newProcess(info)
	return OK(fmt.Sprintf("process '%s' is %s", p.Name, p.State), p)
}

// List returns every process in the order the daemon reports them.
func (m *Manager) List(ctx context.Context) Result {
	ctx, done := m.begin(ctx, "list", "")
	return done(m.list(ctx))
}

func (m *Manager) list(ctx context.Context) Result {
	if err := m.ensureConnected(ctx); err != nil {
		return failure("list processes", "", err)
	}

	infos, err := call(ctx, m, "supervisor.getAllProcessInfo", func(d Daemon) ([]supervisor.ProcessInfo, error) {
		return d.GetAllProcessInfo()
	})
	if err != nil {
		return failure("list processes", "", err)
	}

	procs := make([]Process, 0, len(infos))
	running := 0
	for _, info := range infos {
		p := newProcess(info)
		if p.State == supervisor.StateRunning {
			running++
		}
		procs = append(procs, p)
	}
	return OK(fmt.Sprintf("%d processes, %d running", len(procs), running), procs)
}
