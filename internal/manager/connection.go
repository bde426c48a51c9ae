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
	"log/slog"
	"sync/atomic"

	"github.com/tombee/supervisor-mcp/internal/supervisor"
)

// ConnectionState is the lifecycle state of the daemon connection.
type ConnectionState int32

const (
	StateUnconnected ConnectionState = iota
	StateConnected
	StateBroken
)

// String implements fmt.Stringer.
func (s ConnectionState) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// Daemon is the set of supervisord calls the Manager uses. It is satisfied by
// *supervisor.Client.
type Daemon interface {
	StartProcess(name string, wait bool) error
	StopProcess(name string, wait bool) error
	GetAllProcessInfo() ([]supervisor.ProcessInfo, error)
	GetProcessInfo(name string) (supervisor.ProcessInfo, error)
	ReadProcessStdoutLog(name string, offset, length int) (string, error)
	ReadProcessStderrLog(name string, offset, length int) (string, error)
	GetAPIVersion() (string, error)
	GetSupervisorVersion() (string, error)
	GetIdentification() (string, error)
	GetPID() (int, error)
	GetState() (supervisor.DaemonState, error)
	ReloadConfig() (supervisor.Changes, error)
	Close() error
}

var _ Daemon = (*supervisor.Client)(nil)

// Dialer creates a daemon handle. It must not perform network I/O.
type Dialer func() (Daemon, error)

type handle struct {
	daemon Daemon
}

// connection holds the daemon handle and its lifecycle state. Both live in
// atomics; the handle itself carries no per-call state.
type connection struct {
	url    string
	dial   Dialer
	logger *slog.Logger

	state   atomic.Int32
	current atomic.Pointer[handle]
	closed  atomic.Bool
}

func newConnection(url string, d Daemon, dial Dialer, logger *slog.Logger) *connection {
	c := &connection{url: url, dial: dial, logger: logger}
	c.current.Store(&handle{daemon: d})
	return c
}

func (c *connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// handle returns the current daemon handle. A broken handle is replaced by a
// freshly dialed one when a dialer is configured.
func (c *connection) handle() (*handle, error) {
	if c.closed.Load() {
		return nil, errClosed
	}

	h := c.current.Load()
	if h == nil {
		return nil, errClosed
	}
	if c.State() != StateBroken || c.dial == nil {
		return h, nil
	}

	d, err := c.dial()
	if err != nil {
		return nil, &supervisor.ConnectionError{Endpoint: c.url, Err: err}
	}
	fresh := &handle{daemon: d}
	if !c.current.CompareAndSwap(h, fresh) {
		// Another caller redialed first.
		d.Close()
		if h = c.current.Load(); h == nil {
			return nil, errClosed
		}
		return h, nil
	}

	c.state.CompareAndSwap(int32(StateBroken), int32(StateUnconnected))
	c.logger.Debug("redialed supervisor", "url", c.url)
	if err := h.daemon.Close(); err != nil {
		c.logger.Debug("closing stale supervisor handle", "error", err)
	}
	return fresh, nil
}

func (c *connection) markConnected() {
	if old := ConnectionState(c.state.Swap(int32(StateConnected))); old != StateConnected {
		connectionTransitions.WithLabelValues(StateConnected.String()).Inc()
		c.logger.Info("connected to supervisor", "url", c.url, "previous", old.String())
	}
}

// markBroken records a connection-class failure seen on h. Failures of a
// handle that has since been replaced are ignored.
func (c *connection) markBroken(h *handle, err error) {
	if c.current.Load() != h {
		return
	}
	if old := ConnectionState(c.state.Swap(int32(StateBroken))); old != StateBroken {
		connectionTransitions.WithLabelValues(StateBroken.String()).Inc()
		c.logger.Warn("supervisor connection broken", "url", c.url, "error", err)
	}
}

func (c *connection) close() error {
	if c.closed.Swap(true) {
		return nil
	}
	h := c.current.Swap(nil)
	if h == nil {
		return nil
	}
	return h.daemon.Close()
}
