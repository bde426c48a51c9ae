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

package supervisor_test

import (
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/supervisor-mcp/internal/supervisor"
	"github.com/tombee/supervisor-mcp/internal/supervisor/supervisortest"
)

func newTestClient(t *testing.T, d *supervisortest.FakeDaemon, opts ...supervisor.Option) *supervisor.Client {
	t.Helper()
	srv := supervisortest.NewServer(t, d)
	c, err := supervisor.New(srv.URL+"/RPC2", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientProcessLifecycle(t *testing.T) {
	d := supervisortest.NewFakeDaemon(
		&supervisortest.Process{Name: "web"},
		&supervisortest.Process{Name: "worker_00", Group: "worker", State: supervisor.StateRunning},
	)
	c := newTestClient(t, d)

	infos, err := c.GetAllProcessInfo()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "web", infos[0].FullName())
	assert.Equal(t, supervisor.StateStopped, infos[0].CurrentState())
	assert.Equal(t, "worker:worker_00", infos[1].FullName())
	assert.Equal(t, supervisor.StateRunning, infos[1].CurrentState())
	assert.NotZero(t, infos[1].PID)

	require.NoError(t, c.StartProcess("web", true))

	info, err := c.GetProcessInfo("web")
	require.NoError(t, err)
	assert.Equal(t, supervisor.StateRunning, info.CurrentState())
	assert.False(t, info.StartedAt().IsZero())

	require.NoError(t, c.StopProcess("worker:worker_00", true))
	info, err = c.GetProcessInfo("worker:worker_00")
	require.NoError(t, err)
	assert.Equal(t, supervisor.StateStopped, info.CurrentState())
	assert.Zero(t, info.PID)
}

func TestClientFaults(t *testing.T) {
	d := supervisortest.NewFakeDaemon(
		&supervisortest.Process{Name: "web", State: supervisor.StateRunning},
		&supervisortest.Process{Name: "idle"},
		&supervisortest.Process{Name: "broken", FailStart: true},
	)
	c := newTestClient(t, d)

	tests := []struct {
		name string
		call func() error
		code int
	}{
		{"unknown name", func() error { return c.StartProcess("nope", true) }, supervisor.FaultBadName},
		{"already started", func() error { return c.StartProcess("web", true) }, supervisor.FaultAlreadyStarted},
		{"not running", func() error { return c.StopProcess("idle", true) }, supervisor.FaultNotRunning},
		{"spawn error", func() error { return c.StartProcess("broken", true) }, supervisor.FaultSpawnError},
		{"info for unknown", func() error { _, err := c.GetProcessInfo("nope"); return err }, supervisor.FaultBadName},
		{"log not created yet", func() error { _, err := c.ReadProcessStdoutLog("idle", -100, 0); return err }, supervisor.FaultNoFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			f, ok := supervisor.AsFault(err)
			require.True(t, ok, "expected fault, got %T: %v", err, err)
			assert.Equal(t, tt.code, f.Code)
		})
	}

	p, ok := d.Process("broken")
	require.True(t, ok)
	assert.Equal(t, supervisor.StateFatal, p.State)
}

func TestClientLogs(t *testing.T) {
	d := supervisortest.NewFakeDaemon(&supervisortest.Process{
		Name:   "web",
		Stdout: "one\ntwo\nthree\n",
		Stderr: "boom\n",
	})
	c := newTestClient(t, d)

	out, err := c.ReadProcessStdoutLog("web", -6, 0)
	require.NoError(t, err)
	assert.Equal(t, "three\n", out)

	out, err = c.ReadProcessStdoutLog("web", 0, 3)
	require.NoError(t, err)
	assert.Equal(t, "one", out)

	out, err = c.ReadProcessStderrLog("web", -100, 0)
	require.NoError(t, err)
	assert.Equal(t, "boom\n", out)
}

func TestClientSystemCalls(t *testing.T) {
	d := supervisortest.NewFakeDaemon()
	d.SetChanges(supervisor.Changes{Added: []string{"new"}, Removed: []string{"old"}})
	c := newTestClient(t, d)

	v, err := c.GetAPIVersion()
	require.NoError(t, err)
	assert.Equal(t, "3.0", v)

	v, err = c.GetSupervisorVersion()
	require.NoError(t, err)
	assert.Equal(t, "4.2.5", v)

	v, err = c.GetIdentification()
	require.NoError(t, err)
	assert.Equal(t, "supervisor", v)

	pid, err := c.GetPID()
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	st, err := c.GetState()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Code)
	assert.Equal(t, "RUNNING", st.Name)

	changes, err := c.ReloadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, changes.Added)
	assert.Equal(t, []string{}, changes.Changed)
	assert.Equal(t, []string{"old"}, changes.Removed)
}

func TestClientEmptyProcessList(t *testing.T) {
	c := newTestClient(t, supervisortest.NewFakeDaemon())

	infos, err := c.GetAllProcessInfo()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestClientBasicAuth(t *testing.T) {
	d := supervisortest.NewFakeDaemon()
	srv := supervisortest.NewServer(t, d, supervisortest.WithBasicAuth("admin", "s3cret"))

	t.Run("credentials in options", func(t *testing.T) {
		c, err := supervisor.New(srv.URL+"/RPC2", supervisor.WithCredentials("admin", "s3cret"))
		require.NoError(t, err)
		defer c.Close()

		_, err = c.GetPID()
		assert.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		c, err := supervisor.New(srv.URL+"/RPC2", supervisor.WithCredentials("admin", "wrong"))
		require.NoError(t, err)
		defer c.Close()

		_, err = c.GetPID()
		require.Error(t, err)
		assert.True(t, supervisor.IsConnectionError(err))
		assert.Contains(t, err.Error(), "authentication failed")
	})
}

func TestClientUnreachable(t *testing.T) {
	// Grab a free port, then close it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c, err := supervisor.New("http://"+addr+"/RPC2", supervisor.WithTimeout(2*time.Second))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.GetState()
	require.Error(t, err)
	assert.True(t, supervisor.IsConnectionError(err), "got %T: %v", err, err)
	assert.Contains(t, err.Error(), addr)
}

func TestClientUnixSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "sup")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	socketPath := filepath.Join(dir, "s.sock")
	d := supervisortest.NewFakeDaemon(&supervisortest.Process{Name: "web"})
	supervisortest.NewUnixServer(t, d, socketPath)

	c, err := supervisor.New("unix://" + socketPath)
	require.NoError(t, err)
	defer c.Close()

	infos, err := c.GetAllProcessInfo()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "web", infos[0].Name)
	assert.Equal(t, "unix://"+socketPath, c.URL())
}

func TestClientMissingSocket(t *testing.T) {
	c, err := supervisor.New("unix:///nonexistent/dir/supervisor.sock")
	require.NoError(t, err)
	defer c.Close()

	_, err = c.GetPID()
	require.Error(t, err)
	assert.True(t, supervisor.IsConnectionError(err))
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := supervisor.New("ftp://box")
	assert.Error(t, err)

	_, err = supervisor.New(supervisor.DefaultURL, supervisor.WithTimeout(-time.Second))
	assert.Error(t, err)
}

func TestClientCallsDoNotWaitForEachOther(t *testing.T) {
	d := supervisortest.NewFakeDaemon(&supervisortest.Process{Name: "web", State: supervisor.StateRunning})

	entered := make(chan struct{})
	release := make(chan struct{})
	srv := supervisortest.NewServer(t, d, supervisortest.WithHook("supervisor.stopProcess", func() {
		close(entered)
		<-release
	}))
	releaseStop := sync.OnceFunc(func() { close(release) })
	t.Cleanup(releaseStop)

	c, err := supervisor.New(srv.URL + "/RPC2")
	require.NoError(t, err)
	defer c.Close()

	stopped := make(chan error, 1)
	go func() { stopped <- c.StopProcess("web", true) }()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("stop never reached the daemon")
	}

	listed := make(chan error, 1)
	go func() {
		infos, err := c.GetAllProcessInfo()
		if err == nil && infos[0].CurrentState() != supervisor.StateRunning {
			err = assert.AnError
		}
		listed <- err
	}()

	select {
	case err := <-listed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listing waited for the in-flight stop")
	}

	releaseStop()
	require.NoError(t, <-stopped)
}

func TestClientClosed(t *testing.T) {
	c := newTestClient(t, supervisortest.NewFakeDaemon())
	require.NoError(t, c.Close())

	_, err := c.GetPID()
	require.Error(t, err)
	assert.True(t, supervisor.IsConnectionError(err))
	assert.Contains(t, err.Error(), "client is closed")
}

func TestClientMalformedReplies(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error status", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}},
		{"not xml", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>hello</html>"))
		}},
		{"wrong type", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<?xml version="1.0"?><methodResponse><params><param>` +
				`<value><string>forty-two</string></value></param></params></methodResponse>`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c, err := supervisor.New(srv.URL + "/RPC2")
			require.NoError(t, err)
			defer c.Close()

			_, err = c.GetPID()
			require.Error(t, err)
			var pe *supervisor.ProtocolError
			assert.ErrorAs(t, err, &pe)
			assert.False(t, supervisor.IsConnectionError(err))
		})
	}
}
