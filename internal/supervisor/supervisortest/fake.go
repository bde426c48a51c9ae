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

// Package supervisortest provides an in-memory supervisord for tests, usable
// directly or served over XML-RPC.
package supervisortest

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tombee/supervisor-mcp/internal/supervisor"
)

// Process is one process known to the fake daemon.
type Process struct {
	Name        string
	Group       string
	State       supervisor.ProcessState
	PID         int
	Description string
	Stdout      string
	Stderr      string
	ExitStatus  int

	// FailStart makes startProcess fault with SPAWN_ERROR and leave the
	// process FATAL.
	FailStart bool

	// NoLogfile configures the process with stdout_logfile and
	// stderr_logfile set to NONE.
	NoLogfile bool

	started time.Time
	stopped time.Time
}

// FakeDaemon is an in-memory supervisord. It implements the same method set
// as supervisor.Client.
type FakeDaemon struct {
	APIVersion     string
	Version        string
	Identification string
	PID            int
	StateName      string

	mu      sync.Mutex
	procs   []*Process
	changes supervisor.Changes
	down    error
	faults  map[string]error
	calls   map[string]int
	nextPID int
	closed  bool
}

// NewFakeDaemon creates a fake daemon with the given processes in
// configuration order.
func NewFakeDaemon(procs ...*Process) *FakeDaemon {
	d := &FakeDaemon{
		APIVersion:     "3.0",
		Version:        "4.2.5",
		Identification: "supervisor",
		PID:            4242,
		StateName:      "RUNNING",
		faults:         make(map[string]error),
		calls:          make(map[string]int),
		nextPID:        1000,
	}
	for _, p := range procs {
		d.Add(p)
	}
	return d
}

// Add registers a process. Zero state means STOPPED.
func (d *FakeDaemon) Add(p *Process) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p.Group == "" {
		p.Group = p.Name
	}
	if p.State == "" {
		p.State = supervisor.StateStopped
	}
	if p.State == supervisor.StateRunning && p.PID == 0 {
		d.nextPID++
		p.PID = d.nextPID
		p.started = time.Now()
	}
	d.procs = append(d.procs, p)
}

// SetDown makes every call fail with err, as if the endpoint were unreachable.
// A nil err brings the daemon back.
func (d *FakeDaemon) SetDown(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.down = err
}

// FailMethod makes one method (e.g. "supervisor.getPID") fail with err.
func (d *FakeDaemon) FailMethod(method string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.faults, method)
		return
	}
	d.faults[method] = err
}

// SetChanges sets the changeset reported by the next reloads.
func (d *FakeDaemon) SetChanges(c supervisor.Changes) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changes = c
}

// Calls returns how often a method was invoked.
func (d *FakeDaemon) Calls(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (d *FakeDaemon) TotalCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, n := range d.calls {
		total += n
	}
	return total
}

// Closed reports whether Close was called.
func (d *FakeDaemon) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Process returns a copy of the named process.
func (d *FakeDaemon) Process(name string) (Process, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.lookup(name)
	if p == nil {
		return Process{}, false
	}
	return *p, true
}

// Fault builds a daemon fault the way supervisord renders it.
func Fault(code int, name string) *supervisor.Fault {
	return &supervisor.Fault{Code: code, String: fmt.Sprintf("%s: %s", supervisor.FaultName(code), name)}
}

// begin records a call and returns the injected failure, if any. Callers
// hold d.mu.
func (d *FakeDaemon) begin(method string) error {
	d.calls[method]++
	if d.down != nil {
		return d.down
	}
	return d.faults[method]
}

func (d *FakeDaemon) lookup(name string) *Process {
	for _, p := range d.procs {
		if p.Group+":"+p.Name == name {
			return p
		}
		if p.Group == p.Name && p.Name == name {
			return p
		}
	}
	return nil
}

func (d *FakeDaemon) StartProcess(name string, wait bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("supervisor.startProcess"); err != nil {
		return err
	}

	p := d.lookup(name)
	if p == nil {
		return Fault(supervisor.FaultBadName, name)
	}
	if p.State == supervisor.StateRunning || p.State == supervisor.StateStarting {
		return Fault(supervisor.FaultAlreadyStarted, name)
	}
	if p.FailStart {
		p.State = supervisor.StateFatal
		p.PID = 0
		p.Description = "Exited too quickly (process log may have details)"
		return Fault(supervisor.FaultSpawnError, name)
	}

	d.nextPID++
	p.State = supervisor.StateRunning
	p.PID = d.nextPID
	p.started = time.Now()
	p.Description = fmt.Sprintf("pid %d, uptime 0:00:00", p.PID)
	return nil
}

func (d *FakeDaemon) StopProcess(name string, wait bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("supervisor.stopProcess"); err != nil {
		return err
	}

	p := d.lookup(name)
	if p == nil {
		return Fault(supervisor.FaultBadName, name)
	}
	switch p.State {
	case supervisor.StateRunning, supervisor.StateStarting, supervisor.StateBackoff:
	default:
		return Fault(supervisor.FaultNotRunning, name)
	}

	p.State = supervisor.StateStopped
	p.PID = 0
	p.stopped = time.Now()
	p.Description = p.stopped.Format("Jan 02 03:04 PM")
	return nil
}

func (d *FakeDaemon) GetAllProcessInfo() ([]supervisor.ProcessInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("supervisor.getAllProcessInfo"); err != nil {
		return nil, err
	}

	infos := make([]supervisor.ProcessInfo, 0, len(d.procs))
	for _, p := range d.procs {
		infos = append(infos, p.info())
	}
	return infos, nil
}

func (d *FakeDaemon) GetProcessInfo(name string) (supervisor.ProcessInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("supervisor.getProcessInfo"); err != nil {
		return supervisor.ProcessInfo{}, err
	}

	p := d.lookup(name)
	if p == nil {
		return supervisor.ProcessInfo{}, Fault(supervisor.FaultBadName, name)
	}
	return p.info(), nil
}

func (d *FakeDaemon) ReadProcessStdoutLog(name string, offset, length int) (string, error) {
	return d.readLog("supervisor.readProcessStdoutLog", name, offset, length, false)
}

func (d *FakeDaemon) ReadProcessStderrLog(name string, offset, length int) (string, error) {
	return d.readLog("supervisor.readProcessStderrLog", name, offset, length, true)
}

func (d *FakeDaemon) readLog(method, name string, offset, length int, stderr bool) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(method); err != nil {
		return "", err
	}

	p := d.lookup(name)
	if p == nil {
		return "", Fault(supervisor.FaultBadName, name)
	}
	data, path := p.Stdout, p.logfile("stdout")
	if stderr {
		data, path = p.Stderr, p.logfile("stderr")
	}
	// supervisord creates log files at spawn; before that, or with logging
	// disabled, reads fault with NO_FILE.
	if path == "" {
		return "", Fault(supervisor.FaultNoFile, "None")
	}
	if data == "" && p.started.IsZero() && p.stopped.IsZero() {
		return "", Fault(supervisor.FaultNoFile, path)
	}
	return sliceLog(data, offset, length), nil
}

// sliceLog follows supervisord's readLog offset/length rules.
func sliceLog(data string, offset, length int) string {
	if offset < 0 {
		if length != 0 {
			return ""
		}
		start := len(data) + offset
		if start < 0 {
			start = 0
		}
		return data[start:]
	}
	if offset > len(data) {
		return ""
	}
	end := len(data)
	if length > 0 && offset+length < end {
		end = offset + length
	}
	return data[offset:end]
}

func (d *FakeDaemon) GetAPIVersion() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("supervisor.getAPIVersion"); err != nil {
		return "", err
	}
	return d.APIVersion, nil
}

func (d *FakeDaemon) GetSupervisorVersion() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("supervisor.getSupervisorVersion"); err != nil {
		return "", err
	}
	return d.Version, nil
}

func (d *FakeDaemon) GetIdentification() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("supervisor.getIdentification"); err != nil {
		return "", err
	}
	return d.Identification, nil
}

func (d *FakeDaemon) GetPID() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("supervisor.getPID"); err != nil {
		return 0, err
	}
	return d.PID, nil
}

func (d *FakeDaemon) GetState() (supervisor.DaemonState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("supervisor.getState"); err != nil {
		return supervisor.DaemonState{}, err
	}
	code := 1
	switch strings.ToUpper(d.StateName) {
	case "FATAL":
		code = 2
	case "RESTARTING":
		code = 0
	case "SHUTDOWN":
		code = -1
	}
	return supervisor.DaemonState{Code: code, Name: d.StateName}, nil
}

func (d *FakeDaemon) ReloadConfig() (supervisor.Changes, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("supervisor.reloadConfig"); err != nil {
		return supervisor.Changes{}, err
	}
	c := supervisor.Changes{
		Added:   append([]string{}, d.changes.Added...),
		Changed: append([]string{}, d.changes.Changed...),
		Removed: append([]string{}, d.changes.Removed...),
	}
	return c, nil
}

func (d *FakeDaemon) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (p *Process) logfile(stream string) string {
	if p.NoLogfile {
		return ""
	}
	return "/var/log/supervisor/" + p.Name + "-" + stream + ".log"
}

func (p *Process) info() supervisor.ProcessInfo {
	info := supervisor.ProcessInfo{
		Name:          p.Name,
		Group:         p.Group,
		Description:   p.Description,
		Now:           int(time.Now().Unix()),
		StateName:     string(p.State),
		ExitStatus:    p.ExitStatus,
		StdoutLogfile: p.logfile("stdout"),
		StderrLogfile: p.logfile("stderr"),
		PID:           p.PID,
	}
	info.Logfile = info.StdoutLogfile
	if !p.started.IsZero() {
		info.Start = int(p.started.Unix())
	}
	if !p.stopped.IsZero() {
		info.Stop = int(p.stopped.Unix())
	}
	info.State = p.State.Code()
	if p.State == supervisor.StateFatal {
		info.SpawnErr = "Exited too quickly (process log may have details)"
	}
	return info
}
