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

package supervisor

import (
	"strings"
	"time"
)

// ProcessState is the state of a managed process as reported by the daemon.
type ProcessState string

const (
	StateStopped  ProcessState = "STOPPED"
	StateStarting ProcessState = "STARTING"
	StateRunning  ProcessState = "RUNNING"
	StateBackoff  ProcessState = "BACKOFF"
	StateStopping ProcessState = "STOPPING"
	StateExited   ProcessState = "EXITED"
	StateFatal    ProcessState = "FATAL"
	StateUnknown  ProcessState = "UNKNOWN"
)

// Numeric state codes used on the wire.
const (
	stateCodeStopped  = 0
	stateCodeStarting = 10
	stateCodeRunning  = 20
	stateCodeBackoff  = 30
	stateCodeStopping = 40
	stateCodeExited   = 100
	stateCodeFatal    = 200
	stateCodeUnknown  = 1000
)

// ParseProcessState maps a daemon state name to the closed ProcessState set.
// Anything the daemon reports outside that set becomes StateUnknown.
func ParseProcessState(name string) ProcessState {
	switch s := ProcessState(strings.ToUpper(strings.TrimSpace(name))); s {
	case StateStopped, StateStarting, StateRunning, StateBackoff,
		StateStopping, StateExited, StateFatal:
		return s
	default:
		return StateUnknown
	}
}

// processStateFromCode maps a numeric state code to a ProcessState.
func processStateFromCode(code int) ProcessState {
	switch code {
	case stateCodeStopped:
		return StateStopped
	case stateCodeStarting:
		return StateStarting
	case stateCodeRunning:
		return StateRunning
	case stateCodeBackoff:
		return StateBackoff
	case stateCodeStopping:
		return StateStopping
	case stateCodeExited:
		return StateExited
	case stateCodeFatal:
		return StateFatal
	default:
		return StateUnknown
	}
}

// Code returns the numeric wire code for the state.
func (s ProcessState) Code() int {
	switch s {
	case StateStopped:
		return stateCodeStopped
	case StateStarting:
		return stateCodeStarting
	case StateRunning:
		return stateCodeRunning
	case StateBackoff:
		return stateCodeBackoff
	case StateStopping:
		return stateCodeStopping
	case StateExited:
		return stateCodeExited
	case StateFatal:
		return stateCodeFatal
	default:
		return stateCodeUnknown
	}
}

// IsRunning reports whether the state has a live process behind it.
func (s ProcessState) IsRunning() bool {
	return s == StateRunning || s == StateStarting || s == StateStopping
}

// String implements fmt.Stringer.
func (s ProcessState) String() string {
	return string(s)
}

// ProcessInfo is the raw struct returned by getProcessInfo / getAllProcessInfo.
type ProcessInfo struct {
	Name          string `xmlrpc:"name"`
	Group         string `xmlrpc:"group"`
	Description   string `xmlrpc:"description"`
	Start         int    `xmlrpc:"start"`
	Stop          int    `xmlrpc:"stop"`
	Now           int    `xmlrpc:"now"`
	State         int    `xmlrpc:"state"`
	StateName     string `xmlrpc:"statename"`
	SpawnErr      string `xmlrpc:"spawnerr"`
	ExitStatus    int    `xmlrpc:"exitstatus"`
	Logfile       string `xmlrpc:"logfile"`
	StdoutLogfile string `xmlrpc:"stdout_logfile"`
	StderrLogfile string `xmlrpc:"stderr_logfile"`
	PID           int    `xmlrpc:"pid"`
}

// FullName returns the name the daemon accepts for per-process calls:
// "group:name" when the process belongs to a differently named group.
func (p ProcessInfo) FullName() string {
	if p.Group == "" || p.Group == p.Name {
		return p.Name
	}
	return p.Group + ":" + p.Name
}

// CurrentState returns the interpreted state, preferring the state name and
// falling back to the numeric code.
func (p ProcessInfo) CurrentState() ProcessState {
	if p.StateName != "" {
		return ParseProcessState(p.StateName)
	}
	return processStateFromCode(p.State)
}

// StartedAt returns the process start time, zero if never started.
func (p ProcessInfo) StartedAt() time.Time {
	if p.Start <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(p.Start), 0).UTC()
}

// StoppedAt returns the last stop time, zero if never stopped.
func (p ProcessInfo) StoppedAt() time.Time {
	if p.Stop <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(p.Stop), 0).UTC()
}

// DaemonState is the reply of supervisor.getState.
type DaemonState struct {
	Code int    `xmlrpc:"statecode"`
	Name string `xmlrpc:"statename"`
}

// Changes is the changeset reported by supervisor.reloadConfig.
type Changes struct {
	Added   []string `json:"added"`
	Changed []string `json:"changed"`
	Removed []string `json:"removed"`
}

// Empty reports whether the reload changed nothing.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Removed) == 0
}
