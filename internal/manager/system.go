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
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tombee/supervisor-mcp/internal/supervisor"
)

// SystemInfo is the data of a SystemInfo result. Fields whose call failed are
// empty and listed in Errors.
type SystemInfo struct {
	URL               string            `json:"url"`
	APIVersion        string            `json:"api_version,omitempty"`
	SupervisorVersion string            `json:"supervisor_version,omitempty"`
	Identification    string            `json:"identification,omitempty"`
	PID               int               `json:"pid,omitempty"`
	State             string            `json:"state,omitempty"`
	StateCode         *int              `json:"state_code,omitempty"`
	Errors            map[string]string `json:"errors,omitempty"`
}

// SystemInfo fetches the daemon's versions, identification, pid and state.
// Each call is attempted independently, whatever the connection state. The
// URL is the configured one.
func (m *Manager) SystemInfo(ctx context.Context) Result {
	ctx, done := m.begin(ctx, "system_info", "")
	return done(m.systemInfo(ctx))
}

func (m *Manager) systemInfo(ctx context.Context) Result {
	info := SystemInfo{URL: m.url}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs = make(map[string]error)
	)
	fetch := func(field string, fn func() error) {
		g.Go(func() error {
			err := fn()
			if err != nil {
				mu.Lock()
				errs[field] = err
				mu.Unlock()
			}
			return err
		})
	}

	fetch("api_version", func() (err error) {
		info.APIVersion, err = call(ctx, m, "supervisor.getAPIVersion", func(d Daemon) (string, error) {
			return d.GetAPIVersion()
		})
		return err
	})
	fetch("supervisor_version", func() (err error) {
		info.SupervisorVersion, err = call(ctx, m, "supervisor.getSupervisorVersion", func(d Daemon) (string, error) {
			return d.GetSupervisorVersion()
		})
		return err
	})
	fetch("identification", func() (err error) {
		info.Identification, err = call(ctx, m, "supervisor.getIdentification", func(d Daemon) (string, error) {
			return d.GetIdentification()
		})
		return err
	})
	fetch("pid", func() (err error) {
		info.PID, err = call(ctx, m, "supervisor.getPID", func(d Daemon) (int, error) {
			return d.GetPID()
		})
		return err
	})
	fetch("state", func() error {
		st, err := call(ctx, m, "supervisor.getState", func(d Daemon) (supervisor.DaemonState, error) {
			return d.GetState()
		})
		if err != nil {
			return err
		}
		info.State = st.Name
		info.StateCode = &st.Code
		return nil
	})

	if err := g.Wait(); err == nil {
		m.conn.markConnected()
		return OK(fmt.Sprintf("supervisor %s (API %s) at %s is %s",
			info.SupervisorVersion, info.APIVersion, info.URL, info.State), info)
	}

	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	// Prefer a connection failure as the headline; it explains the rest.
	headline := errs[fields[0]]
	allConnection := true
	for _, field := range fields {
		if kindOf(errs[field]) == KindConnection {
			headline = errs[field]
		} else {
			allConnection = false
		}
	}
	res := failure("get system info", "", headline)

	if allConnection && len(errs) == 5 {
		return res
	}

	info.Errors = make(map[string]string, len(errs))
	details := make([]string, 0, len(fields))
	for _, field := range fields {
		info.Errors[field] = errs[field].Error()
		details = append(details, field)
	}
	res.Message = fmt.Sprintf("incomplete system info (%s failed): %s", strings.Join(details, ", "), res.Message)
	return res.WithData(info)
}

// ReloadConfig makes the daemon reread its configuration and returns the
// changeset. Changes are not applied.
func (m *Manager) ReloadConfig(ctx context.Context) Result {
	ctx, done := m.begin(ctx, "reload_config", "")
	return done(m.reloadConfig(ctx))
}

func (m *Manager) reloadConfig(ctx context.Context) Result {
	if err := m.ensureConnected(ctx); err != nil {
		return failure("reload config", "", err)
	}

	changes, err := call(ctx, m, "supervisor.reloadConfig", func(d Daemon) (supervisor.Changes, error) {
		return d.ReloadConfig()
	})
	if err != nil {
		return failure("reload config", "", err)
	}

	if changes.Empty() {
		return OK("configuration reloaded, no changes", changes)
	}
	return OK(fmt.Sprintf("configuration reloaded: %d added, %d changed, %d removed",
		len(changes.Added), len(changes.Changed), len(changes.Removed)), changes)
}
