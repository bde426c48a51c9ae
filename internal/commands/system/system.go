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

// Package system implements the supctl commands that address the daemon
// itself rather than one process.
package system

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/supervisor-mcp/internal/commands/shared"
	"github.com/tombee/supervisor-mcp/internal/manager"
	"github.com/tombee/supervisor-mcp/internal/supervisor"
)

// NewCommands returns every system command.
func NewCommands() []*cobra.Command {
	return []*cobra.Command{
		NewInfoCommand(),
		NewReloadCommand(),
		NewPingCommand(),
	}
}

// NewInfoCommand creates the info command
func NewInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show supervisord versions, pid and state",
		Long: `Show the API and supervisord versions, identification, pid and state of the
daemon. Each value is fetched separately; values that could not be fetched are
listed as errors and supctl exits non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := shared.Open(cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			res := session.Call(cmd, "Querying supervisor", session.Manager.SystemInfo)
			return shared.Report(cmd, res, renderInfo)
		},
	}
}

// NewReloadCommand creates the reload command
func NewReloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reread the configuration and show what changed",
		Long: `Ask supervisord to reread its configuration files (supervisorctl reread) and
report which programs were added, changed or removed. Running processes are not
touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := shared.Open(cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			res := session.Call(cmd, "Reloading configuration", session.Manager.ReloadConfig)
			return shared.Report(cmd, res, renderChanges)
		},
	}
}

// NewPingCommand creates the ping command
func NewPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that supervisord is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := shared.Open(cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			res := session.Call(cmd, "Connecting", session.Manager.Connect)
			return shared.Report(cmd, res, nil)
		},
	}
}

func renderInfo(w io.Writer, res manager.Result) {
	info, ok := res.Data.(manager.SystemInfo)
	if !ok {
		return
	}

	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "%s %s\n", shared.RenderLabel(fmt.Sprintf("%-20s", label+":")), value)
		}
	}
	field("url", info.URL)
	field("supervisor version", info.SupervisorVersion)
	field("api version", info.APIVersion)
	field("identification", info.Identification)
	if info.PID > 0 {
		field("pid", fmt.Sprint(info.PID))
	}
	if info.State != "" {
		state := info.State
		if info.State == "RUNNING" {
			state = shared.StatusOK.Render(state)
		}
		field("state", state)
	}

	if len(info.Errors) == 0 {
		return
	}
	keys := make([]string, 0, len(info.Errors))
	for k := range info.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintln(w, shared.RenderError(fmt.Sprintf("%s: %s", k, info.Errors[k])))
	}
}

func renderChanges(w io.Writer, res manager.Result) {
	changes, ok := res.Data.(supervisor.Changes)
	if !ok {
		return
	}
	fmt.Fprintln(w, shared.RenderOK(res.Message))
	group := func(label string, names []string) {
		if len(names) > 0 {
			fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel(fmt.Sprintf("%-8s", label+":")), strings.Join(names, ", "))
		}
	}
	group("added", changes.Added)
	group("changed", changes.Changed)
	group("removed", changes.Removed)
}
