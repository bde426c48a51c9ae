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

package process

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/supervisor-mcp/internal/commands/shared"
	"github.com/tombee/supervisor-mcp/internal/filter"
	"github.com/tombee/supervisor-mcp/internal/manager"
)

// NewListCommand creates the list command
func NewListCommand() *cobra.Command {
	var match, where string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all processes",
		Long: `List every process supervisord manages, with its state and pid.

--match selects names with a glob (worker:* picks a group). --where keeps
processes for which an expression is true. The expression sees name, group,
state, description, spawn_error, pid, exit_status, uptime (seconds) and
running.`,
		Example: `  supctl list
  supctl list --match 'worker:*'
  supctl list --where 'state == "FATAL" || (running && uptime < 60)'
  supctl list --jq '.data[].name'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := filter.New(match, where)
			if err != nil {
				return shared.NewInvalidInputError("invalid filter", err)
			}

			session, err := shared.Open(cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			res := session.Call(cmd, "Listing processes", session.Manager.List)
			if procs, ok := res.Data.([]manager.Process); ok && (match != "" || where != "") {
				kept, err := f.Apply(procs)
				if err != nil {
					return shared.NewInvalidInputError("invalid filter", err)
				}
				res = res.WithData(kept)
				res.Message = fmt.Sprintf("%d of %d processes match", len(kept), len(procs))
			}
			return shared.Report(cmd, res, renderList)
		},
	}

	cmd.Flags().StringVar(&match, "match", "", "Only list processes whose name matches this glob")
	cmd.Flags().StringVar(&where, "where", "", "Only list processes for which this expression is true")

	return cmd
}

func renderList(w io.Writer, res manager.Result) {
	procs, ok := res.Data.([]manager.Process)
	if !ok {
		return
	}
	if len(procs) == 0 {
		fmt.Fprintln(w, shared.Muted.Render(res.Message))
		return
	}

	rows := make([][]string, 0, len(procs))
	for _, p := range procs {
		pid := ""
		if p.PID > 0 {
			pid = fmt.Sprint(p.PID)
		}
		rows = append(rows, []string{p.Name, shared.RenderState(p.State), pid, describe(p)})
	}
	fmt.Fprint(w, shared.RenderTable([]string{"NAME", "STATE", "PID", "DESCRIPTION"}, rows))
}

// describe prefers the daemon's description and falls back to uptime.
func describe(p manager.Process) string {
	switch {
	case p.Description != "":
		return p.Description
	case p.SpawnError != "":
		return p.SpawnError
	case p.State.IsRunning() && p.StartedAt != nil:
		return "uptime " + time.Since(*p.StartedAt).Round(time.Second).String()
	default:
		return ""
	}
}
