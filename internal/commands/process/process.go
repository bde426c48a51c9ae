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

// Package process implements the supctl commands that act on a single
// process or list them.
package process

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/supervisor-mcp/internal/commands/completion"
	"github.com/tombee/supervisor-mcp/internal/commands/shared"
	"github.com/tombee/supervisor-mcp/internal/manager"
)

// NewCommands returns every process command.
func NewCommands() []*cobra.Command {
	return []*cobra.Command{
		NewStartCommand(),
		NewStopCommand(),
		NewRestartCommand(),
		NewStatusCommand(),
		NewListCommand(),
		NewLogsCommand(),
		NewAddCommand(),
	}
}

type nameOp func(m *manager.Manager, ctx context.Context, name string) manager.Result

// NewStartCommand creates the start command
func NewStartCommand() *cobra.Command {
	return newNameCommand(&cobra.Command{
		Use:     "start <name>",
		Short:   "Start a process",
		Long:    "Start a stopped process and wait for supervisord to report it running.",
		Example: "  supctl start web\n  supctl start worker:worker_00",
	}, "Starting", (*manager.Manager).Start, nil)
}

// NewStopCommand creates the stop command
func NewStopCommand() *cobra.Command {
	return newNameCommand(&cobra.Command{
		Use:     "stop <name>",
		Short:   "Stop a process",
		Long:    "Stop a running process and wait for it to exit.",
		Example: "  supctl stop web",
	}, "Stopping", (*manager.Manager).Stop, nil)
}

// NewRestartCommand creates the restart command
func NewRestartCommand() *cobra.Command {
	return newNameCommand(&cobra.Command{
		Use:   "restart <name>",
		Short: "Restart a process",
		Long: `Stop a process if it is running, then start it.

A process that was not running is simply started.`,
		Example: "  supctl restart web",
	}, "Restarting", (*manager.Manager).Restart, nil)
}

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	return newNameCommand(&cobra.Command{
		Use:     "status <name>",
		Short:   "Show the state of one process",
		Example: "  supctl status web\n  supctl status web --jq .data.pid",
	}, "Querying", (*manager.Manager).Status, renderProcess)
}

func newNameCommand(cmd *cobra.Command, verb string, op nameOp, render shared.RenderFunc) *cobra.Command {
	cmd.Args = nameArg
	cmd.ValidArgsFunction = completion.CompleteProcessNames
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		session, err := shared.Open(cmd)
		if err != nil {
			return err
		}
		defer session.Close()

		name := args[0]
		res := session.Call(cmd, fmt.Sprintf("%s %s", verb, name), func(ctx context.Context) manager.Result {
			return op(session.Manager, ctx, name)
		})
		return shared.Report(cmd, res, render)
	}
	return cmd
}

// nameArg requires exactly one process name.
func nameArg(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return shared.NewInvalidInputError(
			fmt.Sprintf("%s takes exactly one process name, got %d arguments", cmd.Name(), len(args)), nil)
	}
	return nil
}

func renderProcess(w io.Writer, res manager.Result) {
	p, ok := res.Data.(manager.Process)
	if !ok {
		return
	}

	fmt.Fprintf(w, "%s %s\n", shared.Bold.Render(p.Name), shared.RenderState(p.State))
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel(fmt.Sprintf("%-12s", label+":")), value)
		}
	}
	field("group", p.Group)
	if p.PID > 0 {
		field("pid", fmt.Sprint(p.PID))
	}
	field("description", p.Description)
	if p.StartedAt != nil {
		field("started", p.StartedAt.Local().Format(time.RFC3339))
	}
	if p.StoppedAt != nil {
		field("stopped", p.StoppedAt.Local().Format(time.RFC3339))
	}
	if !p.State.IsRunning() {
		field("exit status", fmt.Sprint(p.ExitStatus))
	}
	field("spawn error", p.SpawnError)
	field("stdout log", p.StdoutLogfile)
	field("stderr log", p.StderrLogfile)
}
