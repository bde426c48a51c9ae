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

	"github.com/spf13/cobra"

	"github.com/tombee/supervisor-mcp/internal/commands/completion"
	"github.com/tombee/supervisor-mcp/internal/commands/shared"
	"github.com/tombee/supervisor-mcp/internal/manager"
)

// NewAddCommand creates the add command
func NewAddCommand() *cobra.Command {
	var spec manager.ProcessSpec

	cmd := &cobra.Command{
		Use:   "add <name> --command <cmd>",
		Short: "Render the configuration for a new program",
		Long: `supervisord cannot register programs over its API. add validates the
program definition and prints a [program:<name>] section to install by hand,
followed by the steps to load it. Nothing is sent to the daemon.

The result is a warning; supctl still exits 0.`,
		Example: `  supctl add web --command "/usr/bin/python3 -m http.server 8000"
  supctl add worker --command "/opt/app/worker" --numprocs 4 --autostart
  supctl add web --command "/opt/app/web" --jq .data.config > /etc/supervisor/conf.d/web.conf`,
		Args: nameArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec.Name = args[0]

			session, err := shared.Open(cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			res := session.Manager.AddProcess(cmd.Context(), spec)
			return shared.Report(cmd, res, renderPending)
		},
	}

	cmd.Flags().StringVar(&spec.Command, "command", "", "Command line to run (required)")
	cmd.Flags().StringVar(&spec.Directory, "directory", "", "Working directory")
	cmd.Flags().BoolVar(&spec.Autostart, "autostart", false, "Start the program when supervisord starts")
	cmd.Flags().StringVar(&spec.Autorestart, "autorestart", "unexpected", "Restart policy: true, false or unexpected")
	cmd.Flags().IntVar(&spec.Numprocs, "numprocs", 1, "Number of copies to run")
	_ = cmd.RegisterFlagCompletionFunc("autorestart", completion.CompleteAutorestart)

	return cmd
}

func renderPending(w io.Writer, res manager.Result) {
	pending, ok := res.Data.(manager.PendingConfig)
	if !ok {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprint(w, pending.Config)
	fmt.Fprintln(w)
	fmt.Fprintln(w, shared.Header.Render("Next steps"))
	for i, step := range pending.Instructions {
		fmt.Fprintf(w, "  %d. %s\n", i+1, step)
	}
}
