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
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tombee/supervisor-mcp/internal/commands/completion"
	"github.com/tombee/supervisor-mcp/internal/commands/shared"
	"github.com/tombee/supervisor-mcp/internal/manager"
)

// DefaultLogLines is the number of lines logs prints without --lines.
const DefaultLogLines = 100

// NewLogsCommand creates the logs command
func NewLogsCommand() *cobra.Command {
	var (
		lines  int
		stderr bool
	)

	cmd := &cobra.Command{
		Use:   "logs <name>",
		Short: "Print the last lines of a process log",
		Long: `Print the most recent lines a process wrote to stdout, or to stderr with
--stderr. Lines are read from the log file supervisord keeps for the process.`,
		Example: "  supctl logs web\n  supctl logs web --lines 20 --stderr",
		Args:    nameArg,

		ValidArgsFunction: completion.CompleteProcessNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := shared.Open(cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			name := args[0]
			res := session.Call(cmd, "Reading logs of "+name, func(ctx context.Context) manager.Result {
				return session.Manager.Logs(ctx, name, lines, stderr)
			})
			return shared.Report(cmd, res, renderLogs)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", DefaultLogLines, "Number of lines to print")
	cmd.Flags().BoolVar(&stderr, "stderr", false, "Read the stderr log instead of stdout")

	return cmd
}

// renderLogs prints the lines as they are so the output can be piped.
func renderLogs(w io.Writer, res manager.Result) {
	tail, ok := res.Data.(manager.LogTail)
	if !ok {
		return
	}
	for _, line := range tail.Lines {
		fmt.Fprintln(w, line)
	}
}
