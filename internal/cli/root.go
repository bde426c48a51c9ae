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

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/supervisor-mcp/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for supctl
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supctl",
		Short: "supctl - control supervisord over XML-RPC",
		Long: `supctl starts, stops and inspects processes managed by a supervisord
daemon through its XML-RPC interface. Every command prints a short
human-readable summary, or the full {status, message, data} result with --json.

The daemon is found through --url, SUPERVISOR_URL or the config file, in that
order, falling back to http://localhost:9001/RPC2.

Run 'supctl list' to see the processes supervisord knows about.
Run 'supctl mcp-server' to serve the same operations as MCP tools.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	// Get flag pointers from shared package
	verbose, quiet, json, config := shared.RegisterFlagPointers()
	url, jq := shared.RegisterConnectionFlagPointers()

	// Add global flags
	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(jq, "jq", "", "Filter JSON output with a jq expression (implies --json)")
	cmd.PersistentFlags().StringVar(config, "config", "", "Path to config file (default: ~/.config/supervisor-mcp/config.yaml)")
	cmd.PersistentFlags().StringVar(url, "url", "", "supervisord XML-RPC endpoint (http, https or unix URL)")

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &shared.ExitError{
			Code:    shared.ExitInvalidInput,
			Message: err.Error(),
			Hint:    fmt.Sprintf("Run '%s --help' for usage", c.CommandPath()),
		}
	})

	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
