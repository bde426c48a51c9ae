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

// supervisor-mcp serves supervisord control as MCP tools over stdio. It is
// the same server as 'supctl mcp-server', packaged for MCP client configs.
package main

import (
	"github.com/tombee/supervisor-mcp/internal/cli"
	"github.com/tombee/supervisor-mcp/internal/commands/mcpserver"
	versioncmd "github.com/tombee/supervisor-mcp/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()
	serverCmd := mcpserver.NewCommand()

	// Run the server when invoked without a subcommand.
	rootCmd.Use = "supervisor-mcp"
	rootCmd.Short = serverCmd.Short
	rootCmd.Long = serverCmd.Long
	rootCmd.Args = serverCmd.Args
	rootCmd.RunE = serverCmd.RunE
	rootCmd.Flags().AddFlagSet(serverCmd.Flags())

	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
