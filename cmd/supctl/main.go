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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tombee/supervisor-mcp/internal/cli"
	"github.com/tombee/supervisor-mcp/internal/commands/completion"
	configcmd "github.com/tombee/supervisor-mcp/internal/commands/config"
	"github.com/tombee/supervisor-mcp/internal/commands/mcpserver"
	"github.com/tombee/supervisor-mcp/internal/commands/process"
	"github.com/tombee/supervisor-mcp/internal/commands/system"
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

	// Process commands
	rootCmd.AddCommand(process.NewCommands()...)

	// Daemon commands
	rootCmd.AddCommand(system.NewCommands()...)

	// MCP server
	rootCmd.AddCommand(mcpserver.NewCommand())

	// Configuration
	rootCmd.AddCommand(configcmd.NewConfigCommand())

	// Shell completion
	rootCmd.AddCommand(completion.NewCommand())

	// Version command
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	// Custom help command with JSON support
	rootCmd.SetHelpCommand(cli.NewHelpCommand(rootCmd))

	// Ctrl-C abandons the outstanding daemon call.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.HandleExitError(err)
	}
}
