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

/*
Package cli provides the root command and shared configuration for supctl.

This package creates the main Cobra command tree and handles global concerns like
version information, persistent flags, and error handling. Individual commands
are implemented in the internal/commands subpackages.

# Command Tree

	supctl
	├── start         Start a process
	├── stop          Stop a process
	├── restart       Restart a process
	├── status        Show one process
	├── list          List all processes
	├── logs          Tail a process log
	├── add           Render a program section to install
	├── info          Show daemon versions and state
	├── reload        Reread configuration and report changes
	├── ping          Check the daemon is reachable
	├── mcp-server    Serve the operations as MCP tools
	├── config        Show configuration, store the password in the keyring
	├── completion    Generate shell completion scripts
	├── version       Show version
	└── help          Show help

# Global Flags

	--verbose, -v    Enable debug logging
	--quiet, -q      Suppress non-error output
	--json           Print the {status, message, data} result
	--jq             Filter JSON output (implies --json)
	--config         Path to config file
	--url            supervisord endpoint

# Exit Codes

  - Exit 0: ok or warning result
  - Exit 1: the operation failed (not_found, invalid_state, fault and so on)
  - Exit 2: invalid flags, arguments or configuration
  - Exit 3: supervisord could not be reached
*/
package cli
