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

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/tombee/supervisor-mcp/internal/commands/shared"
	"github.com/tombee/supervisor-mcp/internal/config"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and manage configuration",
		Long: `View and manage supctl configuration.

Subcommands:
  show          - Display the effective configuration
  path          - Show config file location
  set-password  - Store the supervisord password in the OS keyring`,
		Args: cobra.NoArgs,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(newSetPasswordCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = runConfigShow

	return cmd
}

// newConfigShowCommand creates the 'config show' subcommand
func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration after the file, environment and --url have been
applied. The password is masked.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
}

// newConfigPathCommand creates the 'config path' subcommand
func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		Long:  `Display the path to the configuration file.`,
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}
}

func newSetPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-password <username>",
		Short: "Store the supervisord password in the OS keyring",
		Long: `Read a password from the terminal (or the first line of stdin) and store it
in the OS keyring for username. Set password_from_keyring: true and username
in the config file to use it.`,
		Example: "  supctl config set-password admin\n  echo \"$PW\" | supctl config set-password admin",
		Args:    cobra.ExactArgs(1),
		RunE:    runSetPassword,
	}
}

// runConfigShow displays the current configuration
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}

	masked := maskSensitiveConfig(cfg)

	data, err := yaml.Marshal(masked)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if shared.GetJSON() {
		var generic map[string]interface{}
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return shared.EmitJSON(cmd, generic)
	}

	out := cmd.OutOrStdout()
	source := cfg.Path()
	if source == "" {
		source = "defaults and environment (no config file)"
	}
	fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("Configuration:"), source)
	fmt.Fprintln(out, strings.Repeat("=", 50))
	_, err = out.Write(data)
	return err
}

// runConfigPath displays the config file path
func runConfigPath(cmd *cobra.Command, args []string) error {
	cfgPath := shared.GetConfigPath()
	if cfgPath == "" {
		var err error
		cfgPath, err = config.ConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), cfgPath)
	return nil
}

func runSetPassword(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd)
	if err != nil {
		return shared.NewInvalidInputError("failed to read password", err)
	}
	if password == "" {
		return shared.NewInvalidInputError("password is empty", nil)
	}

	if err := config.StorePassword(args[0], password); err != nil {
		return &shared.ExitError{Code: shared.ExitOperationFailed, Message: "failed to store password", Cause: err}
	}

	if !shared.GetQuiet() {
		fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(fmt.Sprintf("password for %q stored in keyring service %q", args[0], config.KeyringService)))
	}
	return nil
}

// readPassword reads without echo from a terminal, else the first line of stdin.
func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		return string(b), err
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// maskSensitiveConfig creates a copy of config with the password masked
func maskSensitiveConfig(cfg *config.Config) *config.Config {
	masked := *cfg
	masked.Password = maskSecret(cfg.Password)
	return &masked
}

func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}
