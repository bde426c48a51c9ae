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

package completion

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/supervisor-mcp/internal/commands/shared"
	"github.com/tombee/supervisor-mcp/internal/config"
)

// configExposed reports whether group or others can access the config file
// at path. A missing file is not exposed.
func configExposed(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&0o077 != 0
}

// LoadConfigForCompletion loads configuration the way commands do, --config
// and --url included. A config file others can read may hold the daemon
// password, so completion skips it: the result is then nil with no error.
func LoadConfigForCompletion() (*config.Config, error) {
	path := shared.GetConfigPath()
	if path == "" {
		var err error
		if path, err = config.ConfigPath(); err != nil {
			return nil, err
		}
	}
	if configExposed(path) {
		return nil, nil
	}
	return shared.LoadConfig()
}

// guarded runs a completion function. A panic or a nil result becomes an
// empty list without file completion.
func guarded(fn func() ([]string, cobra.ShellCompDirective)) (names []string, directive cobra.ShellCompDirective) {
	defer func() {
		if recover() != nil {
			names, directive = []string{}, cobra.ShellCompDirectiveNoFileComp
		}
	}()

	names, directive = fn()
	if names == nil {
		return []string{}, cobra.ShellCompDirectiveNoFileComp
	}
	return names, directive
}
