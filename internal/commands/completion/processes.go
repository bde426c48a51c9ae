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
	"context"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/supervisor-mcp/internal/log"
	"github.com/tombee/supervisor-mcp/internal/manager"
)

// processTimeout bounds the daemon call made while the user waits on <TAB>.
const processTimeout = 2 * time.Second

// CompleteProcessNames completes the first argument with the names of the
// processes supervisord reports, described by their state.
func CompleteProcessNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return guarded(func() ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		cfg, err := LoadConfigForCompletion()
		if err != nil || cfg == nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		mcfg := cfg.ManagerConfig()
		mcfg.Timeout = processTimeout
		m, err := manager.New(mcfg, manager.WithLogger(log.New(&log.Config{Output: io.Discard})))
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		defer m.Close()

		ctx := context.Background()
		if cmd != nil && cmd.Context() != nil {
			ctx = cmd.Context()
		}
		ctx, cancel := context.WithTimeout(ctx, processTimeout)
		defer cancel()

		procs, ok := m.List(ctx).Data.([]manager.Process)
		if !ok {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		names := make([]string, 0, len(procs))
		for _, p := range procs {
			if strings.HasPrefix(p.Name, toComplete) {
				names = append(names, p.Name+"\t"+string(p.State))
			}
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
}
