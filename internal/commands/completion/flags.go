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
	"github.com/spf13/cobra"
)

// CompleteAutorestart provides completion for --autorestart flag values.
func CompleteAutorestart(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return guarded(func() ([]string, cobra.ShellCompDirective) {
		values := []string{
			"unexpected\tRestart when the exit code is not in exitcodes",
			"true\tAlways restart",
			"false\tNever restart",
		}
		return values, cobra.ShellCompDirectiveNoFileComp
	})
}
