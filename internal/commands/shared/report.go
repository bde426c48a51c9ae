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

package shared

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tombee/supervisor-mcp/internal/manager"
)

// RenderFunc writes the human-readable form of a result's data.
type RenderFunc func(w io.Writer, res manager.Result)

// Report writes res to stdout and converts error results into an ExitError.
//
// With --json the whole envelope is written. Otherwise ok results are shown
// through render, or as a one-line confirmation when render is nil. Warnings
// print their message before any data. Error results print nothing to stdout
// unless they carry data.
func Report(cmd *cobra.Command, res manager.Result, render RenderFunc) error {
	if GetJSON() {
		if err := EmitJSON(cmd, res); err != nil {
			return err
		}
		return ResultError(res)
	}

	w := cmd.OutOrStdout()
	switch res.Status {
	case manager.StatusOK:
		if render == nil || res.Data == nil {
			if !GetQuiet() {
				fmt.Fprintln(w, RenderOK(res.Message))
			}
			return nil
		}
		render(w, res)
	case manager.StatusWarning:
		fmt.Fprintln(w, RenderWarn(res.Message))
		if render != nil && res.Data != nil {
			render(w, res)
		}
	default:
		if render != nil && res.Data != nil {
			render(w, res)
		}
	}
	return ResultError(res)
}
