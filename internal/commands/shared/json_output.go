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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/supervisor-mcp/internal/jq"
)

// jq limits for --jq filters over command output.
const (
	jqTimeout      = 5 * time.Second
	jqMaxInputSize = 10 * 1024 * 1024
)

// EmitJSON writes response to the command's stdout as indented JSON. When
// --jq is set the filter runs over the response and each result is written
// on its own line; string results are written raw.
func EmitJSON(cmd *cobra.Command, response interface{}) error {
	return emitJSON(cmd.Context(), cmd.OutOrStdout(), response, GetJQ())
}

func emitJSON(ctx context.Context, w io.Writer, response interface{}, filter string) error {
	if filter == "" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	results, err := jq.NewExecutor(jqTimeout, jqMaxInputSize).Execute(ctx, filter, response)
	if err != nil {
		return NewInvalidInputError("--jq filter failed", err)
	}

	encoder := json.NewEncoder(w)
	for _, r := range results {
		if s, ok := r.(string); ok {
			if _, err := fmt.Fprintln(w, s); err != nil {
				return err
			}
			continue
		}
		if err := encoder.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
