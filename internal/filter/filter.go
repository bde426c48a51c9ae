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

// Package filter selects processes from a listing by name glob and by a
// boolean expression over process fields.
package filter

import (
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/tombee/supervisor-mcp/internal/manager"
	pkgerrors "github.com/tombee/supervisor-mcp/pkg/errors"
)

// Filter keeps processes whose name matches Match and for which Where
// evaluates to true. Either may be empty.
type Filter struct {
	match   string
	where   string
	program *vm.Program
	now     func() time.Time
}

// New compiles the glob and expression. Errors are ValidationErrors.
//
// Match is a doublestar glob over the process name, so "worker:*" selects a
// group. Where sees these variables:
//
//	name, group, state, description, spawn_error  string
//	pid, exit_status, uptime                      int (uptime in seconds)
//	running                                       bool
func New(match, where string) (*Filter, error) {
	f := &Filter{match: match, where: where, now: time.Now}

	if match != "" && !doublestar.ValidatePattern(match) {
		return nil, &pkgerrors.ValidationError{
			Field:      "match",
			Message:    fmt.Sprintf("invalid glob pattern %q", match),
			Suggestion: "use * and ? wildcards, e.g. 'worker:*'",
		}
	}

	if where != "" {
		program, err := expr.Compile(where, expr.Env(env(manager.Process{}, time.Time{})), expr.AsBool())
		if err != nil {
			return nil, &pkgerrors.ValidationError{
				Field:      "where",
				Message:    fmt.Sprintf("failed to compile expression: %s", err.Error()),
				Suggestion: "compare process fields, e.g. 'state == \"FATAL\" || uptime < 60'",
			}
		}
		f.program = program
	}

	return f, nil
}

// Apply returns the processes the filter keeps, in their original order.
func (f *Filter) Apply(procs []manager.Process) ([]manager.Process, error) {
	kept := make([]manager.Process, 0, len(procs))
	for _, p := range procs {
		ok, err := f.Keep(p)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, p)
		}
	}
	return kept, nil
}

// Keep reports whether p passes the filter.
func (f *Filter) Keep(p manager.Process) (bool, error) {
	if f.match != "" {
		matched, err := doublestar.Match(f.match, p.Name)
		if err != nil || !matched {
			return false, err
		}
	}

	if f.program == nil {
		return true, nil
	}

	result, err := expr.Run(f.program, env(p, f.now()))
	if err != nil {
		return false, &pkgerrors.ValidationError{
			Field:   "where",
			Message: fmt.Sprintf("expression evaluation failed for %s: %s", p.Name, err.Error()),
		}
	}
	return result.(bool), nil
}

func env(p manager.Process, now time.Time) map[string]any {
	uptime := 0
	if p.State.IsRunning() && p.StartedAt != nil {
		uptime = int(now.Sub(*p.StartedAt).Seconds())
	}
	return map[string]any{
		"name":        p.Name,
		"group":       p.Group,
		"state":       string(p.State),
		"description": p.Description,
		"spawn_error": p.SpawnError,
		"pid":         p.PID,
		"exit_status": p.ExitStatus,
		"uptime":      uptime,
		"running":     p.State.IsRunning(),
	}
}
