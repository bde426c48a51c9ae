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

package manager

import (
	"fmt"
	"regexp"
	"strings"

	pkgerrors "github.com/tombee/supervisor-mcp/pkg/errors"
)

// MaxNameLength is the longest process name accepted.
const MaxNameLength = 255

var (
	// processNameRx matches "name", "group:name" and "group:*".
	processNameRx = regexp.MustCompile(`^[A-Za-z0-9_.-]+(:([A-Za-z0-9_.-]+|\*))?$`)
	programNameRx = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// ValidateName checks a process name before it is sent to the daemon.
func ValidateName(name string) error {
	return validateName(name, processNameRx, "letters, digits, '_', '.', '-', optionally as group:name or group:*")
}

// validateProgramName checks a name used as a [program:x] section.
func validateProgramName(name string) error {
	return validateName(name, programNameRx, "letters, digits, '_', '.' and '-'")
}

func validateName(name string, rx *regexp.Regexp, allowed string) error {
	switch {
	case name == "":
		return &pkgerrors.ValidationError{
			Field:      "name",
			Message:    "process name is required",
			Suggestion: "Pass the name shown by list_processes",
		}
	case len(name) > MaxNameLength:
		return &pkgerrors.ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("process name is %d bytes, the limit is %d", len(name), MaxNameLength),
		}
	case !rx.MatchString(name):
		return &pkgerrors.ValidationError{
			Field:      "name",
			Message:    fmt.Sprintf("invalid process name %q", name),
			Suggestion: "Use " + allowed,
		}
	}
	return nil
}

func validateLines(lines int) error {
	if lines <= 0 {
		return &pkgerrors.ValidationError{
			Field:      "lines",
			Message:    fmt.Sprintf("line count must be positive, got %d", lines),
			Suggestion: "Request at least one line",
		}
	}
	return nil
}

// Autorestart values accepted by supervisord.
var autorestartValues = []string{"true", "false", "unexpected"}

func validateProcessSpec(spec ProcessSpec) error {
	if err := validateProgramName(spec.Name); err != nil {
		return err
	}
	if strings.TrimSpace(spec.Command) == "" {
		return &pkgerrors.ValidationError{
			Field:      "command",
			Message:    "command is required",
			Suggestion: "Pass the full command line the program runs",
		}
	}
	if strings.ContainsAny(spec.Command, "\r\n`") {
		return &pkgerrors.ValidationError{
			Field:   "command",
			Message: "command must be a single line without backticks",
		}
	}
	if strings.ContainsAny(spec.Directory, "\r\n`") {
		return &pkgerrors.ValidationError{
			Field:   "directory",
			Message: "directory must be a single line without backticks",
		}
	}

	valid := false
	for _, v := range autorestartValues {
		if strings.EqualFold(spec.Autorestart, v) {
			valid = true
			break
		}
	}
	if !valid {
		return &pkgerrors.ValidationError{
			Field:      "autorestart",
			Message:    fmt.Sprintf("invalid autorestart value %q", spec.Autorestart),
			Suggestion: "Use one of: " + strings.Join(autorestartValues, ", "),
		}
	}

	if spec.Numprocs < 1 {
		return &pkgerrors.ValidationError{
			Field:   "numprocs",
			Message: fmt.Sprintf("numprocs must be at least 1, got %d", spec.Numprocs),
		}
	}
	return nil
}
