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
	"errors"
	"fmt"
	"os"

	"github.com/tombee/supervisor-mcp/internal/manager"
	pkgerrors "github.com/tombee/supervisor-mcp/pkg/errors"
)

// Exit codes for supctl. ok and warning results exit 0.
const (
	ExitSuccess         = 0
	ExitOperationFailed = 1
	ExitInvalidInput    = 2
	ExitConnection      = 3
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error

	// Hint is shown as a suggestion below the error.
	Hint string
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements pkgerrors.UserVisibleError.
func (e *ExitError) IsUserVisible() bool { return true }

// UserMessage implements pkgerrors.UserVisibleError.
func (e *ExitError) UserMessage() string { return e.Message }

// Suggestion implements pkgerrors.UserVisibleError.
func (e *ExitError) Suggestion() string { return e.Hint }

// NewInvalidInputError creates an error for bad flags or arguments
func NewInvalidInputError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitInvalidInput,
		Message: msg,
		Cause:   cause,
	}
}

// NewConfigError creates an error for configuration that cannot be loaded
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitInvalidInput,
		Message: msg,
		Cause:   cause,
		Hint:    "Check the file given with --config or ~/.config/supervisor-mcp/config.yaml",
	}
}

// ResultError converts an error result into an ExitError. ok and warning
// results return nil.
func ResultError(res manager.Result) error {
	if !res.IsError() {
		return nil
	}

	exitErr := &ExitError{Code: ExitOperationFailed, Message: res.Message}
	switch res.Kind {
	case manager.KindConnection:
		exitErr.Code = ExitConnection
		exitErr.Hint = "Check that supervisord is running and that --url (or SUPERVISOR_URL) points at its RPC endpoint, e.g. http://localhost:9001/RPC2 or unix:///var/run/supervisor.sock"
	case manager.KindInvalidInput:
		exitErr.Code = ExitInvalidInput
	case manager.KindNotFound:
		exitErr.Hint = "Run 'supctl list' to see the configured process names"
	}
	return exitErr
}

// HandleExitError checks if an error is an ExitError and exits with the appropriate code
func HandleExitError(err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, RenderError(err.Error()))
	printUserVisibleSuggestion(err)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(ExitOperationFailed)
}

// printUserVisibleSuggestion checks if an error implements UserVisibleError
// and prints the suggestion if available.
func printUserVisibleSuggestion(err error) {
	if s := suggestionFor(err); s != "" {
		fmt.Fprintf(os.Stderr, "\n%s %s\n", RenderLabel("Suggestion:"), s)
	}
}

// suggestionFor walks the error chain for the first user-visible suggestion.
func suggestionFor(err error) string {
	for err != nil {
		if userErr, ok := err.(pkgerrors.UserVisibleError); ok && userErr.IsUserVisible() {
			if s := userErr.Suggestion(); s != "" {
				return s
			}
		}
		err = errors.Unwrap(err)
	}
	return ""
}
