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

package errors_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	pkgerrors "github.com/tombee/supervisor-mcp/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *pkgerrors.ValidationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &pkgerrors.ValidationError{
				Field:      "lines",
				Message:    "must be between 1 and 10000",
				Suggestion: "Request fewer lines",
			},
			wantMsg: "validation failed on lines: must be between 1 and 10000",
		},
		{
			name: "without field",
			err: &pkgerrors.ValidationError{
				Message: "invalid format",
			},
			wantMsg: "validation failed: invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestNotFoundError_Error(t *testing.T) {
	err := &pkgerrors.NotFoundError{Resource: "keyring secret", ID: "admin"}
	if got, want := err.Error(), "keyring secret not found: admin"; got != want {
		t.Errorf("NotFoundError.Error() = %q, want %q", got, want)
	}
}

func TestConfigError(t *testing.T) {
	tests := []struct {
		name    string
		err     *pkgerrors.ConfigError
		wantMsg string
	}{
		{
			name:    "with key",
			err:     &pkgerrors.ConfigError{Key: "server_url", Reason: "unsupported scheme"},
			wantMsg: "config error at server_url: unsupported scheme",
		},
		{
			name:    "without key",
			err:     &pkgerrors.ConfigError{Reason: "file unreadable"},
			wantMsg: "config error: file unreadable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ConfigError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}

	t.Run("preserves cause through wrapping", func(t *testing.T) {
		rootCause := errors.New("permission denied")
		wrapped := fmt.Errorf("loading config: %w", &pkgerrors.ConfigError{Reason: "read", Cause: rootCause})

		var target *pkgerrors.ConfigError
		if !errors.As(wrapped, &target) {
			t.Fatal("errors.As should find ConfigError in wrapped error")
		}
		if !errors.Is(wrapped, rootCause) {
			t.Error("errors.Is should reach the root cause")
		}
	})
}

func TestWrap(t *testing.T) {
	t.Run("wraps error with context", func(t *testing.T) {
		original := &pkgerrors.ValidationError{Field: "name", Message: "empty"}
		wrapped := pkgerrors.Wrapf(original, "checking %s", "web")

		if !strings.Contains(wrapped.Error(), "checking web: validation failed on name") {
			t.Errorf("unexpected message: %s", wrapped)
		}
		var target *pkgerrors.ValidationError
		if !errors.As(wrapped, &target) || target.Field != "name" {
			t.Error("errors.As should extract ValidationError from chain")
		}
	})

	t.Run("returns nil for nil error", func(t *testing.T) {
		if pkgerrors.Wrap(nil, "context") != nil {
			t.Error("Wrap(nil, _) should return nil")
		}
		if pkgerrors.Wrapf(nil, "context %d", 1) != nil {
			t.Error("Wrapf(nil, _) should return nil")
		}
	})
}
