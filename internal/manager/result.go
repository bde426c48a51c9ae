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
	"encoding/json"
	"fmt"
)

// Status is the outcome class of an operation.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Result is the envelope returned by every Manager operation.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`

	// Kind classifies error and warning results. It is not serialized.
	Kind Kind `json:"-"`
}

// OK builds a successful result.
func OK(message string, data any) Result {
	return Result{Status: StatusOK, Message: message, Data: data}
}

// Warning builds a result for work that succeeded locally but needs a manual
// follow-up.
func Warning(kind Kind, message string, data any) Result {
	return Result{Status: StatusWarning, Message: message, Data: data, Kind: kind}
}

// Errorf builds an error result without data.
func Errorf(kind Kind, format string, args ...any) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf(format, args...), Kind: kind}
}

// IsError reports whether the result has status error.
func (r Result) IsError() bool {
	return r.Status == StatusError
}

// WithData returns a copy of r carrying data.
func (r Result) WithData(data any) Result {
	r.Data = data
	return r
}

// JSON renders the envelope as indented JSON.
func (r Result) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
