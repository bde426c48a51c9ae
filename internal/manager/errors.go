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
	"context"
	"errors"
	"fmt"

	"github.com/tombee/supervisor-mcp/internal/supervisor"
	pkgerrors "github.com/tombee/supervisor-mcp/pkg/errors"
)

// Kind names the class of failure behind an error or warning result.
type Kind string

const (
	KindNone         Kind = ""
	KindConnection   Kind = "connection"
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindInvalidInput Kind = "invalid_input"
	KindFault        Kind = "fault"
	KindProtocol     Kind = "protocol"
	KindCancelled    Kind = "cancelled"
	KindUnsupported  Kind = "unsupported"
)

// errClosed is returned for operations on a closed Manager.
var errClosed = errors.New("manager is closed")

// kindOf classifies an error from the remote call layer.
func kindOf(err error) Kind {
	var (
		validationErr *pkgerrors.ValidationError
		protoErr      *supervisor.ProtocolError
	)

	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, errClosed), supervisor.IsConnectionError(err):
		return KindConnection
	case errors.As(err, &validationErr):
		return KindInvalidInput
	case errors.As(err, &protoErr):
		return KindProtocol
	}

	f, ok := supervisor.AsFault(err)
	if !ok {
		return KindProtocol
	}
	switch f.Code {
	case supervisor.FaultBadName:
		return KindNotFound
	case supervisor.FaultAlreadyStarted, supervisor.FaultNotRunning, supervisor.FaultShutdownState:
		return KindInvalidState
	case supervisor.FaultIncorrectParameters, supervisor.FaultBadArguments:
		return KindInvalidInput
	default:
		return KindFault
	}
}

// failure folds err, raised while performing action on the named process,
// into an error result. name may be empty for daemon-wide actions.
func failure(action, name string, err error) Result {
	kind := kindOf(err)
	return Result{Status: StatusError, Kind: kind, Message: failureMessage(kind, action, name, err)}
}

func failureMessage(kind Kind, action, name string, err error) string {
	subject := action
	if name != "" {
		subject = fmt.Sprintf("%s '%s'", action, name)
	}

	switch kind {
	case KindConnection:
		if errors.Is(err, errClosed) {
			return fmt.Sprintf("cannot %s: connection to supervisor is closed", subject)
		}
		return err.Error()

	case KindCancelled:
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Sprintf("timed out waiting for supervisor to %s", subject)
		}
		return fmt.Sprintf("cancelled before supervisor finished: %s", subject)

	case KindInvalidInput:
		var validationErr *pkgerrors.ValidationError
		if errors.As(err, &validationErr) {
			return validationErr.Error()
		}

	case KindNotFound:
		if name != "" {
			return fmt.Sprintf("process '%s' not found", name)
		}

	case KindInvalidState:
		f, _ := supervisor.AsFault(err)
		switch {
		case f.Code == supervisor.FaultShutdownState:
			return fmt.Sprintf("cannot %s: supervisor is shutting down", subject)
		case name == "":
		case f.Code == supervisor.FaultAlreadyStarted:
			return fmt.Sprintf("process '%s' is already running", name)
		case f.Code == supervisor.FaultNotRunning:
			return fmt.Sprintf("process '%s' is not running", name)
		}
	}

	return fmt.Sprintf("failed to %s: %s", subject, err.Error())
}
