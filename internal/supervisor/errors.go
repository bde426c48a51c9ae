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

package supervisor

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	"github.com/kolo/xmlrpc"
)

// Fault codes defined by supervisord's xmlrpc module.
const (
	FaultUnknownMethod        = 1
	FaultIncorrectParameters  = 2
	FaultBadArguments         = 3
	FaultSignatureUnsupported = 4
	FaultShutdownState        = 6
	FaultBadName              = 10
	FaultBadSignal            = 11
	FaultNoFile               = 20
	FaultNotExecutable        = 21
	FaultFailed               = 30
	FaultAbnormalTermination  = 40
	FaultSpawnError           = 50
	FaultAlreadyStarted       = 60
	FaultNotRunning           = 70
	FaultSuccess              = 80
	FaultAlreadyAdded         = 90
	FaultStillRunning         = 91
	FaultCantReread           = 92
)

var faultNames = map[int]string{
	FaultUnknownMethod:        "UNKNOWN_METHOD",
	FaultIncorrectParameters:  "INCORRECT_PARAMETERS",
	FaultBadArguments:         "BAD_ARGUMENTS",
	FaultSignatureUnsupported: "SIGNATURE_UNSUPPORTED",
	FaultShutdownState:        "SHUTDOWN_STATE",
	FaultBadName:              "BAD_NAME",
	FaultBadSignal:            "BAD_SIGNAL",
	FaultNoFile:               "NO_FILE",
	FaultNotExecutable:        "NOT_EXECUTABLE",
	FaultFailed:               "FAILED",
	FaultAbnormalTermination:  "ABNORMAL_TERMINATION",
	FaultSpawnError:           "SPAWN_ERROR",
	FaultAlreadyStarted:       "ALREADY_STARTED",
	FaultNotRunning:           "NOT_RUNNING",
	FaultSuccess:              "SUCCESS",
	FaultAlreadyAdded:         "ALREADY_ADDED",
	FaultStillRunning:         "STILL_RUNNING",
	FaultCantReread:           "CANT_REREAD",
}

var faultCodes = func() map[string]int {
	m := make(map[string]int, len(faultNames))
	for code, name := range faultNames {
		m[name] = code
	}
	return m
}()

// FaultName returns the symbolic name of a fault code, or "FAULT_<code>".
func FaultName(code int) string {
	if name, ok := faultNames[code]; ok {
		return name
	}
	return "FAULT_" + strconv.Itoa(code)
}

// Fault is an XML-RPC fault raised by the daemon.
type Fault struct {
	Code   int
	String string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.String == "" {
		return FaultName(f.Code)
	}
	return f.String
}

// Name returns the symbolic fault name (BAD_NAME, NOT_RUNNING, ...).
func (f *Fault) Name() string {
	return FaultName(f.Code)
}

// Detail returns the fault string without its symbolic prefix.
func (f *Fault) Detail() string {
	prefix := f.Name()
	if rest, ok := strings.CutPrefix(f.String, prefix); ok {
		return strings.TrimSpace(strings.TrimPrefix(rest, ":"))
	}
	return f.String
}

// AsFault extracts a daemon fault from an error chain.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsFault reports whether err is a daemon fault with the given code.
func IsFault(err error, code int) bool {
	f, ok := AsFault(err)
	return ok && f.Code == code
}

// ConnectionError indicates the endpoint could not be reached or refused the call.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot reach supervisor at %s: %s", e.Endpoint, describeTransportError(e.Err))
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is a connection-class failure.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// ProtocolError indicates the daemon's reply could not be decoded.
type ProtocolError struct {
	Method string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("malformed response from supervisor: %v", e.Err)
	}
	return fmt.Sprintf("malformed response from supervisor to %s: %v", e.Method, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// AuthError is returned by the transport when the daemon rejects credentials.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (HTTP %d)", e.StatusCode)
}

var faultCodeRx = regexp.MustCompile(`Fault\((-?\d+)\)`)

// parseFault recovers a fault from its string rendering. The numeric code is
// used when present; otherwise the symbolic name supervisord prefixes every
// faultString with is mapped back to its code.
func parseFault(msg string) (*Fault, bool) {
	s := strings.TrimSpace(msg)
	if m := faultCodeRx.FindStringSubmatchIndex(s); m != nil {
		code, err := strconv.Atoi(s[m[2]:m[3]])
		if err == nil {
			rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s[m[1]:]), ":"))
			return &Fault{Code: code, String: rest}, true
		}
	}
	name, _, _ := strings.Cut(s, ":")
	if code, ok := faultCodes[strings.TrimSpace(name)]; ok {
		return &Fault{Code: code, String: s}, true
	}
	return nil, false
}

// normalizeError maps whatever the XML-RPC layer returned onto the three
// client error types.
func normalizeError(endpoint, method string, err error) error {
	if err == nil {
		return nil
	}

	var (
		fault    *Fault
		connErr  *ConnectionError
		protoErr *ProtocolError
		xmlFault xmlrpc.FaultError
	)
	switch {
	case errors.As(err, &fault), errors.As(err, &connErr), errors.As(err, &protoErr):
		return err
	case errors.As(err, &xmlFault):
		return &Fault{Code: xmlFault.Code, String: xmlFault.String}
	case isTransportError(err):
		return &ConnectionError{Endpoint: endpoint, Err: err}
	}

	// Faults that reached us only as text still carry their code or name.
	if f, ok := parseFault(err.Error()); ok {
		return f
	}
	return &ProtocolError{Method: method, Err: err}
}

func isTransportError(err error) bool {
	var (
		urlErr  *url.Error
		netErr  net.Error
		authErr *AuthError
	)
	switch {
	case errors.As(err, &urlErr), errors.As(err, &netErr), errors.As(err, &authErr):
		return true
	case errors.Is(err, ErrClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ENOENT):
		return true
	}
	return false
}

// describeTransportError gives a short reason without transport internals.
func describeTransportError(err error) string {
	var (
		authErr *AuthError
		netErr  net.Error
	)
	switch {
	case err == nil:
		return "unknown error"
	case errors.As(err, &authErr):
		return authErr.Error()
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.Is(err, syscall.ENOENT):
		return "socket not found"
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "connection closed by peer"
	case errors.Is(err, ErrClosed):
		return "client is closed"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timed out"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}
