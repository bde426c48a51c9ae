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
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/kolo/xmlrpc"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("client is closed")

// Client is a synchronous XML-RPC handle for one supervisord endpoint.
// Each call is its own HTTP request, so concurrent calls do not wait on
// each other.
type Client struct {
	httpClient *http.Client
	closed     atomic.Bool
	endpoint   *Endpoint
	username   string
	password   string
	timeout    time.Duration
	transport  *Transport
}

// Option configures a Client.
type Option func(*Client) error

// WithCredentials sets HTTP basic auth credentials, overriding any in the URL.
func WithCredentials(username, password string) Option {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithTimeout bounds dialing and waiting for a reply.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("timeout must not be negative: %v", d)
		}
		c.timeout = d
		return nil
	}
}

// WithTransport replaces the endpoint's transport (used by tests).
func WithTransport(t *Transport) Option {
	return func(c *Client) error {
		c.transport = t
		return nil
	}
}

// New creates a client for the endpoint URL. No network traffic happens
// until the first call.
func New(rawURL string, opts ...Option) (*Client, error) {
	endpoint, err := ParseEndpoint(rawURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		endpoint: endpoint,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	transport := endpoint.Transport
	if c.transport != nil {
		transport = c.transport
	}
	if c.username != "" {
		transport.Username = c.username
		transport.Password = c.password
	}
	if transport.Timeout == 0 {
		transport.Timeout = c.timeout
	}
	c.transport = transport
	c.httpClient = &http.Client{Transport: transport}

	return c, nil
}

// URL returns the configured endpoint URL.
func (c *Client) URL() string {
	return c.endpoint.URL
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	c.closed.Store(true)
	c.transport.CloseIdleConnections()
	return nil
}

func (c *Client) call(method string, args []interface{}, reply interface{}) error {
	return normalizeError(c.endpoint.URL, method, c.post(method, args, reply))
}

// post sends one methodCall and decodes the reply into reply. Faults come
// back as xmlrpc.FaultError values.
func (c *Client) post(method string, args []interface{}, reply interface{}) error {
	if c.closed.Load() {
		return ErrClosed
	}

	body, err := xmlrpc.EncodeMethodCall(method, args...)
	if err != nil {
		return &ProtocolError{Method: method, Err: err}
	}
	req, err := http.NewRequest(http.MethodPost, c.endpoint.RPCURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProtocolError{Method: method, Err: fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	res := xmlrpc.Response(data)
	if err := res.Err(); err != nil {
		var fault xmlrpc.FaultError
		if errors.As(err, &fault) {
			return err
		}
		return &ProtocolError{Method: method, Err: err}
	}
	if reply == nil {
		return nil
	}
	if err := res.Unmarshal(reply); err != nil {
		return &ProtocolError{Method: method, Err: err}
	}
	return nil
}

// StartProcess starts a process. With wait, the daemon replies once the
// process is fully started (or has failed to start).
func (c *Client) StartProcess(name string, wait bool) error {
	var ok bool
	return c.call("supervisor.startProcess", []interface{}{name, wait}, &ok)
}

// StopProcess stops a process. With wait, the daemon replies once the
// process is fully stopped.
func (c *Client) StopProcess(name string, wait bool) error {
	var ok bool
	return c.call("supervisor.stopProcess", []interface{}{name, wait}, &ok)
}

// GetAllProcessInfo returns every process in daemon order.
func (c *Client) GetAllProcessInfo() ([]ProcessInfo, error) {
	var infos []ProcessInfo
	if err := c.call("supervisor.getAllProcessInfo", nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// GetProcessInfo returns one process by name.
func (c *Client) GetProcessInfo(name string) (ProcessInfo, error) {
	var info ProcessInfo
	err := c.call("supervisor.getProcessInfo", []interface{}{name}, &info)
	return info, err
}

// ReadProcessStdoutLog reads length bytes of stdout from offset. A negative
// offset with length 0 reads the last -offset bytes.
func (c *Client) ReadProcessStdoutLog(name string, offset, length int) (string, error) {
	var out string
	err := c.call("supervisor.readProcessStdoutLog", []interface{}{name, offset, length}, &out)
	return out, err
}

// ReadProcessStderrLog is ReadProcessStdoutLog for the stderr stream.
func (c *Client) ReadProcessStderrLog(name string, offset, length int) (string, error) {
	var out string
	err := c.call("supervisor.readProcessStderrLog", []interface{}{name, offset, length}, &out)
	return out, err
}

// GetAPIVersion returns the RPC API version.
func (c *Client) GetAPIVersion() (string, error) {
	var v string
	err := c.call("supervisor.getAPIVersion", nil, &v)
	return v, err
}

// GetSupervisorVersion returns the daemon's package version.
func (c *Client) GetSupervisorVersion() (string, error) {
	var v string
	err := c.call("supervisor.getSupervisorVersion", nil, &v)
	return v, err
}

// GetIdentification returns the daemon's identifier string.
func (c *Client) GetIdentification() (string, error) {
	var v string
	err := c.call("supervisor.getIdentification", nil, &v)
	return v, err
}

// GetPID returns the daemon's process id.
func (c *Client) GetPID() (int, error) {
	var pid int
	err := c.call("supervisor.getPID", nil, &pid)
	return pid, err
}

// GetState returns the daemon state.
func (c *Client) GetState() (DaemonState, error) {
	var st DaemonState
	err := c.call("supervisor.getState", nil, &st)
	return st, err
}

// ReloadConfig rereads the daemon configuration and reports what changed.
// It does not apply the changes.
func (c *Client) ReloadConfig() (Changes, error) {
	var reply [][][]string
	if err := c.call("supervisor.reloadConfig", nil, &reply); err != nil {
		return Changes{}, err
	}
	if len(reply) == 0 {
		return Changes{}, nil
	}
	if len(reply[0]) != 3 {
		return Changes{}, &ProtocolError{
			Method: "supervisor.reloadConfig",
			Err:    fmt.Errorf("expected [added, changed, removed], got %d lists", len(reply[0])),
		}
	}
	return Changes{
		Added:   nonNil(reply[0][0]),
		Changed: nonNil(reply[0][1]),
		Removed: nonNil(reply[0][2]),
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
