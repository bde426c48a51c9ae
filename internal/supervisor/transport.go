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
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout bounds dialing and waiting for response headers.
const DefaultTimeout = 30 * time.Second

// Transport is the HTTP transport used to reach the daemon's RPC handler.
type Transport struct {
	// SocketPath is the Unix socket path for unix_http_server endpoints.
	SocketPath string

	// TLSConfig is the TLS configuration for HTTPS endpoints.
	TLSConfig *tls.Config

	// Username and Password are sent as HTTP basic auth when Username is set.
	Username string
	Password string

	// Timeout bounds dialing and waiting for the daemon's response headers.
	// A wait=true start may legitimately take startsecs on the daemon side.
	Timeout time.Duration

	once      sync.Once
	transport *http.Transport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.once.Do(func() {
		t.transport = t.httpTransport()
	})

	if t.Username != "" {
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.Username, t.Password)
	}

	resp, err := t.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, &AuthError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// CloseIdleConnections releases pooled connections.
func (t *Transport) CloseIdleConnections() {
	if t.transport != nil {
		t.transport.CloseIdleConnections()
	}
}

func (t *Transport) httpTransport() *http.Transport {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
		DisableCompression:    true,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	dialer := &net.Dialer{Timeout: timeout}
	if t.SocketPath != "" {
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", t.SocketPath)
		}
	} else {
		transport.DialContext = dialer.DialContext
		if t.TLSConfig != nil {
			transport.TLSClientConfig = t.TLSConfig
		}
	}

	return transport
}

// NewUnixTransport creates a transport for a Unix socket.
func NewUnixTransport(socketPath string) *Transport {
	return &Transport{
		SocketPath: socketPath,
	}
}

// NewTCPTransport creates a transport for a plain HTTP endpoint.
func NewTCPTransport() *Transport {
	return &Transport{}
}

// NewTLSTransport creates a transport for an HTTPS endpoint.
func NewTLSTransport(tlsConfig *tls.Config) *Transport {
	if tlsConfig == nil {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &Transport{
		TLSConfig: tlsConfig,
	}
}
