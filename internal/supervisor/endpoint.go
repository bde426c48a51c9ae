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
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
)

// DefaultURL is supervisord's default inet_http_server RPC endpoint.
const DefaultURL = "http://localhost:9001/RPC2"

// Environment variable names for endpoint configuration.
const (
	URLEnv      = "SUPERVISOR_URL"
	UsernameEnv = "SUPERVISOR_USERNAME"
	PasswordEnv = "SUPERVISOR_PASSWORD"
)

// Endpoint is a parsed daemon endpoint.
type Endpoint struct {
	// URL is the endpoint as configured, with any credentials removed.
	URL string

	// RPCURL is the HTTP URL the XML-RPC client posts to.
	RPCURL string

	// Transport carries socket, TLS and credential settings.
	Transport *Transport
}

// ParseEndpoint parses an endpoint URL. Supports:
//   - http://host:port[/RPC2]
//   - https://host:port[/RPC2]
//   - unix:///path/to/supervisor.sock
//
// Credentials in the URL userinfo are moved to the transport.
// If raw is empty, DefaultURL is used.
func ParseEndpoint(raw string) (*Endpoint, error) {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid supervisor URL %q: %w", raw, err)
	}

	var transport *Transport
	switch u.Scheme {
	case "unix":
		socketPath := u.Path
		if u.Host != "" {
			// unix://relative/path.sock
			socketPath = u.Host + u.Path
		}
		if socketPath == "" {
			return nil, fmt.Errorf("invalid supervisor URL %q: missing socket path", raw)
		}
		transport = NewUnixTransport(socketPath)
		applyUserinfo(transport, u)
		u.User = nil
		return &Endpoint{
			URL:       u.String(),
			RPCURL:    "http://localhost/RPC2",
			Transport: transport,
		}, nil

	case "http":
		transport = NewTCPTransport()

	case "https":
		transport = NewTLSTransport(&tls.Config{MinVersion: tls.VersionTLS12})

	default:
		return nil, fmt.Errorf("invalid supervisor URL %q: must start with http://, https:// or unix://", raw)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("invalid supervisor URL %q: missing host", raw)
	}

	applyUserinfo(transport, u)
	u.User = nil
	if u.Path == "" || u.Path == "/" {
		u.Path = "/RPC2"
	}

	return &Endpoint{
		URL:       u.String(),
		RPCURL:    u.String(),
		Transport: transport,
	}, nil
}

func applyUserinfo(t *Transport, u *url.URL) {
	if u.User == nil {
		return
	}
	t.Username = u.User.Username()
	t.Password, _ = u.User.Password()
}
