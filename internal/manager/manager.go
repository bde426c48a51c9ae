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
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/tombee/supervisor-mcp/internal/supervisor"
)

const tracerName = "github.com/tombee/supervisor-mcp/internal/manager"

// Defaults applied to zero Config fields.
const (
	DefaultMaxInFlight     = 8
	DefaultLogBytesPerLine = 200
	DefaultMaxLogBytes     = 1 << 20
)

// Config configures a Manager.
type Config struct {
	// URL is the daemon endpoint. Empty means supervisor.DefaultURL.
	URL string

	// Username and Password are HTTP basic auth credentials.
	Username string
	Password string

	// Timeout bounds each daemon call at the transport level.
	Timeout time.Duration

	// MaxInFlight caps concurrent daemon calls.
	MaxInFlight int

	// LogBytesPerLine sizes the tail window read for Logs: lines * LogBytesPerLine,
	// capped at MaxLogBytes.
	LogBytesPerLine int
	MaxLogBytes     int
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = supervisor.DefaultURL
	}
	if c.Timeout <= 0 {
		c.Timeout = supervisor.DefaultTimeout
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}
	if c.LogBytesPerLine <= 0 {
		c.LogBytesPerLine = DefaultLogBytesPerLine
	}
	if c.MaxLogBytes <= 0 {
		c.MaxLogBytes = DefaultMaxLogBytes
	}
	return c
}

// Manager performs supervisor operations and folds every outcome into a
// Result. It is safe for concurrent use.
type Manager struct {
	cfg    Config
	url    string
	conn   *connection
	sem    *semaphore.Weighted
	logger *slog.Logger
	tracer trace.Tracer

	daemon Daemon
	dial   Dialer
}

// Option configures a Manager.
type Option func(*Manager)

// WithDaemon uses d as the only handle. The Manager never redials.
func WithDaemon(d Daemon) Option {
	return func(m *Manager) {
		m.daemon = d
		m.dial = nil
	}
}

// WithDialer replaces how handles are created.
func WithDialer(dial Dialer) Option {
	return func(m *Manager) {
		m.dial = dial
		m.daemon = nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTracerProvider sets where operation and call spans are recorded.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) {
		if tp != nil {
			m.tracer = tp.Tracer(tracerName)
		}
	}
}

// New creates a Manager. It validates the endpoint URL but does not contact
// the daemon.
func New(cfg Config, opts ...Option) (*Manager, error) {
	cfg = cfg.withDefaults()

	endpoint, err := supervisor.ParseEndpoint(cfg.URL)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:    cfg,
		url:    endpoint.URL,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "manager")

	if m.daemon == nil && m.dial == nil {
		m.dial = defaultDialer(cfg)
	}
	d := m.daemon
	if d == nil {
		if d, err = m.dial(); err != nil {
			return nil, fmt.Errorf("failed to create supervisor client: %w", err)
		}
	}

	m.sem = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	m.conn = newConnection(m.url, d, m.dial, m.logger)
	return m, nil
}

func defaultDialer(cfg Config) Dialer {
	return func() (Daemon, error) {
		opts := []supervisor.Option{supervisor.WithTimeout(cfg.Timeout)}
		if cfg.Username != "" {
			opts = append(opts, supervisor.WithCredentials(cfg.Username, cfg.Password))
		}
		return supervisor.New(cfg.URL, opts...)
	}
}

// URL returns the endpoint as configured, without credentials.
func (m *Manager) URL() string {
	return m.url
}

// ConnectionState returns the current connection state.
func (m *Manager) ConnectionState() ConnectionState {
	return m.conn.State()
}

// Close releases the daemon handle. Operations after Close fail with a
// connection error.
func (m *Manager) Close() error {
	return m.conn.close()
}

// ConnectInfo is the data of a successful Connect.
type ConnectInfo struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// Connect establishes or re-validates the connection with supervisor.getState.
func (m *Manager) Connect(ctx context.Context) Result {
	ctx, done := m.begin(ctx, "connect", "")

	st, err := m.validate(ctx)
	if err != nil {
		return done(failure("connect to supervisor", "", err))
	}
	return done(OK(
		fmt.Sprintf("connected to supervisor at %s (%s)", m.url, st.Name),
		ConnectInfo{URL: m.url, State: st.Name},
	))
}

func (m *Manager) validate(ctx context.Context) (supervisor.DaemonState, error) {
	st, err := call(ctx, m, "supervisor.getState", func(d Daemon) (supervisor.DaemonState, error) {
		return d.GetState()
	})
	if err != nil {
		return st, err
	}
	m.conn.markConnected()
	return st, nil
}

// ensureConnected validates the connection unless it is already connected.
func (m *Manager) ensureConnected(ctx context.Context) error {
	if m.conn.State() == StateConnected {
		return nil
	}
	_, err := m.validate(ctx)
	return err
}

// begin opens the span for one operation. The returned func closes it,
// records metrics and logs the result.
func (m *Manager) begin(ctx context.Context, operation, name string) (context.Context, func(Result) Result) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "manager."+operation,
		trace.WithAttributes(attribute.String("operation", operation)),
	)
	if name != "" {
		span.SetAttributes(attribute.String("process.name", name))
	}

	return ctx, func(r Result) Result {
		span.SetAttributes(attribute.String("result.status", string(r.Status)))
		if r.IsError() {
			span.SetStatus(codes.Error, r.Message)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		recordOperation(operation, r.Status)
		m.logger.Debug("operation finished",
			"operation", operation,
			"process", name,
			"status", r.Status,
			"kind", r.Kind,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return r
	}
}
