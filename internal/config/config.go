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

// Package config loads supervisor-mcp settings from a YAML file, the
// environment and the OS keyring.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/tombee/supervisor-mcp/internal/log"
	"github.com/tombee/supervisor-mcp/internal/manager"
	"github.com/tombee/supervisor-mcp/internal/supervisor"
	pkgerrors "github.com/tombee/supervisor-mcp/pkg/errors"
)

// KeyringService is the OS keyring service holding supervisor passwords,
// keyed by username.
const KeyringService = "supervisor-mcp"

// Environment variables read by Load in addition to the logging ones.
const (
	TimeoutEnv     = "SUPERVISOR_TIMEOUT"
	MaxInFlightEnv = "SUPERVISOR_MAX_IN_FLIGHT"
)

// Tracing exporters accepted in tracing.exporter.
const (
	ExporterNone     = "none"
	ExporterConsole  = "console"
	ExporterOTLP     = "otlp"
	ExporterOTLPHTTP = "otlp_http"
)

// Config represents the supervisor-mcp configuration.
type Config struct {
	// ServerURL is the supervisord RPC endpoint (http, https or unix).
	ServerURL string `yaml:"server_url"`

	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// PasswordFromKeyring reads the password for Username from the OS keyring
	// when no password is set in the file or the environment.
	PasswordFromKeyring bool `yaml:"password_from_keyring,omitempty"`

	// Timeout bounds each remote call, including dialing.
	Timeout time.Duration `yaml:"timeout"`

	// MaxInFlight caps concurrent remote calls per process.
	MaxInFlight int `yaml:"max_in_flight"`

	// LogBytesPerLine and MaxLogBytes size the tail window read for logs.
	LogBytesPerLine int `yaml:"log_bytes_per_line"`
	MaxLogBytes     int `yaml:"max_log_bytes"`

	Log     LogConfig     `yaml:"log"`
	Tracing TracingConfig `yaml:"tracing"`
	MCP     MCPConfig     `yaml:"mcp"`

	// path is the file the config was read from, if any.
	path string
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	Format string `yaml:"format"`
}

// TracingConfig selects where spans are exported.
type TracingConfig struct {
	// Exporter is one of none, console, otlp or otlp_http.
	Exporter string `yaml:"exporter"`

	// Endpoint is the collector address for the otlp exporters.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure,omitempty"`
}

// MCPConfig contains MCP server settings.
type MCPConfig struct {
	// CallsPerMinute limits tool calls per minute. Zero disables the limit.
	CallsPerMinute int `yaml:"calls_per_minute"`

	// Burst is the number of calls allowed above the steady rate.
	Burst int `yaml:"burst"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		ServerURL:       supervisor.DefaultURL,
		Timeout:         supervisor.DefaultTimeout,
		MaxInFlight:     manager.DefaultMaxInFlight,
		LogBytesPerLine: manager.DefaultLogBytesPerLine,
		MaxLogBytes:     manager.DefaultMaxLogBytes,
		Log: LogConfig{
			Level:  "info",
			Format: string(log.FormatText),
		},
		Tracing: TracingConfig{
			Exporter: ExporterNone,
		},
		MCP: MCPConfig{
			CallsPerMinute: 120,
			Burst:          20,
		},
	}
}

// Load loads configuration from a YAML file and environment variables.
// Environment variables take precedence over file-based configuration.
//
// If configPath is empty the default path is tried and a missing file is not
// an error. An explicit path must exist.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	path, explicit := configPath, configPath != ""
	if !explicit {
		if p, err := ConfigPath(); err == nil {
			path = p
		}
	}

	if path != "" {
		err := cfg.loadFromFile(path)
		switch {
		case err == nil:
			cfg.path = path
		case !explicit && errors.Is(err, fs.ErrNotExist):
		default:
			return nil, &pkgerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", path),
				Cause:  err,
			}
		}
	}

	// Apply defaults to any zero values (handles minimal configs)
	cfg.applyDefaults()

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &pkgerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	if err := cfg.resolvePassword(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Path returns the file the configuration was read from, or "".
func (c *Config) Path() string {
	return c.path
}

// applyDefaults fills in zero values with defaults.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.ServerURL == "" {
		c.ServerURL = defaults.ServerURL
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.MaxInFlight == 0 {
		c.MaxInFlight = defaults.MaxInFlight
	}
	if c.LogBytesPerLine == 0 {
		c.LogBytesPerLine = defaults.LogBytesPerLine
	}
	if c.MaxLogBytes == 0 {
		c.MaxLogBytes = defaults.MaxLogBytes
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = defaults.Tracing.Exporter
	}
}

func (c *Config) loadFromFile(path string) error {
	// Expand home directory if present
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return pkgerrors.Wrap(err, "failed to get home directory")
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to read config file")
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return pkgerrors.Wrapf(err, "failed to parse YAML in %s", path)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	if val := os.Getenv(supervisor.URLEnv); val != "" {
		c.ServerURL = val
	}
	if val := os.Getenv(supervisor.UsernameEnv); val != "" {
		c.Username = val
	}
	if val := os.Getenv(supervisor.PasswordEnv); val != "" {
		c.Password = val
	}
	if val := os.Getenv(TimeoutEnv); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Timeout = duration
		}
	}
	if val := os.Getenv(MaxInFlightEnv); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.MaxInFlight = n
		}
	}

	if val := os.Getenv(log.LogLevelEnv); val != "" {
		c.Log.Level = strings.ToLower(val)
	} else if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if _, err := supervisor.ParseEndpoint(c.ServerURL); err != nil {
		errs = append(errs, fmt.Sprintf("server_url: %v", err))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("timeout must be positive, got %v", c.Timeout))
	}
	if c.MaxInFlight < 1 {
		errs = append(errs, fmt.Sprintf("max_in_flight must be at least 1, got %d", c.MaxInFlight))
	}
	if c.LogBytesPerLine < 1 {
		errs = append(errs, fmt.Sprintf("log_bytes_per_line must be at least 1, got %d", c.LogBytesPerLine))
	}
	if c.MaxLogBytes < c.LogBytesPerLine {
		errs = append(errs, fmt.Sprintf("max_log_bytes must be at least log_bytes_per_line (%d), got %d", c.LogBytesPerLine, c.MaxLogBytes))
	}
	if c.PasswordFromKeyring && c.Username == "" {
		errs = append(errs, "password_from_keyring requires username")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, warning, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	switch c.Tracing.Exporter {
	case ExporterNone, ExporterConsole:
	case ExporterOTLP, ExporterOTLPHTTP:
		if c.Tracing.Endpoint == "" {
			errs = append(errs, fmt.Sprintf("tracing.endpoint is required for the %s exporter", c.Tracing.Exporter))
		}
	default:
		errs = append(errs, fmt.Sprintf("tracing.exporter must be one of [none, console, otlp, otlp_http], got %q", c.Tracing.Exporter))
	}

	if c.MCP.CallsPerMinute < 0 {
		errs = append(errs, fmt.Sprintf("mcp.calls_per_minute must not be negative, got %d", c.MCP.CallsPerMinute))
	}
	if c.MCP.Burst < 0 {
		errs = append(errs, fmt.Sprintf("mcp.burst must not be negative, got %d", c.MCP.Burst))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// resolvePassword fills Password from the keyring when requested.
func (c *Config) resolvePassword() error {
	if !c.PasswordFromKeyring || c.Password != "" {
		return nil
	}
	secret, err := keyring.Get(KeyringService, c.Username)
	if err == nil {
		c.Password = secret
		return nil
	}
	cause := err
	if errors.Is(err, keyring.ErrNotFound) {
		cause = &pkgerrors.NotFoundError{Resource: "keyring secret", ID: c.Username}
	}
	return &pkgerrors.ConfigError{
		Key:    "password_from_keyring",
		Reason: fmt.Sprintf("cannot read password for %q from keyring service %q", c.Username, KeyringService),
		Cause:  cause,
	}
}

// StorePassword saves the password for username in the OS keyring, where
// password_from_keyring finds it.
func StorePassword(username, password string) error {
	if username == "" {
		return &pkgerrors.ValidationError{
			Field:      "username",
			Message:    "username is required to store a password",
			Suggestion: "Pass the username supervisord expects for basic auth",
		}
	}
	if err := keyring.Set(KeyringService, username, password); err != nil {
		return &pkgerrors.ConfigError{
			Key:    "password_from_keyring",
			Reason: fmt.Sprintf("cannot store password for %q in keyring service %q", username, KeyringService),
			Cause:  err,
		}
	}
	return nil
}

// ManagerConfig returns the settings the Manager is built from.
func (c *Config) ManagerConfig() manager.Config {
	return manager.Config{
		URL:             c.ServerURL,
		Username:        c.Username,
		Password:        c.Password,
		Timeout:         c.Timeout,
		MaxInFlight:     c.MaxInFlight,
		LogBytesPerLine: c.LogBytesPerLine,
		MaxLogBytes:     c.MaxLogBytes,
	}
}

// LoggerConfig returns the logger configuration. Debug environment overrides
// still apply on top of the file settings.
func (c *Config) LoggerConfig() *log.Config {
	cfg := log.FromEnv()
	if os.Getenv(log.DebugEnv) == "" {
		cfg.Level = c.Log.Level
	}
	cfg.Format = log.Format(c.Log.Format)
	return cfg
}
