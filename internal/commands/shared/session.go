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
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/supervisor-mcp/internal/config"
	"github.com/tombee/supervisor-mcp/internal/log"
	"github.com/tombee/supervisor-mcp/internal/manager"
	"github.com/tombee/supervisor-mcp/internal/tracing"
)

// Session bundles what a command needs to talk to supervisord.
type Session struct {
	Config  *config.Config
	Logger  *slog.Logger
	Manager *manager.Manager

	tracing *tracing.Provider
}

// Open loads configuration, applies the --url override and builds a Manager.
// Interactive commands log at warn unless --verbose is given, so routine
// connection messages stay out of the way.
func Open(cmd *cobra.Command) (*Session, error) {
	return open(cmd, true)
}

// OpenServer is Open for long-running commands; the configured log level is
// used as is.
func OpenServer(cmd *cobra.Command) (*Session, error) {
	return open(cmd, false)
}

func open(cmd *cobra.Command, interactive bool) (*Session, error) {
	ctx := commandContext(cmd)

	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	logCfg := cfg.LoggerConfig()
	logCfg.Output = cmd.ErrOrStderr()
	switch {
	case GetVerbose():
		logCfg.Level = "debug"
	case GetQuiet():
		logCfg.Level = "error"
	case interactive && log.ParseLevel(logCfg.Level) < slog.LevelWarn:
		logCfg.Level = "warn"
	}
	logger := log.New(logCfg)

	v, _, _ := GetVersion()
	tp, err := tracing.Setup(ctx, tracing.Config{
		Exporter:       cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		ServiceName:    cmd.Root().Name(),
		ServiceVersion: v,
		Writer:         cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, NewConfigError("failed to set up tracing", err)
	}

	m, err := manager.New(cfg.ManagerConfig(),
		manager.WithLogger(logger),
		manager.WithTracerProvider(tp.TracerProvider()),
	)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, NewInvalidInputError("invalid supervisor endpoint", err)
	}

	logger.Debug("session opened",
		log.URLKey, log.SanitizeURL(m.URL()),
		"config", cfg.Path(),
		"tracing", tp.Enabled())

	return &Session{
		Config:  cfg,
		Logger:  logger,
		Manager: m,
		tracing: tp,
	}, nil
}

// LoadConfig loads configuration from --config (or the default path) and
// applies the --url override.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}
	if u := GetURL(); u != "" {
		cfg.ServerURL = u
	}
	return cfg, nil
}

// Close closes the Manager and flushes pending spans.
func (s *Session) Close() error {
	err := s.Manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if terr := s.tracing.Shutdown(ctx); terr != nil {
		s.Logger.Warn("failed to flush traces", log.Error(terr))
	}
	return err
}

// Call runs op with a spinner on stderr while it is outstanding.
func (s *Session) Call(cmd *cobra.Command, message string, op func(ctx context.Context) manager.Result) manager.Result {
	ctx := commandContext(cmd)
	if GetJSON() || GetQuiet() {
		return op(ctx)
	}

	spinner := NewSpinner()
	spinner.Start(message)
	defer spinner.Stop()
	return op(ctx)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
