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

package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/tombee/supervisor-mcp/internal/tracing/export"
)

// Config selects the span exporter.
type Config struct {
	// Exporter is one of "", none, console, otlp or otlp_http.
	Exporter string

	// Endpoint is the collector address for the otlp exporters.
	Endpoint string

	// Insecure disables TLS to the collector.
	Insecure bool

	ServiceName    string
	ServiceVersion string

	// Writer receives console spans. Default: os.Stderr
	Writer io.Writer
}

// Provider owns the SDK tracer provider, if one was created.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Setup creates a tracer provider for cfg. With no exporter it returns a
// Provider whose TracerProvider is a no-op.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch cfg.Exporter {
	case "", "none":
		return &Provider{}, nil
	case "console":
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		exp, err = export.NewConsoleExporter(export.ConsoleConfig{Writer: w})
	case "otlp":
		exp, err = export.NewOTLPExporter(ctx, export.OTLPConfig{Endpoint: cfg.Endpoint, Insecure: cfg.Insecure})
	case "otlp_http":
		exp, err = export.NewOTLPHTTPExporter(ctx, export.OTLPHTTPConfig{Endpoint: cfg.Endpoint, Insecure: cfg.Insecure})
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, err
	}

	name := cfg.ServiceName
	if name == "" {
		name = "supervisor-mcp"
	}
	// Empty schema URL avoids conflicts when merging with the default resource.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(name),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp}, nil
}

// TracerProvider returns the provider to hand to instrumented components.
func (p *Provider) TracerProvider() trace.TracerProvider {
	if p == nil || p.tp == nil {
		return noop.NewTracerProvider()
	}
	return p.tp
}

// Enabled reports whether spans are exported anywhere.
func (p *Provider) Enabled() bool {
	return p != nil && p.tp != nil
}

// Shutdown flushes pending spans and releases the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
