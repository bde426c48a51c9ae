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

/*
Package tracing sets up the OpenTelemetry tracer provider for supctl and the
MCP server.

The manager records one span per operation and one client span per
supervisor RPC. Spans go nowhere unless an exporter is configured:

	provider, err := tracing.Setup(ctx, tracing.Config{
	    Exporter:       "otlp",
	    Endpoint:       "localhost:4317",
	    Insecure:       true,
	    ServiceName:    "supervisor-mcp",
	    ServiceVersion: version,
	})
	defer provider.Shutdown(ctx)

	m, err := manager.New(cfg, manager.WithTracerProvider(provider.TracerProvider()))

Exporters live in the export subpackage: console (stdouttrace, written to
stderr so stdout stays free for the MCP protocol), otlp (gRPC) and otlp_http.
*/
package tracing
