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
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/supervisor-mcp/internal/supervisor"
)

type outcome[T any] struct {
	val T
	err error
}

// call runs one blocking daemon call on a worker goroutine. The caller
// waits for the worker or for ctx, whichever finishes first. An abandoned
// worker keeps its semaphore slot until the daemon call returns.
func call[T any](ctx context.Context, m *Manager, method string, fn func(Daemon) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	h, err := m.conn.handle()
	if err != nil {
		return zero, err
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	// The span outlives the caller when the call is abandoned.
	_, span := m.tracer.Start(ctx, method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "xmlrpc"),
			attribute.String("rpc.method", method),
		),
	)

	done := make(chan outcome[T], 1)
	rpcInFlight.Inc()
	start := time.Now()

	go func() {
		var out outcome[T]
		defer func() {
			if r := recover(); r != nil {
				out = outcome[T]{err: &supervisor.ProtocolError{Method: method, Err: fmt.Errorf("panic in daemon call: %v", r)}}
			}

			elapsed := time.Since(start)
			rpcInFlight.Dec()
			recordRPC(method, out.err, elapsed)
			if out.err != nil {
				span.RecordError(out.err)
				span.SetStatus(codes.Error, string(kindOf(out.err)))
				if supervisor.IsConnectionError(out.err) {
					m.conn.markBroken(h, out.err)
				}
			}
			span.End()
			m.sem.Release(1)

			m.logger.Debug("daemon call finished",
				"method", method,
				"duration_ms", elapsed.Milliseconds(),
				"error", out.err,
			)
			done <- out
		}()

		out.val, out.err = fn(h.daemon)
	}()

	select {
	case out := <-done:
		return out.val, out.err
	case <-ctx.Done():
		m.logger.Debug("caller abandoned daemon call", "method", method, "error", ctx.Err())
		return zero, ctx.Err()
	}
}

// callErr is call for daemon methods that return only an error.
func callErr(ctx context.Context, m *Manager, method string, fn func(Daemon) error) error {
	_, err := call(ctx, m, method, func(d Daemon) (struct{}, error) {
		return struct{}{}, fn(d)
	})
	return err
}
