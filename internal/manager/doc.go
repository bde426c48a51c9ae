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
Package manager is the adapter between front ends (the supctl CLI and the MCP
server) and a supervisord daemon.

A Manager owns one daemon handle and exposes one method per capability:

	m, err := manager.New(manager.Config{URL: "http://localhost:9001/RPC2"})
	if err != nil {
	    return err
	}
	defer m.Close()

	res := m.Restart(ctx, "web")
	if res.IsError() {
	    fmt.Println(res.Message)
	}

Every operation returns a Result, the {status, message, data} envelope both
front ends render. Operations never return Go errors and never panic; every
failure of the remote call layer is classified into a Kind and folded into an
error Result.

# Concurrency

Daemon calls are blocking. Each call runs on a worker goroutine gated by a
weighted semaphore (Config.MaxInFlight) and the caller waits for either the
worker or its own context. A call abandoned by its caller runs to completion
in the background and releases its slot; the handle holds no per-call state,
so abandoning is always safe.

Operations are not serialized against each other. Within one operation the
sub-calls happen in order: Restart's stop completes before its start is sent.

# Connection lifecycle

The connection starts unconnected. The first operation (or Connect) validates
it with supervisor.getState. Any connection-class failure marks it broken, and
the next operation dials a fresh handle and validates it again.
*/
package manager
