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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts finished operations by name and result status
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_mcp_operations_total",
			Help: "Total manager operations by operation and result status",
		},
		[]string{"operation", "status"},
	)

	// rpcDuration tracks daemon call latency
	rpcDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supervisor_mcp_rpc_duration_seconds",
			Help:    "Supervisor XML-RPC call duration by method and outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "outcome"},
	)

	// rpcInFlight tracks calls currently running on workers, including
	// calls their callers have abandoned
	rpcInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supervisor_mcp_rpc_inflight",
			Help: "Number of supervisor XML-RPC calls currently in flight",
		},
	)

	// connectionTransitions counts connection state changes
	connectionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_mcp_connection_transitions_total",
			Help: "Total connection state transitions by new state",
		},
		[]string{"state"},
	)
)

// recordOperation increments the operation counter
func recordOperation(operation string, status Status) {
	operationsTotal.WithLabelValues(operation, string(status)).Inc()
}

// recordRPC observes one daemon call
func recordRPC(method string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = string(kindOf(err))
	}
	rpcDuration.WithLabelValues(method, outcome).Observe(elapsed.Seconds())
}
