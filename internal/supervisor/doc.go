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
Package supervisor provides an XML-RPC client for the supervisord control API.

The client is a thin, synchronous handle over the daemon's fixed method set
(supervisor.startProcess, supervisor.getAllProcessInfo, ...). Every call blocks
until the daemon replies or the transport times out; callers that must not
block should dispatch calls to a worker, as internal/manager does.

# Endpoints

The endpoint is a URL pointing at the daemon's RPC handler:

	http://localhost:9001/RPC2        (inet_http_server, the default)
	https://supervisor.example:9001/RPC2
	unix:///var/run/supervisor.sock   (unix_http_server)

# Errors

Errors returned by the client are always one of three types:

	*ConnectionError  endpoint unreachable, refused, timed out or rejected credentials
	*Fault            the daemon answered with an XML-RPC fault (see the Fault* codes)
	*ProtocolError    the reply could not be decoded

Fault codes are recovered structurally so callers can match on them:

	if f, ok := supervisor.AsFault(err); ok && f.Code == supervisor.FaultNotRunning {
	    // already stopped
	}
*/
package supervisor
