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

package supervisortest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/tombee/supervisor-mcp/internal/supervisor"
)

// ServerOption configures a test server.
type ServerOption func(*handler)

// WithBasicAuth requires HTTP basic auth on every request.
func WithBasicAuth(username, password string) ServerOption {
	return func(h *handler) {
		h.username = username
		h.password = password
	}
}

// WithHook runs fn before each call of method is dispatched, outside the
// daemon's lock. A hook that blocks holds only that one call.
func WithHook(method string, fn func()) ServerOption {
	return func(h *handler) {
		if h.hooks == nil {
			h.hooks = make(map[string]func())
		}
		h.hooks[method] = fn
	}
}

// NewServer serves d over XML-RPC on a loopback TCP listener. The server is
// closed when the test ends. The RPC URL is server.URL + "/RPC2".
func NewServer(t testing.TB, d *FakeDaemon, opts ...ServerOption) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newHandler(d, opts))
	t.Cleanup(srv.Close)
	return srv
}

// NewUnixServer serves d over XML-RPC on a Unix socket at socketPath.
func NewUnixServer(t testing.TB, d *FakeDaemon, socketPath string, opts ...ServerOption) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen on %s: %v", socketPath, err)
	}
	srv := httptest.NewUnstartedServer(newHandler(d, opts))
	srv.Listener.Close()
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

type handler struct {
	daemon   *FakeDaemon
	username string
	password string
	hooks    map[string]func()
}

func newHandler(d *FakeDaemon, opts []ServerOption) *handler {
	h := &handler{daemon: d}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type methodCall struct {
	XMLName xml.Name `xml:"methodCall"`
	Method  string   `xml:"methodName"`
	Params  []param  `xml:"params>param"`
}

type param struct {
	Value rawValue `xml:"value"`
}

type rawValue struct {
	String  *string `xml:"string"`
	Int     *string `xml:"int"`
	I4      *string `xml:"i4"`
	Boolean *string `xml:"boolean"`
	Text    string  `xml:",chardata"`
}

func (v rawValue) asString() string {
	if v.String != nil {
		return *v.String
	}
	return v.Text
}

func (v rawValue) asInt() (int, error) {
	s := v.Text
	switch {
	case v.Int != nil:
		s = *v.Int
	case v.I4 != nil:
		s = *v.I4
	}
	return strconv.Atoi(strings.TrimSpace(s))
}

func (v rawValue) asBool() bool {
	return v.Boolean != nil && strings.TrimSpace(*v.Boolean) == "1"
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.username != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != h.username || pass != h.password {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var call methodCall
	if err := xml.Unmarshal(body, &call); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if hook := h.hooks[call.Method]; hook != nil {
		hook()
	}

	result, err := h.dispatch(call)
	w.Header().Set("Content-Type", "text/xml")
	if err != nil {
		var fault *supervisor.Fault
		if !errors.As(err, &fault) {
			fault = &supervisor.Fault{Code: supervisor.FaultFailed, String: "FAILED: " + err.Error()}
		}
		writeFault(w, fault)
		return
	}
	writeResult(w, result)
}

func (h *handler) dispatch(call methodCall) (any, error) {
	d := h.daemon
	p := call.Params
	need := func(n int) error {
		if len(p) < n {
			return &supervisor.Fault{Code: supervisor.FaultIncorrectParameters, String: "INCORRECT_PARAMETERS"}
		}
		return nil
	}

	switch call.Method {
	case "supervisor.startProcess", "supervisor.stopProcess":
		if err := need(1); err != nil {
			return nil, err
		}
		wait := true
		if len(p) > 1 {
			wait = p[1].Value.asBool()
		}
		var err error
		if call.Method == "supervisor.startProcess" {
			err = d.StartProcess(p[0].Value.asString(), wait)
		} else {
			err = d.StopProcess(p[0].Value.asString(), wait)
		}
		return true, err

	case "supervisor.getAllProcessInfo":
		infos, err := d.GetAllProcessInfo()
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(infos))
		for _, info := range infos {
			out = append(out, infoStruct(info))
		}
		return out, nil

	case "supervisor.getProcessInfo":
		if err := need(1); err != nil {
			return nil, err
		}
		info, err := d.GetProcessInfo(p[0].Value.asString())
		if err != nil {
			return nil, err
		}
		return infoStruct(info), nil

	case "supervisor.readProcessStdoutLog", "supervisor.readProcessStderrLog":
		if err := need(3); err != nil {
			return nil, err
		}
		offset, err := p[1].Value.asInt()
		if err != nil {
			return nil, &supervisor.Fault{Code: supervisor.FaultBadArguments, String: "BAD_ARGUMENTS"}
		}
		length, err := p[2].Value.asInt()
		if err != nil {
			return nil, &supervisor.Fault{Code: supervisor.FaultBadArguments, String: "BAD_ARGUMENTS"}
		}
		if call.Method == "supervisor.readProcessStdoutLog" {
			return d.ReadProcessStdoutLog(p[0].Value.asString(), offset, length)
		}
		return d.ReadProcessStderrLog(p[0].Value.asString(), offset, length)

	case "supervisor.getAPIVersion":
		return d.GetAPIVersion()
	case "supervisor.getSupervisorVersion":
		return d.GetSupervisorVersion()
	case "supervisor.getIdentification":
		return d.GetIdentification()
	case "supervisor.getPID":
		return d.GetPID()

	case "supervisor.getState":
		st, err := d.GetState()
		if err != nil {
			return nil, err
		}
		return map[string]any{"statecode": st.Code, "statename": st.Name}, nil

	case "supervisor.reloadConfig":
		c, err := d.ReloadConfig()
		if err != nil {
			return nil, err
		}
		return []any{[]any{strings2any(c.Added), strings2any(c.Changed), strings2any(c.Removed)}}, nil
	}

	return nil, &supervisor.Fault{Code: supervisor.FaultUnknownMethod, String: "UNKNOWN_METHOD"}
}

func infoStruct(info supervisor.ProcessInfo) map[string]any {
	return map[string]any{
		"name":           info.Name,
		"group":          info.Group,
		"description":    info.Description,
		"start":          info.Start,
		"stop":           info.Stop,
		"now":            info.Now,
		"state":          info.State,
		"statename":      info.StateName,
		"spawnerr":       info.SpawnErr,
		"exitstatus":     info.ExitStatus,
		"logfile":        info.Logfile,
		"stdout_logfile": info.StdoutLogfile,
		"stderr_logfile": info.StderrLogfile,
		"pid":            info.PID,
	}
}

func strings2any(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func writeResult(w io.Writer, v any) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0"?><methodResponse><params><param>`)
	encodeValue(&buf, v)
	buf.WriteString(`</param></params></methodResponse>`)
	_, _ = w.Write(buf.Bytes())
}

func writeFault(w io.Writer, f *supervisor.Fault) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0"?><methodResponse><fault>`)
	encodeValue(&buf, map[string]any{"faultCode": f.Code, "faultString": f.String})
	buf.WriteString(`</fault></methodResponse>`)
	_, _ = w.Write(buf.Bytes())
}

func encodeValue(buf *bytes.Buffer, v any) {
	buf.WriteString("<value>")
	switch x := v.(type) {
	case string:
		buf.WriteString("<string>")
		_ = xml.EscapeText(buf, []byte(x))
		buf.WriteString("</string>")
	case int:
		fmt.Fprintf(buf, "<int>%d</int>", x)
	case bool:
		if x {
			buf.WriteString("<boolean>1</boolean>")
		} else {
			buf.WriteString("<boolean>0</boolean>")
		}
	case []any:
		buf.WriteString("<array><data>")
		for _, item := range x {
			encodeValue(buf, item)
		}
		buf.WriteString("</data></array>")
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteString("<struct>")
		for _, k := range keys {
			buf.WriteString("<member><name>")
			_ = xml.EscapeText(buf, []byte(k))
			buf.WriteString("</name>")
			encodeValue(buf, x[k])
			buf.WriteString("</member>")
		}
		buf.WriteString("</struct>")
	default:
		panic(fmt.Sprintf("supervisortest: cannot encode %T", v))
	}
	buf.WriteString("</value>")
}
