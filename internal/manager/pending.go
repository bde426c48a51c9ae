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
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// ProcessSpec describes a program to add.
type ProcessSpec struct {
	Name        string
	Command     string
	Directory   string
	Autostart   bool
	Autorestart string
	Numprocs    int
}

// Setting is one key of a program section.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PendingConfig is a program section the caller has to install by hand.
type PendingConfig struct {
	Section      string    `json:"section"`
	Settings     []Setting `json:"settings"`
	Config       string    `json:"config"`
	Instructions []string  `json:"instructions"`
}

// AddProcess prepares the configuration for a new program. supervisord's API
// cannot register programs, so the daemon is never called and a valid spec
// always yields a warning carrying the PendingConfig.
func (m *Manager) AddProcess(ctx context.Context, spec ProcessSpec) Result {
	_, done := m.begin(ctx, "add_process", spec.Name)
	return done(addProcess(spec))
}

func addProcess(spec ProcessSpec) Result {
	if spec.Autorestart == "" {
		spec.Autorestart = "unexpected"
	}
	if spec.Numprocs == 0 {
		spec.Numprocs = 1
	}
	spec.Autorestart = strings.ToLower(spec.Autorestart)
	spec.Command = strings.TrimSpace(spec.Command)
	spec.Directory = strings.TrimSpace(spec.Directory)

	if err := validateProcessSpec(spec); err != nil {
		return failure("add", spec.Name, err)
	}

	pending, err := renderPendingConfig(spec)
	if err != nil {
		return Errorf(KindInvalidInput, "failed to render configuration for '%s': %v", spec.Name, err)
	}

	return Warning(KindUnsupported,
		fmt.Sprintf("process '%s' cannot be registered through the supervisor API; install the configuration below and reload", spec.Name),
		pending,
	)
}

func renderPendingConfig(spec ProcessSpec) (PendingConfig, error) {
	section := "program:" + spec.Name

	settings := []Setting{{Key: "command", Value: escapePercent(spec.Command)}}
	if spec.Numprocs > 1 {
		// supervisord refuses numprocs > 1 without a per-process name.
		settings = append(settings,
			Setting{Key: "process_name", Value: "%(program_name)s_%(process_num)02d"},
			Setting{Key: "numprocs", Value: strconv.Itoa(spec.Numprocs)},
		)
	}
	if spec.Directory != "" {
		settings = append(settings, Setting{Key: "directory", Value: escapePercent(spec.Directory)})
	}
	settings = append(settings,
		Setting{Key: "autostart", Value: strconv.FormatBool(spec.Autostart)},
		Setting{Key: "autorestart", Value: spec.Autorestart},
	)

	f := ini.Empty(ini.LoadOptions{IgnoreInlineComment: true})
	sec, err := f.NewSection(section)
	if err != nil {
		return PendingConfig{}, err
	}
	for _, s := range settings {
		if _, err := sec.NewKey(s.Key, s.Value); err != nil {
			return PendingConfig{}, err
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return PendingConfig{}, err
	}

	return PendingConfig{
		Section:  section,
		Settings: settings,
		Config:   strings.TrimSpace(buf.String()) + "\n",
		Instructions: []string{
			fmt.Sprintf("Save the configuration to a file included by supervisord.conf, e.g. /etc/supervisor/conf.d/%s.conf", spec.Name),
			"Run reload_config (supervisorctl reread) to have supervisord read it",
			fmt.Sprintf("Run supervisorctl update %s to create the process group", spec.Name),
		},
	}, nil
}

// interpolationRx matches what supervisord's %-interpolation accepts: a
// %(name)s expansion, an escaped %%, or a bare %.
var interpolationRx = regexp.MustCompile(`%\([A-Za-z0-9_]+\)[-#0 +]*[0-9]*(?:\.[0-9]+)?[diouxXeEfFgGcrs]|%%|%`)

// escapePercent doubles every % that does not start an expansion, so
// "date +%Y" survives supervisord's config parser.
func escapePercent(value string) string {
	return interpolationRx.ReplaceAllStringFunc(value, func(m string) string {
		if m == "%" {
			return "%%"
		}
		return m
	})
}
