// Copyright 2025 walteh LLC
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

// Package engine is the port to the copy engine that owns the remote registry
// and performs transfers. The rclone subpackage drives the real binary.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Engine is the black-box capability a backup run needs from the copy engine
type Engine interface {
	// RemoteExists reports whether a remote with this name is registered
	RemoteExists(ctx context.Context, name string) (bool, error)
	// CreateRemote registers a new remote
	CreateRemote(ctx context.Context, name string, typ RemoteType, creds Credentials) error
	// DeleteRemote removes a remote from the registry, if present
	DeleteRemote(ctx context.Context, name string) error
	// About returns capacity and usage of a remote
	About(ctx context.Context, name string) (*About, error)
	// Copy copies src to dst. sink may be nil.
	Copy(ctx context.Context, src, dst string, ignoreExisting bool, args []string, sink ProgressSink) error
	// SetLogLevel sets the verbosity of the engine's own logging
	SetLogLevel(level LogLevel)
}

// 📡 ProgressSink receives live transfer statistics
type ProgressSink interface {
	Progress(stats Stats)
}

// ProgressFunc adapts a function to a ProgressSink.
type ProgressFunc func(stats Stats)

func (f ProgressFunc) Progress(stats Stats) { f(stats) }

// 📊 Stats is a snapshot of a running transfer
type Stats struct {
	Bytes          int64   // bytes transferred so far
	TotalBytes     int64   // bytes expected in total, 0 while unknown
	Speed          float64 // bytes per second
	Transfers      int64   // files completed
	TotalTransfers int64   // files expected
	Errors         int64   // errors so far
}

// Percent returns completion in [0, 100]. Unknown totals report 0.
func (s Stats) Percent() float64 {
	if s.TotalBytes <= 0 {
		return 0
	}
	p := float64(s.Bytes) / float64(s.TotalBytes) * 100
	if p > 100 {
		return 100
	}
	return p
}

// String formats the snapshot for log lines and progress titles.
func (s Stats) String() string {
	return fmt.Sprintf("%s / %s (%.0f%%) at %s/s, %d/%d files, %d errors",
		humanize.IBytes(uint64(max(s.Bytes, 0))),
		humanize.IBytes(uint64(max(s.TotalBytes, 0))),
		s.Percent(),
		humanize.IBytes(uint64(max(s.Speed, 0))),
		s.Transfers, s.TotalTransfers, s.Errors)
}

// 💽 About is the engine-reported capacity of a remote. Fields the backend
// does not report are nil.
type About struct {
	Total   *int64 `json:"total,omitempty"`
	Used    *int64 `json:"used,omitempty"`
	Free    *int64 `json:"free,omitempty"`
	Trashed *int64 `json:"trashed,omitempty"`
	Other   *int64 `json:"other,omitempty"`
	Objects *int64 `json:"objects,omitempty"`
}

func (a *About) String() string {
	if a == nil {
		return "unavailable"
	}
	parts := []string{}
	add := func(name string, v *int64) {
		if v != nil {
			parts = append(parts, name+"="+humanize.IBytes(uint64(max(*v, 0))))
		}
	}
	add("total", a.Total)
	add("used", a.Used)
	add("free", a.Free)
	add("trashed", a.Trashed)
	add("other", a.Other)
	if a.Objects != nil {
		parts = append(parts, fmt.Sprintf("objects=%d", *a.Objects))
	}
	if len(parts) == 0 {
		return "empty"
	}
	return strings.Join(parts, " ")
}

// 🔐 Credentials is the authentication material used when creating a remote
type Credentials struct {
	KeyFile string
	Host    string
	User    string
}

// Params returns the credentials as ordered key=value pairs, skipping empty fields.
func (c Credentials) Params() []string {
	params := []string{}
	if c.Host != "" {
		params = append(params, "host="+c.Host)
	}
	if c.User != "" {
		params = append(params, "user="+c.User)
	}
	if c.KeyFile != "" {
		params = append(params, "key_file="+c.KeyFile)
	}
	return params
}

// 📢 LogLevel is the engine's own verbosity
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelNotice LogLevel = "NOTICE"
	LogLevelError  LogLevel = "ERROR"
)

// ParseLogLevel resolves a level name case-insensitively.
func ParseLogLevel(s string) (LogLevel, error) {
	switch l := LogLevel(strings.ToUpper(strings.TrimSpace(s))); l {
	case LogLevelDebug, LogLevelInfo, LogLevelNotice, LogLevelError:
		return l, nil
	}
	return "", errors.Errorf("unknown log level %q", s)
}
