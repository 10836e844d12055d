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

// Package rclone implements engine.Engine by running the rclone binary.
package rclone

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
	"github.com/walteh/backuprc/pkg/engine"
	"gitlab.com/tozd/go/errors"
)

// DefaultBinary is looked up on PATH when no binary is configured.
const DefaultBinary = "rclone"

// 🛰️ Engine drives an rclone binary
type Engine struct {
	binary     string
	configFile string

	mu    sync.Mutex
	level engine.LogLevel
}

var _ engine.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithConfigFile points rclone at a specific registry file instead of its default.
func WithConfigFile(path string) Option {
	return func(e *Engine) { e.configFile = path }
}

// 🏭 New creates an engine running binary, or DefaultBinary when empty.
func New(binary string, opts ...Option) *Engine {
	if binary == "" {
		binary = DefaultBinary
	}
	e := &Engine{binary: binary, level: engine.LogLevelNotice}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetLogLevel sets the --log-level passed to every invocation.
func (e *Engine) SetLogLevel(level engine.LogLevel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.level = level
}

func (e *Engine) globalArgs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	args := []string{"--log-level=" + string(e.level)}
	if e.configFile != "" {
		args = append(args, "--config="+e.configFile)
	}
	return args
}

// 🔍 RemoteExists checks `rclone listremotes` for name
func (e *Engine) RemoteExists(ctx context.Context, name string) (bool, error) {
	var out bytes.Buffer
	if err := e.run(ctx, []string{"listremotes"}, &out, nil); err != nil {
		return false, errors.Errorf("listing remotes: %w", err)
	}
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.TrimSuffix(strings.TrimSpace(line), ":") == name {
			return true, nil
		}
	}
	return false, nil
}

// 🆕 CreateRemote runs `rclone config create`
func (e *Engine) CreateRemote(ctx context.Context, name string, typ engine.RemoteType, creds engine.Credentials) error {
	args := append([]string{"config", "create", name, typ.String()}, creds.Params()...)
	args = append(args, "--non-interactive")
	if err := e.run(ctx, args, io.Discard, nil); err != nil {
		return errors.Errorf("creating remote %s: %w", name, err)
	}
	return nil
}

// 🗑️ DeleteRemote runs `rclone config delete`
func (e *Engine) DeleteRemote(ctx context.Context, name string) error {
	if err := e.run(ctx, []string{"config", "delete", name}, io.Discard, nil); err != nil {
		return errors.Errorf("deleting remote %s: %w", name, err)
	}
	return nil
}

// 💽 About runs `rclone about --json`
func (e *Engine) About(ctx context.Context, name string) (*engine.About, error) {
	var out bytes.Buffer
	if err := e.run(ctx, []string{"about", name + ":", "--json"}, &out, nil); err != nil {
		return nil, errors.Errorf("fetching about for %s: %w", name, err)
	}
	about := &engine.About{}
	if err := json.Unmarshal(out.Bytes(), about); err != nil {
		return nil, errors.Errorf("decoding about output: %w", err)
	}
	return about, nil
}

// 📦 Copy runs `rclone copy`.
//
// Each entry of args may hold several shell words ("--transfers 8"); entries
// are split with shell quoting rules before being passed on. When sink is set
// rclone emits JSON stats on stderr which are decoded and forwarded.
func (e *Engine) Copy(ctx context.Context, src, dst string, ignoreExisting bool, args []string, sink engine.ProgressSink) error {
	cmdArgs := []string{"copy", src, dst}
	if ignoreExisting {
		cmdArgs = append(cmdArgs, "--ignore-existing")
	}
	for _, a := range args {
		words, err := shellquote.Split(a)
		if err != nil {
			return errors.Errorf("splitting argument %q: %w", a, err)
		}
		cmdArgs = append(cmdArgs, words...)
	}
	if sink != nil {
		cmdArgs = append(cmdArgs, "--use-json-log", "--stats=1s", "--stats-log-level=NOTICE")
	}

	var onLine func(string)
	if sink != nil {
		onLine = func(line string) {
			if stats, ok := parseStats(line); ok {
				sink.Progress(stats)
			}
		}
	}

	if err := e.run(ctx, cmdArgs, io.Discard, onLine); err != nil {
		return errors.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return nil
}

// jsonLogLine is the subset of rclone's --use-json-log output we read.
type jsonLogLine struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
	Stats *struct {
		Bytes          int64   `json:"bytes"`
		TotalBytes     int64   `json:"totalBytes"`
		Speed          float64 `json:"speed"`
		Transfers      int64   `json:"transfers"`
		TotalTransfers int64   `json:"totalTransfers"`
		Errors         int64   `json:"errors"`
	} `json:"stats,omitempty"`
}

func parseStats(line string) (engine.Stats, bool) {
	var l jsonLogLine
	if err := json.Unmarshal([]byte(line), &l); err != nil || l.Stats == nil {
		return engine.Stats{}, false
	}
	return engine.Stats{
		Bytes:          l.Stats.Bytes,
		TotalBytes:     l.Stats.TotalBytes,
		Speed:          l.Stats.Speed,
		Transfers:      l.Stats.Transfers,
		TotalTransfers: l.Stats.TotalTransfers,
		Errors:         l.Stats.Errors,
	}, true
}

// run executes rclone, streaming stderr lines to the context logger and to
// onLine. The last stderr lines are attached to the returned error.
func (e *Engine) run(ctx context.Context, args []string, stdout io.Writer, onLine func(string)) error {
	logger := zerolog.Ctx(ctx)
	full := append(append([]string{}, args...), e.globalArgs()...)
	cmdline := shellquote.Join(append([]string{e.binary}, full...)...)
	logger.Debug().Str("cmd", cmdline).Msg("running rclone")

	cmd := exec.CommandContext(ctx, e.binary, full...)
	cmd.Stdout = stdout
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Errorf("opening stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return errors.Errorf("starting %s: %w", e.binary, err)
	}

	tail := newTail(5)
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if onLine != nil {
			onLine(line)
		}
		if _, isStats := parseStats(line); isStats {
			continue
		}
		tail.add(line)
		logger.Debug().Str("source", "rclone").Msg(line)
	}
	// keep the pipe drained if the scanner gave up on an oversized line
	_, _ = io.Copy(io.Discard, stderr)

	if err := cmd.Wait(); err != nil {
		if msg := tail.String(); msg != "" {
			return errors.Errorf("%s: %w: %s", cmdline, err, msg)
		}
		return errors.Errorf("%s: %w", cmdline, err)
	}
	return nil
}

// tail keeps the last n lines written to it.
type tail struct {
	n     int
	lines []string
}

func newTail(n int) *tail { return &tail{n: n} }

func (t *tail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tail) String() string { return strings.Join(t.lines, "; ") }
