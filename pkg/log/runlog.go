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

// Package log sets up the per-run log file and the console output of a run.
package log

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/juju/lumberjack/v2"
	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/walteh/backuprc/pkg/config"
	"gitlab.com/tozd/go/errors"
)

// 📁 Defaults for the run log location
const (
	DefaultDir      = "~/.backup_logs"
	DefaultMaxFiles = config.DefaultMaxLogFiles
	logPattern      = "*.log"
	maxFileSizeMB   = 100
)

// DefaultFileName returns the log file name for a run started at t.
func DefaultFileName(t time.Time) string {
	return t.Format("2006-01-02_15-04-05") + "_backup.log"
}

// 🔧 Options controls where a run log goes
type Options struct {
	// Dir holds the run logs, DefaultDir when empty
	Dir string
	// FileName is the log file name, DefaultFileName(Now()) when empty
	FileName string
	// MaxFiles is the number of run logs kept including the new one
	MaxFiles int
	// Console receives human readable output, nil disables it
	Console io.Writer
	// NoColor disables console colors
	NoColor bool
	// Level is the minimum level written to both sinks
	Level zerolog.Level
	// Now is the clock used for the default file name
	Now func() time.Time
}

// 📝 RunLog is an open run log
type RunLog struct {
	Path   string
	Logger zerolog.Logger

	file *lumberjack.Logger
}

// OptionsFrom fills log options from the run configuration.
func OptionsFrom(cfg *config.RunConfig) Options {
	return Options{
		Dir:      cfg.LogPath(),
		FileName: cfg.LogFileName(),
		MaxFiles: cfg.MaxLogFiles(),
	}
}

// 🏭 Open prunes old run logs and opens this run's log file in append mode.
func Open(ctx context.Context, opts Options) (*RunLog, error) {
	dir := opts.Dir
	if dir == "" {
		dir = DefaultDir
	}
	dir, err := homedir.Expand(dir)
	if err != nil {
		return nil, errors.Errorf("expanding log directory %s: %w", opts.Dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Errorf("creating log directory %s: %w", dir, err)
	}

	maxFiles := opts.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	removed, err := Prune(dir, maxFiles-1)
	if err != nil {
		return nil, errors.Errorf("pruning run logs: %w", err)
	}

	name := opts.FileName
	if name == "" {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		name = DefaultFileName(now())
	}

	file := &lumberjack.Logger{
		Filename:  filepath.Join(dir, name),
		MaxSize:   maxFileSizeMB,
		LocalTime: true,
	}

	var w io.Writer = file
	if opts.Console != nil {
		w = zerolog.MultiLevelWriter(file, zerolog.ConsoleWriter{
			Out:        opts.Console,
			NoColor:    opts.NoColor,
			TimeFormat: time.TimeOnly,
		})
	}

	rl := &RunLog{
		Path:   file.Filename,
		Logger: zerolog.New(w).Level(opts.Level).With().Timestamp().Logger(),
		file:   file,
	}

	for _, r := range removed {
		rl.Logger.Debug().Str("file", r).Msg("pruned old run log")
	}

	zerolog.Ctx(ctx).Debug().Str("path", rl.Path).Msg("opened run log")
	return rl, nil
}

// WithContext attaches the run logger to ctx.
func (l *RunLog) WithContext(ctx context.Context) context.Context {
	return l.Logger.WithContext(ctx)
}

// Close flushes and closes the log file.
func (l *RunLog) Close() error {
	if err := l.file.Close(); err != nil {
		return errors.Errorf("closing run log: %w", err)
	}
	return nil
}

// 🧹 Prune deletes the oldest *.log files in dir until at most keep remain.
// It returns the removed paths, oldest first.
func Prune(dir string, keep int) ([]string, error) {
	if keep < 0 {
		keep = 0
	}

	matches, err := doublestar.Glob(os.DirFS(dir), logPattern)
	if err != nil {
		return nil, errors.Errorf("listing %s in %s: %w", logPattern, dir, err)
	}
	if len(matches) <= keep {
		return nil, nil
	}

	type entry struct {
		path    string
		modTime time.Time
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		path := filepath.Join(dir, m)
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Errorf("stat %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		entries = append(entries, entry{path: path, modTime: info.ModTime()})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].path < entries[j].path
		}
		return entries[i].modTime.Before(entries[j].modTime)
	})

	var removed []string
	for len(entries)-len(removed) > keep {
		path := entries[len(removed)].path
		if err := os.Remove(path); err != nil {
			return removed, errors.Errorf("removing %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}
