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

// Package transfer runs the copy from the provisioned remote into the local
// backup directory.
package transfer

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"
	"github.com/walteh/backuprc/pkg/config"
	"github.com/walteh/backuprc/pkg/engine"
	"github.com/walteh/backuprc/pkg/failure"
	"github.com/walteh/backuprc/pkg/provision"
)

// 📦 Result describes one copy invocation
type Result struct {
	Source         string
	Destination    string
	IgnoreExisting bool
	Args           []string
	Started        time.Time
	Duration       time.Duration
	Err            error // TransferError, nil on success
}

// Succeeded reports whether the copy finished without error.
func (r *Result) Succeeded() bool {
	return r != nil && r.Err == nil
}

// finisher is implemented by progress sinks that hold terminal state.
type finisher interface {
	Finish()
}

// 🚚 Runner invokes the engine's copy for a run
type Runner struct {
	engine engine.Engine
	clock  clock.Clock
	sink   engine.ProgressSink
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces the wall clock used to time the copy.
func WithClock(clk clock.Clock) Option {
	return func(r *Runner) { r.clock = clk }
}

// WithProgress routes engine statistics to sink.
func WithProgress(sink engine.ProgressSink) Option {
	return func(r *Runner) { r.sink = sink }
}

// NewRunner creates a runner for e.
func NewRunner(e engine.Engine, opts ...Option) *Runner {
	r := &Runner{engine: e, clock: clock.WallClock}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// 🎯 Run copies <remote>:<remote_path> to the local path.
//
// The result is returned whether or not the copy succeeds; on failure its Err
// and the returned error are the same TransferError.
func (r *Runner) Run(ctx context.Context, handle *provision.RemoteHandle, cfg *config.RunConfig) (*Result, error) {
	result := &Result{
		Source:         handle.Path(cfg.RemotePath()),
		Destination:    cfg.LocalPath(),
		IgnoreExisting: IgnoreExisting(cfg),
		Args:           BuildArgs(cfg),
	}

	logger := zerolog.Ctx(ctx).With().
		Str("source", result.Source).
		Str("destination", result.Destination).
		Logger()

	logger.Info().
		Bool("ignore_existing", result.IgnoreExisting).
		Strs("args", result.Args).
		Msg("Starting copy")

	result.Started = r.clock.Now()
	err := r.engine.Copy(ctx, result.Source, result.Destination, result.IgnoreExisting, result.Args, r.sink)
	result.Duration = r.clock.Now().Sub(result.Started)

	if f, ok := r.sink.(finisher); ok {
		f.Finish()
	}

	if err != nil {
		result.Err = failure.Transfer("copy "+result.Source+" to "+result.Destination, err)
		logger.Error().Err(err).Dur("duration", result.Duration).Msg("copy failed")
		return result, result.Err
	}

	logger.Info().Msgf("Copy completed, took %s", result.Duration)
	return result, nil
}
