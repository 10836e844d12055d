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

// Package run coordinates one backup run: provision the remote, mount the
// target, copy, then always unmount and ship the run log.
package run

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/walteh/backuprc/pkg/config"
	"github.com/walteh/backuprc/pkg/engine"
	"github.com/walteh/backuprc/pkg/failure"
	"github.com/walteh/backuprc/pkg/mount"
	"github.com/walteh/backuprc/pkg/provision"
	"github.com/walteh/backuprc/pkg/transfer"
	"gitlab.com/tozd/go/errors"
)

// Provisioner ensures the remote exists.
type Provisioner interface {
	Ensure(ctx context.Context, name, typeName string, creds engine.Credentials) (*provision.RemoteHandle, error)
}

// Mounter acquires and releases the optional mount.
type Mounter interface {
	Acquire(ctx context.Context, device, point string) (*mount.Session, error)
	Release(ctx context.Context, session *mount.Session) error
}

// Transferrer runs the copy.
type Transferrer interface {
	Run(ctx context.Context, handle *provision.RemoteHandle, cfg *config.RunConfig) (*transfer.Result, error)
}

// 🔧 Options contains the collaborators of a Coordinator
type Options struct {
	// Engine ships the run log and receives the log level
	Engine engine.Engine
	// Provisioner ensures the remote exists
	Provisioner Provisioner
	// Mounts acquires and releases the mount session
	Mounts Mounter
	// Transfers runs the copy
	Transfers Transferrer

	// TransferPolicy decides whether a failed copy is returned from Run
	TransferPolicy FailurePolicy
	// ProvisionPolicy decides whether cleanup follows a failed provisioning
	ProvisionPolicy ProvisionFailurePolicy
	// EngineLogLevel is applied to the engine at run start when set
	EngineLogLevel engine.LogLevel
	// LogFile is this run's log file, shipped when remote_log_path is set
	LogFile string
}

// 🎬 Coordinator drives a run through its states
type Coordinator struct {
	opts Options
}

// 🏭 New creates a coordinator with the given options
func New(opts Options) (*Coordinator, error) {
	if opts.Engine == nil {
		return nil, errors.Errorf("engine is required")
	}
	if opts.Provisioner == nil {
		return nil, errors.Errorf("provisioner is required")
	}
	if opts.Mounts == nil {
		return nil, errors.Errorf("mount controller is required")
	}
	if opts.Transfers == nil {
		return nil, errors.Errorf("transfer runner is required")
	}
	return &Coordinator{opts: opts}, nil
}

// 🎯 Run executes one backup run.
//
// Once provisioning has been attempted the run always walks Unmounting and
// ShippingLogs before returning, unless ProvisionFailureAbort stops it at a
// failed provisioning step. Cleanup runs on a context detached from ctx's
// cancellation, so an interrupted copy still unmounts and ships the log. A
// panic during the copy releases the mount and ships the log before it is
// re-raised. The returned error is the primary failure, except a
// TransferError under ContinueOnTransferError which is only recorded.
func (c *Coordinator) Run(ctx context.Context, cfg *config.RunConfig) (*Outcome, error) {
	logger := zerolog.Ctx(ctx)
	out := &Outcome{}

	c.enter(ctx, out, StateInit)
	if c.opts.EngineLogLevel != "" {
		c.opts.Engine.SetLogLevel(c.opts.EngineLogLevel)
	}
	logger.Info().Msg("Starting backup")
	logger.Debug().Interface("config", cfg.Redacted()).Str("source", cfg.Source()).Msg("run configuration")

	c.enter(ctx, out, StateProvisioning)
	handle, err := c.opts.Provisioner.Ensure(ctx, cfg.RemoteName(), cfg.String(config.KeyRemoteType), cfg.Credentials())
	if err != nil {
		logger.Error().Err(err).Str("remote", cfg.RemoteName()).Msg("provisioning failed")
		out.fail(err)
		if c.opts.ProvisionPolicy == ProvisionFailureAbort {
			out.settle()
			return out, err
		}
	}
	out.Remote = handle

	var session *mount.Session
	if !out.Failed() {
		c.enter(ctx, out, StateMounting)
		session, err = c.opts.Mounts.Acquire(ctx, cfg.MountDevice(), cfg.MountPoint())
		if err != nil {
			logger.Error().Err(err).
				Str("device", cfg.MountDevice()).
				Str("mountpoint", cfg.MountPoint()).
				Msg("mount failed")
			out.fail(err)
		}
	}

	if !out.Failed() {
		c.enter(ctx, out, StateTransferring)
		c.transfer(ctx, out, handle, session, cfg)
	}

	cleanupCtx := context.WithoutCancel(ctx)

	c.enter(ctx, out, StateUnmounting)
	c.release(cleanupCtx, out, session)

	c.enter(ctx, out, StateShippingLogs)
	c.shipLogs(cleanupCtx, out, cfg)

	c.enter(ctx, out, StateDone)
	out.settle()
	logger.Info().Str("status", out.Status.String()).Msg("Done!")

	if out.Failed() {
		if failure.IsKind(out.Primary, failure.KindTransfer) && c.opts.TransferPolicy == ContinueOnTransferError {
			logger.Warn().Err(out.Primary).Msg("copy failed, continuing as configured")
			return out, nil
		}
		return out, out.Primary
	}
	return out, nil
}

func (c *Coordinator) enter(ctx context.Context, out *Outcome, s State) {
	out.States = append(out.States, s)
	zerolog.Ctx(ctx).Debug().Str("state", s.String()).Msg("entering state")
}

// transfer runs the copy. A panic releases the mount and ships the log
// before it is re-raised.
func (c *Coordinator) transfer(ctx context.Context, out *Outcome, handle *provision.RemoteHandle, session *mount.Session, cfg *config.RunConfig) {
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().Interface("panic", r).Msg("copy panicked, running cleanup")
			cleanupCtx := context.WithoutCancel(ctx)
			c.enter(ctx, out, StateUnmounting)
			c.release(cleanupCtx, out, session)
			c.enter(ctx, out, StateShippingLogs)
			c.shipLogs(cleanupCtx, out, cfg)
			panic(r)
		}
	}()

	result, err := c.opts.Transfers.Run(ctx, handle, cfg)
	out.Transfer = result
	if err != nil {
		out.fail(err)
	}
}

func (c *Coordinator) release(ctx context.Context, out *Outcome, session *mount.Session) {
	if !session.Acquired() {
		return
	}
	if err := c.opts.Mounts.Release(ctx, session); err != nil {
		out.cleanupFailed(err)
	}
}

func (c *Coordinator) shipLogs(ctx context.Context, out *Outcome, cfg *config.RunConfig) {
	logger := zerolog.Ctx(ctx)

	remotePath := cfg.RemoteLogPath()
	if remotePath == "" {
		return
	}
	if c.opts.LogFile == "" {
		logger.Debug().Msg("no run log file, skipping log shipment")
		return
	}
	if _, err := os.Stat(c.opts.LogFile); err != nil {
		logger.Debug().Err(err).Str("log_file", c.opts.LogFile).Msg("run log file not readable, skipping log shipment")
		return
	}

	handle := out.Remote
	if handle == nil {
		handle = &provision.RemoteHandle{Name: cfg.RemoteName()}
	}
	dst := handle.Path(remotePath)

	if err := c.opts.Engine.Copy(ctx, c.opts.LogFile, dst, true, nil, nil); err != nil {
		err = failure.LogShip("ship "+c.opts.LogFile+" to "+dst, err)
		logger.Error().Err(err).Msg("could not ship run log")
		out.cleanupFailed(err)
		return
	}

	out.LogFile = c.opts.LogFile
	logger.Info().Str("destination", dst).Msg("Shipped run log")
}
