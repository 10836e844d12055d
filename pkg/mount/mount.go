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

// Package mount attaches an optional block device for the duration of a run.
//
// Acquire and Release form a scoped pair: a session is either fully acquired
// or inert, and Release runs the unmount at most once per acquired session.
package mount

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/walteh/backuprc/pkg/failure"
	"gitlab.com/tozd/go/errors"
)

// 📌 Session is the record of one acquire attempt
type Session struct {
	Device string
	Point  string

	acquired bool
	released bool
}

// Acquired reports whether the device is currently mounted by this session.
func (s *Session) Acquired() bool {
	return s != nil && s.acquired && !s.released
}

// Configured reports whether both device and mountpoint were given.
func (s *Session) Configured() bool {
	return s != nil && s.Device != "" && s.Point != ""
}

func (s *Session) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s on %s", s.Device, s.Point)
}

// 🎮 Controller acquires and releases mount sessions through a Driver
type Controller struct {
	driver Driver
	stat   func(name string) (os.FileInfo, error)
}

// NewController creates a controller backed by driver.
func NewController(driver Driver) *Controller {
	return &Controller{
		driver: driver,
		stat:   os.Stat,
	}
}

// 🔒 Acquire mounts device on point.
//
// When either value is empty mounting is not configured and an inert session
// is returned without touching the driver. The mountpoint must already exist;
// it is never created. On any failure the returned session is not acquired.
func (c *Controller) Acquire(ctx context.Context, device, point string) (*Session, error) {
	logger := zerolog.Ctx(ctx)
	session := &Session{Device: device, Point: point}

	if !session.Configured() {
		if device != "" || point != "" {
			logger.Warn().Str("device", device).Str("mountpoint", point).Msg("mount needs both a device and a mountpoint, skipping")
		}
		return session, nil
	}

	op := "mount " + session.String()

	info, err := c.stat(point)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = errors.Errorf("mountpoint %s does not exist", point)
		}
		return session, failure.Precondition(op, err)
	}
	if !info.IsDir() {
		return session, failure.Precondition(op, errors.Errorf("mountpoint %s is not a directory", point))
	}

	code, err := c.driver.Mount(ctx, device, point)
	if err != nil {
		return session, failure.Mount(op, failure.NoExitCode, err)
	}
	if code != 0 {
		return session, failure.Mount(op, code, nil)
	}

	session.acquired = true
	logger.Info().Str("device", device).Str("mountpoint", point).Msgf("Mounted %s to %s", device, point)
	return session, nil
}

// 🔓 Release unmounts an acquired session.
//
// Inert, failed and already released sessions are ignored. The session is
// marked released even when the unmount fails, so the driver is invoked at
// most once. A failure is logged and returned as an UnmountError for the
// caller to record; it is never fatal.
func (c *Controller) Release(ctx context.Context, session *Session) error {
	if !session.Acquired() {
		return nil
	}
	session.released = true

	logger := zerolog.Ctx(ctx)
	op := "unmount " + session.String()

	code, err := c.driver.Unmount(ctx, session.Point)
	if err != nil {
		ferr := failure.Unmount(op, failure.NoExitCode, err)
		logger.Error().Err(ferr).Msg("unmount failed")
		return ferr
	}
	if code != 0 {
		ferr := failure.Unmount(op, code, nil)
		logger.Error().Err(ferr).Msg("unmount failed")
		return ferr
	}

	logger.Info().Str("device", session.Device).Str("mountpoint", session.Point).Msgf("Unmounted %s from %s", session.Device, session.Point)
	return nil
}
