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

package mount

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/moby/sys/mountinfo"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Driver attaches and detaches block devices. Implementations report the
// exit status of the OS operation; err is reserved for failures to run it.
type Driver interface {
	Mount(ctx context.Context, device, point string) (exitCode int, err error)
	Unmount(ctx context.Context, point string) (exitCode int, err error)
}

// 🏃 CommandRunner runs an external command and reports its exit status
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (exitCode int, err error)
}

// ExecRunner runs commands with os/exec, logging their combined output.
type ExecRunner struct{}

// Run executes name with args. A command that starts and exits nonzero is not
// an error; only a command that cannot be started is.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (int, error) {
	logger := zerolog.Ctx(ctx)
	cmdline := shellquote.Join(append([]string{name}, args...)...)
	logger.Debug().Str("cmd", cmdline).Msg("running command")

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := strings.TrimSpace(out.String())

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		if output != "" {
			logger.Debug().Str("cmd", cmdline).Str("output", output).Msg("command output")
		}
		return 0, nil
	case errors.As(err, &exitErr):
		logger.Warn().Str("cmd", cmdline).Int("exit_code", exitErr.ExitCode()).Str("output", output).Msg("command failed")
		return exitErr.ExitCode(), nil
	default:
		return -1, errors.Errorf("running %s: %w", cmdline, err)
	}
}

// 💾 ExecDriver mounts with the mount(8) and umount(8) commands
type ExecDriver struct {
	runner  CommandRunner
	mounted func(point string) (bool, error)
}

// NewExecDriver returns a driver that runs mount/umount through runner.
func NewExecDriver(runner CommandRunner) *ExecDriver {
	return &ExecDriver{
		runner:  runner,
		mounted: mountinfo.Mounted,
	}
}

func (d *ExecDriver) Mount(ctx context.Context, device, point string) (int, error) {
	code, err := d.runner.Run(ctx, "mount", device, point)
	if err != nil || code != 0 {
		return code, err
	}

	// a zero exit that left nothing in the mount table is suspicious but not fatal
	if ok, merr := d.mounted(point); merr != nil {
		zerolog.Ctx(ctx).Debug().Err(merr).Str("mountpoint", point).Msg("could not read mount table")
	} else if !ok {
		zerolog.Ctx(ctx).Warn().Str("device", device).Str("mountpoint", point).Msg("mount reported success but mountpoint is not in the mount table")
	}
	return 0, nil
}

func (d *ExecDriver) Unmount(ctx context.Context, point string) (int, error) {
	return d.runner.Run(ctx, "umount", point)
}
