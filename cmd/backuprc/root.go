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

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/backuprc/pkg/config"
	"github.com/walteh/backuprc/pkg/engine"
	"github.com/walteh/backuprc/pkg/engine/rclone"
	"github.com/walteh/backuprc/pkg/failure"
	runlog "github.com/walteh/backuprc/pkg/log"
	"github.com/walteh/backuprc/pkg/mount"
	"github.com/walteh/backuprc/pkg/provision"
	"github.com/walteh/backuprc/pkg/run"
	"github.com/walteh/backuprc/pkg/transfer"
	"gitlab.com/tozd/go/errors"
)

// 🚪 Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// Progress display modes.
const (
	progressAuto   = "auto"
	progressAlways = "always"
	progressNever  = "never"
)

// rootOpts holds the command line flags
type rootOpts struct {
	debug            bool
	remotePolicy     string
	onTransferError  string
	onProvisionError string
	progress         string
	rcloneBinary     string
	rcloneConfig     string
}

// exitError carries the process exit code of a failed run
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func newRootCommand(opts *rootOpts, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "backuprc [flags] <config-file>",
		Short:         "Copy a remote into a local backup directory",
		Long:          "backuprc provisions an rclone remote, optionally mounts the backup device, copies the remote into the local path and always unmounts and ships the run log afterwards.",
		Version:       formatVersion(),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(cmd.Context(), opts, args[0], stdout, stderr)
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
	flags.StringVar(&opts.remotePolicy, "remote-policy", "", "reuse or recreate an existing remote (overrides remote_policy)")
	flags.StringVar(&opts.onTransferError, "on-transfer-error", "", "abort or continue when the copy fails (overrides on_transfer_error)")
	flags.StringVar(&opts.onProvisionError, "on-provision-error", "", "cleanup or abort when provisioning fails (overrides on_provision_error)")
	flags.StringVar(&opts.progress, "progress", progressAuto, "progress display: auto, always or never")
	flags.StringVar(&opts.rcloneBinary, "rclone", rclone.DefaultBinary, "path to the rclone binary")
	flags.StringVar(&opts.rcloneConfig, "rclone-config", "", "rclone config file, rclone's default when empty")

	return cmd
}

// execute runs the root command and maps the result to an exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &rootOpts{}
	cmd := newRootCommand(opts, stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.code != exitOK {
			pterm.Error.WithWriter(stderr).Println(ee.err.Error())
		}
		return ee.code
	}

	// anything cobra rejects before RunE is a usage error
	fmt.Fprintf(stderr, "Error: %s\n\n%s", err, cmd.UsageString())
	return exitUsage
}

// overrides applies non-empty flag values on top of the file configuration.
func (o *rootOpts) overrides(cfg *config.RunConfig) *config.RunConfig {
	for key, value := range map[string]string{
		config.KeyRemotePolicy:     o.remotePolicy,
		config.KeyOnTransferError:  o.onTransferError,
		config.KeyOnProvisionError: o.onProvisionError,
	} {
		if value != "" {
			cfg = cfg.With(key, value)
		}
	}
	return cfg
}

func (o *rootOpts) interactive(w io.Writer) (bool, error) {
	switch o.progress {
	case progressAlways:
		return true, nil
	case progressNever:
		return false, nil
	case progressAuto, "":
		f, ok := w.(*os.File)
		return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())), nil
	}
	return false, failure.Configurationf("parse --progress", "unsupported progress mode %q, options: auto, always, never", o.progress)
}

func (o *rootOpts) engineLogLevel(cfg *config.RunConfig) engine.LogLevel {
	if o.debug {
		return engine.LogLevelDebug
	}
	if v := cfg.String(config.KeyLogLevel); v != "" {
		if level, err := engine.ParseLogLevel(v); err == nil {
			return level
		}
	}
	return engine.LogLevelInfo
}

func usageFailure(err error) error {
	return &exitError{code: exitUsage, err: err}
}

// 🎯 runBackup loads the configuration and drives one run.
func runBackup(ctx context.Context, opts *rootOpts, configPath string, stdout, stderr io.Writer) error {
	level := zerolog.InfoLevel
	if opts.debug {
		level = zerolog.DebugLevel
	}
	bootLogger := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).Level(level).With().Timestamp().Logger()
	ctx = bootLogger.WithContext(ctx)

	console := runlog.NewConsole(stdout)
	console.Header("using config file " + configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return usageFailure(err)
	}
	cfg = opts.overrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return usageFailure(err)
	}

	remotePolicy, err := provision.ParsePolicy(cfg.String(config.KeyRemotePolicy))
	if err != nil {
		return usageFailure(err)
	}
	transferPolicy, err := run.ParseFailurePolicy(cfg.String(config.KeyOnTransferError))
	if err != nil {
		return usageFailure(err)
	}
	provisionPolicy, err := run.ParseProvisionFailurePolicy(cfg.String(config.KeyOnProvisionError))
	if err != nil {
		return usageFailure(err)
	}
	interactive, err := opts.interactive(stderr)
	if err != nil {
		return usageFailure(err)
	}

	logOpts := runlog.OptionsFrom(cfg)
	logOpts.Console = stderr
	logOpts.NoColor = !interactive
	logOpts.Level = level
	rl, err := runlog.Open(ctx, logOpts)
	if err != nil {
		return &exitError{code: exitFailure, err: errors.Errorf("opening run log: %w", err)}
	}
	defer func() {
		if err := rl.Close(); err != nil {
			bootLogger.Warn().Err(err).Msg("closing run log")
		}
	}()
	ctx = rl.WithContext(ctx)

	var rcOpts []rclone.Option
	if opts.rcloneConfig != "" {
		rcOpts = append(rcOpts, rclone.WithConfigFile(opts.rcloneConfig))
	}
	eng := rclone.New(opts.rcloneBinary, rcOpts...)

	var sink engine.ProgressSink
	if interactive {
		sink = transfer.NewBarReporter(stderr, "copying")
	} else {
		sink = transfer.LogReporter(ctx)
	}

	coord, err := run.New(run.Options{
		Engine:          eng,
		Provisioner:     provision.New(eng, remotePolicy),
		Mounts:          mount.NewController(mount.NewExecDriver(mount.ExecRunner{})),
		Transfers:       transfer.NewRunner(eng, transfer.WithProgress(sink)),
		TransferPolicy:  transferPolicy,
		ProvisionPolicy: provisionPolicy,
		EngineLogLevel:  opts.engineLogLevel(cfg),
		LogFile:         rl.Path,
	})
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}

	out, err := coord.Run(ctx, cfg)
	console.Summary(out)

	if err != nil {
		if failure.IsKind(err, failure.KindConfiguration) {
			return usageFailure(err)
		}
		return &exitError{code: exitFailure, err: err}
	}
	return nil
}
