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

package run

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/walteh/backuprc/pkg/config"
	"github.com/walteh/backuprc/pkg/engine"
	"github.com/walteh/backuprc/pkg/engine/enginetest"
	"github.com/walteh/backuprc/pkg/failure"
	"github.com/walteh/backuprc/pkg/mount"
	"github.com/walteh/backuprc/pkg/provision"
	"github.com/walteh/backuprc/pkg/transfer"
	"gitlab.com/tozd/go/errors"
)

// 🔧 MockDriver is a mock implementation of mount.Driver
type MockDriver struct {
	mock.Mock

	unmountCtxErrs []error // ctx.Err() seen by each Unmount call
}

func (m *MockDriver) Mount(ctx context.Context, device, point string) (int, error) {
	args := m.Called(device, point)
	return args.Int(0), args.Error(1)
}

func (m *MockDriver) Unmount(ctx context.Context, point string) (int, error) {
	m.unmountCtxErrs = append(m.unmountCtxErrs, ctx.Err())
	args := m.Called(point)
	return args.Int(0), args.Error(1)
}

var allStates = []State{
	StateInit,
	StateProvisioning,
	StateMounting,
	StateTransferring,
	StateUnmounting,
	StateShippingLogs,
	StateDone,
}

type fixture struct {
	ctx     context.Context
	engine  *enginetest.MockEngine
	driver  *MockDriver
	point   string
	logFile string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
	dir := t.TempDir()

	point := filepath.Join(dir, "mnt")
	require.NoError(t, os.Mkdir(point, 0o755))

	logFile := filepath.Join(dir, "run.log")
	require.NoError(t, os.WriteFile(logFile, []byte("log\n"), 0o644))

	f := &fixture{
		ctx:     logger.WithContext(context.Background()),
		engine:  &enginetest.MockEngine{},
		driver:  &MockDriver{},
		point:   point,
		logFile: logFile,
	}
	f.engine.On("SetLogLevel", engine.LogLevelInfo).Return()
	return f
}

func (f *fixture) coordinator(t *testing.T, mutate ...func(*Options)) *Coordinator {
	t.Helper()
	opts := Options{
		Engine:         f.engine,
		Provisioner:    provision.New(f.engine, provision.PolicyReuse),
		Mounts:         mount.NewController(f.driver),
		Transfers:      transfer.NewRunner(f.engine),
		EngineLogLevel: engine.LogLevelInfo,
		LogFile:        f.logFile,
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func (f *fixture) config(extra map[string]string) *config.RunConfig {
	values := map[string]string{
		"remote_name": "nas",
		"remote_type": "sftp",
		"remote_path": "/data",
		"local_path":  "/backup",
		"key_file":    "/keys/id",
		"host":        "nas.local",
		"user":        "backup",
	}
	for k, v := range extra {
		values[k] = v
	}
	return config.New(values)
}

func (f *fixture) withMount(extra map[string]string) map[string]string {
	if extra == nil {
		extra = map[string]string{}
	}
	extra["mount_device"] = "/dev/sdb1"
	extra["mountpoint"] = f.point
	return extra
}

func (f *fixture) expectRemote() {
	f.engine.On("RemoteExists", mock.Anything, "nas").Return(true, nil).Once()
	f.engine.On("About", mock.Anything, "nas").Return(&engine.About{}, nil).Once()
}

func (f *fixture) expectCopy(err error) *mock.Call {
	return f.engine.On("Copy", mock.Anything, "nas:/data", "/backup", true, []string{}, nil).Return(err).Once()
}

func (f *fixture) expectLogShip(err error) {
	f.engine.On("Copy", mock.Anything, f.logFile, "nas:logs/", true, []string(nil), nil).Return(err).Once()
}

func TestRunHappyPath(t *testing.T) {
	f := newFixture(t)
	f.expectRemote()
	f.driver.On("Mount", "/dev/sdb1", f.point).Return(0, nil).Once()
	f.expectCopy(nil)
	f.driver.On("Unmount", f.point).Return(0, nil).Once()
	f.expectLogShip(nil)

	out, err := f.coordinator(t).Run(f.ctx, f.config(f.withMount(map[string]string{"remote_log_path": "logs/"})))
	require.NoError(t, err)

	assert.Equal(t, allStates, out.States)
	assert.Equal(t, StatusSucceeded, out.Status)
	assert.False(t, out.Failed())
	assert.False(t, out.CleanupFailed())
	require.NotNil(t, out.Transfer)
	assert.True(t, out.Transfer.Succeeded())
	require.NotNil(t, out.Remote)
	assert.Equal(t, "nas", out.Remote.Name)
	assert.Equal(t, f.logFile, out.LogFile)

	f.driver.AssertExpectations(t)
	f.engine.AssertExpectations(t)
}

func TestRunWithoutMountNeverCallsDriver(t *testing.T) {
	f := newFixture(t)
	f.expectRemote()
	f.expectCopy(nil)

	out, err := f.coordinator(t).Run(f.ctx, f.config(nil))
	require.NoError(t, err)

	assert.Equal(t, allStates, out.States)
	assert.Empty(t, f.driver.Calls)
	assert.Empty(t, out.LogFile, "no remote_log_path means no shipment")
	f.engine.AssertExpectations(t)
}

func TestRunTransferFailureReleasesMount(t *testing.T) {
	f := newFixture(t)
	f.expectRemote()
	f.driver.On("Mount", "/dev/sdb1", f.point).Return(0, nil).Once()
	f.expectCopy(errors.New("connection reset"))
	f.driver.On("Unmount", f.point).Return(0, nil).Once()

	out, err := f.coordinator(t).Run(f.ctx, f.config(f.withMount(nil)))
	require.Error(t, err)

	assert.True(t, failure.IsKind(err, failure.KindTransfer))
	assert.Equal(t, err, out.Err())
	assert.Empty(t, out.Cleanup)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, allStates, out.States)
	f.driver.AssertNumberOfCalls(t, "Unmount", 1)
}

func TestRunEverythingFails(t *testing.T) {
	f := newFixture(t)
	f.expectRemote()
	f.driver.On("Mount", "/dev/sdb1", f.point).Return(0, nil).Once()
	f.expectCopy(errors.New("disk full"))
	f.driver.On("Unmount", f.point).Return(32, nil).Once()
	f.expectLogShip(errors.New("remote gone"))

	out, err := f.coordinator(t).Run(f.ctx, f.config(f.withMount(map[string]string{"remote_log_path": "logs/"})))
	require.Error(t, err)

	assert.True(t, failure.IsKind(out.Primary, failure.KindTransfer))
	require.Len(t, out.Cleanup, 2)
	assert.True(t, failure.IsKind(out.Cleanup[0], failure.KindUnmount))
	assert.Equal(t, 32, failure.ExitCodeOf(out.Cleanup[0]))
	assert.True(t, failure.IsKind(out.Cleanup[1], failure.KindLogShip))
	assert.True(t, out.Reached(StateDone))
	assert.Empty(t, out.LogFile)
	f.driver.AssertExpectations(t)
	f.engine.AssertExpectations(t)
}

func TestRunMissingMountpoint(t *testing.T) {
	f := newFixture(t)
	f.expectRemote()
	f.expectLogShip(nil)

	cfg := f.config(map[string]string{
		"mount_device":    "/dev/sdb1",
		"mount_point":     filepath.Join(f.point, "missing"),
		"remote_log_path": "logs/",
	})

	out, err := f.coordinator(t).Run(f.ctx, cfg)
	require.Error(t, err)

	assert.True(t, failure.IsKind(err, failure.KindPrecondition))
	assert.Empty(t, f.driver.Calls)
	assert.False(t, out.Reached(StateTransferring))
	assert.True(t, out.Reached(StateUnmounting))
	assert.True(t, out.Reached(StateShippingLogs))
	assert.True(t, out.Reached(StateDone))
	assert.Nil(t, out.Transfer)
	f.engine.AssertExpectations(t)
}

func TestRunMountFailureSkipsTransferAndRelease(t *testing.T) {
	f := newFixture(t)
	f.expectRemote()
	f.driver.On("Mount", "/dev/sdb1", f.point).Return(32, nil).Once()

	out, err := f.coordinator(t).Run(f.ctx, f.config(f.withMount(nil)))
	require.Error(t, err)

	assert.True(t, failure.IsKind(err, failure.KindMount))
	assert.Equal(t, 32, failure.ExitCodeOf(err))
	assert.False(t, out.Reached(StateTransferring))
	f.driver.AssertNotCalled(t, "Unmount", mock.Anything)
	f.engine.AssertNotCalled(t, "Copy", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunPanicDuringCopyRunsCleanup(t *testing.T) {
	f := newFixture(t)
	f.expectRemote()
	f.driver.On("Mount", "/dev/sdb1", f.point).Return(0, nil).Once()
	f.expectCopy(nil).Run(func(mock.Arguments) { panic("engine exploded") })
	f.driver.On("Unmount", f.point).Return(0, nil).Once()
	f.expectLogShip(nil)

	c := f.coordinator(t)
	assert.PanicsWithValue(t, "engine exploded", func() {
		_, _ = c.Run(f.ctx, f.config(f.withMount(map[string]string{"remote_log_path": "logs/"})))
	})
	f.driver.AssertNumberOfCalls(t, "Unmount", 1)
	f.engine.AssertExpectations(t)
}

func TestRunCancelledContextStillCleansUp(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(f.ctx)
	cancel()

	f.expectRemote()
	f.driver.On("Mount", "/dev/sdb1", f.point).Return(0, nil).Once()
	f.expectCopy(context.Canceled)
	f.driver.On("Unmount", f.point).Return(0, nil).Once()
	live := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })
	f.engine.On("Copy", live, f.logFile, "nas:logs/", true, []string(nil), nil).Return(nil).Once()

	out, err := f.coordinator(t).Run(ctx, f.config(f.withMount(map[string]string{"remote_log_path": "logs/"})))
	require.Error(t, err)

	assert.True(t, failure.IsKind(err, failure.KindTransfer))
	assert.Empty(t, out.Cleanup)
	assert.Equal(t, f.logFile, out.LogFile)
	require.Len(t, f.driver.unmountCtxErrs, 1)
	assert.NoError(t, f.driver.unmountCtxErrs[0], "unmount must not inherit the cancellation")
	f.driver.AssertExpectations(t)
	f.engine.AssertExpectations(t)
}

func TestRunMountFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	f.expectRemote()
	f.driver.On("Mount", "/dev/sdb1", f.point).Return(32, nil).Once()

	_, err := f.coordinator(t).Run(ctx, f.config(f.withMount(nil)))
	require.Error(t, err)

	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"message":"mount failed"`)
	assert.Contains(t, buf.String(), `"mountpoint":"`+f.point+`"`)
	assert.Contains(t, buf.String(), "exit status 32")
}

func TestRunTransferPolicies(t *testing.T) {
	tests := []struct {
		name    string
		policy  FailurePolicy
		wantErr bool
	}{
		{name: "abort_returns_error", policy: AbortOnTransferError, wantErr: true},
		{name: "continue_records_only", policy: ContinueOnTransferError, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.expectRemote()
			f.expectCopy(errors.New("timeout"))

			c := f.coordinator(t, func(o *Options) { o.TransferPolicy = tt.policy })
			out, err := c.Run(f.ctx, f.config(nil))

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.True(t, out.Failed())
			assert.True(t, failure.IsKind(out.Err(), failure.KindTransfer))
			assert.Equal(t, StatusFailed, out.Status)
			assert.True(t, out.Reached(StateDone))
		})
	}
}

func TestRunProvisionFailure(t *testing.T) {
	tests := []struct {
		name       string
		policy     ProvisionFailurePolicy
		wantStates []State
		wantShip   bool
	}{
		{
			name:       "cleanup_walks_cleanup_states",
			policy:     ProvisionFailureCleanup,
			wantStates: []State{StateInit, StateProvisioning, StateUnmounting, StateShippingLogs, StateDone},
			wantShip:   true,
		},
		{
			name:       "abort_stops_at_provisioning",
			policy:     ProvisionFailureAbort,
			wantStates: []State{StateInit, StateProvisioning},
			wantShip:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.engine.On("RemoteExists", mock.Anything, "nas").Return(false, errors.New("rclone not found")).Once()
			if tt.wantShip {
				f.expectLogShip(errors.New("rclone not found"))
			}

			c := f.coordinator(t, func(o *Options) { o.ProvisionPolicy = tt.policy })
			out, err := c.Run(f.ctx, f.config(f.withMount(map[string]string{"remote_log_path": "logs/"})))
			require.Error(t, err)

			assert.True(t, failure.IsKind(err, failure.KindProvision))
			assert.Equal(t, tt.wantStates, out.States)
			assert.Equal(t, StatusFailed, out.Status)
			assert.Empty(t, f.driver.Calls)
			if tt.wantShip {
				require.Len(t, out.Cleanup, 1)
				assert.True(t, failure.IsKind(out.Cleanup[0], failure.KindLogShip))
			} else {
				assert.Empty(t, out.Cleanup)
			}
			f.engine.AssertExpectations(t)
		})
	}
}

func TestRunCleanupOnlyFailureSucceeds(t *testing.T) {
	f := newFixture(t)
	f.expectRemote()
	f.driver.On("Mount", "/dev/sdb1", f.point).Return(0, nil).Once()
	f.expectCopy(nil)
	f.driver.On("Unmount", f.point).Return(0, errors.New("umount: not found")).Once()

	out, err := f.coordinator(t).Run(f.ctx, f.config(f.withMount(nil)))
	require.NoError(t, err)

	assert.False(t, out.Failed())
	assert.True(t, out.CleanupFailed())
	assert.Equal(t, StatusSucceededWithCleanupErrors, out.Status)
	assert.Equal(t, failure.NoExitCode, failure.ExitCodeOf(out.Cleanup[0]))
}

func TestRunSkipsShipmentWithoutLogFile(t *testing.T) {
	f := newFixture(t)
	f.expectRemote()
	f.expectCopy(nil)

	c := f.coordinator(t, func(o *Options) { o.LogFile = "" })
	out, err := c.Run(f.ctx, f.config(map[string]string{"remote_log_path": "logs/"}))
	require.NoError(t, err)
	assert.Empty(t, out.LogFile)
	f.engine.AssertExpectations(t)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine is required")
}

func TestParsePolicies(t *testing.T) {
	fp, err := ParseFailurePolicy("Continue")
	require.NoError(t, err)
	assert.Equal(t, ContinueOnTransferError, fp)

	fp, err = ParseFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, AbortOnTransferError, fp)

	_, err = ParseFailurePolicy("ignore")
	assert.True(t, failure.IsKind(err, failure.KindConfiguration))

	pp, err := ParseProvisionFailurePolicy("abort")
	require.NoError(t, err)
	assert.Equal(t, ProvisionFailureAbort, pp)
	assert.Equal(t, "abort", pp.String())

	_, err = ParseProvisionFailurePolicy("retry")
	assert.True(t, failure.IsKind(err, failure.KindConfiguration))
}
