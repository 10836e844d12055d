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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/walteh/backuprc/pkg/failure"
	"gitlab.com/tozd/go/errors"
)

// 🔧 MockDriver is a mock implementation of the Driver interface
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) Mount(ctx context.Context, device, point string) (int, error) {
	result := m.Called(ctx, device, point)
	return result.Int(0), result.Error(1)
}

func (m *MockDriver) Unmount(ctx context.Context, point string) (int, error) {
	result := m.Called(ctx, point)
	return result.Int(0), result.Error(1)
}

// 🔧 MockRunner is a mock implementation of the CommandRunner interface
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, name string, args ...string) (int, error) {
	result := m.Called(ctx, name, args)
	return result.Int(0), result.Error(1)
}

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func TestAcquireUnconfigured(t *testing.T) {
	tests := []struct {
		name   string
		device string
		point  string
	}{
		{name: "neither"},
		{name: "device_only", device: "/dev/sdb1"},
		{name: "point_only", point: "/mnt/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testContext(t)
			driver := &MockDriver{}
			ctrl := NewController(driver)

			session, err := ctrl.Acquire(ctx, tt.device, tt.point)
			require.NoError(t, err)
			assert.False(t, session.Acquired())

			require.NoError(t, ctrl.Release(ctx, session))
			driver.AssertNotCalled(t, "Mount", mock.Anything, mock.Anything, mock.Anything)
			driver.AssertNotCalled(t, "Unmount", mock.Anything, mock.Anything)
		})
	}
}

func TestAcquireMissingMountpoint(t *testing.T) {
	ctx := testContext(t)
	driver := &MockDriver{}
	ctrl := NewController(driver)

	point := filepath.Join(t.TempDir(), "absent")
	session, err := ctrl.Acquire(ctx, "/dev/sdb1", point)

	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindPrecondition))
	assert.Contains(t, err.Error(), "does not exist")
	assert.False(t, session.Acquired())
	driver.AssertNotCalled(t, "Mount", mock.Anything, mock.Anything, mock.Anything)

	_, statErr := os.Stat(point)
	assert.True(t, os.IsNotExist(statErr), "mountpoint must not be created")
}

func TestAcquireMountpointIsFile(t *testing.T) {
	ctx := testContext(t)
	driver := &MockDriver{}
	ctrl := NewController(driver)

	point := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(point, nil, 0o600))

	_, err := ctrl.Acquire(ctx, "/dev/sdb1", point)
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindPrecondition))
	driver.AssertNotCalled(t, "Mount", mock.Anything, mock.Anything, mock.Anything)
}

func TestAcquireMountFails(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		err      error
		wantCode int
	}{
		{name: "nonzero_exit", code: 32, wantCode: 32},
		{name: "could_not_start", code: -1, err: errors.New("exec: mount: not found"), wantCode: failure.NoExitCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testContext(t)
			point := t.TempDir()
			driver := &MockDriver{}
			driver.On("Mount", ctx, "/dev/sdb1", point).Return(tt.code, tt.err).Once()
			ctrl := NewController(driver)

			session, err := ctrl.Acquire(ctx, "/dev/sdb1", point)
			require.Error(t, err)
			assert.True(t, failure.IsKind(err, failure.KindMount))
			assert.Equal(t, tt.wantCode, failure.ExitCodeOf(err))
			assert.False(t, session.Acquired())

			require.NoError(t, ctrl.Release(ctx, session), "releasing a failed session is a no-op")
			driver.AssertNotCalled(t, "Unmount", mock.Anything, mock.Anything)
			driver.AssertExpectations(t)
		})
	}
}

func TestAcquireAndReleaseOnce(t *testing.T) {
	ctx := testContext(t)
	point := t.TempDir()
	driver := &MockDriver{}
	driver.On("Mount", ctx, "/dev/sdb1", point).Return(0, nil).Once()
	driver.On("Unmount", ctx, point).Return(0, nil).Once()
	ctrl := NewController(driver)

	session, err := ctrl.Acquire(ctx, "/dev/sdb1", point)
	require.NoError(t, err)
	assert.True(t, session.Acquired())

	require.NoError(t, ctrl.Release(ctx, session))
	assert.False(t, session.Acquired())

	require.NoError(t, ctrl.Release(ctx, session), "second release is ignored")
	driver.AssertNumberOfCalls(t, "Unmount", 1)
	driver.AssertExpectations(t)
}

func TestReleaseFailure(t *testing.T) {
	ctx := testContext(t)
	point := t.TempDir()
	driver := &MockDriver{}
	driver.On("Mount", ctx, "/dev/sdb1", point).Return(0, nil).Once()
	driver.On("Unmount", ctx, point).Return(16, nil).Once()
	ctrl := NewController(driver)

	session, err := ctrl.Acquire(ctx, "/dev/sdb1", point)
	require.NoError(t, err)

	err = ctrl.Release(ctx, session)
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindUnmount))
	assert.Equal(t, 16, failure.ExitCodeOf(err))
	assert.False(t, session.Acquired(), "a failed release still ends the session")

	require.NoError(t, ctrl.Release(ctx, session))
	driver.AssertNumberOfCalls(t, "Unmount", 1)
}

func TestReleaseNilSession(t *testing.T) {
	ctrl := NewController(&MockDriver{})
	assert.NoError(t, ctrl.Release(testContext(t), nil))
}

func TestExecDriver(t *testing.T) {
	ctx := testContext(t)
	runner := &MockRunner{}
	runner.On("Run", ctx, "mount", []string{"/dev/sdb1", "/mnt/x"}).Return(0, nil).Once()
	runner.On("Run", ctx, "umount", []string{"/mnt/x"}).Return(32, nil).Once()

	driver := NewExecDriver(runner)
	checked := ""
	driver.mounted = func(point string) (bool, error) {
		checked = point
		return false, nil
	}

	code, err := driver.Mount(ctx, "/dev/sdb1", "/mnt/x")
	require.NoError(t, err)
	assert.Zero(t, code)
	assert.Equal(t, "/mnt/x", checked, "mount table is consulted after a successful mount")

	code, err = driver.Unmount(ctx, "/mnt/x")
	require.NoError(t, err)
	assert.Equal(t, 32, code)

	runner.AssertExpectations(t)
}

func TestExecDriverSkipsVerificationOnFailure(t *testing.T) {
	ctx := testContext(t)
	runner := &MockRunner{}
	runner.On("Run", ctx, "mount", []string{"/dev/sdb1", "/mnt/x"}).Return(1, nil).Once()

	driver := NewExecDriver(runner)
	driver.mounted = func(string) (bool, error) {
		t.Fatal("mount table must not be read after a failed mount")
		return false, nil
	}

	code, err := driver.Mount(ctx, "/dev/sdb1", "/mnt/x")
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestExecRunner(t *testing.T) {
	ctx := testContext(t)
	runner := ExecRunner{}

	code, err := runner.Run(ctx, "sh", "-c", "exit 0")
	require.NoError(t, err)
	assert.Zero(t, code)

	code, err = runner.Run(ctx, "sh", "-c", "echo nope >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	code, err = runner.Run(ctx, filepath.Join(t.TempDir(), "no-such-binary"))
	require.Error(t, err)
	assert.Equal(t, -1, code)
}
