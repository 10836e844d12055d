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

// Package enginetest provides a testify mock of engine.Engine.
package enginetest

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/walteh/backuprc/pkg/engine"
)

// 🔧 MockEngine is a mock implementation of the engine.Engine interface
type MockEngine struct {
	mock.Mock
}

var _ engine.Engine = (*MockEngine)(nil)

func (m *MockEngine) RemoteExists(ctx context.Context, name string) (bool, error) {
	result := m.Called(ctx, name)
	return result.Bool(0), result.Error(1)
}

func (m *MockEngine) CreateRemote(ctx context.Context, name string, typ engine.RemoteType, creds engine.Credentials) error {
	result := m.Called(ctx, name, typ, creds)
	return result.Error(0)
}

func (m *MockEngine) DeleteRemote(ctx context.Context, name string) error {
	result := m.Called(ctx, name)
	return result.Error(0)
}

func (m *MockEngine) About(ctx context.Context, name string) (*engine.About, error) {
	result := m.Called(ctx, name)
	about, _ := result.Get(0).(*engine.About)
	return about, result.Error(1)
}

func (m *MockEngine) Copy(ctx context.Context, src, dst string, ignoreExisting bool, args []string, sink engine.ProgressSink) error {
	result := m.Called(ctx, src, dst, ignoreExisting, args, sink)
	return result.Error(0)
}

func (m *MockEngine) SetLogLevel(level engine.LogLevel) {
	m.Called(level)
}
