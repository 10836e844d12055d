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

// Package provision makes sure the remote a run copies from is registered in
// the copy engine before the transfer starts.
package provision

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/backuprc/pkg/config"
	"github.com/walteh/backuprc/pkg/engine"
	"github.com/walteh/backuprc/pkg/failure"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/singleflight"
)

// 📜 Policy decides what happens to an existing remote of the same name
type Policy int

const (
	// PolicyReuse creates the remote only when it is missing and otherwise
	// leaves it untouched.
	PolicyReuse Policy = iota
	// PolicyRecreate deletes any existing remote of the same name and creates
	// it again, discarding edits made outside this tool.
	PolicyRecreate
)

func (p Policy) String() string {
	switch p {
	case PolicyRecreate:
		return config.RemotePolicyRecreate
	default:
		return config.RemotePolicyReuse
	}
}

// ParsePolicy resolves a policy name; empty selects PolicyReuse.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", config.RemotePolicyReuse:
		return PolicyReuse, nil
	case config.RemotePolicyRecreate:
		return PolicyRecreate, nil
	}
	return PolicyReuse, failure.Configurationf("parse "+config.KeyRemotePolicy, "unsupported remote policy %q", s)
}

// 🪪 RemoteHandle identifies the provisioned remote for the rest of the run
type RemoteHandle struct {
	Name    string
	Type    engine.RemoteType
	About   *engine.About // nil when the advisory fetch failed
	Created bool          // whether this run created the remote
}

// Path returns "<name>:<path>", the engine's address for path on this remote.
func (h *RemoteHandle) Path(path string) string {
	return h.Name + ":" + path
}

// 🏗️ Provisioner ensures remotes exist in the engine's registry
type Provisioner struct {
	engine engine.Engine
	policy Policy
	group  singleflight.Group
}

// New creates a provisioner applying policy.
func New(e engine.Engine, policy Policy) *Provisioner {
	return &Provisioner{engine: e, policy: policy}
}

// Policy returns the policy this provisioner applies.
func (p *Provisioner) Policy() Policy {
	return p.policy
}

// 🎯 Ensure makes sure a remote called name exists and returns its handle.
//
// typeName must resolve to a supported backend; otherwise a
// ConfigurationError is returned before the engine is called. Concurrent
// calls for the same name share one execution. Engine failures are
// ProvisionErrors; a failed metadata fetch is only logged.
func (p *Provisioner) Ensure(ctx context.Context, name, typeName string, creds engine.Credentials) (*RemoteHandle, error) {
	if strings.TrimSpace(name) == "" {
		return nil, failure.Configurationf("ensure remote", "remote name is empty")
	}
	typ, err := engine.ParseRemoteType(typeName)
	if err != nil {
		return nil, failure.Configuration("ensure remote "+name, err)
	}

	v, err, shared := p.group.Do(name, func() (any, error) {
		return p.ensure(ctx, name, typ, creds)
	})
	if shared {
		zerolog.Ctx(ctx).Debug().Str("remote", name).Msg("joined in-flight provisioning")
	}
	if err != nil {
		return nil, err
	}
	handle := *v.(*RemoteHandle)
	return &handle, nil
}

func (p *Provisioner) ensure(ctx context.Context, name string, typ engine.RemoteType, creds engine.Credentials) (*RemoteHandle, error) {
	logger := zerolog.Ctx(ctx).With().Str("remote", name).Str("type", typ.String()).Str("policy", p.policy.String()).Logger()
	handle := &RemoteHandle{Name: name, Type: typ}

	switch p.policy {
	case PolicyRecreate:
		logger.Warn().Msg("recreating remote, any existing configuration under this name is discarded")
		if err := p.engine.DeleteRemote(ctx, name); err != nil {
			return nil, failure.Provision("delete remote "+name, err)
		}
		if err := p.create(ctx, &logger, handle, creds); err != nil {
			return nil, err
		}
	default:
		exists, err := p.engine.RemoteExists(ctx, name)
		if err != nil {
			return nil, failure.Provision("check remote "+name, err)
		}
		if exists {
			logger.Debug().Msg("reusing existing remote")
		} else if err := p.create(ctx, &logger, handle, creds); err != nil {
			return nil, err
		}
	}

	about, err := p.engine.About(ctx, name)
	if err != nil {
		logger.Warn().Err(err).Msg("could not fetch remote metadata")
	} else {
		handle.About = about
		logger.Debug().Str("about", about.String()).Msg("remote metadata")
	}

	return handle, nil
}

func (p *Provisioner) create(ctx context.Context, logger *zerolog.Logger, handle *RemoteHandle, creds engine.Credentials) error {
	logger.Info().Msg("Creating remote")
	if err := p.engine.CreateRemote(ctx, handle.Name, handle.Type, creds); err != nil {
		return failure.Provision("create remote "+handle.Name, errors.Errorf("creating %s remote: %w", handle.Type, err))
	}
	handle.Created = true
	return nil
}
