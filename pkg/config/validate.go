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

package config

import (
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/walteh/backuprc/pkg/engine"
	"github.com/walteh/backuprc/pkg/failure"
)

// 🔍 Validate checks required keys, the remote type and the closed-set
// option values. Every problem is a ConfigurationError.
func Validate(cfg *RunConfig) error {
	missing := []string{}
	for _, k := range RequiredKeys {
		if !cfg.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return failure.Configurationf("validate required keys", "missing required keys: %s", strings.Join(missing, ", "))
	}

	if _, err := engine.ParseRemoteType(cfg.String(KeyRemoteType)); err != nil {
		return failure.Configuration("validate "+KeyRemoteType, err)
	}

	for _, k := range []string{KeyKeyFile, KeyLocalPath, KeyLogPath} {
		if v := cfg.String(k); v != "" {
			if _, err := homedir.Expand(v); err != nil {
				return failure.Configuration("validate "+k, err)
			}
		}
	}

	if v := cfg.String(KeyMaxLogFiles); v != "" {
		if n, err := strconv.Atoi(v); err != nil || n < 1 {
			return failure.Configurationf("validate "+KeyMaxLogFiles, "must be a positive integer, got %q", v)
		}
	}

	if v := cfg.String(KeyLogLevel); v != "" {
		if _, err := engine.ParseLogLevel(v); err != nil {
			return failure.Configuration("validate "+KeyLogLevel, err)
		}
	}

	choices := []struct {
		key     string
		allowed []string
	}{
		{KeyRemotePolicy, []string{RemotePolicyReuse, RemotePolicyRecreate}},
		{KeyOnTransferError, []string{OnTransferErrorAbort, OnTransferErrorContinue}},
		{KeyOnProvisionError, []string{OnProvisionErrorCleanup, OnProvisionErrorAbort}},
	}
	for _, c := range choices {
		if err := oneOf(cfg, c.key, c.allowed...); err != nil {
			return err
		}
	}

	return nil
}

func oneOf(cfg *RunConfig, key string, allowed ...string) error {
	v := cfg.String(key)
	if v == "" {
		return nil
	}
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return nil
		}
	}
	return failure.Configurationf("validate "+key, "unsupported value %q, options: %s", v, strings.Join(allowed, ", "))
}
