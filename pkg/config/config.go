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

// Package config holds the immutable run configuration and the parsers that
// produce it from flat, YAML, HCL and JSON files.
package config

import (
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/walteh/backuprc/pkg/engine"
)

// 📚 RunConfig is a validated, read-only view of run parameters.
//
// Keys are trimmed and lowercased on construction. Values stay raw strings;
// each consumer interprets the keys it owns.
type RunConfig struct {
	values map[string]string
	source string
}

// 🏭 New builds a RunConfig from raw key/value pairs. When two raw keys
// normalise to the same key, the lexically last raw key wins so the result
// does not depend on map iteration order.
func New(values map[string]string) *RunConfig {
	raw := make([]string, 0, len(values))
	for k := range values {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	normalised := make(map[string]string, len(values))
	for _, k := range raw {
		key := normaliseKey(k)
		if key == "" {
			continue
		}
		normalised[key] = strings.TrimSpace(values[k])
	}
	return &RunConfig{values: normalised}
}

func normaliseKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// Source is the file the configuration was loaded from, empty when built in memory.
func (c *RunConfig) Source() string {
	return c.source
}

// Get returns the raw value for key and whether it was present.
func (c *RunConfig) Get(key string) (string, bool) {
	v, ok := c.values[normaliseKey(key)]
	return v, ok
}

// String returns the raw value for key, or "" when absent.
func (c *RunConfig) String(key string) string {
	v, _ := c.Get(key)
	return v
}

// Has reports whether key is present with a non-empty value.
func (c *RunConfig) Has(key string) bool {
	return c.String(key) != ""
}

// Keys returns the present keys in sorted order.
func (c *RunConfig) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// With returns a copy of the configuration with key set to value.
func (c *RunConfig) With(key, value string) *RunConfig {
	values := make(map[string]string, len(c.values)+1)
	for k, v := range c.values {
		values[k] = v
	}
	values[normaliseKey(key)] = strings.TrimSpace(value)
	return &RunConfig{values: values, source: c.source}
}

// Redacted returns a copy of the values safe to write to a log.
func (c *RunConfig) Redacted() map[string]string {
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		if isSecret(k) && v != "" {
			v = "********"
		}
		out[k] = v
	}
	return out
}

func isSecret(key string) bool {
	for _, marker := range []string{"pass", "secret", "token"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}

func expand(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

// 🛰️ Remote identity

func (c *RunConfig) RemoteName() string { return c.String(KeyRemoteName) }
func (c *RunConfig) RemotePath() string { return c.String(KeyRemotePath) }

// RemoteType resolves remote_type against the engine's closed set of backends.
func (c *RunConfig) RemoteType() (engine.RemoteType, error) {
	return engine.ParseRemoteType(c.String(KeyRemoteType))
}

// Credentials returns the authentication material for creating the remote.
func (c *RunConfig) Credentials() engine.Credentials {
	keyFile := c.String(KeyKeyFile)
	if keyFile != "" {
		keyFile = expand(keyFile)
	}
	return engine.Credentials{
		KeyFile: keyFile,
		Host:    c.String(KeyHost),
		User:    c.String(KeyUser),
	}
}

// 📁 Local paths

// LocalPath is the copy destination with ~ expanded.
func (c *RunConfig) LocalPath() string { return expand(c.String(KeyLocalPath)) }

func (c *RunConfig) MountDevice() string { return c.String(KeyMountDevice) }

// MountPoint prefers mount_point and falls back to the mountpoint spelling.
func (c *RunConfig) MountPoint() string {
	if v := c.String(KeyMountPoint); v != "" {
		return v
	}
	return c.String(KeyMountPointAlias)
}

// 📝 Logging

// LogPath is the run log directory with ~ expanded, "" when unset.
func (c *RunConfig) LogPath() string {
	if v := c.String(KeyLogPath); v != "" {
		return expand(v)
	}
	return ""
}

func (c *RunConfig) LogFileName() string   { return c.String(KeyLogFileName) }
func (c *RunConfig) RemoteLogPath() string { return c.String(KeyRemoteLogPath) }

// MaxLogFiles is the retention count for run logs. Invalid values fall back
// to DefaultMaxLogFiles; Validate reports them.
func (c *RunConfig) MaxLogFiles() int {
	v := c.String(KeyMaxLogFiles)
	if v == "" {
		return DefaultMaxLogFiles
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return DefaultMaxLogFiles
	}
	return n
}

// ⚙️ Transfer flags

// DryRun is enabled only by the literal "true".
func (c *RunConfig) DryRun() bool { return c.String(KeyDryRun) == "true" }

// IgnoreExisting is enabled unless the value is the literal "false".
func (c *RunConfig) IgnoreExisting() bool {
	return c.String(KeyIgnoreExisting) != "false"
}
