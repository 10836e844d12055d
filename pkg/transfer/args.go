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

package transfer

import (
	"strings"

	"github.com/walteh/backuprc/pkg/config"
)

// flagKeys maps optional config keys to the engine flag they become, in the
// order the flags are emitted.
var flagKeys = []struct {
	key  string
	flag string
}{
	{config.KeyBackupDir, "--backup-dir"},
	{config.KeyExclude, "--exclude"},
	{config.KeyBwLimit, "--bwlimit"},
	{config.KeySuffix, "--suffix"},
}

// 🧮 BuildArgs turns the optional transfer keys into engine arguments.
//
// Extra args come first in their configured order, then one --flag=value per
// present key, then --dry-run. The same config always yields the same slice.
func BuildArgs(cfg *config.RunConfig) []string {
	args := SplitExtraArgs(cfg.String(config.KeyExtraArgs))

	for _, fk := range flagKeys {
		if v, ok := cfg.Get(fk.key); ok && v != "" {
			args = append(args, fk.flag+"="+v)
		}
	}

	if cfg.DryRun() {
		args = append(args, "--dry-run")
	}

	return args
}

// SplitExtraArgs splits a comma separated argument list, trimming each entry
// and dropping empty ones.
func SplitExtraArgs(raw string) []string {
	args := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			args = append(args, part)
		}
	}
	return args
}

// IgnoreExisting reports whether already-present destination files are
// skipped. Only the literal "false" turns it off.
func IgnoreExisting(cfg *config.RunConfig) bool {
	return cfg.IgnoreExisting()
}
