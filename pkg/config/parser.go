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
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/backuprc/pkg/failure"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Parser turns a configuration file into raw key/value pairs
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (map[string]string, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers, flat is the fallback
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns the parser for the given file. Files no registered
// parser claims are read as flat key = value text.
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return &FlatParser{}
}

func hasExt(filename string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// 🎯 Load reads, parses and validates the configuration at path.
// Every failure is a ConfigurationError.
func Load(ctx context.Context, path string) (*RunConfig, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.Configuration("read config file "+path, err)
	}

	values, err := GetParser(path).Parse(ctx, data)
	if err != nil {
		return nil, failure.Configuration("parse config file "+path, err)
	}

	cfg := New(values)
	cfg.source = path

	for _, k := range cfg.Keys() {
		if !knownKeys[k] {
			logger.Debug().Str("key", k).Msg("ignoring unrecognised configuration key")
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.Errorf("validating %s: %w", path, err)
	}

	// rclone filters are a superset of globs ({{regex}} blocks), so this only warns
	if pattern := cfg.String(KeyExclude); pattern != "" && !doublestar.ValidatePattern(pattern) {
		logger.Warn().Str("exclude", pattern).Msg("exclude is not a plain glob, passing it to rclone unchanged")
	}

	return cfg, nil
}
