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
	"bufio"
	"bytes"
	"context"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 🔧 FlatParser reads `key = value` lines.
//
// Only the first '=' separates key from value, so values may contain '='.
// Lines without '=' are skipped, as are blank lines and lines starting with
// '#' or ';'. A repeated key keeps its last value.
type FlatParser struct{}

// 🔍 CanParse claims nothing explicitly; GetParser falls back to it
func (p *FlatParser) CanParse(filename string) bool {
	return false
}

// 📝 Parse parses flat key = value text
func (p *FlatParser) Parse(ctx context.Context, data []byte) (map[string]string, error) {
	values := map[string]string{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		key, value, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Errorf("scanning config: %w", err)
	}

	return values, nil
}

// ParseLine splits one flat config line. ok is false for lines that carry no
// key/value pair.
func ParseLine(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
		return "", "", false
	}
	k, v, found := strings.Cut(trimmed, "=")
	if !found {
		return "", "", false
	}
	key = normaliseKey(k)
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(v), true
}
