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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// flatten converts a decoded document into raw key/value pairs. Only scalars
// and lists of scalars are accepted; lists are joined with commas so
// extra_rclone_args can be written as a list.
func flatten(doc map[string]any) (map[string]string, error) {
	values := make(map[string]string, len(doc))
	for k, v := range doc {
		s, err := flattenValue(v)
		if err != nil {
			return nil, errors.Errorf("key %q: %w", k, err)
		}
		values[k] = s
	}
	return values, nil
}

func flattenValue(v any) (string, error) {
	if list, ok := v.([]any); ok {
		parts := make([]string, 0, len(list))
		for i, item := range list {
			s, err := scalarString(item)
			if err != nil {
				return "", errors.Errorf("item %d: %w", i, err)
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	}
	return scalarString(v)
}

func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case json.Number:
		return t.String(), nil
	default:
		return "", errors.Errorf("expected a scalar value, got %s", fmt.Sprintf("%T", v))
	}
}
