// Copyright 2025 Stagecraft Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package serde

import (
	"strings"

	"github.com/bytedance/sonic"
)

// MarshalStringMap serializes map[string]string to a JSON string for
// storage in a text column. Empty maps serialize to the empty string.
func MarshalStringMap(data map[string]string) string {
	if len(data) == 0 {
		return ""
	}
	raw, err := sonic.Marshal(data)
	if err != nil {
		return ""
	}
	return string(raw)
}

// UnmarshalStringMap deserializes a stored JSON string back into a
// map. Malformed or empty input yields an empty map, never nil.
func UnmarshalStringMap(raw string) map[string]string {
	out := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return out
	}
	if err := sonic.UnmarshalString(raw, &out); err != nil {
		return map[string]string{}
	}
	return out
}
