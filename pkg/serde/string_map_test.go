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

import "testing"

func TestStringMapRoundTrip(t *testing.T) {
	in := map[string]string{"ticket": "OPS-42", "env": "staging"}
	raw := MarshalStringMap(in)
	if raw == "" {
		t.Fatal("expected non-empty serialization")
	}
	out := UnmarshalStringMap(raw)
	if len(out) != len(in) {
		t.Fatalf("got %d entries, want %d", len(out), len(in))
	}
	for k, v := range in {
		if out[k] != v {
			t.Errorf("key %q: got %q, want %q", k, out[k], v)
		}
	}
}

func TestStringMapEmptyAndMalformed(t *testing.T) {
	if got := MarshalStringMap(nil); got != "" {
		t.Errorf("nil map should serialize empty, got %q", got)
	}
	if out := UnmarshalStringMap(""); out == nil || len(out) != 0 {
		t.Errorf("empty input should yield empty map, got %v", out)
	}
	if out := UnmarshalStringMap("{not json"); out == nil || len(out) != 0 {
		t.Errorf("malformed input should yield empty map, got %v", out)
	}
}
