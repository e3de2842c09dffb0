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

package governance

// GateSpec declares one quality gate as a boolean expression over the
// measurement environment, e.g. "coverage >= 0.8".
type GateSpec struct {
	Name string `mapstructure:"name" json:"name" yaml:"name"`
	Expr string `mapstructure:"expr" json:"expr" yaml:"expr"`
}

// Policy is one layer of governance thresholds. Nil fields defer to
// the next layer down; resolution order is client, firm default,
// universal baseline.
type Policy struct {
	MinCoverage       *float64   `mapstructure:"min_coverage" json:"min_coverage,omitempty" yaml:"min_coverage"`
	MaxSecurityIssues *int       `mapstructure:"max_security_issues" json:"max_security_issues,omitempty" yaml:"max_security_issues"`
	MinHygieneScore   *float64   `mapstructure:"min_hygiene_score" json:"min_hygiene_score,omitempty" yaml:"min_hygiene_score"`
	CustomGates       []GateSpec `mapstructure:"custom_gates" json:"custom_gates,omitempty" yaml:"custom_gates"`
}

// Baseline is the universal policy layer, compiled into the engine so
// a run can never execute completely ungoverned. It only references
// measurements the validator always produces, and any operator or
// client layer above it can override the fields it sets.
func Baseline() *Policy {
	return &Policy{
		CustomGates: []GateSpec{
			{Name: "all_executors_succeeded", Expr: "executors_failed == 0"},
		},
	}
}

// ResolvedPolicy is the merged view after layering. Nil fields mean
// "no constraint".
type ResolvedPolicy struct {
	MinCoverage       *float64
	MaxSecurityIssues *int
	MinHygieneScore   *float64
	CustomGates       []GateSpec
}

// Resolve merges policy layers with strict override: the first
// non-nil value per field wins. Layers are ordered highest precedence
// first (client, then default, then universal). Nil layers are
// skipped. Inputs are never mutated.
func Resolve(layers ...*Policy) ResolvedPolicy {
	var resolved ResolvedPolicy
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		if resolved.MinCoverage == nil && layer.MinCoverage != nil {
			v := *layer.MinCoverage
			resolved.MinCoverage = &v
		}
		if resolved.MaxSecurityIssues == nil && layer.MaxSecurityIssues != nil {
			v := *layer.MaxSecurityIssues
			resolved.MaxSecurityIssues = &v
		}
		if resolved.MinHygieneScore == nil && layer.MinHygieneScore != nil {
			v := *layer.MinHygieneScore
			resolved.MinHygieneScore = &v
		}
		if resolved.CustomGates == nil && layer.CustomGates != nil {
			resolved.CustomGates = append([]GateSpec(nil), layer.CustomGates...)
		}
	}
	return resolved
}
