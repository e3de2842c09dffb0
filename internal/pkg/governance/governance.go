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

import (
	"fmt"
	"sort"

	"github.com/stagecrafthq/stagecraft/internal/pkg/validator"
)

// Result is the governance verdict for one phase attempt.
type Result struct {
	Passed   bool     `json:"passed"`
	Warnings []string `json:"warnings,omitempty"`
}

// Evaluate judges a validation result under the resolved policy.
// Deterministic and side-effect-free: identical inputs yield
// identical results, and neither policy nor validation result is
// mutated.
func Evaluate(vr *validator.Result) Result {
	result := Result{Passed: true}

	if vr.Status == validator.StatusFail {
		result.Passed = false
		result.Warnings = append(result.Warnings, "no required artifact pattern matched")
	}
	for _, pattern := range vr.Missing {
		result.Warnings = append(result.Warnings, fmt.Sprintf("missing required artifacts: %s", pattern))
	}

	names := make([]string, 0, len(vr.QualityGateResults))
	for name := range vr.QualityGateResults {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		gr := vr.QualityGateResults[name]
		if gr.Passed {
			continue
		}
		result.Passed = false
		if gr.Detail != "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("quality gate %s failed: %s", name, gr.Detail))
		} else {
			result.Warnings = append(result.Warnings, fmt.Sprintf("quality gate %s failed", name))
		}
	}
	return result
}
