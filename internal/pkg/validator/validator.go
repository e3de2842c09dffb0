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

package validator

import (
	"context"
	"fmt"

	"github.com/stagecrafthq/stagecraft/internal/pkg/artifact"
	"github.com/stagecrafthq/stagecraft/internal/pkg/executor"
)

// Status is the overall validation verdict.
type Status string

const (
	StatusPass    Status = "pass"
	StatusPartial Status = "partial"
	StatusFail    Status = "fail"
)

// GateResult records one quality gate evaluation.
type GateResult struct {
	Passed bool   `json:"passed"`
	Value  any    `json:"value,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Gate is a quality-gate predicate supplied by the governance layer.
// Gates read the measurement environment and never mutate it.
type Gate interface {
	Name() string
	Evaluate(env map[string]any) (GateResult, error)
}

// Result is the validator's report for one phase attempt.
type Result struct {
	Status             Status                `json:"status"`
	Found              []string              `json:"found,omitempty"`
	Missing            []string              `json:"missing,omitempty"`
	QualityGateResults map[string]GateResult `json:"quality_gate_results,omitempty"`
}

// Validator checks declared outputs against pattern requirements and
// quality gates. Validation is read-only and deterministic: two calls
// against identical store state yield identical results.
type Validator struct {
	store artifact.Store
}

// New creates a validator over the given artifact store.
func New(store artifact.Store) *Validator {
	return &Validator{store: store}
}

// Validate resolves each required pattern against the artifact store,
// then evaluates the supplied quality gates over the measurement
// environment. Verdict: Fail when none of the required patterns
// matched, Partial when only some did (or a gate failed), Pass when
// every pattern matched and every gate passed.
func (v *Validator) Validate(ctx context.Context, runID string, patterns []string, outcomes []executor.Outcome, gates []Gate, metrics map[string]any) (*Result, error) {
	result := &Result{
		QualityGateResults: make(map[string]GateResult),
	}

	matched := 0
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		refs, err := v.store.List(ctx, runID, pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve pattern %s: %w", pattern, err)
		}
		if len(refs) == 0 {
			result.Missing = append(result.Missing, pattern)
			continue
		}
		matched++
		for _, ref := range refs {
			logical := ref.LogicalPath()
			if _, dup := seen[logical]; dup {
				continue
			}
			seen[logical] = struct{}{}
			result.Found = append(result.Found, logical)
		}
	}

	env := buildEnv(result, outcomes, metrics)
	gatesPassed := true
	for _, gate := range gates {
		gr, err := gate.Evaluate(env)
		if err != nil {
			gr = GateResult{Passed: false, Detail: err.Error()}
		}
		result.QualityGateResults[gate.Name()] = gr
		if !gr.Passed {
			gatesPassed = false
		}
	}

	switch {
	case len(patterns) > 0 && matched == 0:
		result.Status = StatusFail
	case matched < len(patterns) || !gatesPassed:
		result.Status = StatusPartial
	default:
		result.Status = StatusPass
	}
	return result, nil
}

// buildEnv assembles the measurement environment gates evaluate
// against: artifact findings, executor tallies, and caller-supplied
// metrics (which win on key collision).
func buildEnv(result *Result, outcomes []executor.Outcome, metrics map[string]any) map[string]any {
	succeeded, failed := 0, 0
	totalCost := 0.0
	for _, o := range outcomes {
		if o.Success {
			succeeded++
		} else {
			failed++
		}
		totalCost += o.Cost
	}

	env := map[string]any{
		"artifacts_found":     len(result.Found),
		"patterns_missing":    len(result.Missing),
		"executors_succeeded": succeeded,
		"executors_failed":    failed,
		"total_cost":          totalCost,
	}
	for k, val := range metrics {
		env[k] = val
	}
	return env
}
