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

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/stagecrafthq/stagecraft/internal/pkg/validator"
)

// exprGate evaluates one compiled boolean expression against the
// measurement environment.
type exprGate struct {
	name    string
	code    string
	program *vm.Program
}

func newExprGate(name, code string) (*exprGate, error) {
	program, err := expr.Compile(code, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile gate %s (%s): %w", name, code, err)
	}
	return &exprGate{name: name, code: code, program: program}, nil
}

func (g *exprGate) Name() string { return g.name }

func (g *exprGate) Evaluate(env map[string]any) (validator.GateResult, error) {
	out, err := expr.Run(g.program, env)
	if err != nil {
		// A missing measurement fails the gate rather than erroring
		// the whole validation.
		return validator.GateResult{Passed: false, Detail: err.Error()}, nil
	}
	passed, ok := out.(bool)
	if !ok {
		return validator.GateResult{Passed: false, Detail: fmt.Sprintf("gate %s returned non-boolean %T", g.name, out)}, nil
	}
	return validator.GateResult{Passed: passed, Detail: g.code}, nil
}

// Gates compiles the resolved policy's constraints into validator
// quality gates. Nil thresholds produce no gate.
func Gates(policy ResolvedPolicy) ([]validator.Gate, error) {
	var gates []validator.Gate

	if policy.MinCoverage != nil {
		g, err := newExprGate("coverage", fmt.Sprintf("coverage >= %v", *policy.MinCoverage))
		if err != nil {
			return nil, err
		}
		gates = append(gates, g)
	}
	if policy.MaxSecurityIssues != nil {
		g, err := newExprGate("security", fmt.Sprintf("security_issues <= %d", *policy.MaxSecurityIssues))
		if err != nil {
			return nil, err
		}
		gates = append(gates, g)
	}
	if policy.MinHygieneScore != nil {
		g, err := newExprGate("hygiene", fmt.Sprintf("hygiene_score >= %v", *policy.MinHygieneScore))
		if err != nil {
			return nil, err
		}
		gates = append(gates, g)
	}
	for _, spec := range policy.CustomGates {
		g, err := newExprGate(spec.Name, spec.Expr)
		if err != nil {
			return nil, err
		}
		gates = append(gates, g)
	}
	return gates, nil
}
