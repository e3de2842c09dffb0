package governance

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stagecrafthq/stagecraft/internal/pkg/validator"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestResolveLayering(t *testing.T) {
	client := &Policy{MinCoverage: floatPtr(0.9)}
	def := &Policy{MinCoverage: floatPtr(0.7), MaxSecurityIssues: intPtr(3)}
	universal := &Policy{
		MinCoverage:       floatPtr(0.5),
		MaxSecurityIssues: intPtr(10),
		MinHygieneScore:   floatPtr(0.6),
	}

	resolved := Resolve(client, def, universal)
	if *resolved.MinCoverage != 0.9 {
		t.Errorf("client threshold should win: %v", *resolved.MinCoverage)
	}
	if *resolved.MaxSecurityIssues != 3 {
		t.Errorf("default should fill client gap: %v", *resolved.MaxSecurityIssues)
	}
	if *resolved.MinHygieneScore != 0.6 {
		t.Errorf("universal baseline should fill remaining: %v", *resolved.MinHygieneScore)
	}
}

func TestResolveNilLayers(t *testing.T) {
	resolved := Resolve(nil, &Policy{MinCoverage: floatPtr(0.8)}, nil)
	if resolved.MinCoverage == nil || *resolved.MinCoverage != 0.8 {
		t.Errorf("unexpected resolution: %+v", resolved)
	}
	if resolved.MaxSecurityIssues != nil {
		t.Error("absent from all layers should mean no constraint")
	}
}

func TestResolveDoesNotAliasInputs(t *testing.T) {
	layer := &Policy{MinCoverage: floatPtr(0.7)}
	resolved := Resolve(layer)
	*resolved.MinCoverage = 0.1
	if *layer.MinCoverage != 0.7 {
		t.Error("Resolve must not alias input policy fields")
	}
}

func TestGatesEvaluate(t *testing.T) {
	resolved := Resolve(&Policy{
		MinCoverage:       floatPtr(0.8),
		MaxSecurityIssues: intPtr(0),
		CustomGates:       []GateSpec{{Name: "artifact_floor", Expr: "artifacts_found >= 2"}},
	})
	gates, err := Gates(resolved)
	if err != nil {
		t.Fatalf("Gates failed: %v", err)
	}
	if len(gates) != 3 {
		t.Fatalf("expected 3 gates, got %d", len(gates))
	}

	env := map[string]any{
		"coverage":        0.85,
		"security_issues": 1,
		"artifacts_found": 2,
	}
	results := map[string]bool{}
	for _, gate := range gates {
		gr, err := gate.Evaluate(env)
		if err != nil {
			t.Fatalf("gate %s errored: %v", gate.Name(), err)
		}
		results[gate.Name()] = gr.Passed
	}
	want := map[string]bool{"coverage": true, "security": false, "artifact_floor": true}
	if !reflect.DeepEqual(results, want) {
		t.Errorf("gate results = %v, want %v", results, want)
	}
}

func TestGateMissingMeasurementFails(t *testing.T) {
	gates, err := Gates(Resolve(&Policy{MinCoverage: floatPtr(0.8)}))
	if err != nil {
		t.Fatalf("Gates failed: %v", err)
	}
	gr, err := gates[0].Evaluate(map[string]any{})
	if err != nil {
		t.Fatalf("evaluate errored: %v", err)
	}
	if gr.Passed {
		t.Error("gate with no measurement must not pass")
	}
}

func TestBaselinePolicy(t *testing.T) {
	gates, err := Gates(Resolve(Baseline()))
	if err != nil {
		t.Fatalf("Gates failed: %v", err)
	}
	if len(gates) != 1 {
		t.Fatalf("expected 1 baseline gate, got %d", len(gates))
	}

	// The validator always reports executor counts, so the baseline
	// gate must pass a clean phase and fail a broken one.
	gr, err := gates[0].Evaluate(map[string]any{"executors_failed": 0})
	if err != nil {
		t.Fatalf("evaluate errored: %v", err)
	}
	if !gr.Passed {
		t.Error("baseline gate must pass when no executor failed")
	}
	gr, err = gates[0].Evaluate(map[string]any{"executors_failed": 1})
	if err != nil {
		t.Fatalf("evaluate errored: %v", err)
	}
	if gr.Passed {
		t.Error("baseline gate must fail when an executor failed")
	}
}

func TestBaselineOverriddenByUpperLayers(t *testing.T) {
	client := &Policy{CustomGates: []GateSpec{{Name: "own_gate", Expr: "coverage >= 0.5"}}}
	resolved := Resolve(client, nil, Baseline())
	if len(resolved.CustomGates) != 1 || resolved.CustomGates[0].Name != "own_gate" {
		t.Errorf("client custom gates must replace the baseline set, got %v", resolved.CustomGates)
	}
}

func TestGatesInvalidExpr(t *testing.T) {
	_, err := Gates(Resolve(&Policy{CustomGates: []GateSpec{{Name: "bad", Expr: "coverage >=="}}}))
	if err == nil {
		t.Error("expected compile error for malformed expression")
	}
}

func TestEvaluateVerdicts(t *testing.T) {
	tests := []struct {
		name       string
		vr         *validator.Result
		wantPassed bool
		wantWarn   string
	}{
		{
			name:       "clean pass",
			vr:         &validator.Result{Status: validator.StatusPass},
			wantPassed: true,
		},
		{
			name: "failed gate blocks",
			vr: &validator.Result{
				Status: validator.StatusPartial,
				QualityGateResults: map[string]validator.GateResult{
					"coverage": {Passed: false, Detail: "coverage >= 0.8"},
				},
			},
			wantPassed: false,
			wantWarn:   "quality gate coverage failed",
		},
		{
			name: "missing patterns warn",
			vr: &validator.Result{
				Status:  validator.StatusPartial,
				Missing: []string{"security/*"},
			},
			wantPassed: true,
			wantWarn:   "missing required artifacts",
		},
		{
			name:       "total miss blocks",
			vr:         &validator.Result{Status: validator.StatusFail, Missing: []string{"docs/*"}},
			wantPassed: false,
			wantWarn:   "no required artifact pattern matched",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Evaluate(tt.vr)
			if result.Passed != tt.wantPassed {
				t.Errorf("passed = %v, want %v (warnings: %v)", result.Passed, tt.wantPassed, result.Warnings)
			}
			if tt.wantWarn != "" {
				found := false
				for _, w := range result.Warnings {
					if strings.Contains(w, tt.wantWarn) {
						found = true
					}
				}
				if !found {
					t.Errorf("warnings %v missing %q", result.Warnings, tt.wantWarn)
				}
			}
		})
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	vr := &validator.Result{
		Status: validator.StatusPartial,
		QualityGateResults: map[string]validator.GateResult{
			"b": {Passed: false},
			"a": {Passed: false},
			"c": {Passed: false},
		},
	}
	first := Evaluate(vr)
	for i := 0; i < 10; i++ {
		if !reflect.DeepEqual(Evaluate(vr), first) {
			t.Fatal("Evaluate must be deterministic over map-ordered gates")
		}
	}
}
