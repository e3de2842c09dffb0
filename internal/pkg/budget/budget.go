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

package budget

import "fmt"

// Scope identifies one of the nested budget counters.
type Scope string

const (
	ScopeDaily    Scope = "daily"
	ScopePerRun   Scope = "per_run"
	ScopeLifetime Scope = "lifetime"
)

// Limits holds the per-principal ceilings for each scope, in cost units.
// A zero or negative limit means the scope is unconstrained.
type Limits struct {
	Daily    float64 `mapstructure:"daily" json:"daily" yaml:"daily"`
	PerRun   float64 `mapstructure:"per_run" json:"per_run" yaml:"per_run"`
	Lifetime float64 `mapstructure:"lifetime" json:"lifetime" yaml:"lifetime"`
}

// Limit returns the ceiling for the given scope.
func (l Limits) Limit(scope Scope) float64 {
	switch scope {
	case ScopeDaily:
		return l.Daily
	case ScopePerRun:
		return l.PerRun
	case ScopeLifetime:
		return l.Lifetime
	}
	return 0
}

// Remaining reports headroom per scope. A negative value means the
// scope is unconstrained.
type Remaining struct {
	Daily    float64 `json:"daily"`
	PerRun   float64 `json:"per_run"`
	Lifetime float64 `json:"lifetime"`
}

// Usage reports committed spend per scope.
type Usage struct {
	Daily    float64 `json:"daily"`
	PerRun   float64 `json:"per_run"`
	Lifetime float64 `json:"lifetime"`
}

// BudgetExceededError reports the first scope that rejected a
// reservation, in evaluation order daily, per_run, lifetime.
type BudgetExceededError struct {
	Scope     Scope
	Limit     float64
	Consumed  float64
	Requested float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded in %s scope: limit=%.2f consumed=%.2f requested=%.2f",
		e.Scope, e.Limit, e.Consumed, e.Requested)
}

// ErrUnknownReservation is returned when committing or releasing a
// token the ledger does not hold.
type ErrUnknownReservation struct {
	Token string
}

func (e *ErrUnknownReservation) Error() string {
	return fmt.Sprintf("unknown reservation token: %s", e.Token)
}
