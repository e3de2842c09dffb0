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

import (
	"sync"
	"time"

	"github.com/stagecrafthq/stagecraft/pkg/id"
)

// evaluation order; the first violated scope wins.
var scopeOrder = []Scope{ScopeDaily, ScopePerRun, ScopeLifetime}

// principalState tracks one principal's counters. Daily consumption
// resets when the day rolls over; per-run consumption is keyed by run.
type principalState struct {
	mu sync.Mutex

	day           string
	dailyConsumed float64
	dailyHeld     float64

	perRunConsumed map[string]float64
	perRunHeld     map[string]float64

	lifetimeConsumed float64
	lifetimeHeld     float64
}

type reservation struct {
	principal string
	runID     string
	estimate  float64
}

// Ledger enforces nested budget scopes per principal. All mutating
// operations on one principal's counters are serialized, so two
// concurrent reservations can never both observe "under limit" and
// jointly overshoot it.
type Ledger struct {
	limits Limits
	now    func() time.Time

	mu           sync.Mutex
	principals   map[string]*principalState
	reservations map[string]*reservation
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the ledger clock, used by the daily rollover.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger creates a ledger enforcing the given limits.
func NewLedger(limits Limits, opts ...Option) *Ledger {
	l := &Ledger{
		limits:       limits,
		now:          time.Now,
		principals:   make(map[string]*principalState),
		reservations: make(map[string]*reservation),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) principal(name string) *principalState {
	l.mu.Lock()
	defer l.mu.Unlock()
	ps, ok := l.principals[name]
	if !ok {
		ps = &principalState{
			perRunConsumed: make(map[string]float64),
			perRunHeld:     make(map[string]float64),
		}
		l.principals[name] = ps
	}
	return ps
}

// rollDay resets the daily consumed counter when the calendar day
// changes. Holds straddling the rollover stay counted so resolving
// them cannot drive the counter negative. Caller holds ps.mu.
func (l *Ledger) rollDay(ps *principalState) {
	day := l.now().Format("2006-01-02")
	if ps.day != day {
		ps.day = day
		ps.dailyConsumed = 0
	}
}

// committed returns consumed plus outstanding holds for a scope.
// Caller holds ps.mu.
func committed(ps *principalState, scope Scope, runID string) float64 {
	switch scope {
	case ScopeDaily:
		return ps.dailyConsumed + ps.dailyHeld
	case ScopePerRun:
		return ps.perRunConsumed[runID] + ps.perRunHeld[runID]
	case ScopeLifetime:
		return ps.lifetimeConsumed + ps.lifetimeHeld
	}
	return 0
}

// Reserve places a temporary hold of estimatedCost against all three
// scopes. The hold must later be resolved by Commit or Release.
func (l *Ledger) Reserve(principal, runID string, estimatedCost float64) (string, error) {
	ps := l.principal(principal)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	l.rollDay(ps)

	for _, scope := range scopeOrder {
		limit := l.limits.Limit(scope)
		if limit <= 0 {
			continue
		}
		current := committed(ps, scope, runID)
		if current+estimatedCost > limit {
			return "", &BudgetExceededError{
				Scope:     scope,
				Limit:     limit,
				Consumed:  current,
				Requested: estimatedCost,
			}
		}
	}

	ps.dailyHeld += estimatedCost
	ps.perRunHeld[runID] += estimatedCost
	ps.lifetimeHeld += estimatedCost

	token := id.NewReservationToken()
	l.mu.Lock()
	l.reservations[token] = &reservation{principal: principal, runID: runID, estimate: estimatedCost}
	l.mu.Unlock()
	return token, nil
}

func (l *Ledger) takeReservation(token string) (*reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.reservations[token]
	if !ok {
		return nil, &ErrUnknownReservation{Token: token}
	}
	delete(l.reservations, token)
	return res, nil
}

// Commit converts a hold into consumed usage, replacing the estimate
// with the actual cost in all three scopes.
func (l *Ledger) Commit(token string, actualCost float64) error {
	res, err := l.takeReservation(token)
	if err != nil {
		return err
	}

	ps := l.principal(res.principal)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	l.rollDay(ps)

	ps.dailyHeld -= res.estimate
	ps.perRunHeld[res.runID] -= res.estimate
	ps.lifetimeHeld -= res.estimate

	ps.dailyConsumed += actualCost
	ps.perRunConsumed[res.runID] += actualCost
	ps.lifetimeConsumed += actualCost
	return nil
}

// Release undoes a hold with no effect on consumed totals.
func (l *Ledger) Release(token string) error {
	res, err := l.takeReservation(token)
	if err != nil {
		return err
	}

	ps := l.principal(res.principal)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	l.rollDay(ps)

	ps.dailyHeld -= res.estimate
	ps.perRunHeld[res.runID] -= res.estimate
	ps.lifetimeHeld -= res.estimate
	return nil
}

// RemainingBudget reports the headroom in each scope, accounting for
// outstanding holds. Unconstrained scopes report -1.
func (l *Ledger) RemainingBudget(principal, runID string) Remaining {
	ps := l.principal(principal)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	l.rollDay(ps)

	remaining := func(scope Scope) float64 {
		limit := l.limits.Limit(scope)
		if limit <= 0 {
			return -1
		}
		r := limit - committed(ps, scope, runID)
		if r < 0 {
			return 0
		}
		return r
	}
	return Remaining{
		Daily:    remaining(ScopeDaily),
		PerRun:   remaining(ScopePerRun),
		Lifetime: remaining(ScopeLifetime),
	}
}

// Snapshot is one principal's persisted committed usage, used to
// rebuild ledger state after a restart. PerRun maps run IDs to their
// committed spend; Day stamps the daily total.
type Snapshot struct {
	Principal string
	Day       string
	Daily     float64
	PerRun    map[string]float64
	Lifetime  float64
}

// Restore seeds a principal's committed counters from a persisted
// snapshot, overwriting rather than adding. The daily total is only
// restored when the snapshot covers the current day. Intended for
// startup, before any reservations are taken.
func (l *Ledger) Restore(snap Snapshot) {
	ps := l.principal(snap.Principal)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.day = l.now().Format("2006-01-02")
	if snap.Day == ps.day {
		ps.dailyConsumed = snap.Daily
	}
	for runID, consumed := range snap.PerRun {
		ps.perRunConsumed[runID] = consumed
	}
	ps.lifetimeConsumed = snap.Lifetime
}

// Consumed reports the committed usage for a principal and run,
// excluding outstanding holds.
func (l *Ledger) Consumed(principal, runID string) Usage {
	ps := l.principal(principal)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	l.rollDay(ps)

	return Usage{
		Daily:    ps.dailyConsumed,
		PerRun:   ps.perRunConsumed[runID],
		Lifetime: ps.lifetimeConsumed,
	}
}
