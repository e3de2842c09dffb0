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

package scheduler

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stagecrafthq/stagecraft/internal/pkg/budget"
	"github.com/stagecrafthq/stagecraft/internal/pkg/executor"
)

type fakeExecutor struct {
	id string
	fn func(ctx context.Context, task *executor.Task) (*executor.Result, error)
}

func (f *fakeExecutor) ID() string { return f.id }

func (f *fakeExecutor) Execute(ctx context.Context, task *executor.Task) (*executor.Result, error) {
	return f.fn(ctx, task)
}

func succeedAfter(d time.Duration, cost float64) func(context.Context, *executor.Task) (*executor.Result, error) {
	return func(ctx context.Context, _ *executor.Task) (*executor.Result, error) {
		select {
		case <-time.After(d):
			return &executor.Result{Success: true, Cost: cost}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func newTestScheduler(t *testing.T, limits budget.Limits, cfg Config, executors ...*fakeExecutor) (*Scheduler, *budget.Ledger) {
	t.Helper()
	registry := executor.NewRegistry()
	for _, e := range executors {
		registry.Register(e)
	}
	ledger := budget.NewLedger(limits)
	return New(registry, ledger, cfg), ledger
}

func TestOutcomesFollowRequestOrder(t *testing.T) {
	// Later executors finish first; collection order must not change.
	execs := []*fakeExecutor{
		{id: "slow", fn: succeedAfter(60*time.Millisecond, 1)},
		{id: "medium", fn: succeedAfter(30*time.Millisecond, 1)},
		{id: "fast", fn: succeedAfter(1*time.Millisecond, 1)},
	}
	s, _ := newTestScheduler(t, budget.Limits{}, Config{ConcurrencyLimit: 3}, execs...)

	outcomes := s.RunPhaseExecutors(context.Background(), []string{"slow", "medium", "fast"}, PhaseContext{
		RunID: "run-1", Phase: "build", Principal: "team-a",
	})

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for i, want := range []string{"slow", "medium", "fast"} {
		if outcomes[i].ExecutorID != want {
			t.Errorf("outcome %d: expected %s, got %s", i, want, outcomes[i].ExecutorID)
		}
		if !outcomes[i].Success || outcomes[i].ExitSignal != executor.ExitSuccess {
			t.Errorf("outcome %d: expected success, got %+v", i, outcomes[i])
		}
	}
}

func TestConcurrencyLimitHonored(t *testing.T) {
	var inFlight, peak atomic.Int32
	track := func(ctx context.Context, _ *executor.Task) (*executor.Result, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return &executor.Result{Success: true, Cost: 1}, nil
	}
	execs := make([]*fakeExecutor, 0, 5)
	ids := make([]string, 0, 5)
	for _, id := range []string{"e1", "e2", "e3", "e4", "e5"} {
		execs = append(execs, &fakeExecutor{id: id, fn: track})
		ids = append(ids, id)
	}
	s, _ := newTestScheduler(t, budget.Limits{}, Config{ConcurrencyLimit: 2}, execs...)

	s.RunPhaseExecutors(context.Background(), ids, PhaseContext{RunID: "run-1", Principal: "team-a"})

	if got := peak.Load(); got > 2 {
		t.Errorf("expected at most 2 in-flight executors, observed %d", got)
	}
}

func TestPanicIsolatedToOneOutcome(t *testing.T) {
	execs := []*fakeExecutor{
		{id: "steady-1", fn: succeedAfter(time.Millisecond, 5)},
		{id: "faulty", fn: func(context.Context, *executor.Task) (*executor.Result, error) {
			panic("boom")
		}},
		{id: "steady-2", fn: succeedAfter(time.Millisecond, 5)},
	}
	s, ledger := newTestScheduler(t, budget.Limits{PerRun: 100}, Config{ConcurrencyLimit: 3}, execs...)

	outcomes := s.RunPhaseExecutors(context.Background(), []string{"steady-1", "faulty", "steady-2"}, PhaseContext{
		RunID: "run-1", Principal: "team-a",
	})

	if outcomes[0].ExitSignal != executor.ExitSuccess || outcomes[2].ExitSignal != executor.ExitSuccess {
		t.Fatalf("siblings affected by fault: %+v", outcomes)
	}
	if outcomes[1].Success || outcomes[1].ExitSignal != executor.ExitError {
		t.Fatalf("expected faulty executor to fail, got %+v", outcomes[1])
	}
	if !strings.Contains(outcomes[1].ErrorDetail, "executor fault") {
		t.Errorf("unexpected error detail: %s", outcomes[1].ErrorDetail)
	}
	// The faulty executor's reservation must be released; only the two
	// successful commits remain on the books.
	if usage := ledger.Consumed("team-a", "run-1"); usage.PerRun != 10 {
		t.Errorf("expected 10 units consumed, got %.2f", usage.PerRun)
	}
}

func TestBudgetRejectionDoesNotAbortSiblings(t *testing.T) {
	execs := make([]*fakeExecutor, 0, 5)
	for _, id := range []string{"e1", "e2", "heavy", "e4", "e5"} {
		execs = append(execs, &fakeExecutor{id: id, fn: succeedAfter(time.Millisecond, 0)})
	}
	cfg := Config{
		ConcurrencyLimit: 2,
		Estimates:        map[string]float64{"heavy": 1000},
		DefaultEstimate:  10,
	}
	s, ledger := newTestScheduler(t, budget.Limits{PerRun: 50}, cfg, execs...)

	outcomes := s.RunPhaseExecutors(context.Background(), []string{"e1", "e2", "heavy", "e4", "e5"}, PhaseContext{
		RunID: "run-1", Principal: "team-a",
	})

	for i, o := range outcomes {
		if o.ExecutorID == "heavy" {
			if o.Success {
				t.Fatalf("expected heavy executor to be rejected")
			}
			if !strings.Contains(o.ErrorDetail, "budget exceeded in per_run scope") {
				t.Errorf("unexpected error detail: %s", o.ErrorDetail)
			}
			continue
		}
		if !o.Success {
			t.Errorf("outcome %d (%s): expected success, got %+v", i, o.ExecutorID, o)
		}
		if o.Cost != 10 {
			t.Errorf("outcome %d (%s): expected estimate committed as cost, got %.2f", i, o.ExecutorID, o.Cost)
		}
	}
	if usage := ledger.Consumed("team-a", "run-1"); usage.PerRun != 40 {
		t.Errorf("expected 40 units consumed, got %.2f", usage.PerRun)
	}
}

func TestTimeoutReleasesReservation(t *testing.T) {
	blocker := &fakeExecutor{id: "blocker", fn: func(ctx context.Context, _ *executor.Task) (*executor.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	s, ledger := newTestScheduler(t, budget.Limits{PerRun: 50}, Config{ConcurrencyLimit: 1, ExecutorTimeout: 1}, blocker)

	outcomes := s.RunPhaseExecutors(context.Background(), []string{"blocker"}, PhaseContext{
		RunID: "run-1", Principal: "team-a",
	})

	if outcomes[0].ExitSignal != executor.ExitTimeout {
		t.Fatalf("expected timeout signal, got %s", outcomes[0].ExitSignal)
	}
	if usage := ledger.Consumed("team-a", "run-1"); usage.PerRun != 0 {
		t.Errorf("timed-out invocation must not be billed, got %.2f", usage.PerRun)
	}
	if remaining := ledger.RemainingBudget("team-a", "run-1"); remaining.PerRun != 50 {
		t.Errorf("expected reservation released, remaining %.2f", remaining.PerRun)
	}
}

func TestReportedCostOverridesEstimate(t *testing.T) {
	exact := &fakeExecutor{id: "exact", fn: succeedAfter(time.Millisecond, 7)}
	cfg := Config{ConcurrencyLimit: 1, Estimates: map[string]float64{"exact": 25}}
	s, ledger := newTestScheduler(t, budget.Limits{PerRun: 30}, cfg, exact)

	outcomes := s.RunPhaseExecutors(context.Background(), []string{"exact"}, PhaseContext{
		RunID: "run-1", Principal: "team-a",
	})

	if outcomes[0].Cost != 7 {
		t.Errorf("expected reported cost 7, got %.2f", outcomes[0].Cost)
	}
	if usage := ledger.Consumed("team-a", "run-1"); usage.PerRun != 7 {
		t.Errorf("expected exact reconciliation on commit, got %.2f", usage.PerRun)
	}
}

func TestUnknownExecutorYieldsFailedOutcome(t *testing.T) {
	s, ledger := newTestScheduler(t, budget.Limits{PerRun: 50}, Config{})

	outcomes := s.RunPhaseExecutors(context.Background(), []string{"ghost"}, PhaseContext{
		RunID: "run-1", Principal: "team-a",
	})

	if outcomes[0].Success || outcomes[0].ExitSignal != executor.ExitError {
		t.Fatalf("expected failed outcome, got %+v", outcomes[0])
	}
	if !strings.Contains(outcomes[0].ErrorDetail, "no executor registered") {
		t.Errorf("unexpected error detail: %s", outcomes[0].ErrorDetail)
	}
	if remaining := ledger.RemainingBudget("team-a", "run-1"); remaining.PerRun != 50 {
		t.Errorf("expected reservation released, remaining %.2f", remaining.PerRun)
	}
}

func TestFailedResultStillBilled(t *testing.T) {
	failing := &fakeExecutor{id: "failing", fn: func(context.Context, *executor.Task) (*executor.Result, error) {
		return &executor.Result{Success: false, ErrorDetail: "tests red", Cost: 4}, nil
	}}
	s, ledger := newTestScheduler(t, budget.Limits{PerRun: 50}, Config{}, failing)

	outcomes := s.RunPhaseExecutors(context.Background(), []string{"failing"}, PhaseContext{
		RunID: "run-1", Principal: "team-a",
	})

	if outcomes[0].Success || outcomes[0].ErrorDetail != "tests red" {
		t.Fatalf("expected failed outcome with detail, got %+v", outcomes[0])
	}
	// The invocation ran to completion, so its actual cost counts even
	// though the work failed.
	if usage := ledger.Consumed("team-a", "run-1"); usage.PerRun != 4 {
		t.Errorf("expected 4 units consumed, got %.2f", usage.PerRun)
	}
}
