package budget

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"
)

func TestReserveCommitRelease(t *testing.T) {
	ledger := NewLedger(Limits{Daily: 100, PerRun: 50, Lifetime: 1000})

	token, err := ledger.Reserve("alice", "run-1", 30)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	remaining := ledger.RemainingBudget("alice", "run-1")
	if remaining.PerRun != 20 {
		t.Errorf("per_run remaining = %v with hold, want 20", remaining.PerRun)
	}

	if err := ledger.Commit(token, 25); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	usage := ledger.Consumed("alice", "run-1")
	if usage.PerRun != 25 || usage.Daily != 25 || usage.Lifetime != 25 {
		t.Errorf("unexpected usage after commit: %+v", usage)
	}

	token, err = ledger.Reserve("alice", "run-1", 20)
	if err != nil {
		t.Fatalf("second reserve failed: %v", err)
	}
	if err := ledger.Release(token); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	usage = ledger.Consumed("alice", "run-1")
	if usage.PerRun != 25 {
		t.Errorf("release changed consumed totals: %+v", usage)
	}
}

func TestReserveScopeOrder(t *testing.T) {
	tests := []struct {
		name      string
		limits    Limits
		request   float64
		wantScope Scope
	}{
		{
			name:      "daily breached first",
			limits:    Limits{Daily: 10, PerRun: 10, Lifetime: 10},
			request:   20,
			wantScope: ScopeDaily,
		},
		{
			name:      "per_run breached when daily headroom exists",
			limits:    Limits{Daily: 100, PerRun: 10, Lifetime: 100},
			request:   20,
			wantScope: ScopePerRun,
		},
		{
			name:      "lifetime breached last",
			limits:    Limits{Daily: 100, PerRun: 100, Lifetime: 10},
			request:   20,
			wantScope: ScopeLifetime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := NewLedger(tt.limits)
			_, err := ledger.Reserve("alice", "run-1", tt.request)
			var exceeded *BudgetExceededError
			if !errors.As(err, &exceeded) {
				t.Fatalf("expected BudgetExceededError, got %v", err)
			}
			if exceeded.Scope != tt.wantScope {
				t.Errorf("violated scope = %s, want %s", exceeded.Scope, tt.wantScope)
			}
			if exceeded.Requested != tt.request {
				t.Errorf("requested = %v, want %v", exceeded.Requested, tt.request)
			}
		})
	}
}

func TestUnconstrainedScopes(t *testing.T) {
	ledger := NewLedger(Limits{PerRun: 50})

	if _, err := ledger.Reserve("alice", "run-1", 1000); err == nil {
		t.Fatal("expected per_run rejection")
	}
	token, err := ledger.Reserve("alice", "run-1", 40)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := ledger.Commit(token, 40); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	remaining := ledger.RemainingBudget("alice", "run-1")
	if remaining.Daily != -1 || remaining.Lifetime != -1 {
		t.Errorf("unconstrained scopes should report -1: %+v", remaining)
	}
	if remaining.PerRun != 10 {
		t.Errorf("per_run remaining = %v, want 10", remaining.PerRun)
	}
}

func TestPerRunIsolation(t *testing.T) {
	ledger := NewLedger(Limits{PerRun: 50})

	token, err := ledger.Reserve("alice", "run-1", 50)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := ledger.Commit(token, 50); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// A different run draws from its own per_run counter.
	if _, err := ledger.Reserve("alice", "run-2", 50); err != nil {
		t.Errorf("run-2 reservation should succeed: %v", err)
	}
}

func TestDailyRollover(t *testing.T) {
	current := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	ledger := NewLedger(Limits{Daily: 50}, WithClock(func() time.Time { return current }))

	token, err := ledger.Reserve("alice", "run-1", 50)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := ledger.Commit(token, 50); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if _, err := ledger.Reserve("alice", "run-1", 10); err == nil {
		t.Fatal("expected daily rejection before rollover")
	}

	current = current.Add(2 * time.Hour) // next day
	if _, err := ledger.Reserve("alice", "run-1", 10); err != nil {
		t.Errorf("expected daily counter reset after rollover: %v", err)
	}
}

func TestDailyRolloverCarriesOutstandingHolds(t *testing.T) {
	current := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	ledger := NewLedger(Limits{Daily: 50}, WithClock(func() time.Time { return current }))

	token, err := ledger.Reserve("alice", "run-1", 30)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	current = current.Add(2 * time.Hour) // next day, hold still open
	if err := ledger.Release(token); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	// Resolving the straddling hold must not grant extra headroom.
	remaining := ledger.RemainingBudget("alice", "run-1")
	if remaining.Daily != 50 {
		t.Errorf("daily remaining = %v after release, want 50", remaining.Daily)
	}
	if _, err := ledger.Reserve("alice", "run-1", 51); err == nil {
		t.Error("expected rejection above the daily limit")
	}
}

func TestRestoreSeedsCommittedUsage(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	limits := Limits{Daily: 100, PerRun: 50, Lifetime: 200}

	before := NewLedger(limits, WithClock(clock))
	token, err := before.Reserve("alice", "run-1", 40)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := before.Commit(token, 180); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// A fresh ledger seeded from the persisted totals keeps enforcing
	// the lifetime ceiling as if the process never restarted.
	after := NewLedger(limits, WithClock(clock))
	after.Restore(Snapshot{
		Principal: "alice",
		Day:       now.Format("2006-01-02"),
		Daily:     180,
		PerRun:    map[string]float64{"run-1": 180},
		Lifetime:  180,
	})

	_, err = after.Reserve("alice", "run-2", 30)
	var exceeded *BudgetExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected BudgetExceededError after restore, got %v", err)
	}
	if exceeded.Scope != ScopeDaily {
		t.Errorf("violated scope = %s, want %s", exceeded.Scope, ScopeDaily)
	}

	// A stale daily total from an earlier day does not count today.
	stale := NewLedger(limits, WithClock(clock))
	stale.Restore(Snapshot{
		Principal: "alice",
		Day:       "2026-03-01",
		Daily:     180,
		PerRun:    map[string]float64{"run-1": 180},
		Lifetime:  180,
	})
	if _, err := stale.Reserve("alice", "run-2", 30); err == nil {
		t.Error("expected lifetime rejection with restored lifetime total")
	}
	usage := stale.Consumed("alice", "run-2")
	if usage.Daily != 0 {
		t.Errorf("stale daily total restored: %v", usage.Daily)
	}
}

func TestUnknownToken(t *testing.T) {
	ledger := NewLedger(Limits{})
	var unknown *ErrUnknownReservation
	if err := ledger.Commit("rsv-missing", 1); !errors.As(err, &unknown) {
		t.Errorf("expected ErrUnknownReservation, got %v", err)
	}
	if err := ledger.Release("rsv-missing"); !errors.As(err, &unknown) {
		t.Errorf("expected ErrUnknownReservation, got %v", err)
	}
}

// Randomized concurrent reservations must never overshoot the limit:
// the sum of committed costs stays within each scope's ceiling.
func TestConcurrentReservationSafety(t *testing.T) {
	const limit = 500.0
	ledger := NewLedger(Limits{PerRun: limit, Lifetime: limit})

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 100; i++ {
				cost := float64(rng.Intn(40) + 1)
				token, err := ledger.Reserve("alice", "run-1", cost)
				if err != nil {
					var exceeded *BudgetExceededError
					if !errors.As(err, &exceeded) {
						t.Errorf("unexpected error type: %v", err)
					}
					continue
				}
				if rng.Intn(4) == 0 {
					_ = ledger.Release(token)
				} else {
					_ = ledger.Commit(token, cost)
				}
			}
		}(int64(w))
	}
	wg.Wait()

	usage := ledger.Consumed("alice", "run-1")
	if usage.PerRun > limit {
		t.Errorf("per_run consumed %v exceeds limit %v", usage.PerRun, limit)
	}
	if usage.Lifetime > limit {
		t.Errorf("lifetime consumed %v exceeds limit %v", usage.Lifetime, limit)
	}
}
