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

package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stagecrafthq/stagecraft/internal/pkg/artifact"
	"github.com/stagecrafthq/stagecraft/internal/pkg/budget"
	"github.com/stagecrafthq/stagecraft/internal/pkg/executor"
	"github.com/stagecrafthq/stagecraft/internal/pkg/governance"
	"github.com/stagecrafthq/stagecraft/internal/pkg/scheduler"
	"github.com/stagecrafthq/stagecraft/internal/pkg/validator"
)

// writerExecutor produces one artifact per invocation and remembers
// the feedback it was handed, so tests can assert threading.
type writerExecutor struct {
	id        string
	store     artifact.Store
	fileName  string
	metrics   map[string]float64
	silent    bool // produce nothing, to force validation failures
	feedbacks []string
}

func (w *writerExecutor) ID() string { return w.id }

func (w *writerExecutor) Execute(ctx context.Context, task *executor.Task) (*executor.Result, error) {
	w.feedbacks = append(w.feedbacks, task.Feedback)
	if w.silent {
		return &executor.Result{Success: true, Cost: 1}, nil
	}
	name := w.fileName
	if name == "" {
		name = fmt.Sprintf("%s-output.md", w.id)
	}
	if err := w.store.Put(ctx, artifact.Ref{RunID: task.RunID, Phase: task.Phase, Path: name}, []byte("content")); err != nil {
		return nil, err
	}
	return &executor.Result{Success: true, Artifacts: []string{name}, Cost: 1, Metrics: w.metrics}, nil
}

type harness struct {
	engine  *Engine
	store   *MemoryStore
	objects artifact.Store
	writers map[string]*writerExecutor
}

func newHarness(t *testing.T, profile *Profile, execs ...*writerExecutor) *harness {
	t.Helper()
	objects, err := artifact.NewFsStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	registry := executor.NewRegistry()
	writers := make(map[string]*writerExecutor)
	for _, w := range execs {
		w.store = objects
		registry.Register(w)
		writers[w.id] = w
	}
	sched := scheduler.New(registry, budget.NewLedger(budget.Limits{}), scheduler.Config{ConcurrencyLimit: 2})
	store := NewMemoryStore()
	engine := NewEngine(store, sched, validator.New(objects), objects)
	if err := engine.RegisterProfile(profile); err != nil {
		t.Fatalf("register profile: %v", err)
	}
	return &harness{engine: engine, store: store, objects: objects, writers: writers}
}

func threePhaseProfile() *Profile {
	return &Profile{
		ID:   "web-delivery",
		Name: "Web Delivery",
		Phases: []PhaseDefinition{
			{Name: "planning", Order: 0, ExecutorIDs: []string{"planner"}, RequiredArtifactPatterns: []string{"planning/*"}, MaxRetries: 1},
			{Name: "architecture", Order: 1, ExecutorIDs: []string{"architect"}, RequiredArtifactPatterns: []string{"architecture/*"}, ConsensusRequired: true, MaxRetries: 1},
			{Name: "implementation", Order: 2, ExecutorIDs: []string{"developer"}, RequiredArtifactPatterns: []string{"implementation/*"}, MaxRetries: 1},
		},
	}
}

func TestRegisterProfileValidation(t *testing.T) {
	h := newHarness(t, threePhaseProfile())

	cases := map[string]*Profile{
		"zero phases":     {ID: "empty"},
		"duplicate names": {ID: "dup", Phases: []PhaseDefinition{{Name: "a"}, {Name: "a"}}},
		"empty name":      {ID: "anon", Phases: []PhaseDefinition{{Name: ""}}},
	}
	for name, p := range cases {
		var invalid *InvalidProfileError
		if err := h.engine.RegisterProfile(p); !errors.As(err, &invalid) {
			t.Errorf("%s: expected InvalidProfileError, got %v", name, err)
		}
	}

	if _, err := h.engine.StartRun(context.Background(), "unknown", "team-a", nil); err == nil {
		t.Error("expected error starting run on unregistered profile")
	}
}

func TestAdvanceToCompletion(t *testing.T) {
	ctx := context.Background()
	profile := &Profile{
		ID: "short",
		Phases: []PhaseDefinition{
			{Name: "planning", ExecutorIDs: []string{"planner"}, RequiredArtifactPatterns: []string{"planning/*"}},
			{Name: "implementation", ExecutorIDs: []string{"developer"}, RequiredArtifactPatterns: []string{"implementation/*"}},
		},
	}
	h := newHarness(t, profile,
		&writerExecutor{id: "planner"},
		&writerExecutor{id: "developer"},
	)

	run, err := h.engine.StartRun(ctx, "short", "team-a", map[string]string{"client": "acme"})
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if run.Status != RunRunning || run.CurrentPhaseIndex != 0 {
		t.Fatalf("unexpected initial state: %+v", run)
	}

	rec, err := h.engine.Advance(ctx, run.ID)
	if err != nil {
		t.Fatalf("advance phase 1: %v", err)
	}
	if rec.Status != RecordCompleted || rec.Phase != "planning" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err = h.engine.Advance(ctx, run.ID); err != nil {
		t.Fatalf("advance phase 2: %v", err)
	}

	final, records, err := h.engine.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if final.Status != RunCompleted {
		t.Errorf("expected completed run, got %s", final.Status)
	}
	if len(final.CompletedPhases) != 2 || final.CompletedPhases[0] != "planning" || final.CompletedPhases[1] != "implementation" {
		t.Errorf("unexpected completed phases: %v", final.CompletedPhases)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}

	var done *RunAlreadyCompletedError
	if _, err := h.engine.Advance(ctx, run.ID); !errors.As(err, &done) {
		t.Errorf("expected RunAlreadyCompletedError, got %v", err)
	}
}

func TestConsensusScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, threePhaseProfile(),
		&writerExecutor{id: "planner"},
		&writerExecutor{id: "architect"},
		&writerExecutor{id: "developer"},
	)

	run, err := h.engine.StartRun(ctx, "web-delivery", "team-a", nil)
	if err != nil {
		t.Fatalf("start run: %v", err)
	}

	if _, err := h.engine.Advance(ctx, run.ID); err != nil {
		t.Fatalf("advance planning: %v", err)
	}
	cur, _, _ := h.engine.GetRun(ctx, run.ID)
	if cur.Status != RunRunning || len(cur.CompletedPhases) != 1 || cur.CompletedPhases[0] != "planning" {
		t.Fatalf("after planning: %+v", cur)
	}

	// Consensus-gated phase passes all automated gates but must park.
	rec, err := h.engine.Advance(ctx, run.ID)
	if err != nil {
		t.Fatalf("advance architecture: %v", err)
	}
	if rec.Status != RecordConsensusPending {
		t.Fatalf("expected consensus-pending record, got %s", rec.Status)
	}
	cur, _, _ = h.engine.GetRun(ctx, run.ID)
	if cur.Status != RunAwaitingConsensus {
		t.Fatalf("expected awaiting consensus, got %s", cur.Status)
	}

	var awaiting *RunAwaitingConsensusError
	if _, err := h.engine.Advance(ctx, run.ID); !errors.As(err, &awaiting) {
		t.Fatalf("expected RunAwaitingConsensusError, got %v", err)
	}

	if _, err := h.engine.Reject(ctx, run.ID, "lead", ""); !errors.Is(err, ErrFeedbackRequired) {
		t.Fatalf("expected ErrFeedbackRequired, got %v", err)
	}
	cur, err = h.engine.Reject(ctx, run.ID, "lead", "needs rework")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if cur.Status != RunRunning || cur.CurrentAttempt != 2 {
		t.Fatalf("after reject: %+v", cur)
	}

	// The rejection feedback must reach the next attempt's executors.
	if _, err := h.engine.Advance(ctx, run.ID); err != nil {
		t.Fatalf("re-advance architecture: %v", err)
	}
	architect := h.writers["architect"]
	last := architect.feedbacks[len(architect.feedbacks)-1]
	if last != "needs rework" {
		t.Fatalf("expected feedback threaded to executor, got %q", last)
	}

	cur, err = h.engine.Approve(ctx, run.ID, "lead", "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if cur.Status != RunRunning {
		t.Fatalf("after approve: %+v", cur)
	}
	if len(cur.CompletedPhases) != 2 || cur.CompletedPhases[1] != "architecture" {
		t.Fatalf("unexpected completed phases: %v", cur.CompletedPhases)
	}
	if cur.Feedback != "" {
		t.Errorf("feedback should be cleared after phase commit, got %q", cur.Feedback)
	}

	decisions, err := h.store.ListDecisions(ctx, run.ID)
	if err != nil || len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d (err %v)", len(decisions), err)
	}
	if decisions[0].Decision != DecisionRejected || decisions[1].Decision != DecisionApproved {
		t.Errorf("unexpected decision sequence: %+v", decisions)
	}

	if _, err := h.engine.Advance(ctx, run.ID); err != nil {
		t.Fatalf("advance implementation: %v", err)
	}
	cur, _, _ = h.engine.GetRun(ctx, run.ID)
	if cur.Status != RunCompleted {
		t.Fatalf("expected completed run, got %s", cur.Status)
	}
}

func TestApproveRequiresPendingConsensus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, threePhaseProfile(), &writerExecutor{id: "planner"})

	run, _ := h.engine.StartRun(ctx, "web-delivery", "team-a", nil)
	var notAwaiting *NotAwaitingConsensusError
	if _, err := h.engine.Approve(ctx, run.ID, "lead", ""); !errors.As(err, &notAwaiting) {
		t.Errorf("expected NotAwaitingConsensusError, got %v", err)
	}
}

func TestValidationRetryThenRunFailure(t *testing.T) {
	ctx := context.Background()
	profile := &Profile{
		ID: "strict",
		Phases: []PhaseDefinition{
			{Name: "planning", ExecutorIDs: []string{"planner"}, RequiredArtifactPatterns: []string{"planning/*"}, MaxRetries: 1},
		},
	}
	h := newHarness(t, profile, &writerExecutor{id: "planner", silent: true})

	run, _ := h.engine.StartRun(ctx, "strict", "team-a", nil)

	var verr *ValidationFailedError
	rec, err := h.engine.Advance(ctx, run.ID)
	if !errors.As(err, &verr) || verr.RetriesExhausted {
		t.Fatalf("expected recoverable ValidationFailedError, got %v", err)
	}
	if rec.Status != RecordValidationFailed {
		t.Fatalf("expected validation-failed record, got %s", rec.Status)
	}
	cur, _, _ := h.engine.GetRun(ctx, run.ID)
	if cur.Status != RunRunning || cur.CurrentAttempt != 2 {
		t.Fatalf("expected retry armed, got %+v", cur)
	}

	rec, err = h.engine.Advance(ctx, run.ID)
	if !errors.As(err, &verr) || !verr.RetriesExhausted {
		t.Fatalf("expected retries-exhausted error, got %v", err)
	}
	if rec.Status != RecordFailed {
		t.Fatalf("expected failed record, got %s", rec.Status)
	}
	cur, _, _ = h.engine.GetRun(ctx, run.ID)
	if cur.Status != RunFailed {
		t.Fatalf("expected failed run, got %s", cur.Status)
	}

	var failed *RunFailedError
	if _, err := h.engine.Advance(ctx, run.ID); !errors.As(err, &failed) {
		t.Errorf("expected RunFailedError, got %v", err)
	}
}

func TestGovernanceBlocksOnFailedGate(t *testing.T) {
	ctx := context.Background()
	minCoverage := 0.8
	profile := &Profile{
		ID: "gated",
		Phases: []PhaseDefinition{
			{Name: "implementation", ExecutorIDs: []string{"developer"}, RequiredArtifactPatterns: []string{"implementation/*"}, MaxRetries: 1},
		},
		ClientPolicy: &governance.Policy{MinCoverage: &minCoverage},
	}
	low := &writerExecutor{id: "developer", metrics: map[string]float64{"coverage": 0.5}}
	h := newHarness(t, profile, low)

	run, _ := h.engine.StartRun(ctx, "gated", "team-a", nil)

	var blocked *GovernanceBlockedError
	rec, err := h.engine.Advance(ctx, run.ID)
	if !errors.As(err, &blocked) {
		t.Fatalf("expected GovernanceBlockedError, got %v", err)
	}
	if rec.Status != RecordFailed || rec.GovernanceResult == nil || rec.GovernanceResult.Passed {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// Governance blocks are not auto-retried; the run stays runnable
	// so a policy or executor change can be advanced again.
	cur, _, _ := h.engine.GetRun(ctx, run.ID)
	if cur.Status != RunRunning {
		t.Fatalf("expected run still running, got %s", cur.Status)
	}

	low.metrics["coverage"] = 0.9
	if _, err := h.engine.Advance(ctx, run.ID); err != nil {
		t.Fatalf("advance after fixing coverage: %v", err)
	}
	cur, _, _ = h.engine.GetRun(ctx, run.ID)
	if cur.Status != RunCompleted {
		t.Fatalf("expected completed run, got %s", cur.Status)
	}
}

func TestPhaseMonotonicity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, threePhaseProfile(),
		&writerExecutor{id: "planner"},
		&writerExecutor{id: "architect"},
		&writerExecutor{id: "developer"},
	)
	run, _ := h.engine.StartRun(ctx, "web-delivery", "team-a", nil)

	sequence := threePhaseProfile().PhaseNames()
	assertPrefix := func() {
		t.Helper()
		cur, _, _ := h.engine.GetRun(ctx, run.ID)
		if len(cur.CompletedPhases) > len(sequence) {
			t.Fatalf("completed phases longer than profile: %v", cur.CompletedPhases)
		}
		for i, name := range cur.CompletedPhases {
			if sequence[i] != name {
				t.Fatalf("completed phases not a profile prefix: %v", cur.CompletedPhases)
			}
		}
	}

	assertPrefix()
	_, _ = h.engine.Advance(ctx, run.ID)
	assertPrefix()
	_, _ = h.engine.Advance(ctx, run.ID)
	assertPrefix()
	if _, err := h.engine.Approve(ctx, run.ID, "lead", ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	assertPrefix()
}

func TestRollbackIsNonDestructive(t *testing.T) {
	ctx := context.Background()
	profile := &Profile{
		ID: "short",
		Phases: []PhaseDefinition{
			{Name: "planning", ExecutorIDs: []string{"planner"}, RequiredArtifactPatterns: []string{"planning/*"}},
			{Name: "implementation", ExecutorIDs: []string{"developer"}, RequiredArtifactPatterns: []string{"implementation/*"}},
		},
	}
	h := newHarness(t, profile,
		&writerExecutor{id: "planner"},
		&writerExecutor{id: "developer"},
	)
	run, _ := h.engine.StartRun(ctx, "short", "team-a", nil)
	_, _ = h.engine.Advance(ctx, run.ID)
	_, _ = h.engine.Advance(ctx, run.ID)

	var invalid *InvalidRollbackError
	if _, err := h.engine.Rollback(ctx, run.ID, "review", "not a phase"); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidRollbackError, got %v", err)
	}

	cur, err := h.engine.Rollback(ctx, run.ID, "planning", "redo implementation")
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if cur.Status != RunRunning || cur.CurrentPhaseIndex != 1 {
		t.Fatalf("after rollback: %+v", cur)
	}
	if len(cur.CompletedPhases) != 1 || cur.CompletedPhases[0] != "planning" {
		t.Fatalf("unexpected completed phases: %v", cur.CompletedPhases)
	}

	// Artifacts from the truncated phase survive.
	refs, err := h.objects.List(ctx, run.ID, "implementation/*")
	if err != nil || len(refs) == 0 {
		t.Fatalf("expected truncated-phase artifacts retained, got %d (err %v)", len(refs), err)
	}
	// Execution records survive too; only run-state pointers moved.
	_, records, _ := h.engine.GetRun(ctx, run.ID)
	if len(records) != 2 {
		t.Fatalf("expected 2 retained records, got %d", len(records))
	}
	var original *PhaseExecutionRecord
	for _, rec := range records {
		if rec.Phase == "implementation" {
			original = rec
		}
	}
	if original == nil || original.Status != RecordCompleted || original.Attempt != 1 {
		t.Fatalf("expected retained implementation record at attempt 1, got %+v", original)
	}

	rollbacks := h.store.Rollbacks(run.ID)
	if len(rollbacks) != 1 || rollbacks[0].TargetPhase != "planning" {
		t.Fatalf("expected advisory rollback record, got %+v", rollbacks)
	}
	if len(rollbacks[0].TruncatedPhases) != 1 || rollbacks[0].TruncatedPhases[0] != "implementation" {
		t.Fatalf("unexpected truncated list: %v", rollbacks[0].TruncatedPhases)
	}

	// The run can be re-advanced to completion after rollback.
	rec, err := h.engine.Advance(ctx, run.ID)
	if err != nil {
		t.Fatalf("re-advance: %v", err)
	}
	if rec.Attempt != 2 {
		t.Fatalf("expected re-execution at attempt 2, got %d", rec.Attempt)
	}
	cur, _, _ = h.engine.GetRun(ctx, run.ID)
	if cur.Status != RunCompleted {
		t.Fatalf("expected completed run, got %s", cur.Status)
	}

	// Re-executing must append a new record, never replace the retained
	// one from before the rollback.
	_, records, _ = h.engine.GetRun(ctx, run.ID)
	attempts := make(map[int]*PhaseExecutionRecord)
	for _, r := range records {
		if r.Phase == "implementation" {
			attempts[r.Attempt] = r
		}
	}
	if len(attempts) != 2 {
		t.Fatalf("expected the pre-rollback record plus a new attempt, got %d implementation record(s)", len(attempts))
	}
	kept := attempts[1]
	if kept == nil || kept.Status != RecordCompleted || !kept.StartedAt.Equal(original.StartedAt) {
		t.Fatalf("pre-rollback record was overwritten: %+v", kept)
	}
}

func TestRollbackResumesAttemptNumberingAcrossPhases(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &Profile{
		ID: "triple",
		Phases: []PhaseDefinition{
			{Name: "planning", ExecutorIDs: []string{"planner"}, RequiredArtifactPatterns: []string{"planning/*"}},
			{Name: "implementation", ExecutorIDs: []string{"developer"}, RequiredArtifactPatterns: []string{"implementation/*"}},
			{Name: "review", ExecutorIDs: []string{"reviewer"}, RequiredArtifactPatterns: []string{"review/*"}},
		},
	},
		&writerExecutor{id: "planner"},
		&writerExecutor{id: "developer"},
		&writerExecutor{id: "reviewer"},
	)
	run, _ := h.engine.StartRun(ctx, "triple", "team-a", nil)
	for i := 0; i < 3; i++ {
		if _, err := h.engine.Advance(ctx, run.ID); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}

	if _, err := h.engine.Rollback(ctx, run.ID, "planning", "redo everything after planning"); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	for i := 0; i < 2; i++ {
		rec, err := h.engine.Advance(ctx, run.ID)
		if err != nil {
			t.Fatalf("re-advance %d: %v", i, err)
		}
		if rec.Attempt != 2 {
			t.Fatalf("re-advance %d: expected attempt 2, got %d", i, rec.Attempt)
		}
	}

	// One record per (phase, attempt): three first passes plus the two
	// re-executed phases.
	_, records, _ := h.engine.GetRun(ctx, run.ID)
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
}

func TestRunNotFound(t *testing.T) {
	h := newHarness(t, threePhaseProfile())
	var notFound *RunNotFoundError
	if _, err := h.engine.Advance(context.Background(), "run-missing"); !errors.As(err, &notFound) {
		t.Errorf("expected RunNotFoundError, got %v", err)
	}
}

func TestMemoryStoreVersionConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	run := &Run{ID: "run-1", Status: RunRunning}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("create: %v", err)
	}

	a, _ := store.GetRun(ctx, "run-1")
	b, _ := store.GetRun(ctx, "run-1")
	if err := store.UpdateRun(ctx, a); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := store.UpdateRun(ctx, b); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("expected version conflict, got %v", err)
	}
}
