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
	"fmt"
	"sync"
	"time"

	"github.com/stagecrafthq/stagecraft/internal/pkg/artifact"
	"github.com/stagecrafthq/stagecraft/internal/pkg/executor"
	"github.com/stagecrafthq/stagecraft/internal/pkg/governance"
	"github.com/stagecrafthq/stagecraft/internal/pkg/scheduler"
	"github.com/stagecrafthq/stagecraft/internal/pkg/validator"
	"github.com/stagecrafthq/stagecraft/pkg/event"
	"github.com/stagecrafthq/stagecraft/pkg/id"
	"github.com/stagecrafthq/stagecraft/pkg/logger"
	"github.com/stagecrafthq/stagecraft/pkg/metrics"
)

// Engine is the phase state machine. It owns run state exclusively:
// the scheduler, validator and governance gate return results, and
// only the engine commits persisted transitions. Operations on one
// run are serialized; distinct runs proceed fully concurrently.
type Engine struct {
	store     Store
	scheduler *scheduler.Scheduler
	validator *validator.Validator
	artifacts artifact.Store
	sink      *metrics.EngineSink
	bus       *event.Bus

	// defaultPolicy and basePolicy sit under each profile's client
	// policy in resolution order.
	defaultPolicy *governance.Policy
	basePolicy    *governance.Policy

	profilesMu sync.RWMutex
	profiles   map[string]*Profile

	locksMu  sync.Mutex
	runLocks map[string]*sync.Mutex

	now func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithPolicies sets the firm default and universal baseline policies
// layered under each profile's client policy.
func WithPolicies(defaultPolicy, basePolicy *governance.Policy) Option {
	return func(e *Engine) {
		e.defaultPolicy = defaultPolicy
		e.basePolicy = basePolicy
	}
}

// WithEventBus attaches a bus for lifecycle events.
func WithEventBus(bus *event.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithMetricsSink attaches an engine metrics sink.
func WithMetricsSink(sink *metrics.EngineSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithClock overrides time for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the state machine over its collaborators.
func NewEngine(store Store, sched *scheduler.Scheduler, val *validator.Validator, artifacts artifact.Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		scheduler: sched,
		validator: val,
		artifacts: artifacts,
		sink:      metrics.NewNopEngineSink(),
		bus:       event.NewBus(),
		profiles:  make(map[string]*Profile),
		runLocks:  make(map[string]*sync.Mutex),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterProfile makes a profile available to StartRun. Profiles are
// immutable once registered; re-registering an ID replaces it.
func (e *Engine) RegisterProfile(p *Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}
	e.profilesMu.Lock()
	defer e.profilesMu.Unlock()
	e.profiles[p.ID] = p
	return nil
}

// Profile returns a registered profile.
func (e *Engine) Profile(profileID string) (*Profile, error) {
	e.profilesMu.RLock()
	defer e.profilesMu.RUnlock()
	p, ok := e.profiles[profileID]
	if !ok {
		return nil, &InvalidProfileError{ProfileID: profileID, Reason: "profile not registered"}
	}
	return p, nil
}

func validateProfile(p *Profile) error {
	if p.ID == "" {
		return &InvalidProfileError{ProfileID: p.ID, Reason: "profile has no id"}
	}
	if len(p.Phases) == 0 {
		return &InvalidProfileError{ProfileID: p.ID, Reason: "profile has zero phases"}
	}
	seen := make(map[string]struct{}, len(p.Phases))
	for _, ph := range p.Phases {
		if ph.Name == "" {
			return &InvalidProfileError{ProfileID: p.ID, Reason: "phase with empty name"}
		}
		if _, dup := seen[ph.Name]; dup {
			return &InvalidProfileError{ProfileID: p.ID, Reason: fmt.Sprintf("duplicate phase name: %s", ph.Name)}
		}
		seen[ph.Name] = struct{}{}
	}
	return nil
}

// lockRun acquires the per-run mutex. Lock entries are kept for the
// life of the process; runs are few relative to memory.
func (e *Engine) lockRun(runID string) func() {
	e.locksMu.Lock()
	mu, ok := e.runLocks[runID]
	if !ok {
		mu = &sync.Mutex{}
		e.runLocks[runID] = mu
	}
	e.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// StartRun creates a run over a registered profile with status
// Running and the cursor on the first phase.
func (e *Engine) StartRun(ctx context.Context, profileID, principal string, metadata map[string]string) (*Run, error) {
	profile, err := e.Profile(profileID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	run := &Run{
		ID:                id.NewRunID(),
		ProfileID:         profile.ID,
		Principal:         principal,
		Status:            RunRunning,
		CurrentPhaseIndex: 0,
		CurrentAttempt:    1,
		Metadata:          metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist run: %w", err)
	}

	e.sink.RunStarted(profile.ID)
	e.bus.Publish(event.RunEvent{
		Name: event.NameRunStarted, RunID: run.ID, Profile: profile.ID,
		Status: string(run.Status), OccurredAt: now,
	})
	logger.InfoContext(ctx, "run started", "run", run.ID, "profile", profile.ID, "principal", principal)
	return run.Clone(), nil
}

// GetRun returns the run and its execution records.
func (e *Engine) GetRun(ctx context.Context, runID string) (*Run, []*PhaseExecutionRecord, error) {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	records, err := e.store.ListRecords(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	return run, records, nil
}

// DeleteRun removes a run and its history. Artifacts are not touched.
func (e *Engine) DeleteRun(ctx context.Context, runID string) error {
	unlock := e.lockRun(runID)
	defer unlock()
	return e.store.DeleteRun(ctx, runID)
}

// Advance executes the run's current phase end to end: scheduler,
// validator, governance gate, then exactly one committed transition.
// Advance is single-shot: retrying a failed call re-executes the
// still-pending phase attempt.
func (e *Engine) Advance(ctx context.Context, runID string) (*PhaseExecutionRecord, error) {
	unlock := e.lockRun(runID)
	defer unlock()

	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	profile, err := e.Profile(run.ProfileID)
	if err != nil {
		return nil, err
	}

	switch run.Status {
	case RunCompleted:
		return nil, &RunAlreadyCompletedError{RunID: runID}
	case RunAwaitingConsensus:
		return nil, &RunAwaitingConsensusError{RunID: runID, Phase: profile.Phases[run.CurrentPhaseIndex].Name}
	case RunFailed:
		return nil, &RunFailedError{RunID: runID}
	case RunIdle:
		run.Status = RunRunning
	}

	phase := profile.Phases[run.CurrentPhaseIndex]
	record := &PhaseExecutionRecord{
		RunID:     runID,
		Phase:     phase.Name,
		Attempt:   run.CurrentAttempt,
		Status:    RecordInProgress,
		StartedAt: e.now(),
	}
	if err := e.store.SaveRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist phase record: %w", err)
	}
	e.bus.Publish(event.PhaseEvent{
		Name: event.NamePhaseStarted, RunID: runID, Phase: phase.Name,
		Attempt: record.Attempt, Status: string(record.Status), OccurredAt: record.StartedAt,
	})

	prior, err := e.artifacts.List(ctx, runID, "*")
	if err != nil {
		return nil, fmt.Errorf("failed to list prior artifacts: %w", err)
	}

	record.ExecutorOutcomes = e.scheduler.RunPhaseExecutors(ctx, phase.ExecutorIDs, scheduler.PhaseContext{
		RunID:          runID,
		Phase:          phase.Name,
		Attempt:        record.Attempt,
		Principal:      run.Principal,
		PriorArtifacts: prior,
		Feedback:       run.Feedback,
		Metadata:       run.Metadata,
	})
	for _, o := range record.ExecutorOutcomes {
		e.sink.ExecutorFinished(string(o.ExitSignal))
	}

	policy := governance.Resolve(profile.ClientPolicy, e.defaultPolicy, e.basePolicy)
	gates, err := governance.Gates(policy)
	if err != nil {
		return nil, fmt.Errorf("failed to build quality gates: %w", err)
	}
	record.ValidationResult, err = e.validator.Validate(ctx, runID, phase.RequiredArtifactPatterns,
		record.ExecutorOutcomes, gates, measurements(record.ExecutorOutcomes))
	if err != nil {
		return nil, fmt.Errorf("validation failed to run: %w", err)
	}

	// Missing artifacts are recoverable through the phase retry
	// policy; gate failures on complete artifacts fall through to the
	// governance verdict below.
	if record.ValidationResult.Status == validator.StatusFail || len(record.ValidationResult.Missing) > 0 {
		return e.commitValidationFailure(ctx, run, phase, record)
	}

	gres := governance.Evaluate(record.ValidationResult)
	record.GovernanceResult = &gres
	if !gres.Passed {
		return e.commitGovernanceBlock(ctx, run, phase, record)
	}

	if phase.ConsensusRequired {
		return e.commitConsensusPending(ctx, run, phase, record)
	}
	return e.commitPhaseSuccess(ctx, run, profile, phase, record)
}

// measurements merges executor-reported quality metrics into the
// gate environment. Later executors win on key collision.
func measurements(outcomes []executor.Outcome) map[string]any {
	var env map[string]any
	for _, o := range outcomes {
		for k, v := range o.Metrics {
			if env == nil {
				env = make(map[string]any)
			}
			env[k] = v
		}
	}
	return env
}

// commitValidationFailure persists a ValidationFailed attempt and
// either arms a retry or fails the run once retries are exhausted.
func (e *Engine) commitValidationFailure(ctx context.Context, run *Run, phase PhaseDefinition, record *PhaseExecutionRecord) (*PhaseExecutionRecord, error) {
	now := e.now()
	record.CompletedAt = &now
	record.Status = RecordValidationFailed

	verr := &ValidationFailedError{
		Phase:   phase.Name,
		Attempt: record.Attempt,
		Missing: record.ValidationResult.Missing,
	}
	if run.RetriesUsed >= phase.MaxRetries {
		record.Status = RecordFailed
		run.Status = RunFailed
		verr.RetriesExhausted = true
	} else {
		run.RetriesUsed++
		run.CurrentAttempt++
		e.sink.PhaseRetried(phase.Name)
	}

	if err := e.persistTransition(ctx, run, record); err != nil {
		return nil, err
	}
	e.bus.Publish(event.PhaseEvent{
		Name: event.NamePhaseFailed, RunID: run.ID, Phase: phase.Name,
		Attempt: record.Attempt, Status: string(record.Status),
		DurationMs: now.Sub(record.StartedAt).Milliseconds(), OccurredAt: now,
	})
	if run.Status == RunFailed {
		e.sink.RunFinished(run.ProfileID, string(RunFailed))
		e.bus.Publish(event.RunEvent{
			Name: event.NameRunFailed, RunID: run.ID, Profile: run.ProfileID,
			Status: string(run.Status), OccurredAt: now,
		})
	}
	logger.WarnContext(ctx, "phase validation failed",
		"run", run.ID, "phase", phase.Name, "attempt", record.Attempt,
		"missing", record.ValidationResult.Missing, "run_status", string(run.Status))
	return record, verr
}

// commitGovernanceBlock persists a governance-blocked attempt. The
// run stays Running but is not auto-retried: a later Advance after a
// policy change re-executes the phase as a fresh attempt.
func (e *Engine) commitGovernanceBlock(ctx context.Context, run *Run, phase PhaseDefinition, record *PhaseExecutionRecord) (*PhaseExecutionRecord, error) {
	now := e.now()
	record.CompletedAt = &now
	record.Status = RecordFailed
	run.CurrentAttempt++

	if err := e.persistTransition(ctx, run, record); err != nil {
		return nil, err
	}
	e.bus.Publish(event.PhaseEvent{
		Name: event.NamePhaseFailed, RunID: run.ID, Phase: phase.Name,
		Attempt: record.Attempt, Status: string(record.Status),
		DurationMs: now.Sub(record.StartedAt).Milliseconds(), OccurredAt: now,
	})
	logger.WarnContext(ctx, "phase blocked by governance",
		"run", run.ID, "phase", phase.Name, "warnings", record.GovernanceResult.Warnings)
	return record, &GovernanceBlockedError{Phase: phase.Name, Warnings: record.GovernanceResult.Warnings}
}

// commitConsensusPending parks the run until a human decision.
func (e *Engine) commitConsensusPending(ctx context.Context, run *Run, phase PhaseDefinition, record *PhaseExecutionRecord) (*PhaseExecutionRecord, error) {
	record.Status = RecordConsensusPending
	run.Status = RunAwaitingConsensus

	if err := e.persistTransition(ctx, run, record); err != nil {
		return nil, err
	}
	e.sink.ConsensusPendingInc()
	e.bus.Publish(event.ConsensusEvent{
		Name: event.NameConsensusRequested, RunID: run.ID, Phase: phase.Name, OccurredAt: e.now(),
	})
	logger.InfoContext(ctx, "phase awaiting consensus", "run", run.ID, "phase", phase.Name)
	return record, nil
}

// commitPhaseSuccess appends the phase, moves the cursor and, on the
// last phase, completes the run.
func (e *Engine) commitPhaseSuccess(ctx context.Context, run *Run, profile *Profile, phase PhaseDefinition, record *PhaseExecutionRecord) (*PhaseExecutionRecord, error) {
	now := e.now()
	record.CompletedAt = &now
	record.Status = RecordCompleted

	run.CompletedPhases = append(run.CompletedPhases, phase.Name)
	run.CurrentPhaseIndex++
	run.CurrentAttempt = 1
	run.RetriesUsed = 0
	run.Feedback = ""
	if run.CurrentPhaseIndex >= len(profile.Phases) {
		run.Status = RunCompleted
	} else {
		run.Status = RunRunning
		// After a rollback the next phase may already hold records;
		// resume numbering past them so none are overwritten.
		next, err := e.nextAttempt(ctx, run.ID, profile.Phases[run.CurrentPhaseIndex].Name)
		if err != nil {
			return nil, err
		}
		run.CurrentAttempt = next
	}

	if err := e.persistTransition(ctx, run, record); err != nil {
		return nil, err
	}
	e.sink.PhaseExecuted(phase.Name, now.Sub(record.StartedAt))
	e.bus.Publish(event.PhaseEvent{
		Name: event.NamePhaseCompleted, RunID: run.ID, Phase: phase.Name,
		Attempt: record.Attempt, Status: string(record.Status),
		DurationMs: now.Sub(record.StartedAt).Milliseconds(), OccurredAt: now,
	})
	if run.Status == RunCompleted {
		e.sink.RunFinished(run.ProfileID, string(RunCompleted))
		e.bus.Publish(event.RunEvent{
			Name: event.NameRunCompleted, RunID: run.ID, Profile: run.ProfileID,
			Status: string(run.Status), OccurredAt: now,
		})
	}
	logger.InfoContext(ctx, "phase completed",
		"run", run.ID, "phase", phase.Name, "attempt", record.Attempt, "run_status", string(run.Status))
	return record, nil
}

// persistTransition writes the record then the run. The run update is
// the commit point; the record carries the attempt's evidence.
func (e *Engine) persistTransition(ctx context.Context, run *Run, record *PhaseExecutionRecord) error {
	if err := e.store.SaveRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to persist phase record: %w", err)
	}
	if err := e.store.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to persist run transition: %w", err)
	}
	return nil
}

// Approve resolves a pending consensus gate positively, committing
// the parked phase transition exactly as a successful Advance would.
func (e *Engine) Approve(ctx context.Context, runID, decidedBy, feedback string) (*Run, error) {
	return e.decide(ctx, runID, decidedBy, feedback, DecisionApproved)
}

// Reject resolves a pending consensus gate negatively. The run
// returns to Running with the attempt counter incremented and the
// feedback threaded into the next attempt's executor inputs.
func (e *Engine) Reject(ctx context.Context, runID, decidedBy, feedback string) (*Run, error) {
	if feedback == "" {
		return nil, ErrFeedbackRequired
	}
	return e.decide(ctx, runID, decidedBy, feedback, DecisionRejected)
}

func (e *Engine) decide(ctx context.Context, runID, decidedBy, feedback string, decision Decision) (*Run, error) {
	unlock := e.lockRun(runID)
	defer unlock()

	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != RunAwaitingConsensus {
		return nil, &NotAwaitingConsensusError{RunID: runID, Status: run.Status}
	}
	profile, err := e.Profile(run.ProfileID)
	if err != nil {
		return nil, err
	}
	phase := profile.Phases[run.CurrentPhaseIndex]

	record, err := e.pendingRecord(ctx, runID, phase.Name, run.CurrentAttempt)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if err := e.store.SaveDecision(ctx, &ConsensusDecision{
		RunID:     runID,
		Phase:     phase.Name,
		Attempt:   run.CurrentAttempt,
		Decision:  decision,
		Feedback:  feedback,
		DecidedBy: decidedBy,
		DecidedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to persist consensus decision: %w", err)
	}

	if decision == DecisionApproved {
		if _, err := e.commitPhaseSuccess(ctx, run, profile, phase, record); err != nil {
			return nil, err
		}
	} else {
		record.Status = RecordConsensusRejected
		record.CompletedAt = &now
		run.Status = RunRunning
		run.CurrentAttempt++
		run.Feedback = feedback
		if err := e.persistTransition(ctx, run, record); err != nil {
			return nil, err
		}
	}

	e.sink.ConsensusPendingDec()
	e.bus.Publish(event.ConsensusEvent{
		Name: event.NameConsensusResolved, RunID: runID, Phase: phase.Name,
		Decision: string(decision), DecidedBy: decidedBy, OccurredAt: now,
	})
	logger.InfoContext(ctx, "consensus resolved",
		"run", runID, "phase", phase.Name, "decision", string(decision), "decided_by", decidedBy)
	return run.Clone(), nil
}

// pendingRecord loads the ConsensusPending record for the given
// phase attempt.
func (e *Engine) pendingRecord(ctx context.Context, runID, phase string, attempt int) (*PhaseExecutionRecord, error) {
	records, err := e.store.ListRecords(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Phase == phase && rec.Attempt == attempt && rec.Status == RecordConsensusPending {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("no pending consensus record for run %s phase %s attempt %d", runID, phase, attempt)
}

// nextAttempt returns the attempt number that keeps the (run, phase,
// attempt) record key unique: one past the highest attempt already
// recorded for the phase.
func (e *Engine) nextAttempt(ctx context.Context, runID, phase string) (int, error) {
	records, err := e.store.ListRecords(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("failed to list phase records: %w", err)
	}
	next := 1
	for _, rec := range records {
		if rec.Phase == phase && rec.Attempt >= next {
			next = rec.Attempt + 1
		}
	}
	return next, nil
}

// Rollback moves the run cursor back to just after targetPhase. It is
// non-destructive: artifacts and execution records from truncated
// phases are retained, only the run-state pointers change. A run
// awaiting consensus must be resolved before rolling back.
func (e *Engine) Rollback(ctx context.Context, runID, targetPhase, reason string) (*Run, error) {
	unlock := e.lockRun(runID)
	defer unlock()

	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	profile, err := e.Profile(run.ProfileID)
	if err != nil {
		return nil, err
	}
	if run.Status == RunAwaitingConsensus {
		return nil, &RunAwaitingConsensusError{RunID: runID, Phase: profile.Phases[run.CurrentPhaseIndex].Name}
	}

	target := -1
	for i, name := range run.CompletedPhases {
		if name == targetPhase {
			target = i
			break
		}
	}
	if target < 0 {
		return nil, &InvalidRollbackError{RunID: runID, TargetPhase: targetPhase}
	}

	now := e.now()
	truncated := append([]string(nil), run.CompletedPhases[target+1:]...)
	run.CompletedPhases = run.CompletedPhases[:target+1]
	run.CurrentPhaseIndex = target + 1
	run.Status = RunRunning
	run.CurrentAttempt = 1
	run.RetriesUsed = 0
	run.Feedback = ""
	if run.CurrentPhaseIndex < len(profile.Phases) {
		// Records from truncated phases are retained; re-executing the
		// resumed phase must not reuse their attempt numbers.
		next, nerr := e.nextAttempt(ctx, runID, profile.Phases[run.CurrentPhaseIndex].Name)
		if nerr != nil {
			return nil, nerr
		}
		run.CurrentAttempt = next
	}

	if err := e.store.SaveRollback(ctx, &RollbackRecord{
		RunID:           runID,
		TargetPhase:     targetPhase,
		TruncatedPhases: truncated,
		Reason:          reason,
		OccurredAt:      now,
	}); err != nil {
		return nil, fmt.Errorf("failed to persist rollback record: %w", err)
	}
	if err := e.store.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist run transition: %w", err)
	}

	e.bus.Publish(event.RunEvent{
		Name: event.NameRunRolledBack, RunID: runID, Profile: run.ProfileID,
		Status: string(run.Status), OccurredAt: now,
	})
	logger.InfoContext(ctx, "run rolled back",
		"run", runID, "target_phase", targetPhase, "truncated", truncated)
	return run.Clone(), nil
}
