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

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stagecrafthq/stagecraft/internal/engine/model"
	"github.com/stagecrafthq/stagecraft/internal/engine/repo"
	"github.com/stagecrafthq/stagecraft/internal/pkg/artifact"
	"github.com/stagecrafthq/stagecraft/internal/pkg/budget"
	"github.com/stagecrafthq/stagecraft/internal/pkg/workflow"
	"github.com/stagecrafthq/stagecraft/pkg/logger"
)

// RunService drives runs through the engine and keeps the read-side
// projections (listing, budget snapshots) in the database.
type RunService struct {
	engine   *workflow.Engine
	runs     repo.IRunRepository
	budgets  repo.IBudgetRepository
	profiles *ProfileService
	ledger   *budget.Ledger
	objects  artifact.Store
}

func NewRunService(
	engine *workflow.Engine,
	repos *repo.Repositories,
	profiles *ProfileService,
	ledger *budget.Ledger,
	objects artifact.Store,
) *RunService {
	return &RunService{
		engine:   engine,
		runs:     repos.Run,
		budgets:  repos.Budget,
		profiles: profiles,
		ledger:   ledger,
		objects:  objects,
	}
}

// StartRun creates a run for the requested profile. The profile is
// loaded from storage on first use.
func (s *RunService) StartRun(ctx context.Context, req *model.StartRunReq) (*workflow.Run, error) {
	if req.ProfileId == "" {
		return nil, errors.New("profile id cannot be empty")
	}
	if req.Principal == "" {
		return nil, errors.New("principal cannot be empty")
	}
	if err := s.profiles.EnsureLoaded(ctx, req.ProfileId); err != nil {
		return nil, err
	}
	run, err := s.engine.StartRun(ctx, req.ProfileId, req.Principal, req.Metadata)
	if err != nil {
		return nil, err
	}
	logger.Infow("run started", "runId", run.ID, "profile", run.ProfileID, "principal", run.Principal)
	return run, nil
}

// Advance executes the current phase. Validation retries, governance
// blocks and consensus handoffs surface as typed errors alongside the
// attempt record; the budget snapshot is persisted either way.
func (s *RunService) Advance(ctx context.Context, runId string) (*workflow.PhaseExecutionRecord, error) {
	record, advErr := s.engine.Advance(ctx, runId)
	if record != nil {
		s.snapshotBudget(ctx, runId)
	}
	return record, advErr
}

// GetRun returns the run and its full phase execution history.
func (s *RunService) GetRun(ctx context.Context, runId string) (*model.RunDetailRep, error) {
	run, records, err := s.engine.GetRun(ctx, runId)
	if err != nil {
		return nil, err
	}
	return &model.RunDetailRep{Run: run, Records: records}, nil
}

// ListRuns pages through stored runs.
func (s *RunService) ListRuns(ctx context.Context, req *model.ListRunsReq) (*model.RunListRep, error) {
	rows, total, err := s.runs.List(ctx, &repo.RunQuery{
		ProfileId: req.ProfileId,
		Principal: req.Principal,
		Status:    req.Status,
		Page:      req.Page,
		PageSize:  req.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list runs failed: %w", err)
	}
	rep := &model.RunListRep{Total: total, Runs: make([]model.RunSummary, 0, len(rows))}
	for _, row := range rows {
		rep.Runs = append(rep.Runs, model.RunSummary{
			RunId:             row.RunId,
			ProfileId:         row.ProfileId,
			Principal:         row.Principal,
			Status:            row.Status,
			CurrentPhaseIndex: row.CurrentPhaseIndex,
			CurrentAttempt:    row.CurrentAttempt,
			CreatedAt:         row.CreatedAt,
			UpdatedAt:         row.UpdatedAt,
		})
	}
	return rep, nil
}

// Approve resolves a pending consensus gate in favor of the phase.
func (s *RunService) Approve(ctx context.Context, runId string, req *model.ConsensusReq) (*workflow.Run, error) {
	return s.engine.Approve(ctx, runId, req.DecidedBy, req.Feedback)
}

// Reject sends the phase back for another attempt with feedback.
func (s *RunService) Reject(ctx context.Context, runId string, req *model.ConsensusReq) (*workflow.Run, error) {
	return s.engine.Reject(ctx, runId, req.DecidedBy, req.Feedback)
}

// Rollback rewinds the run to just after the target phase. Artifacts
// from later phases stay in the store.
func (s *RunService) Rollback(ctx context.Context, runId string, req *model.RollbackReq) (*workflow.Run, error) {
	if req.TargetPhase == "" {
		return nil, errors.New("target phase cannot be empty")
	}
	return s.engine.Rollback(ctx, runId, req.TargetPhase, req.Reason)
}

// DeleteRun removes a run and its history.
func (s *RunService) DeleteRun(ctx context.Context, runId string) error {
	return s.engine.DeleteRun(ctx, runId)
}

// ListArtifacts groups the run's stored artifacts by phase.
func (s *RunService) ListArtifacts(ctx context.Context, runId string) (map[string][]model.ArtifactSummary, error) {
	if _, _, err := s.engine.GetRun(ctx, runId); err != nil {
		return nil, err
	}
	refs, err := s.objects.List(ctx, runId, "*")
	if err != nil {
		return nil, fmt.Errorf("list artifacts failed: %w", err)
	}
	grouped := make(map[string][]model.ArtifactSummary)
	for _, ref := range refs {
		grouped[ref.Phase] = append(grouped[ref.Phase], model.ArtifactSummary{
			Path:      ref.Path,
			Size:      ref.Size,
			CreatedAt: ref.CreatedAt,
		})
	}
	return grouped, nil
}

// GetMetrics aggregates phase durations, committed costs and reported
// quality measurements for one run.
func (s *RunService) GetMetrics(ctx context.Context, runId string) (*model.RunMetricsRep, error) {
	run, records, err := s.engine.GetRun(ctx, runId)
	if err != nil {
		return nil, err
	}

	rep := &model.RunMetricsRep{RunId: runId}
	byPhase := make(map[string]*model.PhaseMetrics)
	order := make([]string, 0, len(records))
	for _, rec := range records {
		pm, ok := byPhase[rec.Phase]
		if !ok {
			pm = &model.PhaseMetrics{Phase: rec.Phase}
			byPhase[rec.Phase] = pm
			order = append(order, rec.Phase)
		}
		pm.Attempts++
		pm.Status = string(rec.Status)
		if rec.CompletedAt != nil {
			pm.DurationMs += rec.CompletedAt.Sub(rec.StartedAt).Milliseconds()
		}
		for _, out := range rec.ExecutorOutcomes {
			pm.Cost += out.Cost
			for name, value := range out.Metrics {
				if pm.Quality == nil {
					pm.Quality = make(map[string]float64)
				}
				pm.Quality[name] = value
			}
		}
	}
	for _, phase := range order {
		pm := byPhase[phase]
		rep.TotalCost += pm.Cost
		rep.DurationMs += pm.DurationMs
		rep.Phases = append(rep.Phases, *pm)
	}

	usage := s.ledger.Consumed(run.Principal, runId)
	rep.Budget = &model.BudgetUsage{
		Principal: run.Principal,
		RunId:     runId,
		Day:       time.Now().UTC().Format("2006-01-02"),
		Daily:     usage.Daily,
		PerRun:    usage.PerRun,
		Lifetime:  usage.Lifetime,
	}
	return rep, nil
}

// RestoreBudgets seeds the in-memory ledger from persisted usage
// snapshots so daily and lifetime consumption keep counting against
// their limits across restarts.
func (s *RunService) RestoreBudgets(ctx context.Context) error {
	rows, err := s.budgets.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list budget snapshots failed: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	today := time.Now().UTC().Format("2006-01-02")
	snaps := make(map[string]*budget.Snapshot)
	for _, row := range rows {
		snap, ok := snaps[row.Principal]
		if !ok {
			snap = &budget.Snapshot{Principal: row.Principal, PerRun: make(map[string]float64)}
			snaps[row.Principal] = snap
		}
		snap.PerRun[row.RunId] = row.PerRun
		// Each row carries the principal-wide totals as of its write,
		// so the largest value is the most recent.
		if row.Lifetime > snap.Lifetime {
			snap.Lifetime = row.Lifetime
		}
		if row.Day == today && row.Daily > snap.Daily {
			snap.Day = today
			snap.Daily = row.Daily
		}
	}
	for _, snap := range snaps {
		s.ledger.Restore(*snap)
	}
	logger.Infow("budget ledger restored", "principals", len(snaps), "snapshots", len(rows))
	return nil
}

// snapshotBudget persists the ledger's committed totals so consumed
// spend survives restarts. Failures are logged, never fatal.
func (s *RunService) snapshotBudget(ctx context.Context, runId string) {
	run, _, err := s.engine.GetRun(ctx, runId)
	if err != nil {
		logger.Warnw("budget snapshot skipped", "runId", runId, "error", err)
		return
	}
	usage := s.ledger.Consumed(run.Principal, runId)
	err = s.budgets.Upsert(ctx, &model.BudgetUsage{
		Principal: run.Principal,
		RunId:     runId,
		Day:       time.Now().UTC().Format("2006-01-02"),
		Daily:     usage.Daily,
		PerRun:    usage.PerRun,
		Lifetime:  usage.Lifetime,
	})
	if err != nil {
		logger.Errorw("persist budget snapshot failed", "runId", runId, "error", err)
	}
}
