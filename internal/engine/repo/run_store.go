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

package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"

	"github.com/stagecrafthq/stagecraft/internal/engine/model"
	"github.com/stagecrafthq/stagecraft/internal/pkg/executor"
	"github.com/stagecrafthq/stagecraft/internal/pkg/governance"
	"github.com/stagecrafthq/stagecraft/internal/pkg/validator"
	"github.com/stagecrafthq/stagecraft/internal/pkg/workflow"
	"github.com/stagecrafthq/stagecraft/pkg/serde"
)

// RunStore adapts the gorm repositories to the engine's Store
// contract. Domain payloads travel as serialized documents; the
// rows keep scalar columns for querying.
type RunStore struct {
	runs    IRunRepository
	records IRecordRepository
}

// NewRunStore creates the database-backed engine store.
func NewRunStore(runs IRunRepository, records IRecordRepository) workflow.Store {
	return &RunStore{runs: runs, records: records}
}

func (s *RunStore) CreateRun(ctx context.Context, run *workflow.Run) error {
	row, err := runToRow(run)
	if err != nil {
		return err
	}
	row.Version = 1
	if err := s.runs.Create(ctx, row); err != nil {
		return err
	}
	run.Version = 1
	return nil
}

func (s *RunStore) GetRun(ctx context.Context, runID string) (*workflow.Run, error) {
	row, err := s.runs.Get(ctx, runID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &workflow.RunNotFoundError{RunID: runID}
	}
	if err != nil {
		return nil, err
	}
	return runFromRow(row)
}

func (s *RunStore) UpdateRun(ctx context.Context, run *workflow.Run) error {
	completed, err := sonic.MarshalString(run.CompletedPhases)
	if err != nil {
		return fmt.Errorf("failed to encode completed phases: %w", err)
	}
	err = s.runs.UpdateWithVersion(ctx, run.ID, run.Version, map[string]any{
		"status":              string(run.Status),
		"current_phase_index": run.CurrentPhaseIndex,
		"completed_phases":    completed,
		"current_attempt":     run.CurrentAttempt,
		"retries_used":        run.RetriesUsed,
		"feedback":            run.Feedback,
		"metadata":            serde.MarshalStringMap(run.Metadata),
	})
	if errors.Is(err, ErrRunVersionConflict) {
		return workflow.ErrVersionConflict
	}
	if err != nil {
		return err
	}
	run.Version++
	return nil
}

func (s *RunStore) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.runs.Get(ctx, runID); errors.Is(err, gorm.ErrRecordNotFound) {
		return &workflow.RunNotFoundError{RunID: runID}
	} else if err != nil {
		return err
	}
	return s.runs.Delete(ctx, runID)
}

func (s *RunStore) SaveRecord(ctx context.Context, record *workflow.PhaseExecutionRecord) error {
	row, err := recordToRow(record)
	if err != nil {
		return err
	}
	return s.records.Save(ctx, row)
}

func (s *RunStore) ListRecords(ctx context.Context, runID string) ([]*workflow.PhaseExecutionRecord, error) {
	rows, err := s.records.List(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := make([]*workflow.PhaseExecutionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RunStore) SaveDecision(ctx context.Context, decision *workflow.ConsensusDecision) error {
	return s.records.SaveDecision(ctx, &model.ConsensusDecision{
		RunId:     decision.RunID,
		Phase:     decision.Phase,
		Attempt:   decision.Attempt,
		Decision:  string(decision.Decision),
		Feedback:  decision.Feedback,
		DecidedBy: decision.DecidedBy,
		DecidedAt: decision.DecidedAt,
	})
}

func (s *RunStore) ListDecisions(ctx context.Context, runID string) ([]*workflow.ConsensusDecision, error) {
	rows, err := s.records.ListDecisions(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := make([]*workflow.ConsensusDecision, 0, len(rows))
	for _, row := range rows {
		out = append(out, &workflow.ConsensusDecision{
			RunID:     row.RunId,
			Phase:     row.Phase,
			Attempt:   row.Attempt,
			Decision:  workflow.Decision(row.Decision),
			Feedback:  row.Feedback,
			DecidedBy: row.DecidedBy,
			DecidedAt: row.DecidedAt,
		})
	}
	return out, nil
}

func (s *RunStore) SaveRollback(ctx context.Context, record *workflow.RollbackRecord) error {
	truncated, err := sonic.MarshalString(record.TruncatedPhases)
	if err != nil {
		return fmt.Errorf("failed to encode truncated phases: %w", err)
	}
	return s.records.SaveRollback(ctx, &model.RollbackRecord{
		RunId:           record.RunID,
		TargetPhase:     record.TargetPhase,
		TruncatedPhases: truncated,
		Reason:          record.Reason,
		OccurredAt:      record.OccurredAt,
	})
}

func runToRow(run *workflow.Run) (*model.Run, error) {
	completed, err := sonic.MarshalString(run.CompletedPhases)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completed phases: %w", err)
	}
	return &model.Run{
		BaseModel:         model.BaseModel{CreatedAt: run.CreatedAt, UpdatedAt: run.UpdatedAt},
		RunId:             run.ID,
		ProfileId:         run.ProfileID,
		Principal:         run.Principal,
		Status:            string(run.Status),
		CurrentPhaseIndex: run.CurrentPhaseIndex,
		CompletedPhases:   completed,
		CurrentAttempt:    run.CurrentAttempt,
		RetriesUsed:       run.RetriesUsed,
		Feedback:          run.Feedback,
		Metadata:          serde.MarshalStringMap(run.Metadata),
		Version:           run.Version,
	}, nil
}

func runFromRow(row *model.Run) (*workflow.Run, error) {
	run := &workflow.Run{
		ID:                row.RunId,
		ProfileID:         row.ProfileId,
		Principal:         row.Principal,
		Status:            workflow.RunStatus(row.Status),
		CurrentPhaseIndex: row.CurrentPhaseIndex,
		CurrentAttempt:    row.CurrentAttempt,
		RetriesUsed:       row.RetriesUsed,
		Feedback:          row.Feedback,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
		Version:           row.Version,
	}
	if row.CompletedPhases != "" {
		if err := sonic.UnmarshalString(row.CompletedPhases, &run.CompletedPhases); err != nil {
			return nil, fmt.Errorf("failed to decode completed phases for run %s: %w", row.RunId, err)
		}
	}
	if row.Metadata != "" {
		run.Metadata = serde.UnmarshalStringMap(row.Metadata)
	}
	return run, nil
}

func recordToRow(record *workflow.PhaseExecutionRecord) (*model.PhaseRecord, error) {
	outcomes, err := sonic.MarshalString(record.ExecutorOutcomes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode executor outcomes: %w", err)
	}
	row := &model.PhaseRecord{
		RunId:            record.RunID,
		Phase:            record.Phase,
		Attempt:          record.Attempt,
		Status:           string(record.Status),
		StartedAt:        record.StartedAt,
		CompletedAt:      record.CompletedAt,
		ExecutorOutcomes: outcomes,
	}
	if record.ValidationResult != nil {
		if row.ValidationResult, err = sonic.MarshalString(record.ValidationResult); err != nil {
			return nil, fmt.Errorf("failed to encode validation result: %w", err)
		}
	}
	if record.GovernanceResult != nil {
		if row.GovernanceResult, err = sonic.MarshalString(record.GovernanceResult); err != nil {
			return nil, fmt.Errorf("failed to encode governance result: %w", err)
		}
	}
	return row, nil
}

func recordFromRow(row *model.PhaseRecord) (*workflow.PhaseExecutionRecord, error) {
	rec := &workflow.PhaseExecutionRecord{
		RunID:       row.RunId,
		Phase:       row.Phase,
		Attempt:     row.Attempt,
		Status:      workflow.RecordStatus(row.Status),
		StartedAt:   row.StartedAt,
		CompletedAt: row.CompletedAt,
	}
	if row.ExecutorOutcomes != "" {
		var outcomes []executor.Outcome
		if err := sonic.UnmarshalString(row.ExecutorOutcomes, &outcomes); err != nil {
			return nil, fmt.Errorf("failed to decode executor outcomes: %w", err)
		}
		rec.ExecutorOutcomes = outcomes
	}
	if row.ValidationResult != "" {
		var vr validator.Result
		if err := sonic.UnmarshalString(row.ValidationResult, &vr); err != nil {
			return nil, fmt.Errorf("failed to decode validation result: %w", err)
		}
		rec.ValidationResult = &vr
	}
	if row.GovernanceResult != "" {
		var gr governance.Result
		if err := sonic.UnmarshalString(row.GovernanceResult, &gr); err != nil {
			return nil, fmt.Errorf("failed to decode governance result: %w", err)
		}
		rec.GovernanceResult = &gr
	}
	return rec, nil
}
