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

	"gorm.io/gorm"

	"github.com/stagecrafthq/stagecraft/internal/engine/model"
	"github.com/stagecrafthq/stagecraft/pkg/database"
)

// IRecordRepository defines persistence for phase records, consensus
// decisions and rollback advisories.
type IRecordRepository interface {
	// Save inserts the record or replaces the row keyed by
	// (run_id, phase, attempt).
	Save(ctx context.Context, record *model.PhaseRecord) error
	List(ctx context.Context, runId string) ([]*model.PhaseRecord, error)
	SaveDecision(ctx context.Context, decision *model.ConsensusDecision) error
	ListDecisions(ctx context.Context, runId string) ([]*model.ConsensusDecision, error)
	SaveRollback(ctx context.Context, record *model.RollbackRecord) error
	ListRollbacks(ctx context.Context, runId string) ([]*model.RollbackRecord, error)
}

type RecordRepo struct {
	database.IDatabase
}

// NewRecordRepo creates the record repository.
func NewRecordRepo(db database.IDatabase) IRecordRepository {
	return &RecordRepo{IDatabase: db}
}

// Save upserts one phase attempt record.
func (r *RecordRepo) Save(ctx context.Context, record *model.PhaseRecord) error {
	return r.Database().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.PhaseRecord
		err := tx.Where("run_id = ? AND phase = ? AND attempt = ?",
			record.RunId, record.Phase, record.Attempt).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(record).Error
		}
		if err != nil {
			return err
		}
		record.Id = existing.Id
		record.CreatedAt = existing.CreatedAt
		return tx.Save(record).Error
	})
}

// List returns a run's phase records in execution order.
func (r *RecordRepo) List(ctx context.Context, runId string) ([]*model.PhaseRecord, error) {
	var list []*model.PhaseRecord
	err := r.Database().WithContext(ctx).
		Where("run_id = ?", runId).
		Order("started_at ASC, attempt ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// SaveDecision appends a consensus decision.
func (r *RecordRepo) SaveDecision(ctx context.Context, decision *model.ConsensusDecision) error {
	return r.Database().WithContext(ctx).Create(decision).Error
}

// ListDecisions returns a run's decisions in decision order.
func (r *RecordRepo) ListDecisions(ctx context.Context, runId string) ([]*model.ConsensusDecision, error) {
	var list []*model.ConsensusDecision
	err := r.Database().WithContext(ctx).
		Where("run_id = ?", runId).
		Order("decided_at ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// SaveRollback appends a rollback advisory.
func (r *RecordRepo) SaveRollback(ctx context.Context, record *model.RollbackRecord) error {
	return r.Database().WithContext(ctx).Create(record).Error
}

// ListRollbacks returns a run's rollback advisories.
func (r *RecordRepo) ListRollbacks(ctx context.Context, runId string) ([]*model.RollbackRecord, error) {
	var list []*model.RollbackRecord
	err := r.Database().WithContext(ctx).
		Where("run_id = ?", runId).
		Order("occurred_at ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}
