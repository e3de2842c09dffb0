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
	"strings"

	"gorm.io/gorm"

	"github.com/stagecrafthq/stagecraft/internal/engine/model"
	"github.com/stagecrafthq/stagecraft/pkg/database"
)

// ErrRunVersionConflict reports a lost optimistic-update race.
var ErrRunVersionConflict = errors.New("run version conflict")

// RunQuery defines query parameters for listing runs.
type RunQuery struct {
	ProfileId string
	Principal string
	Status    string
	Page      int
	PageSize  int
}

// IRunRepository defines persistence for run rows.
type IRunRepository interface {
	Create(ctx context.Context, run *model.Run) error
	Get(ctx context.Context, runId string) (*model.Run, error)
	// UpdateWithVersion applies updates only when the stored version
	// matches expected, bumping it by one. Returns
	// ErrRunVersionConflict on a lost race.
	UpdateWithVersion(ctx context.Context, runId string, expected int64, updates map[string]any) error
	Delete(ctx context.Context, runId string) error
	List(ctx context.Context, query *RunQuery) ([]*model.Run, int64, error)
}

type RunRepo struct {
	database.IDatabase
}

// NewRunRepo creates the run repository.
func NewRunRepo(db database.IDatabase) IRunRepository {
	return &RunRepo{IDatabase: db}
}

// Create inserts a run.
func (r *RunRepo) Create(ctx context.Context, run *model.Run) error {
	return r.Database().WithContext(ctx).Create(run).Error
}

// Get returns a run by runId.
func (r *RunRepo) Get(ctx context.Context, runId string) (*model.Run, error) {
	var one model.Run
	if err := r.Database().WithContext(ctx).
		Where("run_id = ?", runId).
		First(&one).Error; err != nil {
		return nil, err
	}
	return &one, nil
}

// UpdateWithVersion performs the optimistic compare-and-swap update.
func (r *RunRepo) UpdateWithVersion(ctx context.Context, runId string, expected int64, updates map[string]any) error {
	updates["version"] = expected + 1
	tx := r.Database().WithContext(ctx).
		Model(&model.Run{}).
		Where("run_id = ? AND version = ?", runId, expected).
		Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrRunVersionConflict
	}
	return nil
}

// Delete removes a run and its history rows.
func (r *RunRepo) Delete(ctx context.Context, runId string) error {
	return r.Database().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runId).Delete(&model.PhaseRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", runId).Delete(&model.ConsensusDecision{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", runId).Delete(&model.RollbackRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("run_id = ?", runId).Delete(&model.Run{}).Error
	})
}

// List returns runs and total by query.
func (r *RunRepo) List(ctx context.Context, query *RunQuery) ([]*model.Run, int64, error) {
	if query == nil {
		query = &RunQuery{}
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}
	if query.PageSize > 100 {
		query.PageSize = 100
	}

	tx := r.Database().WithContext(ctx).Model(&model.Run{})
	if query.ProfileId != "" {
		tx = tx.Where("profile_id = ?", query.ProfileId)
	}
	if query.Principal != "" {
		tx = tx.Where("principal = ?", query.Principal)
	}
	if strings.TrimSpace(query.Status) != "" {
		tx = tx.Where("status = ?", strings.TrimSpace(query.Status))
	}

	total, err := Count(tx)
	if err != nil {
		return nil, 0, err
	}

	var list []*model.Run
	err = tx.Order("created_at DESC").
		Offset((query.Page - 1) * query.PageSize).
		Limit(query.PageSize).
		Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
