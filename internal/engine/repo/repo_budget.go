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

// IBudgetRepository persists per-principal usage snapshots so budget
// accounting survives restarts.
type IBudgetRepository interface {
	Upsert(ctx context.Context, usage *model.BudgetUsage) error
	Get(ctx context.Context, principal, runId string) (*model.BudgetUsage, error)
	ListByPrincipal(ctx context.Context, principal string) ([]*model.BudgetUsage, error)
	ListAll(ctx context.Context) ([]*model.BudgetUsage, error)
}

type BudgetRepo struct {
	database.IDatabase
}

// NewBudgetRepo creates the budget repository.
func NewBudgetRepo(db database.IDatabase) IBudgetRepository {
	return &BudgetRepo{IDatabase: db}
}

// Upsert writes the usage snapshot keyed by (principal, run_id).
func (r *BudgetRepo) Upsert(ctx context.Context, usage *model.BudgetUsage) error {
	return r.Database().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.BudgetUsage
		err := tx.Where("principal = ? AND run_id = ?", usage.Principal, usage.RunId).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(usage).Error
		}
		if err != nil {
			return err
		}
		usage.Id = existing.Id
		usage.CreatedAt = existing.CreatedAt
		return tx.Save(usage).Error
	})
}

// Get returns the snapshot for (principal, runId). Returns (nil, nil)
// when none has been written yet.
func (r *BudgetRepo) Get(ctx context.Context, principal, runId string) (*model.BudgetUsage, error) {
	var one model.BudgetUsage
	err := r.Database().WithContext(ctx).
		Where("principal = ? AND run_id = ?", principal, runId).
		First(&one).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &one, nil
}

// ListAll returns every stored snapshot, ordered for deterministic
// ledger seeding at startup.
func (r *BudgetRepo) ListAll(ctx context.Context) ([]*model.BudgetUsage, error) {
	var list []*model.BudgetUsage
	err := r.Database().WithContext(ctx).
		Order("principal, run_id").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ListByPrincipal returns all snapshots for a principal.
func (r *BudgetRepo) ListByPrincipal(ctx context.Context, principal string) ([]*model.BudgetUsage, error) {
	var list []*model.BudgetUsage
	err := r.Database().WithContext(ctx).
		Where("principal = ?", principal).
		Order("updated_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}
