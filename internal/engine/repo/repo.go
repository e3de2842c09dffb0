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
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/stagecrafthq/stagecraft/internal/engine/model"
	"github.com/stagecrafthq/stagecraft/pkg/database"
)

// ProviderSet is the Wire provider set for the repo layer.
var ProviderSet = wire.NewSet(
	NewRunRepo,
	NewRecordRepo,
	NewProfileRepo,
	NewBudgetRepo,
	NewRepositories,
	NewRunStore,
)

// Repositories aggregates the repo layer for bootstrap wiring.
type Repositories struct {
	Run     IRunRepository
	Record  IRecordRepository
	Profile IProfileRepository
	Budget  IBudgetRepository
}

// NewRepositories bundles the repositories.
func NewRepositories(run IRunRepository, record IRecordRepository, profile IProfileRepository, budget IBudgetRepository) *Repositories {
	return &Repositories{Run: run, Record: record, Profile: profile, Budget: budget}
}

// Count evaluates the current query as a COUNT without pagination.
func Count(tx *gorm.DB) (int64, error) {
	var total int64
	if err := tx.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// AutoMigrate creates or upgrades the engine tables.
func AutoMigrate(db database.IDatabase) error {
	return db.Database().AutoMigrate(
		&model.Run{},
		&model.PhaseRecord{},
		&model.ConsensusDecision{},
		&model.RollbackRecord{},
		&model.Profile{},
		&model.BudgetUsage{},
	)
}
