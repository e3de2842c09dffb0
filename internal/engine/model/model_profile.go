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

package model

// Profile is a stored delivery profile. Definition holds the phase
// sequence and optional client policy as a serialized document.
type Profile struct {
	BaseModel
	ProfileId   string `gorm:"column:profile_id;uniqueIndex" json:"profileId"`
	Name        string `gorm:"column:name" json:"name"`
	Description string `gorm:"column:description" json:"description"`
	Definition  string `gorm:"column:definition;type:json" json:"definition"`
	IsEnabled   int    `gorm:"column:is_enabled" json:"isEnabled"` // 0: disabled, 1: enabled
}

func (Profile) TableName() string {
	return "t_profile"
}

const (
	ProfileDisabled = 0
	ProfileEnabled  = 1
)

// BudgetUsage is a per-principal usage snapshot persisted after each
// phase so consumed totals survive restarts.
type BudgetUsage struct {
	BaseModel
	Principal string  `gorm:"column:principal;index:idx_budget_principal_run,priority:1" json:"principal"`
	RunId     string  `gorm:"column:run_id;index:idx_budget_principal_run,priority:2" json:"runId"`
	Day       string  `gorm:"column:day" json:"day"`
	Daily     float64 `gorm:"column:daily" json:"daily"`
	PerRun    float64 `gorm:"column:per_run" json:"perRun"`
	Lifetime  float64 `gorm:"column:lifetime" json:"lifetime"`
}

func (BudgetUsage) TableName() string {
	return "t_budget_usage"
}
