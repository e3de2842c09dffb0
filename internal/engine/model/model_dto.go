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

import (
	"time"

	"github.com/stagecrafthq/stagecraft/internal/pkg/governance"
	"github.com/stagecrafthq/stagecraft/internal/pkg/workflow"
)

// StartRunReq starts a run of a delivery profile.
type StartRunReq struct {
	ProfileId string            `json:"profileId"`
	Principal string            `json:"principal"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ConsensusReq resolves a pending consensus gate. Feedback is
// mandatory for rejections and becomes context for the next attempt.
type ConsensusReq struct {
	DecidedBy string `json:"decidedBy"`
	Feedback  string `json:"feedback,omitempty"`
}

// RollbackReq rewinds a run to just after the target phase.
type RollbackReq struct {
	TargetPhase string `json:"targetPhase"`
	Reason      string `json:"reason,omitempty"`
}

// ListRunsReq filters the run listing.
type ListRunsReq struct {
	ProfileId string `query:"profileId"`
	Principal string `query:"principal"`
	Status    string `query:"status"`
	Page      int    `query:"page"`
	PageSize  int    `query:"pageSize"`
}

// RunSummary is the listing view of a run.
type RunSummary struct {
	RunId             string    `json:"runId"`
	ProfileId         string    `json:"profileId"`
	Principal         string    `json:"principal"`
	Status            string    `json:"status"`
	CurrentPhaseIndex int       `json:"currentPhaseIndex"`
	CurrentAttempt    int       `json:"currentAttempt"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// RunListRep is the paginated run listing response.
type RunListRep struct {
	Total int64        `json:"total"`
	Runs  []RunSummary `json:"runs"`
}

// RunDetailRep is the full run view with its phase execution history.
type RunDetailRep struct {
	Run     *workflow.Run                    `json:"run"`
	Records []*workflow.PhaseExecutionRecord `json:"records"`
}

// ArtifactSummary describes one stored artifact.
type ArtifactSummary struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// PhaseMetrics aggregates one phase's attempts for the metrics view.
type PhaseMetrics struct {
	Phase      string             `json:"phase"`
	Attempts   int                `json:"attempts"`
	Status     string             `json:"status"`
	DurationMs int64              `json:"durationMs"`
	Cost       float64            `json:"cost"`
	Quality    map[string]float64 `json:"quality,omitempty"`
}

// RunMetricsRep is the run metrics response.
type RunMetricsRep struct {
	RunId      string         `json:"runId"`
	DurationMs int64          `json:"durationMs"`
	TotalCost  float64        `json:"totalCost"`
	Budget     *BudgetUsage   `json:"budget,omitempty"`
	Phases     []PhaseMetrics `json:"phases"`
}

// ProfileDefinition is the document stored in Profile.Definition.
type ProfileDefinition struct {
	Phases       []workflow.PhaseDefinition `json:"phases"`
	ClientPolicy *governance.Policy         `json:"client_policy,omitempty"`
}

// CreateProfileReq creates or replaces a delivery profile.
type CreateProfileReq struct {
	ProfileId   string            `json:"profileId"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Definition  ProfileDefinition `json:"definition"`
}

// ProfileRep is the API view of a stored profile.
type ProfileRep struct {
	ProfileId   string            `json:"profileId"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Definition  ProfileDefinition `json:"definition"`
	Enabled     bool              `json:"enabled"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}
