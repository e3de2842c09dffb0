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

import "time"

// Run is one traversal of a profile's phase sequence. Version backs
// the optimistic compare-and-swap in the repo layer.
type Run struct {
	BaseModel
	RunId             string `gorm:"column:run_id;uniqueIndex" json:"runId"`
	ProfileId         string `gorm:"column:profile_id" json:"profileId"`
	Principal         string `gorm:"column:principal" json:"principal"`
	Status            string `gorm:"column:status" json:"status"`
	CurrentPhaseIndex int    `gorm:"column:current_phase_index" json:"currentPhaseIndex"`
	CompletedPhases   string `gorm:"column:completed_phases;type:json" json:"completedPhases"`
	CurrentAttempt    int    `gorm:"column:current_attempt" json:"currentAttempt"`
	RetriesUsed       int    `gorm:"column:retries_used" json:"retriesUsed"`
	Feedback          string `gorm:"column:feedback" json:"feedback"`
	Metadata          string `gorm:"column:metadata;type:json" json:"metadata"`
	Version           int64  `gorm:"column:version" json:"version"`
}

func (Run) TableName() string {
	return "t_run"
}

// PhaseRecord is one attempt of one phase. Outcome and result
// payloads are stored as serialized documents; the engine owns their
// shapes.
type PhaseRecord struct {
	BaseModel
	RunId            string     `gorm:"column:run_id;index" json:"runId"`
	Phase            string     `gorm:"column:phase" json:"phase"`
	Attempt          int        `gorm:"column:attempt" json:"attempt"`
	Status           string     `gorm:"column:status" json:"status"`
	StartedAt        time.Time  `gorm:"column:started_at" json:"startedAt"`
	CompletedAt      *time.Time `gorm:"column:completed_at" json:"completedAt"`
	ExecutorOutcomes string     `gorm:"column:executor_outcomes;type:json" json:"executorOutcomes"`
	ValidationResult string     `gorm:"column:validation_result;type:json" json:"validationResult"`
	GovernanceResult string     `gorm:"column:governance_result;type:json" json:"governanceResult"`
}

func (PhaseRecord) TableName() string {
	return "t_phase_record"
}

// ConsensusDecision is one human verdict on a consensus-gated phase.
type ConsensusDecision struct {
	BaseModel
	RunId     string    `gorm:"column:run_id;index" json:"runId"`
	Phase     string    `gorm:"column:phase" json:"phase"`
	Attempt   int       `gorm:"column:attempt" json:"attempt"`
	Decision  string    `gorm:"column:decision" json:"decision"`
	Feedback  string    `gorm:"column:feedback" json:"feedback"`
	DecidedBy string    `gorm:"column:decided_by" json:"decidedBy"`
	DecidedAt time.Time `gorm:"column:decided_at" json:"decidedAt"`
}

func (ConsensusDecision) TableName() string {
	return "t_consensus_decision"
}

// RollbackRecord is the advisory trail left by a run rollback.
type RollbackRecord struct {
	BaseModel
	RunId           string    `gorm:"column:run_id;index" json:"runId"`
	TargetPhase     string    `gorm:"column:target_phase" json:"targetPhase"`
	TruncatedPhases string    `gorm:"column:truncated_phases;type:json" json:"truncatedPhases"`
	Reason          string    `gorm:"column:reason" json:"reason"`
	OccurredAt      time.Time `gorm:"column:occurred_at" json:"occurredAt"`
}

func (RollbackRecord) TableName() string {
	return "t_rollback_record"
}

// Run status values mirrored from the engine for query filters.
const (
	RunStatusIdle              = "idle"
	RunStatusRunning           = "running"
	RunStatusAwaitingConsensus = "awaiting_consensus"
	RunStatusCompleted         = "completed"
	RunStatusFailed            = "failed"
)
