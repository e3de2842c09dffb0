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
	"time"

	"github.com/stagecrafthq/stagecraft/internal/pkg/executor"
	"github.com/stagecrafthq/stagecraft/internal/pkg/governance"
	"github.com/stagecrafthq/stagecraft/internal/pkg/validator"
)

// RunStatus is the run-level status.
type RunStatus string

const (
	RunIdle              RunStatus = "idle"
	RunRunning           RunStatus = "running"
	RunAwaitingConsensus RunStatus = "awaiting_consensus"
	RunCompleted         RunStatus = "completed"
	RunFailed            RunStatus = "failed"
)

// RecordStatus is the phase-attempt status.
type RecordStatus string

const (
	RecordPending           RecordStatus = "pending"
	RecordInProgress        RecordStatus = "in_progress"
	RecordValidationFailed  RecordStatus = "validation_failed"
	RecordConsensusPending  RecordStatus = "consensus_pending"
	RecordConsensusRejected RecordStatus = "consensus_rejected"
	RecordCompleted         RecordStatus = "completed"
	RecordFailed            RecordStatus = "failed"
)

// Decision is a consensus verdict.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// PhaseDefinition is one immutable stage of a profile.
type PhaseDefinition struct {
	Name                     string   `mapstructure:"name" json:"name" yaml:"name"`
	Order                    int      `mapstructure:"order" json:"order" yaml:"order"`
	ExecutorIDs              []string `mapstructure:"executor_ids" json:"executor_ids" yaml:"executor_ids"`
	RequiredArtifactPatterns []string `mapstructure:"required_artifact_patterns" json:"required_artifact_patterns" yaml:"required_artifact_patterns"`
	ConsensusRequired        bool     `mapstructure:"consensus_required" json:"consensus_required" yaml:"consensus_required"`
	MaxRetries               int      `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries"`
}

// Profile is a named phase sequence plus an optional client policy
// layered over the engine's default and baseline policies.
type Profile struct {
	ID           string             `mapstructure:"id" json:"id" yaml:"id"`
	Name         string             `mapstructure:"name" json:"name" yaml:"name"`
	Phases       []PhaseDefinition  `mapstructure:"phases" json:"phases" yaml:"phases"`
	ClientPolicy *governance.Policy `mapstructure:"client_policy" json:"client_policy,omitempty" yaml:"client_policy"`
}

// PhaseNames returns the profile's phase sequence in declared order.
func (p *Profile) PhaseNames() []string {
	names := make([]string, len(p.Phases))
	for i, ph := range p.Phases {
		names[i] = ph.Name
	}
	return names
}

// Run is the unit of work: one traversal of a profile's phases.
// Version supports optimistic concurrency in the persistence layer.
type Run struct {
	ID                string            `json:"run_id"`
	ProfileID         string            `json:"profile_id"`
	Principal         string            `json:"principal"`
	Status            RunStatus         `json:"status"`
	CurrentPhaseIndex int               `json:"current_phase_index"`
	CompletedPhases   []string          `json:"completed_phases"`
	// CurrentAttempt numbers the next attempt of the current phase,
	// starting at 1.
	CurrentAttempt int `json:"current_attempt"`
	// RetriesUsed counts validation retries consumed on the current
	// phase; consensus rejections do not count against it.
	RetriesUsed int               `json:"retries_used"`
	Feedback    string            `json:"feedback,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Version     int64             `json:"version"`
}

// Clone returns a deep copy, so callers can hand runs out without
// exposing engine-owned state to mutation.
func (r *Run) Clone() *Run {
	cp := *r
	cp.CompletedPhases = append([]string(nil), r.CompletedPhases...)
	if r.Metadata != nil {
		cp.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// PhaseExecutionRecord captures one attempt of one phase. Records are
// immutable once Completed or Failed; retries produce a new record
// with an incremented attempt number.
type PhaseExecutionRecord struct {
	RunID            string             `json:"run_id"`
	Phase            string             `json:"phase"`
	Attempt          int                `json:"attempt"`
	Status           RecordStatus       `json:"status"`
	StartedAt        time.Time          `json:"started_at"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
	ExecutorOutcomes []executor.Outcome `json:"executor_outcomes,omitempty"`
	ValidationResult *validator.Result  `json:"validation_result,omitempty"`
	GovernanceResult *governance.Result `json:"governance_result,omitempty"`
}

// ConsensusDecision is one human verdict on a consensus-gated phase.
type ConsensusDecision struct {
	RunID     string    `json:"run_id"`
	Phase     string    `json:"phase"`
	Attempt   int       `json:"attempt"`
	Decision  Decision  `json:"decision"`
	Feedback  string    `json:"feedback,omitempty"`
	DecidedBy string    `json:"decided_by,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// RollbackRecord is the advisory trail left by a rollback. Artifacts
// and execution records from truncated phases are retained untouched.
type RollbackRecord struct {
	RunID           string    `json:"run_id"`
	TargetPhase     string    `json:"target_phase"`
	TruncatedPhases []string  `json:"truncated_phases"`
	Reason          string    `json:"reason,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
