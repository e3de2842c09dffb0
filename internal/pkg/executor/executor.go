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

package executor

import (
	"context"
	"time"

	"github.com/stagecrafthq/stagecraft/internal/pkg/artifact"
)

// ExitSignal classifies how an executor invocation ended.
type ExitSignal string

const (
	ExitSuccess   ExitSignal = "success"
	ExitError     ExitSignal = "error"
	ExitTimeout   ExitSignal = "timeout"
	ExitCancelled ExitSignal = "cancelled"
)

// Task is the unit of work handed to one executor for one phase
// attempt. Feedback carries the reviewer text from a rejected
// consensus decision into the next attempt.
type Task struct {
	RunID          string            `json:"run_id"`
	Phase          string            `json:"phase"`
	Attempt        int               `json:"attempt"`
	ExecutorID     string            `json:"executor_id"`
	Principal      string            `json:"principal"`
	PriorArtifacts []artifact.Ref    `json:"prior_artifacts,omitempty"`
	Feedback       string            `json:"feedback,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Result is what an executor reports back.
type Result struct {
	Success     bool     `json:"success"`
	Artifacts   []string `json:"artifacts,omitempty"`
	ErrorDetail string   `json:"error,omitempty"`
	// Cost is the actual resource cost incurred, in budget units.
	// Zero means the executor did not report one and the reserved
	// estimate stands.
	Cost float64 `json:"cost,omitempty"`
	// Metrics carries quality measurements (coverage, scan scores)
	// that feed the governance gates.
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Executor performs one task. Implementations are treated as opaque,
// possibly-remote collaborators.
type Executor interface {
	// ID identifies the executor within phase definitions.
	ID() string

	// Execute runs the task. The context carries the invocation
	// deadline; implementations must honor it.
	Execute(ctx context.Context, task *Task) (*Result, error)
}

// Outcome is the scheduler's record of one executor invocation.
// Faults, timeouts and budget rejections are folded into outcomes
// rather than propagated as errors.
type Outcome struct {
	ExecutorID        string        `json:"executor_id"`
	Success           bool          `json:"success"`
	Duration          time.Duration `json:"duration"`
	ExitSignal        ExitSignal    `json:"exit_signal"`
	ArtifactsDeclared []string      `json:"artifacts_declared,omitempty"`
	ErrorDetail       string        `json:"error_detail,omitempty"`
	// Cost is the committed budget cost for this invocation.
	Cost float64 `json:"cost"`
	// Metrics are the quality measurements the executor reported.
	Metrics map[string]float64 `json:"metrics,omitempty"`
}
