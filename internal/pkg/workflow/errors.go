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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFeedbackRequired is returned by Reject when no feedback text
	// accompanies the rejection.
	ErrFeedbackRequired = errors.New("feedback is required when rejecting a consensus gate")

	// ErrVersionConflict is returned by stores when an optimistic
	// update loses a compare-and-swap race.
	ErrVersionConflict = errors.New("run version conflict")
)

// RunNotFoundError reports an unknown run ID.
type RunNotFoundError struct {
	RunID string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("run not found: %s", e.RunID)
}

// InvalidProfileError reports a profile that cannot start a run.
type InvalidProfileError struct {
	ProfileID string
	Reason    string
}

func (e *InvalidProfileError) Error() string {
	return fmt.Sprintf("invalid profile %s: %s", e.ProfileID, e.Reason)
}

// RunAlreadyCompletedError rejects operations on a finished run.
type RunAlreadyCompletedError struct {
	RunID string
}

func (e *RunAlreadyCompletedError) Error() string {
	return fmt.Sprintf("run already completed: %s", e.RunID)
}

// RunAwaitingConsensusError rejects Advance while a consensus
// decision is pending; the caller must Approve or Reject first.
type RunAwaitingConsensusError struct {
	RunID string
	Phase string
}

func (e *RunAwaitingConsensusError) Error() string {
	return fmt.Sprintf("run %s is awaiting consensus on phase %s", e.RunID, e.Phase)
}

// NotAwaitingConsensusError rejects Approve/Reject when no consensus
// decision is pending.
type NotAwaitingConsensusError struct {
	RunID  string
	Status RunStatus
}

func (e *NotAwaitingConsensusError) Error() string {
	return fmt.Sprintf("run %s is not awaiting consensus (status %s)", e.RunID, e.Status)
}

// RunFailedError rejects Advance on a run that exhausted its retries.
type RunFailedError struct {
	RunID string
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run has failed: %s", e.RunID)
}

// ValidationFailedError reports a phase attempt whose artifacts did
// not satisfy the required patterns or quality gates. Recoverable
// while retries remain.
type ValidationFailedError struct {
	Phase            string
	Attempt          int
	Missing          []string
	RetriesExhausted bool
}

func (e *ValidationFailedError) Error() string {
	msg := fmt.Sprintf("validation failed for phase %s (attempt %d)", e.Phase, e.Attempt)
	if len(e.Missing) > 0 {
		msg += ": missing " + strings.Join(e.Missing, ", ")
	}
	if e.RetriesExhausted {
		msg += " (retries exhausted)"
	}
	return msg
}

// GovernanceBlockedError reports a phase blocked by governance; it is
// not auto-retried, a policy change or manual intervention is needed.
type GovernanceBlockedError struct {
	Phase    string
	Warnings []string
}

func (e *GovernanceBlockedError) Error() string {
	msg := fmt.Sprintf("governance blocked phase %s", e.Phase)
	if len(e.Warnings) > 0 {
		msg += ": " + strings.Join(e.Warnings, "; ")
	}
	return msg
}

// InvalidRollbackError rejects a rollback to a phase that is not in
// the run's completed set.
type InvalidRollbackError struct {
	RunID       string
	TargetPhase string
}

func (e *InvalidRollbackError) Error() string {
	return fmt.Sprintf("cannot roll back run %s: phase %s is not completed", e.RunID, e.TargetPhase)
}
