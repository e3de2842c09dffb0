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

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stagecrafthq/stagecraft/internal/pkg/artifact"
	"github.com/stagecrafthq/stagecraft/internal/pkg/budget"
	"github.com/stagecrafthq/stagecraft/internal/pkg/executor"
	"github.com/stagecrafthq/stagecraft/pkg/logger"
)

// EstimatorFunc estimates the resource cost of one executor
// invocation, in budget units, keyed by executor ID.
type EstimatorFunc func(executorID string) float64

// defaultCost applies when no estimate is configured for an executor.
const defaultCost = 10

// StaticEstimator builds an estimator from a table of per-executor
// costs with a fallback default.
func StaticEstimator(estimates map[string]float64, fallback float64) EstimatorFunc {
	if fallback <= 0 {
		fallback = defaultCost
	}
	return func(executorID string) float64 {
		if cost, ok := estimates[executorID]; ok && cost > 0 {
			return cost
		}
		return fallback
	}
}

// Config holds scheduler settings.
type Config struct {
	// ConcurrencyLimit caps in-flight executors per phase; clamped to
	// the executor count at dispatch.
	ConcurrencyLimit int `mapstructure:"concurrency_limit" json:"concurrency_limit" yaml:"concurrency_limit"`
	// ExecutorTimeout bounds one invocation, in seconds.
	ExecutorTimeout int `mapstructure:"executor_timeout" json:"executor_timeout" yaml:"executor_timeout"`
	// Estimates maps executor IDs to static cost estimates.
	Estimates map[string]float64 `mapstructure:"estimates" json:"estimates" yaml:"estimates"`
	// DefaultEstimate applies to executors absent from Estimates.
	DefaultEstimate float64 `mapstructure:"default_estimate" json:"default_estimate" yaml:"default_estimate"`
}

// SetDefaults fills missing settings with sane defaults.
func (c *Config) SetDefaults() {
	if c.ConcurrencyLimit <= 0 {
		c.ConcurrencyLimit = 2
	}
	if c.ExecutorTimeout <= 0 {
		c.ExecutorTimeout = 300
	}
	if c.DefaultEstimate <= 0 {
		c.DefaultEstimate = defaultCost
	}
}

// PhaseContext carries everything executors need for one phase
// attempt.
type PhaseContext struct {
	RunID          string
	Phase          string
	Attempt        int
	Principal      string
	PriorArtifacts []artifact.Ref
	Feedback       string
	Metadata       map[string]string
}

// Scheduler runs a phase's executors with bounded concurrency, budget
// gating per executor, and partial-failure isolation.
type Scheduler struct {
	registry  *executor.Registry
	ledger    *budget.Ledger
	estimator EstimatorFunc
	limit     int
	timeout   time.Duration
}

// New creates a scheduler.
func New(registry *executor.Registry, ledger *budget.Ledger, cfg Config) *Scheduler {
	cfg.SetDefaults()
	return &Scheduler{
		registry:  registry,
		ledger:    ledger,
		estimator: StaticEstimator(cfg.Estimates, cfg.DefaultEstimate),
		limit:     cfg.ConcurrencyLimit,
		timeout:   time.Duration(cfg.ExecutorTimeout) * time.Second,
	}
}

// RunPhaseExecutors dispatches the phase's executors and collects one
// outcome per requested ID, in request order regardless of completion
// order. A fault in one executor never aborts its siblings; every
// failure mode is folded into that executor's outcome.
func (s *Scheduler) RunPhaseExecutors(ctx context.Context, executorIDs []string, pc PhaseContext) []executor.Outcome {
	outcomes := make([]executor.Outcome, len(executorIDs))

	limit := s.limit
	if len(executorIDs) < limit {
		limit = len(executorIDs)
	}
	if limit < 1 {
		limit = 1
	}

	eg := &errgroup.Group{}
	eg.SetLimit(limit)
	for i, id := range executorIDs {
		eg.Go(func() error {
			outcomes[i] = s.runOne(ctx, id, pc)
			return nil
		})
	}
	// Workers never return errors; failures live in the outcomes.
	_ = eg.Wait()
	return outcomes
}

// runOne executes a single budget-gated executor invocation.
func (s *Scheduler) runOne(ctx context.Context, executorID string, pc PhaseContext) (outcome executor.Outcome) {
	outcome = executor.Outcome{ExecutorID: executorID}
	start := time.Now()

	estimate := s.estimator(executorID)
	token, err := s.ledger.Reserve(pc.Principal, pc.RunID, estimate)
	if err != nil {
		var exceeded *budget.BudgetExceededError
		if errors.As(err, &exceeded) {
			outcome.ExitSignal = executor.ExitError
			outcome.ErrorDetail = exceeded.Error()
			logger.WarnContext(ctx, "executor rejected by budget",
				"executor", executorID, "run", pc.RunID, "scope", string(exceeded.Scope))
			return outcome
		}
		outcome.ExitSignal = executor.ExitError
		outcome.ErrorDetail = fmt.Sprintf("budget reservation failed: %v", err)
		return outcome
	}

	// A worker panic is converted into a failed outcome and the
	// reservation is released; siblings keep running.
	defer func() {
		if r := recover(); r != nil {
			_ = s.ledger.Release(token)
			outcome = executor.Outcome{
				ExecutorID:  executorID,
				Success:     false,
				Duration:    time.Since(start),
				ExitSignal:  executor.ExitError,
				ErrorDetail: fmt.Sprintf("executor fault: %v", r),
			}
			logger.ErrorContext(ctx, "executor panicked",
				"executor", executorID, "run", pc.RunID, "fault", fmt.Sprint(r))
		}
	}()

	exec, err := s.registry.Get(executorID)
	if err != nil {
		_ = s.ledger.Release(token)
		outcome.ExitSignal = executor.ExitError
		outcome.ErrorDetail = err.Error()
		return outcome
	}

	invokeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := exec.Execute(invokeCtx, &executor.Task{
		RunID:          pc.RunID,
		Phase:          pc.Phase,
		Attempt:        pc.Attempt,
		ExecutorID:     executorID,
		Principal:      pc.Principal,
		PriorArtifacts: pc.PriorArtifacts,
		Feedback:       pc.Feedback,
		Metadata:       pc.Metadata,
	})
	outcome.Duration = time.Since(start)

	switch {
	case err != nil && errors.Is(invokeCtx.Err(), context.DeadlineExceeded):
		// Timed-out work is not billed; the phase retry policy owns
		// any re-execution.
		_ = s.ledger.Release(token)
		outcome.ExitSignal = executor.ExitTimeout
		outcome.ErrorDetail = fmt.Sprintf("executor timed out after %s", s.timeout)
	case err != nil && errors.Is(ctx.Err(), context.Canceled):
		_ = s.ledger.Release(token)
		outcome.ExitSignal = executor.ExitCancelled
		outcome.ErrorDetail = err.Error()
	case err != nil:
		// The call never produced a result, so no cost was incurred.
		_ = s.ledger.Release(token)
		outcome.ExitSignal = executor.ExitError
		outcome.ErrorDetail = err.Error()
	default:
		actual := result.Cost
		if actual <= 0 {
			actual = estimate
		}
		if cerr := s.ledger.Commit(token, actual); cerr != nil {
			logger.WarnContext(ctx, "budget commit failed",
				"executor", executorID, "run", pc.RunID, "error", cerr)
		}
		outcome.Cost = actual
		outcome.Success = result.Success
		outcome.ArtifactsDeclared = result.Artifacts
		outcome.Metrics = result.Metrics
		if result.Success {
			outcome.ExitSignal = executor.ExitSuccess
		} else {
			outcome.ExitSignal = executor.ExitError
			outcome.ErrorDetail = result.ErrorDetail
		}
	}
	return outcome
}
