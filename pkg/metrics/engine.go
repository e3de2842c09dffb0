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

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineSink collects workflow engine metrics.
type EngineSink struct {
	runsStarted      *prometheus.CounterVec
	runsFinished     *prometheus.CounterVec
	phaseDuration    *prometheus.HistogramVec
	phaseRetries     *prometheus.CounterVec
	budgetRejections *prometheus.CounterVec
	budgetConsumed   *prometheus.CounterVec
	consensusPending prometheus.Gauge
	executorOutcomes *prometheus.CounterVec
}

// NewEngineSink creates and registers the engine collectors.
func NewEngineSink(registry *prometheus.Registry) *EngineSink {
	sink := &EngineSink{
		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagecraft_runs_started_total",
				Help: "Total number of workflow runs started",
			},
			[]string{"profile"},
		),
		runsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagecraft_runs_finished_total",
				Help: "Total number of workflow runs reaching a terminal status",
			},
			[]string{"profile", "status"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stagecraft_phase_duration_seconds",
				Help:    "Phase execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"phase"},
		),
		phaseRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagecraft_phase_retries_total",
				Help: "Total number of phase retry attempts",
			},
			[]string{"phase"},
		),
		budgetRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagecraft_budget_rejections_total",
				Help: "Total number of reservations rejected by a budget scope",
			},
			[]string{"scope"},
		),
		budgetConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagecraft_budget_consumed_units_total",
				Help: "Total budget units committed per scope",
			},
			[]string{"scope"},
		),
		consensusPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stagecraft_consensus_pending",
				Help: "Number of runs waiting on a consensus decision",
			},
		),
		executorOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagecraft_executor_outcomes_total",
				Help: "Executor task outcomes by exit signal",
			},
			[]string{"exit_signal"},
		),
	}

	registry.MustRegister(
		sink.runsStarted,
		sink.runsFinished,
		sink.phaseDuration,
		sink.phaseRetries,
		sink.budgetRejections,
		sink.budgetConsumed,
		sink.consensusPending,
		sink.executorOutcomes,
	)
	return sink
}

// NewNopEngineSink returns a sink backed by an unexported registry,
// for tests and for callers that run without a metrics server.
func NewNopEngineSink() *EngineSink {
	return NewEngineSink(prometheus.NewRegistry())
}

func (s *EngineSink) RunStarted(profile string) {
	s.runsStarted.WithLabelValues(profile).Inc()
}

func (s *EngineSink) RunFinished(profile, status string) {
	s.runsFinished.WithLabelValues(profile, status).Inc()
}

func (s *EngineSink) PhaseExecuted(phase string, elapsed time.Duration) {
	s.phaseDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
}

func (s *EngineSink) PhaseRetried(phase string) {
	s.phaseRetries.WithLabelValues(phase).Inc()
}

func (s *EngineSink) BudgetRejected(scope string) {
	s.budgetRejections.WithLabelValues(scope).Inc()
}

func (s *EngineSink) BudgetCommitted(scope string, units float64) {
	s.budgetConsumed.WithLabelValues(scope).Add(units)
}

func (s *EngineSink) ConsensusPendingInc() {
	s.consensusPending.Inc()
}

func (s *EngineSink) ConsensusPendingDec() {
	s.consensusPending.Dec()
}

func (s *EngineSink) ExecutorFinished(exitSignal string) {
	s.executorOutcomes.WithLabelValues(exitSignal).Inc()
}
