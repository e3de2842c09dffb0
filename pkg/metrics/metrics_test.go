package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func gatherValue(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return total
}

func TestMetricsConfigDefaults(t *testing.T) {
	conf := MetricsConfig{}
	conf.SetDefaults()
	if conf.Port != 9090 || conf.Path != "/metrics" {
		t.Errorf("unexpected defaults: %+v", conf)
	}
}

func TestEngineSinkCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	sink := NewEngineSink(registry)

	sink.RunStarted("standard")
	sink.RunStarted("standard")
	sink.RunFinished("standard", "completed")
	sink.PhaseExecuted("build", 2*time.Second)
	sink.PhaseRetried("build")
	sink.BudgetRejected("daily")
	sink.BudgetCommitted("per_run", 40)
	sink.ConsensusPendingInc()
	sink.ExecutorFinished("timeout")

	cases := map[string]float64{
		"stagecraft_runs_started_total":          2,
		"stagecraft_runs_finished_total":         1,
		"stagecraft_phase_duration_seconds":      1,
		"stagecraft_phase_retries_total":         1,
		"stagecraft_budget_rejections_total":     1,
		"stagecraft_budget_consumed_units_total": 40,
		"stagecraft_consensus_pending":           1,
		"stagecraft_executor_outcomes_total":     1,
	}
	for name, want := range cases {
		if got := gatherValue(t, registry, name); got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}

	sink.ConsensusPendingDec()
	if got := gatherValue(t, registry, "stagecraft_consensus_pending"); got != 0 {
		t.Errorf("consensus gauge = %v after dec, want 0", got)
	}
}

func TestEngineSinkDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewEngineSink(registry)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
		if !strings.Contains(strings.ToLower(strings.TrimSpace(panicString(r))), "duplicate") {
			t.Logf("panic value: %v", r)
		}
	}()
	NewEngineSink(registry)
}

func panicString(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return ""
}
