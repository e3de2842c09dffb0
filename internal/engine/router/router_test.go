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

package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/stagecrafthq/stagecraft/internal/engine/config"
	"github.com/stagecrafthq/stagecraft/internal/engine/repo"
	"github.com/stagecrafthq/stagecraft/internal/engine/service"
	"github.com/stagecrafthq/stagecraft/internal/pkg/artifact"
	"github.com/stagecrafthq/stagecraft/internal/pkg/budget"
	"github.com/stagecrafthq/stagecraft/internal/pkg/executor"
	"github.com/stagecrafthq/stagecraft/internal/pkg/scheduler"
	"github.com/stagecrafthq/stagecraft/internal/pkg/validator"
	"github.com/stagecrafthq/stagecraft/internal/pkg/workflow"
	"github.com/stagecrafthq/stagecraft/pkg/cache"
	"github.com/stagecrafthq/stagecraft/pkg/database"
	"github.com/stagecrafthq/stagecraft/pkg/event"
)

// stubExecutor writes one artifact per invocation so phases validate.
type stubExecutor struct {
	id    string
	store artifact.Store
}

func (s *stubExecutor) ID() string { return s.id }

func (s *stubExecutor) Execute(ctx context.Context, task *executor.Task) (*executor.Result, error) {
	name := s.id + "-output.md"
	ref := artifact.Ref{RunID: task.RunID, Phase: task.Phase, Path: name}
	if err := s.store.Put(ctx, ref, []byte("content")); err != nil {
		return nil, err
	}
	return &executor.Result{
		Success:   true,
		Artifacts: []string{name},
		Cost:      3,
		Metrics:   map[string]float64{"coverage": 0.9},
	}, nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	cfg := database.Database{
		Driver: database.DriverSqlite,
		Sqlite: database.SqliteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	}
	cfg.SetDefaults()
	manager, err := database.NewManager(cfg)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = manager.Close() })
	db := database.NewDatabaseAdapter(manager)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	objects, err := artifact.NewStore(artifact.Config{Backend: artifact.BackendFs, Fs: artifact.FsConfig{Root: t.TempDir()}})
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}

	registry := executor.NewRegistry()
	registry.Register(&stubExecutor{id: "writer", store: objects})

	ledger := budget.NewLedger(budget.Limits{})
	sched := scheduler.New(registry, ledger, scheduler.Config{ConcurrencyLimit: 2, DefaultEstimate: 5})

	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })
	repos := repo.NewRepositories(
		repo.NewRunRepo(db),
		repo.NewRecordRepo(db),
		repo.NewProfileRepo(db, mem),
		repo.NewBudgetRepo(db),
	)
	store := repo.NewRunStore(repos.Run, repos.Record)

	engine := workflow.NewEngine(store, sched, validator.New(objects), objects)

	appConf := &config.AppConfig{}
	appConf.Http.SetDefaults()
	appConf.Events.SetDefaults()

	profileSvc := service.NewProfileService(repos.Profile, engine)
	runSvc := service.NewRunService(engine, repos, profileSvc, ledger, objects)
	events := service.NewEventPublisher(nil, appConf)
	services := service.ProvideServices(runSvc, profileSvc, events, event.NewBus())

	return NewRouter(appConf, services, nil).Router()
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var rep map[string]any
	if err := json.Unmarshal(payload, &rep); err != nil {
		t.Fatalf("decode envelope %q: %v", payload, err)
	}
	return resp.StatusCode, rep
}

func repCode(rep map[string]any) int {
	code, _ := rep["code"].(float64)
	return int(code)
}

func TestRunLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)

	_, rep := doJSON(t, app, "POST", "/api/v1/profiles", map[string]any{
		"profileId": "delivery",
		"name":      "Delivery",
		"definition": map[string]any{
			"phases": []map[string]any{
				{
					"name":                       "planning",
					"order":                      0,
					"executor_ids":               []string{"writer"},
					"required_artifact_patterns": []string{"planning/*"},
					"max_retries":                1,
				},
			},
		},
	})
	if repCode(rep) != 0 {
		t.Fatalf("create profile failed: %v", rep)
	}

	_, rep = doJSON(t, app, "POST", "/api/v1/runs", map[string]any{
		"profileId": "delivery",
		"principal": "team-a",
	})
	if repCode(rep) != 0 {
		t.Fatalf("start run failed: %v", rep)
	}
	detail := rep["detail"].(map[string]any)
	runId, _ := detail["run_id"].(string)
	if runId == "" {
		t.Fatalf("missing run id in %v", detail)
	}

	_, rep = doJSON(t, app, "POST", fmt.Sprintf("/api/v1/runs/%s/advance", runId), nil)
	if repCode(rep) != 0 {
		t.Fatalf("advance failed: %v", rep)
	}

	_, rep = doJSON(t, app, "GET", "/api/v1/runs/"+runId, nil)
	if repCode(rep) != 0 {
		t.Fatalf("get run failed: %v", rep)
	}
	run := rep["detail"].(map[string]any)["run"].(map[string]any)
	if got := run["status"]; got != "completed" {
		t.Fatalf("expected completed run, got %v", got)
	}

	_, rep = doJSON(t, app, "GET", fmt.Sprintf("/api/v1/runs/%s/artifacts", runId), nil)
	if repCode(rep) != 0 {
		t.Fatalf("list artifacts failed: %v", rep)
	}
	grouped := rep["detail"].(map[string]any)
	if _, ok := grouped["planning"]; !ok {
		t.Fatalf("expected planning artifacts, got %v", grouped)
	}

	_, rep = doJSON(t, app, "GET", fmt.Sprintf("/api/v1/runs/%s/metrics", runId), nil)
	if repCode(rep) != 0 {
		t.Fatalf("get metrics failed: %v", rep)
	}
	metrics := rep["detail"].(map[string]any)
	if cost, _ := metrics["totalCost"].(float64); cost != 3 {
		t.Fatalf("expected total cost 3, got %v", metrics["totalCost"])
	}
}

func TestUnknownRunMapsToNotFound(t *testing.T) {
	app := newTestApp(t)

	_, rep := doJSON(t, app, "GET", "/api/v1/runs/missing", nil)
	if repCode(rep) != 404 {
		t.Fatalf("expected not-found envelope code, got %v", rep)
	}
}

func TestRejectWithoutFeedbackIsBadRequest(t *testing.T) {
	app := newTestApp(t)

	_, rep := doJSON(t, app, "POST", "/api/v1/profiles", map[string]any{
		"profileId": "gated",
		"name":      "Gated",
		"definition": map[string]any{
			"phases": []map[string]any{
				{
					"name":                       "design",
					"executor_ids":               []string{"writer"},
					"required_artifact_patterns": []string{"design/*"},
					"consensus_required":         true,
				},
			},
		},
	})
	if repCode(rep) != 0 {
		t.Fatalf("create profile failed: %v", rep)
	}
	_, rep = doJSON(t, app, "POST", "/api/v1/runs", map[string]any{
		"profileId": "gated", "principal": "team-a",
	})
	runId := rep["detail"].(map[string]any)["run_id"].(string)

	_, rep = doJSON(t, app, "POST", fmt.Sprintf("/api/v1/runs/%s/advance", runId), nil)
	if repCode(rep) != 0 {
		t.Fatalf("advance failed: %v", rep)
	}

	_, rep = doJSON(t, app, "POST", fmt.Sprintf("/api/v1/runs/%s/reject", runId), map[string]any{
		"decidedBy": "reviewer",
	})
	if repCode(rep) != 400 {
		t.Fatalf("expected bad-request envelope code, got %v", rep)
	}
}
