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

package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/stagecrafthq/stagecraft/internal/engine/config"
	"github.com/stagecrafthq/stagecraft/internal/engine/repo"
	"github.com/stagecrafthq/stagecraft/internal/engine/router"
	"github.com/stagecrafthq/stagecraft/internal/engine/service"
	"github.com/stagecrafthq/stagecraft/pkg/database"
	"github.com/stagecrafthq/stagecraft/pkg/logger"
	"github.com/stagecrafthq/stagecraft/pkg/metrics"
	"github.com/stagecrafthq/stagecraft/pkg/shutdown"
	"github.com/stagecrafthq/stagecraft/pkg/trace"
)

const serviceName = "stagecraft"

type App struct {
	HttpApp       *fiber.App
	MetricsServer *metrics.Server
	LogManager    logger.IManager
	AppConf       *config.AppConfig
	Repos         *repo.Repositories
	Services      *service.Services
	ShutdownMgr   *shutdown.Manager
}

// InitAppFunc is the wire-generated injector signature.
type InitAppFunc func(configPath string) (*App, func(), error)

func NewApp(
	rt *router.Router,
	logManager logger.IManager,
	metricsServer *metrics.Server,
	appConf *config.AppConfig,
	db database.IDatabase,
	repos *repo.Repositories,
	services *service.Services,
	shutdownMgr *shutdown.Manager,
) (*App, func(), error) {
	if err := repo.AutoMigrate(db); err != nil {
		return nil, nil, fmt.Errorf("auto migrate failed: %w", err)
	}

	// Mirror enabled profiles into the engine so runs can start
	// without a warm-up request per profile.
	if err := services.Profile.LoadAll(context.Background()); err != nil {
		logger.Warnw("load profiles at startup failed", "error", err)
	}

	// Re-seed the budget ledger so consumed spend keeps counting
	// against daily and lifetime limits across restarts.
	if err := services.Run.RestoreBudgets(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("restore budget ledger failed: %w", err)
	}

	app := &App{
		HttpApp:       rt.Router(),
		MetricsServer: metricsServer,
		LogManager:    logManager,
		AppConf:       appConf,
		Repos:         repos,
		Services:      services,
		ShutdownMgr:   shutdownMgr,
	}

	// Ordered app-level teardown runs through the shutdown manager
	// (LIFO); injector-owned resources (database, cache) close in the
	// wire cleanup afterwards.
	shutdownMgr.Register("event-publisher", func(context.Context) error {
		services.Events.Close()
		return nil
	})
	if metricsServer != nil {
		shutdownMgr.Register("metrics-server", metricsServer.Stop)
	}

	cleanup := func() {
		// Shutdown is once-only; this covers error paths where Run
		// never got a chance to call it.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownMgr.Shutdown(shutdownCtx)
	}

	return app, cleanup, nil
}

// Bootstrap builds the application via the injector and initializes
// tracing. The returned cleanup releases everything NewApp and the
// injector acquired.
func Bootstrap(configFile string, initApp InitAppFunc) (*App, func(), *config.AppConfig, error) {
	app, cleanup, err := initApp(configFile)
	if err != nil {
		return nil, nil, nil, err
	}

	appConf := app.AppConf

	traceShutdown, err := trace.Init(context.Background(), serviceName, "", appConf.Trace)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// Spans flush before the event publisher and metrics server stop.
	app.ShutdownMgr.Register("trace-flush", func(context.Context) error {
		traceShutdown()
		return nil
	})
	return app, cleanup, appConf, nil
}

// Run starts the servers and blocks until an exit signal, then shuts
// everything down gracefully.
func Run(app *App, cleanup func()) {
	appConf := app.AppConf

	if app.MetricsServer != nil {
		if err := app.MetricsServer.Start(); err != nil {
			logger.Errorw("Metrics server failed", "error", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		addr := fmt.Sprintf("%s:%d", appConf.Http.Host, appConf.Http.Port)
		logger.Infow("HTTP listener started", "address", addr)
		if err := app.HttpApp.Listen(addr); err != nil {
			logger.Errorw("HTTP listener failed", "address", addr, "error", err)
		}
	}()

	sig := <-quit
	logger.Infow("Received OS signal, shutting down gracefully...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.HttpApp.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Errorw("HTTP server shutdown error", "error", err)
	} else {
		logger.Info("HTTP server shut down gracefully")
	}

	if app.ShutdownMgr != nil {
		app.ShutdownMgr.Shutdown(shutdownCtx)
	}

	cleanup()

	logger.Info("Server shutdown complete")
}
