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
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/wire"

	"github.com/stagecrafthq/stagecraft/internal/engine/config"
	"github.com/stagecrafthq/stagecraft/internal/engine/service"
	"github.com/stagecrafthq/stagecraft/internal/pkg/workflow"
	"github.com/stagecrafthq/stagecraft/pkg/http"
	"github.com/stagecrafthq/stagecraft/pkg/http/middleware"
	"github.com/stagecrafthq/stagecraft/pkg/logger"
	"github.com/stagecrafthq/stagecraft/pkg/metrics"
)

// ProviderSet provides the HTTP router.
var ProviderSet = wire.NewSet(NewRouter)

type Router struct {
	conf          *config.AppConfig
	services      *service.Services
	metricsServer *metrics.Server
}

func NewRouter(conf *config.AppConfig, services *service.Services, metricsServer *metrics.Server) *Router {
	return &Router{
		conf:          conf,
		services:      services,
		metricsServer: metricsServer,
	}
}

// Router builds the fiber application with middleware and all route
// groups mounted.
func (rt *Router) Router() *fiber.App {
	httpConf := rt.conf.Http
	app := fiber.New(fiber.Config{
		AppName:      "stagecraft",
		BodyLimit:    httpConf.BodyLimit,
		ReadTimeout:  time.Duration(httpConf.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(httpConf.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(httpConf.IdleTimeout) * time.Second,
	})

	app.Use(middleware.CorsMiddleware())
	if httpConf.AccessLog {
		app.Use(middleware.AccessLogMiddleware())
	}
	if rt.metricsServer != nil {
		if err := middleware.RegisterHttpMetrics(rt.metricsServer.GetRegistry()); err != nil {
			logger.Warnw("register http metrics failed", "error", err)
		}
		app.Use(middleware.HttpMetricsMiddleware())
	}

	app.Get("/healthz", rt.health)

	api := app.Group("/api/v1", middleware.ResponseWrapper())
	rt.runRouter(api)
	rt.profileRouter(api)

	return app
}

func (rt *Router) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (rt *Router) runService() *service.RunService {
	return rt.services.Run
}

func (rt *Router) profileService() *service.ProfileService {
	return rt.services.Profile
}

// errStatus maps engine errors to envelope status codes.
func errStatus(err error) http.Status {
	var (
		notFound       *workflow.RunNotFoundError
		invalidProfile *workflow.InvalidProfileError
		completed      *workflow.RunAlreadyCompletedError
		awaiting       *workflow.RunAwaitingConsensusError
		notAwaiting    *workflow.NotAwaitingConsensusError
		failed         *workflow.RunFailedError
		badRollback    *workflow.InvalidRollbackError
	)
	switch {
	case errors.As(err, &notFound):
		return http.NotFound
	case errors.As(err, &invalidProfile), errors.As(err, &badRollback),
		errors.Is(err, workflow.ErrFeedbackRequired):
		return http.BadRequest
	case errors.As(err, &completed), errors.As(err, &awaiting),
		errors.As(err, &notAwaiting), errors.As(err, &failed),
		errors.Is(err, workflow.ErrVersionConflict):
		return http.Conflict
	default:
		return http.Failed
	}
}

func replyErr(c *fiber.Ctx, err error) error {
	status := errStatus(err)
	return http.WithRepErrMsg(c, status.Code, err.Error(), c.Path())
}
