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
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/stagecrafthq/stagecraft/internal/engine/model"
	"github.com/stagecrafthq/stagecraft/internal/pkg/workflow"
	"github.com/stagecrafthq/stagecraft/pkg/http"
	"github.com/stagecrafthq/stagecraft/pkg/http/middleware"
)

func (rt *Router) runRouter(r fiber.Router) {
	runs := r.Group("/runs")
	{
		runs.Post("/", rt.startRun)
		runs.Get("/", rt.listRuns)
		runs.Get("/:runId", rt.getRun)
		runs.Delete("/:runId", rt.deleteRun)

		runs.Post("/:runId/advance", rt.advanceRun)
		runs.Post("/:runId/approve", rt.approveRun)
		runs.Post("/:runId/reject", rt.rejectRun)
		runs.Post("/:runId/rollback", rt.rollbackRun)

		runs.Get("/:runId/artifacts", rt.listRunArtifacts)
		runs.Get("/:runId/metrics", rt.getRunMetrics)
	}
}

func (rt *Router) startRun(c *fiber.Ctx) error {
	var req model.StartRunReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	req.ProfileId = strings.TrimSpace(req.ProfileId)
	req.Principal = strings.TrimSpace(req.Principal)

	run, err := rt.runService().StartRun(c.Context(), &req)
	if err != nil {
		return replyErr(c, err)
	}
	c.Locals(middleware.DETAIL, run)
	return nil
}

// advanceRun executes the current phase. Validation retries,
// governance blocks and consensus handoffs are legitimate attempt
// outcomes, so they come back as a detail payload rather than an
// error envelope.
func (rt *Router) advanceRun(c *fiber.Ctx) error {
	runId := strings.TrimSpace(c.Params("runId"))
	if runId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "run id is required", c.Path())
	}

	record, err := rt.runService().Advance(c.Context(), runId)
	if err != nil {
		var (
			validation *workflow.ValidationFailedError
			governance *workflow.GovernanceBlockedError
		)
		switch {
		case errors.As(err, &validation), errors.As(err, &governance):
			c.Locals(middleware.DETAIL, fiber.Map{
				"record":  record,
				"blocked": err.Error(),
			})
			return nil
		default:
			return replyErr(c, err)
		}
	}
	c.Locals(middleware.DETAIL, fiber.Map{"record": record})
	return nil
}

func (rt *Router) getRun(c *fiber.Ctx) error {
	runId := strings.TrimSpace(c.Params("runId"))
	if runId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "run id is required", c.Path())
	}
	detail, err := rt.runService().GetRun(c.Context(), runId)
	if err != nil {
		return replyErr(c, err)
	}
	c.Locals(middleware.DETAIL, detail)
	return nil
}

func (rt *Router) listRuns(c *fiber.Ctx) error {
	req := model.ListRunsReq{
		ProfileId: c.Query("profileId"),
		Principal: c.Query("principal"),
		Status:    c.Query("status"),
		Page:      rt.conf.Http.QueryInt(c, "page"),
		PageSize:  rt.conf.Http.QueryInt(c, "pageSize"),
	}
	rep, err := rt.runService().ListRuns(c.Context(), &req)
	if err != nil {
		return replyErr(c, err)
	}
	c.Locals(middleware.DETAIL, rep)
	return nil
}

func (rt *Router) deleteRun(c *fiber.Ctx) error {
	runId := strings.TrimSpace(c.Params("runId"))
	if runId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "run id is required", c.Path())
	}
	if err := rt.runService().DeleteRun(c.Context(), runId); err != nil {
		return replyErr(c, err)
	}
	c.Locals(middleware.OPERATION, "run deleted")
	return nil
}

func (rt *Router) approveRun(c *fiber.Ctx) error {
	return rt.resolveConsensus(c, true)
}

func (rt *Router) rejectRun(c *fiber.Ctx) error {
	return rt.resolveConsensus(c, false)
}

func (rt *Router) resolveConsensus(c *fiber.Ctx, approve bool) error {
	runId := strings.TrimSpace(c.Params("runId"))
	if runId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "run id is required", c.Path())
	}
	var req model.ConsensusReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}

	var (
		run *workflow.Run
		err error
	)
	if approve {
		run, err = rt.runService().Approve(c.Context(), runId, &req)
	} else {
		run, err = rt.runService().Reject(c.Context(), runId, &req)
	}
	if err != nil {
		return replyErr(c, err)
	}
	c.Locals(middleware.DETAIL, run)
	return nil
}

func (rt *Router) rollbackRun(c *fiber.Ctx) error {
	runId := strings.TrimSpace(c.Params("runId"))
	if runId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "run id is required", c.Path())
	}
	var req model.RollbackReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	req.TargetPhase = strings.TrimSpace(req.TargetPhase)

	run, err := rt.runService().Rollback(c.Context(), runId, &req)
	if err != nil {
		return replyErr(c, err)
	}
	c.Locals(middleware.DETAIL, run)
	return nil
}

func (rt *Router) listRunArtifacts(c *fiber.Ctx) error {
	runId := strings.TrimSpace(c.Params("runId"))
	if runId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "run id is required", c.Path())
	}
	artifacts, err := rt.runService().ListArtifacts(c.Context(), runId)
	if err != nil {
		return replyErr(c, err)
	}
	c.Locals(middleware.DETAIL, artifacts)
	return nil
}

func (rt *Router) getRunMetrics(c *fiber.Ctx) error {
	runId := strings.TrimSpace(c.Params("runId"))
	if runId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "run id is required", c.Path())
	}
	rep, err := rt.runService().GetMetrics(c.Context(), runId)
	if err != nil {
		return replyErr(c, err)
	}
	c.Locals(middleware.DETAIL, rep)
	return nil
}
