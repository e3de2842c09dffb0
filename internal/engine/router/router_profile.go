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
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/stagecrafthq/stagecraft/internal/engine/model"
	"github.com/stagecrafthq/stagecraft/pkg/http"
	"github.com/stagecrafthq/stagecraft/pkg/http/middleware"
)

func (rt *Router) profileRouter(r fiber.Router) {
	profiles := r.Group("/profiles")
	{
		profiles.Post("/", rt.createProfile)
		profiles.Get("/", rt.listProfiles)
		profiles.Get("/:profileId", rt.getProfile)
		profiles.Put("/:profileId", rt.updateProfile)
		profiles.Delete("/:profileId", rt.deleteProfile)
	}
}

func (rt *Router) createProfile(c *fiber.Ctx) error {
	var req model.CreateProfileReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	req.ProfileId = strings.TrimSpace(req.ProfileId)
	req.Name = strings.TrimSpace(req.Name)

	rep, err := rt.profileService().CreateProfile(c.Context(), &req)
	if err != nil {
		return replyErr(c, err)
	}
	c.Locals(middleware.DETAIL, rep)
	return nil
}

func (rt *Router) listProfiles(c *fiber.Ctx) error {
	reps, err := rt.profileService().ListProfiles(c.Context())
	if err != nil {
		return replyErr(c, err)
	}
	c.Locals(middleware.DETAIL, reps)
	return nil
}

func (rt *Router) getProfile(c *fiber.Ctx) error {
	profileId := strings.TrimSpace(c.Params("profileId"))
	if profileId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "profile id is required", c.Path())
	}
	rep, err := rt.profileService().GetProfile(c.Context(), profileId)
	if err != nil {
		return replyErr(c, err)
	}
	c.Locals(middleware.DETAIL, rep)
	return nil
}

func (rt *Router) updateProfile(c *fiber.Ctx) error {
	profileId := strings.TrimSpace(c.Params("profileId"))
	if profileId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "profile id is required", c.Path())
	}
	var req model.CreateProfileReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}

	rep, err := rt.profileService().UpdateProfile(c.Context(), profileId, &req)
	if err != nil {
		return replyErr(c, err)
	}
	c.Locals(middleware.DETAIL, rep)
	return nil
}

func (rt *Router) deleteProfile(c *fiber.Ctx) error {
	profileId := strings.TrimSpace(c.Params("profileId"))
	if profileId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "profile id is required", c.Path())
	}
	if err := rt.profileService().DeleteProfile(c.Context(), profileId); err != nil {
		return replyErr(c, err)
	}
	c.Locals(middleware.OPERATION, "profile deleted")
	return nil
}
