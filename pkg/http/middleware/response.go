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

package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stagecrafthq/stagecraft/pkg/http"
)

// Locals keys handlers use to hand payloads to the response wrapper.
const (
	// DETAIL carries the success payload for the envelope's detail field.
	DETAIL = "rep_detail"
	// OPERATION carries the identifier an operation acted on.
	OPERATION = "rep_operation"
)

// ResponseWrapper turns a handler's Locals payload into the uniform
// success envelope. Handlers that already wrote a body (error
// envelopes, file downloads) are left untouched.
func ResponseWrapper() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		if len(c.Response().Body()) > 0 {
			return nil
		}
		if detail := c.Locals(DETAIL); detail != nil {
			return http.WithRepDetail(c, detail)
		}
		if op := c.Locals(OPERATION); op != nil {
			return http.WithRepDetail(c, fiber.Map{"operation": op})
		}
		return http.WithRepMsg(c, http.OK.Code, http.OK.Msg)
	}
}
