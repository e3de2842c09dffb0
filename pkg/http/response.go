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

package http

import "github.com/gofiber/fiber/v2"

// Status pairs a business code with its default message.
type Status struct {
	Code int
	Msg  string
}

// Business status codes carried in the response envelope. The HTTP
// status stays 200 for handled errors; clients branch on Code.
var (
	OK                            = Status{Code: 0, Msg: "success"}
	Failed                        = Status{Code: 1, Msg: "failed"}
	BadRequest                    = Status{Code: 400, Msg: "bad request"}
	NotFound                      = Status{Code: 404, Msg: "not found"}
	Conflict                      = Status{Code: 409, Msg: "conflict"}
	RequestParameterParsingFailed = Status{Code: 4001, Msg: "request parameter parsing failed"}
)

// Rep is the uniform response envelope.
type Rep struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Path   string `json:"path,omitempty"`
	Detail any    `json:"detail,omitempty"`
}

// WithRepMsg replies with a bare status envelope.
func WithRepMsg(c *fiber.Ctx, code int, msg string) error {
	return c.JSON(Rep{Code: code, Msg: msg})
}

// WithRepErrMsg replies with an error envelope carrying the request path.
func WithRepErrMsg(c *fiber.Ctx, code int, msg string, path string) error {
	return c.JSON(Rep{Code: code, Msg: msg, Path: path})
}

// WithRepDetail replies with a success envelope wrapping detail.
func WithRepDetail(c *fiber.Ctx, detail any) error {
	return c.JSON(Rep{Code: OK.Code, Msg: OK.Msg, Detail: detail})
}
