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

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/stagecrafthq/stagecraft/pkg/http"
)

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(serverAddr + "/api/v1").
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
}

// call sends one request and unwraps the response envelope. A nonzero
// envelope code is an error.
func call(method, path string, body any) (any, error) {
	req := newClient().R()
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}

	var rep http.Rep
	if err := json.Unmarshal(resp.Body(), &rep); err != nil {
		return nil, fmt.Errorf("unexpected response: %s", resp.Body())
	}
	if rep.Code != http.OK.Code {
		return nil, fmt.Errorf("%s (code %d)", rep.Msg, rep.Code)
	}
	return rep.Detail, nil
}

func printDetail(detail any) {
	out, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		fmt.Println(detail)
		return
	}
	fmt.Println(string(out))
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
