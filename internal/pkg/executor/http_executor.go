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

package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/stagecrafthq/stagecraft/pkg/logger"
)

// HTTPExecutorConfig configures one remote executor endpoint.
type HTTPExecutorConfig struct {
	ID      string            `mapstructure:"id" json:"id" yaml:"id"`
	URL     string            `mapstructure:"url" json:"url" yaml:"url"`
	Headers map[string]string `mapstructure:"headers" json:"headers" yaml:"headers"`
	// Timeout in seconds for one invocation; the scheduler's own
	// deadline still applies on top.
	Timeout int `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
}

// HTTPExecutor invokes a remote task executor over HTTP. The remote
// side receives the Task as JSON and replies with a Result.
type HTTPExecutor struct {
	config HTTPExecutorConfig
	client *resty.Client
}

// NewHTTPExecutor creates an executor for one remote endpoint.
func NewHTTPExecutor(config HTTPExecutorConfig) (*HTTPExecutor, error) {
	if config.ID == "" {
		return nil, fmt.Errorf("executor id is required")
	}
	if config.URL == "" {
		return nil, fmt.Errorf("executor url is required for %s", config.ID)
	}

	client := resty.New()
	if config.Timeout > 0 {
		client.SetTimeout(time.Duration(config.Timeout) * time.Second)
	}
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &HTTPExecutor{config: config, client: client}, nil
}

func (e *HTTPExecutor) ID() string {
	return e.config.ID
}

func (e *HTTPExecutor) Execute(ctx context.Context, task *Task) (*Result, error) {
	payload, err := sonic.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}

	req := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload)
	for k, v := range e.config.Headers {
		req.SetHeader(k, v)
	}

	resp, err := req.Post(e.config.URL)
	if err != nil {
		return nil, fmt.Errorf("executor %s request failed: %w", e.config.ID, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("executor %s returned status %d", e.config.ID, resp.StatusCode())
	}

	var result Result
	if err := sonic.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("executor %s returned malformed result: %w", e.config.ID, err)
	}

	logger.DebugContext(ctx, "executor finished",
		"executor", e.config.ID, "run", task.RunID, "phase", task.Phase,
		"success", result.Success, "artifacts", len(result.Artifacts))
	return &result, nil
}
