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

package metrics

import (
	"github.com/google/wire"

	"github.com/stagecrafthq/stagecraft/pkg/http/middleware"
	"github.com/stagecrafthq/stagecraft/pkg/logger"
)

// ProviderSet is a Wire provider set for metrics
var ProviderSet = wire.NewSet(
	NewMetricsServer,
	ProvideEngineSink,
)

// NewMetricsServer creates a new metrics server from config
func NewMetricsServer(config MetricsConfig) *Server {
	server := NewServer(config)
	if err := middleware.RegisterHttpMetrics(server.GetRegistry()); err != nil {
		logger.Warnw("failed to register HTTP metrics", "error", err)
	}
	return server
}

// ProvideEngineSink registers the engine collectors on the server registry
func ProvideEngineSink(server *Server) *EngineSink {
	return NewEngineSink(server.GetRegistry())
}
