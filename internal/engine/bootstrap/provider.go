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
	"github.com/google/wire"

	"github.com/stagecrafthq/stagecraft/internal/engine/config"
	"github.com/stagecrafthq/stagecraft/pkg/cache"
	"github.com/stagecrafthq/stagecraft/pkg/database"
	"github.com/stagecrafthq/stagecraft/pkg/logger"
	"github.com/stagecrafthq/stagecraft/pkg/shutdown"
)

// ProviderSet provides the application shell plus the configuration
// slices the infrastructure providers consume.
var ProviderSet = wire.NewSet(
	NewApp,
	ProvideLoggerConf,
	ProvideDatabaseConf,
	ProvideRedisConf,
	ProvideShutdownManager,
	logger.ProvideManager,
)

func ProvideLoggerConf(conf *config.AppConfig) *logger.MultiConf {
	return &conf.Log
}

func ProvideDatabaseConf(conf *config.AppConfig) database.Database {
	return conf.Database
}

func ProvideRedisConf(conf *config.AppConfig) *cache.Redis {
	return &conf.Redis
}

func ProvideShutdownManager() *shutdown.Manager {
	return shutdown.NewManager()
}
