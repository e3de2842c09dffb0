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

//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/stagecrafthq/stagecraft/internal/engine/bootstrap"
	"github.com/stagecrafthq/stagecraft/internal/engine/config"
	"github.com/stagecrafthq/stagecraft/internal/engine/repo"
	"github.com/stagecrafthq/stagecraft/internal/engine/router"
	"github.com/stagecrafthq/stagecraft/internal/engine/service"
	"github.com/stagecrafthq/stagecraft/pkg/cache"
	"github.com/stagecrafthq/stagecraft/pkg/database"
)

func initApp(configPath string) (*bootstrap.App, func(), error) {
	panic(wire.Build(
		config.ProviderSet,
		database.ProviderSet,
		cache.ProviderSet,
		repo.ProviderSet,
		service.ProviderSet,
		router.ProviderSet,
		bootstrap.ProviderSet,
	))
}
