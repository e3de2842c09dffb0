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

package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/wire"
	"github.com/spf13/viper"

	"github.com/stagecrafthq/stagecraft/internal/pkg/artifact"
	"github.com/stagecrafthq/stagecraft/internal/pkg/budget"
	"github.com/stagecrafthq/stagecraft/internal/pkg/executor"
	"github.com/stagecrafthq/stagecraft/internal/pkg/governance"
	"github.com/stagecrafthq/stagecraft/internal/pkg/scheduler"
	"github.com/stagecrafthq/stagecraft/pkg/cache"
	"github.com/stagecrafthq/stagecraft/pkg/database"
	"github.com/stagecrafthq/stagecraft/pkg/env"
	"github.com/stagecrafthq/stagecraft/pkg/http"
	"github.com/stagecrafthq/stagecraft/pkg/logger"
	"github.com/stagecrafthq/stagecraft/pkg/metrics"
	"github.com/stagecrafthq/stagecraft/pkg/mq/kafka"
	"github.com/stagecrafthq/stagecraft/pkg/trace"
)

// ProviderSet is the Wire provider set for configuration.
var ProviderSet = wire.NewSet(NewConf)

// EventsConfig controls run-event publishing to the message queue.
type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Topic   string `mapstructure:"topic"`
	// SourcePrefix is prepended to the event source field so consumers
	// can tell engine instances apart.
	SourcePrefix string `mapstructure:"sourcePrefix"`
	Timeout      int    `mapstructure:"timeout"`
}

// SetDefaults fills missing settings with sane defaults.
func (c *EventsConfig) SetDefaults() {
	if c.Topic == "" {
		c.Topic = "stagecraft.run-events"
	}
	if c.SourcePrefix == "" {
		c.SourcePrefix = "stagecraft"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10
	}
}

type MessageQueueConfig struct {
	Kafka kafka.ProducerConfig `mapstructure:"kafka"`
}

// GovernanceConfig carries the engine-operator policy layer. The
// platform baseline is compiled in; the client layer arrives per
// profile.
type GovernanceConfig struct {
	Default governance.Policy `mapstructure:"default"`
}

type AppConfig struct {
	Log          logger.MultiConf              `mapstructure:"log"`
	Http         http.Http                     `mapstructure:"http"`
	Database     database.Database             `mapstructure:"database"`
	Redis        cache.Redis                   `mapstructure:"redis"`
	Artifact     artifact.Config               `mapstructure:"artifact"`
	Scheduler    scheduler.Config              `mapstructure:"scheduler"`
	Budget       budget.Limits                 `mapstructure:"budget"`
	Governance   GovernanceConfig              `mapstructure:"governance"`
	Executors    []executor.HTTPExecutorConfig `mapstructure:"executors"`
	Events       EventsConfig                  `mapstructure:"events"`
	MessageQueue MessageQueueConfig            `mapstructure:"messageQueue"`
	Metrics      metrics.MetricsConfig         `mapstructure:"metrics"`
	Trace        trace.Config                  `mapstructure:"trace"`
}

var (
	cfg  AppConfig
	mu   sync.RWMutex
	once sync.Once
)

func NewConf(confDir string) *AppConfig {
	once.Do(func() {
		var err error
		cfg, err = LoadConfigFile(confDir)
		if err != nil {
			panic(fmt.Sprintf("load config file error: %s", err))
		}
	})
	mu.RLock()
	defer mu.RUnlock()
	return &cfg
}

// GetConfig returns a snapshot of the current configuration. Callers
// that need hot-reloaded values should re-read instead of caching it.
func GetConfig() AppConfig {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// LoadConfigFile load config file
func LoadConfigFile(confDir string) (AppConfig, error) {

	config := viper.New()
	config.SetConfigFile(confDir)
	if err := config.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("failed to read configuration file: %v", err)
	}

	config.WatchConfig()
	config.OnConfigChange(func(e fsnotify.Event) {
		logger.Infow("The configuration changes, re-analyze the configuration file", "file", e.Name)
		if err := config.ReadInConfig(); err != nil {
			logger.Errorw("failed to re-read configuration file", "error", err, "file", e.Name)
			return
		}
		mu.Lock()
		if err := config.Unmarshal(&cfg); err != nil {
			mu.Unlock()
			logger.Errorw("failed to unmarshal configuration file", "error", err, "file", e.Name)
			return
		}
		applyDefaults(&cfg)
		applyEnvOverrides(&cfg)
		mu.Unlock()
		logger.Infow("configuration reloaded successfully", "file", e.Name)
	})
	if err := config.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal configuration file: %v", err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	logger.Infow("config file loaded",
		"path", confDir,
	)

	return cfg, nil
}

func applyDefaults(c *AppConfig) {
	c.Log.SetDefaults()
	c.Http.SetDefaults()
	c.Database.SetDefaults()
	c.Redis.SetDefaults()
	c.Artifact.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Events.SetDefaults()
	c.Metrics.SetDefaults()
	c.Trace.SetDefaults()
}

// applyEnvOverrides lets deployment environments override the listen
// address and inject credentials without writing them into the config
// file. Environment variables win over file values.
func applyEnvOverrides(c *AppConfig) {
	c.Http.Host = env.GetEnvString("STAGECRAFT_HTTP_HOST", c.Http.Host)
	c.Http.Port = env.GetEnvInt("STAGECRAFT_HTTP_PORT", c.Http.Port)
	c.Database.MySQL.Password = env.GetEnvString("STAGECRAFT_MYSQL_PASSWORD", c.Database.MySQL.Password)
	c.Redis.Password = env.GetEnvString("STAGECRAFT_REDIS_PASSWORD", c.Redis.Password)
	c.Artifact.Minio.AccessKey = env.GetEnvString("STAGECRAFT_MINIO_ACCESS_KEY", c.Artifact.Minio.AccessKey)
	c.Artifact.Minio.SecretKey = env.GetEnvString("STAGECRAFT_MINIO_SECRET_KEY", c.Artifact.Minio.SecretKey)
	c.MessageQueue.Kafka.Sasl.Username = env.GetEnvString("STAGECRAFT_KAFKA_SASL_USERNAME", c.MessageQueue.Kafka.Sasl.Username)
	c.MessageQueue.Kafka.Sasl.Password = env.GetEnvString("STAGECRAFT_KAFKA_SASL_PASSWORD", c.MessageQueue.Kafka.Sasl.Password)
}
