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

package service

import (
	"fmt"

	"github.com/google/wire"

	"github.com/stagecrafthq/stagecraft/internal/engine/config"
	"github.com/stagecrafthq/stagecraft/internal/pkg/artifact"
	"github.com/stagecrafthq/stagecraft/internal/pkg/budget"
	"github.com/stagecrafthq/stagecraft/internal/pkg/executor"
	"github.com/stagecrafthq/stagecraft/internal/pkg/governance"
	"github.com/stagecrafthq/stagecraft/internal/pkg/scheduler"
	"github.com/stagecrafthq/stagecraft/internal/pkg/validator"
	"github.com/stagecrafthq/stagecraft/internal/pkg/workflow"
	"github.com/stagecrafthq/stagecraft/pkg/event"
	"github.com/stagecrafthq/stagecraft/pkg/logger"
	"github.com/stagecrafthq/stagecraft/pkg/metrics"
	"github.com/stagecrafthq/stagecraft/pkg/mq/kafka"
)

// ProviderSet provides the engine core and the service layer.
var ProviderSet = wire.NewSet(
	ProvideArtifactStore,
	ProvideLedger,
	ProvideRegistry,
	ProvideScheduler,
	ProvideValidator,
	ProvideEventBus,
	ProvideMetricsServer,
	ProvideEngineSink,
	ProvideEngine,
	ProvideProducer,
	NewEventPublisher,
	NewProfileService,
	NewRunService,
	ProvideServices,
)

// Services bundles the service layer for the router.
type Services struct {
	Run     *RunService
	Profile *ProfileService
	Events  *EventPublisher
}

func ProvideServices(run *RunService, profile *ProfileService, events *EventPublisher, bus *event.Bus) *Services {
	events.Attach(bus)
	return &Services{
		Run:     run,
		Profile: profile,
		Events:  events,
	}
}

func ProvideArtifactStore(conf *config.AppConfig) (artifact.Store, error) {
	return artifact.NewStore(conf.Artifact)
}

func ProvideLedger(conf *config.AppConfig) *budget.Ledger {
	return budget.NewLedger(conf.Budget)
}

// ProvideRegistry builds the executor registry from configuration.
func ProvideRegistry(conf *config.AppConfig) (*executor.Registry, error) {
	registry := executor.NewRegistry()
	for _, ec := range conf.Executors {
		exec, err := executor.NewHTTPExecutor(ec)
		if err != nil {
			return nil, fmt.Errorf("build executor %q failed: %w", ec.ID, err)
		}
		registry.Register(exec)
	}
	return registry, nil
}

func ProvideScheduler(registry *executor.Registry, ledger *budget.Ledger, conf *config.AppConfig) *scheduler.Scheduler {
	return scheduler.New(registry, ledger, conf.Scheduler)
}

func ProvideValidator(store artifact.Store) *validator.Validator {
	return validator.New(store)
}

func ProvideEventBus() *event.Bus {
	return event.NewBus()
}

func ProvideMetricsServer(conf *config.AppConfig) *metrics.Server {
	return metrics.NewServer(conf.Metrics)
}

func ProvideEngineSink(server *metrics.Server) *metrics.EngineSink {
	return metrics.NewEngineSink(server.GetRegistry())
}

func ProvideEngine(
	store workflow.Store,
	sched *scheduler.Scheduler,
	val *validator.Validator,
	objects artifact.Store,
	bus *event.Bus,
	sink *metrics.EngineSink,
	conf *config.AppConfig,
) *workflow.Engine {
	return workflow.NewEngine(store, sched, val, objects,
		workflow.WithPolicies(&conf.Governance.Default, governance.Baseline()),
		workflow.WithEventBus(bus),
		workflow.WithMetricsSink(sink),
	)
}

// ProvideProducer builds the Kafka producer when event publishing is
// enabled. A nil producer means events stay in process.
func ProvideProducer(conf *config.AppConfig) (*kafka.Producer, func(), error) {
	if !conf.Events.Enabled {
		return nil, func() {}, nil
	}
	kc := conf.MessageQueue.Kafka
	producer, err := kafka.NewProducer(kc.BootstrapServers, kc.ClientId,
		kafka.WithProducerAcks(kc.Acks),
		kafka.WithProducerRetries(kc.Retries),
		kafka.WithProducerCompression(kc.Compression),
		kafka.WithProducerClientOptions(
			kafka.WithSecurityProtocol(kc.SecurityProtocol),
			kafka.WithSaslMechanism(kc.Sasl.Mechanism),
			kafka.WithSaslUsername(kc.Sasl.Username),
			kafka.WithSaslPassword(kc.Sasl.Password),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("build kafka producer failed: %w", err)
	}
	logger.Infow("kafka producer ready", "servers", kc.BootstrapServers, "topic", conf.Events.Topic)
	return producer, producer.Close, nil
}
