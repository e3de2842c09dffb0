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
	"context"
	"time"

	"github.com/bytedance/sonic"

	"github.com/stagecrafthq/stagecraft/internal/engine/config"
	"github.com/stagecrafthq/stagecraft/pkg/event"
	"github.com/stagecrafthq/stagecraft/pkg/logger"
	"github.com/stagecrafthq/stagecraft/pkg/mq/kafka"
)

// EventPublisher forwards run lifecycle events from the in-process
// bus to the message queue so external consumers can follow runs.
// Publishing is best effort; a broker outage never blocks the engine.
type EventPublisher struct {
	producer *kafka.Producer
	topic    string
	source   string
	timeout  time.Duration
}

func NewEventPublisher(producer *kafka.Producer, conf *config.AppConfig) *EventPublisher {
	return &EventPublisher{
		producer: producer,
		topic:    conf.Events.Topic,
		source:   conf.Events.SourcePrefix,
		timeout:  time.Duration(conf.Events.Timeout) * time.Second,
	}
}

// Attach subscribes the publisher to every engine event on the bus.
func (p *EventPublisher) Attach(bus *event.Bus) {
	if p.producer == nil {
		return
	}
	bus.SubscribeAll(event.HandlerFunc(p.publish))
}

type wireEvent struct {
	Source  string      `json:"source"`
	Name    string      `json:"name"`
	Payload event.Event `json:"payload"`
}

func (p *EventPublisher) publish(e event.Event) {
	value, err := sonic.Marshal(&wireEvent{
		Source:  p.source,
		Name:    e.EventName(),
		Payload: e,
	})
	if err != nil {
		logger.Errorw("encode run event failed", "event", e.EventName(), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.producer.Send(ctx, p.topic, eventKey(e), value, nil); err != nil {
		logger.Errorw("publish run event failed", "event", e.EventName(), "topic", p.topic, "error", err)
	}
}

// eventKey keeps all events of one run on the same partition so
// consumers see them in order.
func eventKey(e event.Event) string {
	switch ev := e.(type) {
	case event.RunEvent:
		return ev.RunID
	case event.PhaseEvent:
		return ev.RunID
	case event.ConsensusEvent:
		return ev.RunID
	case event.BudgetEvent:
		return ev.RunID
	default:
		return e.EventName()
	}
}

// Close flushes and closes the underlying producer.
func (p *EventPublisher) Close() {
	if p.producer != nil {
		p.producer.Close()
	}
}
