/*
Copyright 2024 Telespazio UK.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notify

import (
	"context"
	"encoding/json"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/google/uuid"
)

// Event carries one generated plan to the downstream provisioning engine.
type Event struct {
	ID string `json:"id"`
	// Event names what happened, e.g. "plan-generated"
	Event string `json:"event"`
	// Spec is the name of the transfer spec the plan was derived from
	Spec string `json:"spec"`
	// Plan is the serialized intent graph
	Plan json.RawMessage `json:"plan"`
}

// EventsClient publishes plan events to a Pulsar topic.
type EventsClient struct {
	pulsar   pulsar.Client
	producer pulsar.Producer
}

func NewEventsClient(pulsarURL, topic string) (*EventsClient, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL: pulsarURL,
	})

	if err != nil {
		return nil, err
	}

	// Create a producer on the topic
	producer, err := client.CreateProducer(pulsar.ProducerOptions{
		Topic: topic,
	})

	if err != nil {
		return nil, err
	}

	return &EventsClient{
		pulsar:   client,
		producer: producer}, nil
}

// NewPlanEvent wraps a serialized plan in an event envelope with a fresh ID.
func NewPlanEvent(specName string, plan []byte) Event {
	return Event{
		ID:    uuid.New().String(),
		Event: "plan-generated",
		Spec:  specName,
		Plan:  plan,
	}
}

// Publish sends one event synchronously, for one-shot CLI use.
func (c *EventsClient) Publish(ctx context.Context, event Event) error {
	jsonMessage, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = c.producer.Send(ctx, &pulsar.ProducerMessage{
		Payload: jsonMessage,
	})
	return err
}

func (c *EventsClient) Close() {
	c.producer.Close()
	c.pulsar.Close()
}
