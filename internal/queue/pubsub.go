// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
)

// Message attributes set on every published job.
const (
	AttrJobType = "job_type"
	AttrJobID   = "id"
)

// PubSubPublisher publishes jobs to one Pub/Sub topic per job type.
type PubSubPublisher struct {
	client *pubsub.Client
	topics map[string]*pubsub.Topic
}

// NewPubSubPublisher maps each job type to the topic named in topicIDs.
func NewPubSubPublisher(client *pubsub.Client, topicIDs map[string]string) *PubSubPublisher {
	topics := make(map[string]*pubsub.Topic, len(topicIDs))
	for jobType, id := range topicIDs {
		if id == "" {
			continue
		}
		topics[jobType] = client.Topic(id)
	}
	return &PubSubPublisher{client: client, topics: topics}
}

func (p *PubSubPublisher) Enqueue(ctx context.Context, jobType string, payload any) error {
	topic, ok := p.topics[jobType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s job: %w", jobType, err)
	}

	id := uuid.New().String()
	result := topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{AttrJobType: jobType, AttrJobID: id},
	})
	serverID, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish %s job: %w", jobType, err)
	}
	slog.DebugContext(ctx, "job published", "job_type", jobType, "id", id, "message_id", serverID)
	return nil
}

// Stop flushes and stops every topic's publishing goroutines.
func (p *PubSubPublisher) Stop() {
	for _, t := range p.topics {
		t.Stop()
	}
}
