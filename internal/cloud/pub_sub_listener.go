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


// This file defines the Pub/Sub worker side of the job queue. A listener
// pulls messages from one subscription and delegates each one to a Command.
//
// Logic Flow:
//  1. A PubSubListener is created with a client and a subscription ID.
//  2. The workflow that processes the job type is attached with SetCommand.
//  3. Listen starts a goroutine around subscription.Receive.
//  4. Each message becomes the CtxIn of a fresh chain context.
//  5. The message is acknowledged only when the chain recorded no errors;
//     otherwise it is left to expire and Pub/Sub redelivers it.
package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insights/internal/queue"
)

// PubSubListener connects a subscription to the command that processes its
// messages. Listeners live as long as the server, not a request, so they are
// held by ServiceClients.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	command      cor.Command
}

// NewPubSubListener creates a listener for subscriptionID. The command may be
// nil and attached later, once the workflows are built.
func NewPubSubListener(
	pubsubClient *pubsub.Client,
	subscriptionID string,
	command cor.Command,
) (cmd *PubSubListener, err error) {
	sub := pubsubClient.Subscription(subscriptionID)
	cmd = &PubSubListener{
		client:       pubsubClient,
		subscription: sub,
		command:      command,
	}
	return cmd, nil
}

// SetCommand attaches the command if none is set yet.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// Listen starts receiving in a background goroutine. Cancelling ctx stops it.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.Info("listening", "subscription", m.subscription.ID())

	go func() {
		tracer := otel.Tracer("message-listener")

		err := m.subscription.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
			spanCtx, span := tracer.Start(ctx, "receive-message")
			defer span.End()
			span.SetAttributes(
				attribute.String("subscription", m.subscription.ID()),
				attribute.String("job_type", msg.Attributes[queue.AttrJobType]),
			)
			slog.InfoContext(spanCtx, "received message", "message_id", msg.ID, "job_type", msg.Attributes[queue.AttrJobType])

			chainCtx := cor.NewJobContext(spanCtx, string(msg.Data))
			defer chainCtx.Close()

			m.command.Execute(chainCtx)

			err := chainCtx.Err()
			if err == nil {
				span.SetStatus(codes.Ok, "success")
				msg.Ack()
				return
			}
			span.SetStatus(codes.Error, "failed")
			slog.ErrorContext(spanCtx, "error executing chain", "message_id", msg.ID, "error", err)
			// Neither Ack nor Nack: the message is redelivered after its
			// ack deadline, following the subscription's retry policy.
		})
		if err != nil {
			slog.Error("error receiving data", "subscription", m.subscription.ID(), "error", err)
		}
	}()
}
