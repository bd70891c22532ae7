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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
)

// Stream entry fields.
const (
	FieldType    = "type"
	FieldID      = "id"
	FieldPayload = "payload"
)

// RedisStreamPublisher appends jobs to one Redis stream per job type.
type RedisStreamPublisher struct {
	client  *redis.Client
	streams map[string]string
}

func NewRedisStreamPublisher(client *redis.Client, streams map[string]string) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, streams: streams}
}

func (p *RedisStreamPublisher) Enqueue(ctx context.Context, jobType string, payload any) error {
	stream, ok := p.streams[jobType]
	if !ok || stream == "" {
		return fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s job: %w", jobType, err)
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			FieldType:    jobType,
			FieldID:      uuid.New().String(),
			FieldPayload: string(data),
		},
	}).Err()
}

// RedisStreamConsumer reads one stream through a consumer group and hands
// each payload to a command, the same way PubSubListener does for a
// subscription. Entries are acknowledged only when the command chain records
// no errors; failed entries stay pending and are replayed by Recover.
type RedisStreamConsumer struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
	command  cor.Command
	logger   *slog.Logger
}

// NewRedisStreamConsumer creates a consumer. A non-positive block makes reads
// return immediately when the stream is empty.
func NewRedisStreamConsumer(client *redis.Client, stream string, group string, consumer string, block time.Duration, command cor.Command) *RedisStreamConsumer {
	if block <= 0 {
		block = -1
	}
	return &RedisStreamConsumer{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    block,
		command:  command,
		logger:   slog.Default(),
	}
}

// SetCommand attaches the command if none is set yet.
func (c *RedisStreamConsumer) SetCommand(command cor.Command) {
	if c.command == nil {
		c.command = command
	}
}

// EnsureGroup creates the stream and the consumer group if they don't exist.
func (c *RedisStreamConsumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Poll reads and processes the next batch of new entries. It returns the
// number of entries handled, zero when the block time elapsed.
func (c *RedisStreamConsumer) Poll(ctx context.Context) (int, error) {
	return c.read(ctx, ">")
}

// Recover replays the entries delivered to this consumer but never
// acknowledged.
func (c *RedisStreamConsumer) Recover(ctx context.Context) (int, error) {
	return c.read(ctx, "0")
}

func (c *RedisStreamConsumer) read(ctx context.Context, id string) (int, error) {
	block := c.block
	if id != ">" {
		block = -1
	}
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, id},
		Count:    10,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read from stream %s: %w", c.stream, err)
	}

	handled := 0
	for _, s := range streams {
		for _, msg := range s.Messages {
			c.handle(ctx, msg)
			handled++
		}
	}
	return handled, nil
}

func (c *RedisStreamConsumer) handle(ctx context.Context, msg redis.XMessage) {
	tracer := otel.Tracer("stream-consumer")
	spanCtx, span := tracer.Start(ctx, "receive-message")
	defer span.End()

	payload, _ := msg.Values[FieldPayload].(string)
	jobType, _ := msg.Values[FieldType].(string)
	span.SetAttributes(attribute.String("stream", c.stream), attribute.String("job_type", jobType))
	c.logger.InfoContext(spanCtx, "received message", "stream", c.stream, "message_id", msg.ID, "job_type", jobType)

	chainCtx := cor.NewJobContext(spanCtx, payload)
	defer chainCtx.Close()

	c.command.Execute(chainCtx)

	if err := chainCtx.Err(); err != nil {
		span.SetStatus(codes.Error, "failed")
		c.logger.ErrorContext(spanCtx, "error executing chain", "message_id", msg.ID, "error", err)
		return
	}
	if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
		span.SetStatus(codes.Error, "ack failed")
		c.logger.ErrorContext(spanCtx, "failed to ack message", "message_id", msg.ID, "error", err)
		return
	}
	span.SetStatus(codes.Ok, "success")
}

// Listen creates the group, replays pending entries and then polls in a
// background goroutine until ctx is cancelled.
func (c *RedisStreamConsumer) Listen(ctx context.Context) {
	c.logger.Info("listening", "stream", c.stream, "group", c.group, "consumer", c.consumer)
	go func() {
		if err := c.EnsureGroup(ctx); err != nil {
			c.logger.Error("stream consumer stopped", "stream", c.stream, "error", err)
			return
		}
		if _, err := c.Recover(ctx); err != nil {
			c.logger.Warn("failed to replay pending entries", "stream", c.stream, "error", err)
		}
		for ctx.Err() == nil {
			if _, err := c.Poll(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Error("error receiving data", "stream", c.stream, "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
		}
	}()
}
