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


package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insights/internal/queue"
)

const (
	stream = "video-insights-enrich"
	group  = "video-insights"
)

type recordingCommand struct {
	cor.BaseCommand
	mu       sync.Mutex
	payloads []string
	fail     bool
}

func newRecordingCommand(fail bool) *recordingCommand {
	return &recordingCommand{BaseCommand: *cor.NewBaseCommand("recording"), fail: fail}
}

func (c *recordingCommand) Execute(context cor.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, context.Get(cor.CtxIn).(string))
	if c.fail {
		context.AddError(c.GetName(), errors.New("boom"))
	}
}

func (c *recordingCommand) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.payloads...)
}

func setup(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func pending(t *testing.T, client *redis.Client) int64 {
	t.Helper()
	p, err := client.XPending(context.Background(), stream, group).Result()
	require.NoError(t, err)
	return p.Count
}

func TestPublishAndConsume(t *testing.T) {
	client := setup(t)
	ctx := context.Background()
	cmd := newRecordingCommand(false)

	consumer := queue.NewRedisStreamConsumer(client, stream, group, "worker-1", 0, cmd)
	require.NoError(t, consumer.EnsureGroup(ctx))
	require.NoError(t, consumer.EnsureGroup(ctx))

	publisher := queue.NewRedisStreamPublisher(client, map[string]string{queue.JobEnrich: stream})
	require.NoError(t, publisher.Enqueue(ctx, queue.JobEnrich, map[string]string{"video_id": "v-1"}))

	n, err := consumer.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{`{"video_id":"v-1"}`}, cmd.received())
	assert.Equal(t, int64(0), pending(t, client))

	n, err = consumer.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFailedChainLeavesEntryPending(t *testing.T) {
	client := setup(t)
	ctx := context.Background()
	cmd := newRecordingCommand(true)

	consumer := queue.NewRedisStreamConsumer(client, stream, group, "worker-1", 0, cmd)
	require.NoError(t, consumer.EnsureGroup(ctx))

	publisher := queue.NewRedisStreamPublisher(client, map[string]string{queue.JobEnrich: stream})
	require.NoError(t, publisher.Enqueue(ctx, queue.JobEnrich, map[string]string{"video_id": "v-2"}))

	n, err := consumer.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), pending(t, client))
}

func TestEnqueueUnknownJobType(t *testing.T) {
	client := setup(t)
	publisher := queue.NewRedisStreamPublisher(client, map[string]string{queue.JobEnrich: stream})

	err := publisher.Enqueue(context.Background(), queue.JobTranscribe, "x")
	assert.ErrorIs(t, err, queue.ErrUnknownJobType)
}

func TestListen(t *testing.T) {
	client := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := newRecordingCommand(false)

	consumer := queue.NewRedisStreamConsumer(client, stream, group, "worker-1", 20*time.Millisecond, nil)
	consumer.SetCommand(cmd)
	require.NoError(t, consumer.EnsureGroup(ctx))
	consumer.Listen(ctx)

	publisher := queue.NewRedisStreamPublisher(client, map[string]string{queue.JobEnrich: stream})
	require.NoError(t, publisher.Enqueue(ctx, queue.JobEnrich, []int{1, 2}))

	assert.Eventually(t, func() bool {
		return len(cmd.received()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "[1,2]", cmd.received()[0])
}
