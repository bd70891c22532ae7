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

package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/clock"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/provider"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/services"
	test "github.com/jaycherian/gcp-go-video-insights/internal/testutil"
)

const day = 24 * time.Hour

var start = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

var attr = model.Attribution{VideoID: "video-1", UserID: "user-1"}

func testConfig() services.CachedAIConfig {
	return services.CachedAIConfig{
		TranscriptionModel:  "whisper-1",
		Highlights:          services.CompletionSettings{Model: "highlights-model", JSONMode: true},
		Summary:             services.CompletionSettings{Model: "summary-model", JSONMode: true},
		Topics:              services.CompletionSettings{Model: "topics-model", JSONMode: true},
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 2,
		EmbeddingBatchSize:  100,
		TTLs: map[model.ArtifactKind]time.Duration{
			model.KindTranscription: 60 * day,
			model.KindHighlights:    90 * day,
			model.KindSummary:       60 * day,
			model.KindTopics:        60 * day,
			model.KindEmbeddings:    180 * day,
		},
	}
}

func newService(t *testing.T, config services.CachedAIConfig) (*services.CachedAIService, *test.FakeProvider, *test.LocalStack) {
	t.Helper()
	stack := test.NewLocalStack(t, clock.NewManual(start))
	fake := test.NewFakeProvider()
	svc, err := services.NewCachedAIService(fake, stack.Cache, stack.Usage, config, nil)
	require.NoError(t, err)
	return svc, fake, stack
}

func records(t *testing.T, stack *test.LocalStack) []*model.UsageRecord {
	t.Helper()
	out, err := stack.Ledger.Records(context.Background(), model.UsageFilter{})
	require.NoError(t, err)
	return out
}

func entries(t *testing.T, stack *test.LocalStack) int64 {
	t.Helper()
	footprint, err := stack.Store.StorageFootprint(context.Background())
	require.NoError(t, err)
	return footprint.Entries
}

func TestTranscribeSameAudioTwice(t *testing.T) {
	svc, fake, stack := newService(t, testConfig())
	ctx := context.Background()
	audio := []byte("fake audio bytes")

	first, err := svc.Transcribe(ctx, audio, "en", attr)
	require.NoError(t, err)
	second, err := svc.Transcribe(ctx, audio, "en", attr)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fake.TranscribeCalls)
	assert.Equal(t, int64(1), entries(t, stack))

	recs := records(t, stack)
	require.Len(t, recs, 2)
	assert.False(t, recs[0].Cached)
	assert.True(t, recs[1].Cached)
	assert.Equal(t, model.UsageTranscription, recs[1].Kind)
	assert.InDelta(t, 1.5, recs[1].InputMinutes, 1e-9)
	assert.InDelta(t, 1.5*0.006, recs[0].EstimatedCost, 1e-9)
	assert.Equal(t, 0.0, recs[1].EstimatedCost)
	assert.Equal(t, "video-1", recs[1].VideoID)
}

func TestTranscribeDifferentLanguages(t *testing.T) {
	svc, fake, stack := newService(t, testConfig())
	ctx := context.Background()
	audio := []byte("fake audio bytes")

	_, err := svc.Transcribe(ctx, audio, "en", attr)
	require.NoError(t, err)
	_, err = svc.Transcribe(ctx, audio, "fr", attr)
	require.NoError(t, err)

	assert.Equal(t, 2, fake.TranscribeCalls)
	assert.Equal(t, int64(2), entries(t, stack))
}

func TestTranscriptionExpiresAfterTTL(t *testing.T) {
	svc, fake, stack := newService(t, testConfig())
	ctx := context.Background()
	audio := []byte("fake audio bytes")

	_, err := svc.Transcribe(ctx, audio, "en", attr)
	require.NoError(t, err)

	stack.Clock.Advance(59 * day)
	_, err = svc.Transcribe(ctx, audio, "en", attr)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.TranscribeCalls)

	stack.Clock.Advance(2 * day)
	_, err = svc.Transcribe(ctx, audio, "en", attr)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.TranscribeCalls)
	assert.Equal(t, int64(1), entries(t, stack))
}

func TestEmbedPartialBatchCoverage(t *testing.T) {
	svc, fake, stack := newService(t, testConfig())
	ctx := context.Background()

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = fmt.Sprintf("segment number %03d", i)
	}

	// Cache the second batch on its own first.
	_, err := svc.Embed(ctx, texts[100:200], attr)
	require.NoError(t, err)
	fake.Reset()

	vectors, err := svc.Embed(ctx, texts, attr)
	require.NoError(t, err)

	assert.Equal(t, 2, fake.EmbedCalls)
	assert.Equal(t, []int{100, 50}, fake.EmbedBatchSizes)
	require.Len(t, vectors, 250)
	for i, text := range texts {
		assert.Equal(t, test.FakeVector(text), vectors[i], "vector %d", i)
	}
	assert.Equal(t, int64(3), entries(t, stack))

	recs := records(t, stack)
	require.Len(t, recs, 4)
	assert.False(t, recs[1].Cached)
	assert.True(t, recs[2].Cached)
	assert.Greater(t, recs[2].InputTokens, int64(0))
	assert.False(t, recs[3].Cached)
}

func TestEmbedNothing(t *testing.T) {
	svc, fake, stack := newService(t, testConfig())

	vectors, err := svc.Embed(context.Background(), nil, attr)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Equal(t, 0, fake.Calls())
	assert.Empty(t, records(t, stack))
}

func TestHighlightProviderFailure(t *testing.T) {
	svc, fake, stack := newService(t, testConfig())
	cause := errors.New("upstream 503")
	fake.CompleteErr = cause

	_, err := svc.GenerateHighlights(context.Background(), model.GetExampleTranscript(), attr)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "highlight generation failed")

	var capErr *services.CapabilityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, services.CapabilityHighlights, capErr.Capability)

	assert.Equal(t, int64(0), entries(t, stack))
	assert.Empty(t, records(t, stack))
}

func TestInvalidCompletionIsNotCached(t *testing.T) {
	svc, fake, stack := newService(t, testConfig())
	fake.CompleteFunc = func(provider.CompletionRequest) (*provider.Completion, error) {
		return &provider.Completion{Text: `{"highlights": "none"}`, InputTokens: 10, OutputTokens: 3}, nil
	}

	_, err := svc.GenerateHighlights(context.Background(), model.GetExampleTranscript(), attr)
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrInvalidResponse)
	assert.Equal(t, int64(0), entries(t, stack))
	assert.Empty(t, records(t, stack))
}

func TestCompletionsAreCachedWithTokenCounts(t *testing.T) {
	svc, fake, stack := newService(t, testConfig())
	ctx := context.Background()
	transcript := model.GetExampleTranscript()

	highlights, err := svc.GenerateHighlights(ctx, transcript, attr)
	require.NoError(t, err)
	assert.Equal(t, model.GetExampleHighlights(), highlights)

	summary, err := svc.Summarize(ctx, transcript, attr)
	require.NoError(t, err)
	assert.Equal(t, model.GetExampleSummary().Summary, summary.Summary)

	topics, err := svc.ExtractTopics(ctx, transcript, attr)
	require.NoError(t, err)
	assert.Len(t, topics, 2)
	assert.Equal(t, 3, fake.CompleteCalls)

	_, err = svc.GenerateHighlights(ctx, transcript, attr)
	require.NoError(t, err)
	_, err = svc.Summarize(ctx, transcript, attr)
	require.NoError(t, err)
	_, err = svc.ExtractTopics(ctx, transcript, attr)
	require.NoError(t, err)
	assert.Equal(t, 3, fake.CompleteCalls)

	recs := records(t, stack)
	require.Len(t, recs, 6)
	for i := 0; i < 3; i++ {
		assert.False(t, recs[i].Cached)
		assert.True(t, recs[i+3].Cached)
		assert.Equal(t, model.UsageCompletion, recs[i+3].Kind)
		assert.Equal(t, recs[i].InputTokens, recs[i+3].InputTokens)
		assert.Equal(t, recs[i].OutputTokens, recs[i+3].OutputTokens)
	}
}

func TestTopicsFailurePropagates(t *testing.T) {
	svc, fake, _ := newService(t, testConfig())
	fake.CompleteErr = errors.New("quota exhausted")

	topics, err := svc.ExtractTopics(context.Background(), model.GetExampleTranscript(), attr)
	assert.Nil(t, topics)
	assert.ErrorContains(t, err, "topic extraction failed: quota exhausted")
}

func TestEmptyTranscriptIsRejected(t *testing.T) {
	svc, fake, _ := newService(t, testConfig())

	_, err := svc.Summarize(context.Background(), &model.Transcript{}, attr)
	assert.ErrorContains(t, err, "summarization failed")
	assert.Equal(t, 0, fake.CompleteCalls)
}

func TestLedgerCompletenessUnderDedupe(t *testing.T) {
	config := testConfig()
	config.DedupeInFlight = true
	svc, fake, stack := newService(t, config)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transcribe(ctx, []byte("shared audio"), "en", attr)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	recs := records(t, stack)
	require.Len(t, recs, callers)
	misses := 0
	for _, r := range recs {
		if !r.Cached {
			misses++
		}
	}
	assert.GreaterOrEqual(t, fake.TranscribeCalls, 1)
	assert.Equal(t, fake.TranscribeCalls, misses)
	assert.Equal(t, int64(1), entries(t, stack))
}
