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

package model_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func TestNewVideoID(t *testing.T) {
	id := model.NewVideoID("uploads", "clip-001.mp4")
	expected := uuid.NewSHA1(uuid.NameSpaceURL, []byte("uploads/clip-001.mp4"))
	assert.Equal(t, expected.String(), id)
	assert.Equal(t, id, model.NewVideoID("uploads", "clip-001.mp4"))
	assert.NotEqual(t, id, model.NewVideoID("uploads", "clip-002.mp4"))
}

func TestNewSegmentEmbedding(t *testing.T) {
	e := model.NewSegmentEmbedding("video-1", 3, "hello", "text-embedding-005")
	assert.Equal(t, "video-1", e.VideoID)
	assert.Equal(t, 3, e.SegmentIndex)
	assert.Equal(t, "text-embedding-005", e.ModelName)
	assert.Equal(t, 0, len(e.Embeddings))
}

func TestArtifactKindUsageKind(t *testing.T) {
	assert.Equal(t, model.UsageTranscription, model.KindTranscription.UsageKind())
	assert.Equal(t, model.UsageCompletion, model.KindHighlights.UsageKind())
	assert.Equal(t, model.UsageCompletion, model.KindSummary.UsageKind())
	assert.Equal(t, model.UsageCompletion, model.KindTopics.UsageKind())
	assert.Equal(t, model.UsageEmbedding, model.KindEmbeddings.UsageKind())
	assert.False(t, model.ArtifactKind("thumbnails").IsKnown())
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	assert.False(t, (&model.CacheEntry{}).Expired(now))
	assert.True(t, (&model.CacheEntry{ExpiresAt: &past}).Expired(now))
	assert.False(t, (&model.CacheEntry{ExpiresAt: &future}).Expired(now))
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, model.BudgetLow, model.LevelFor(0))
	assert.Equal(t, model.BudgetLow, model.LevelFor(59.99))
	assert.Equal(t, model.BudgetMedium, model.LevelFor(60))
	assert.Equal(t, model.BudgetMedium, model.LevelFor(79.9))
	assert.Equal(t, model.BudgetHigh, model.LevelFor(80))
	assert.Equal(t, model.BudgetHigh, model.LevelFor(99.9))
	assert.Equal(t, model.BudgetExceeded, model.LevelFor(100))
	assert.Equal(t, model.BudgetExceeded, model.LevelFor(250))
}

func TestUsageFilterMatches(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	f := model.UsageFilter{From: from, To: to, UserID: "u1"}

	assert.True(t, f.Matches(&model.UsageRecord{Timestamp: from, UserID: "u1"}))
	assert.False(t, f.Matches(&model.UsageRecord{Timestamp: to, UserID: "u1"}))
	assert.False(t, f.Matches(&model.UsageRecord{Timestamp: from, UserID: "u2"}))
	assert.True(t, model.UsageFilter{}.Matches(&model.UsageRecord{Timestamp: to}))
}

func TestTranscriptSegmentTexts(t *testing.T) {
	tr := model.GetExampleTranscript()
	assert.Equal(t, 2, len(tr.SegmentTexts()))
	assert.InDelta(t, 12.5/60, tr.Minutes(), 1e-9)

	noSegments := &model.Transcript{Text: "only text"}
	assert.Equal(t, []string{"only text"}, noSegments.SegmentTexts())
}
