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

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insights/internal/api"
	"github.com/jaycherian/gcp-go-video-insights/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/cache"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/clock"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/services"
	"github.com/jaycherian/gcp-go-video-insights/internal/queue"
	test "github.com/jaycherian/gcp-go-video-insights/internal/testutil"
)

var start = time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)

type fakeSearcher struct {
	results []*model.SegmentMatchResult
	query   string
	count   int
}

func (f *fakeSearcher) FindSegments(_ context.Context, query string, maxResults int, _ string) ([]*model.SegmentMatchResult, error) {
	f.query, f.count = query, maxResults
	return f.results, nil
}

type missingInsights struct{}

func (missingInsights) Get(context.Context, string) (*model.VideoInsights, error) {
	return nil, services.ErrInsightsNotFound
}

type fixture struct {
	stack     *test.LocalStack
	publisher *test.RecordingPublisher
	handlers  *api.Handlers
	router    *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	stack := test.NewLocalStack(t, clock.NewManual(start))
	publisher := &test.RecordingPublisher{}
	h := &api.Handlers{
		Analytics:   services.NewAnalyticsService(stack.Store, stack.Ledger, nil, 1),
		Cache:       stack.Store,
		Publisher:   publisher,
		InputBucket: "uploads",
	}
	r := gin.New()
	api.Dashboard(r.Group("/api/v1"), h)
	return &fixture{stack: stack, publisher: publisher, handlers: h, router: r}
}

func (f *fixture) do(t *testing.T, method string, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// seedUsage writes 10 minutes for user-1 on April 10, then 5 minutes for
// user-2 and a cached replay for user-1 on April 11.
func (f *fixture) seedUsage(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.stack.Ledger.Append(ctx, model.UsageTranscription, "whisper-1", model.Quantity{InputMinutes: 10}, false, model.Attribution{VideoID: "video-1", UserID: "user-1"})
	require.NoError(t, err)
	f.stack.Clock.Advance(24 * time.Hour)
	_, err = f.stack.Ledger.Append(ctx, model.UsageTranscription, "whisper-1", model.Quantity{InputMinutes: 5}, false, model.Attribution{VideoID: "video-2", UserID: "user-2"})
	require.NoError(t, err)
	_, err = f.stack.Ledger.Append(ctx, model.UsageTranscription, "whisper-1", model.Quantity{InputMinutes: 10}, true, model.Attribution{VideoID: "video-1", UserID: "user-1"})
	require.NoError(t, err)
}

func TestCosts(t *testing.T) {
	f := newFixture(t)
	f.seedUsage(t)

	w := f.do(t, http.MethodGet, "/api/v1/costs", "")
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[model.UsageSummary](t, w)
	assert.Equal(t, int64(3), all.TotalRequests)
	assert.Equal(t, int64(1), all.CachedRequests)
	assert.InDelta(t, 0.09, all.TotalCost, 1e-9)

	w = f.do(t, http.MethodGet, "/api/v1/costs?user=user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), decode[model.UsageSummary](t, w).TotalRequests)

	w = f.do(t, http.MethodGet, "/api/v1/costs?from=2025-04-11", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), decode[model.UsageSummary](t, w).TotalRequests)

	w = f.do(t, http.MethodGet, "/api/v1/costs?to=2025-04-10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[model.UsageSummary](t, w).TotalRequests)
}

func TestCostsRejectsBadDate(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/costs?from=10/04/2025", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/costs/daily?to=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCostReports(t *testing.T) {
	f := newFixture(t)
	f.seedUsage(t)

	w := f.do(t, http.MethodGet, "/api/v1/costs/daily", "")
	require.Equal(t, http.StatusOK, w.Code)
	days := decode[[]model.DailyCost](t, w)
	require.Len(t, days, 2)
	assert.Equal(t, "2025-04-10", days[0].Date)
	assert.Equal(t, "2025-04-11", days[1].Date)
	assert.Equal(t, int64(1), days[1].CachedCount)

	w = f.do(t, http.MethodGet, "/api/v1/costs/videos?user=user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	videos := decode[[]model.VideoCost](t, w)
	require.Len(t, videos, 1)
	assert.Equal(t, "video-1", videos[0].VideoID)
	assert.InDelta(t, 0.06, videos[0].TotalCost, 1e-9)
}

func TestBudget(t *testing.T) {
	f := newFixture(t)
	f.seedUsage(t)

	w := f.do(t, http.MethodGet, "/api/v1/costs/budget?budget=0.1", "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[model.BudgetStatus](t, w)
	assert.Equal(t, 0.1, status.Budget)
	assert.Equal(t, model.BudgetHigh, status.Level)

	w = f.do(t, http.MethodGet, "/api/v1/costs/budget", "")
	require.Equal(t, http.StatusOK, w.Code)
	status = decode[model.BudgetStatus](t, w)
	assert.Equal(t, 1.0, status.Budget)
	assert.Equal(t, model.BudgetLow, status.Level)

	w = f.do(t, http.MethodGet, "/api/v1/costs/budget?budget=lots", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCacheMaintenance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := json.RawMessage(`{"text":"hello"}`)
	require.NoError(t, f.stack.Store.Set(ctx, model.KindSummary, "a", "summary-model", payload, cache.SetOptions{TTL: time.Hour}))
	require.NoError(t, f.stack.Store.Set(ctx, model.KindSummary, "b", "summary-model", payload, cache.SetOptions{}))
	require.NoError(t, f.stack.Store.Set(ctx, model.KindTopics, "c", "topics-model", payload, cache.SetOptions{}))
	require.NoError(t, f.stack.Store.Set(ctx, model.KindHighlights, "d", "highlights-model", payload, cache.SetOptions{}))

	w := f.do(t, http.MethodGet, "/api/v1/cache/footprint", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(4), decode[model.Footprint](t, w).Entries)

	f.stack.Clock.Advance(2 * time.Hour)
	w = f.do(t, http.MethodPost, "/api/v1/cache/clear-expired", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[map[string]int64](t, w)["removed"])

	w = f.do(t, http.MethodDelete, "/api/v1/cache/kinds/thumbnails", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/cache/kinds/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[map[string]int64](t, w)["removed"])

	w = f.do(t, http.MethodDelete, "/api/v1/cache", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), decode[map[string]int64](t, w)["removed"])

	w = f.do(t, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[model.GlobalStats](t, w)
	assert.Equal(t, int64(0), stats.TotalEntries)
	assert.Empty(t, stats.ByKind)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/search?s=goal", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	searcher := &fakeSearcher{results: []*model.SegmentMatchResult{{VideoID: "video-1", SegmentIndex: 3, Text: "the goal", Distance: 0.12}}}
	f.handlers.Search = searcher

	w = f.do(t, http.MethodGet, "/api/v1/search?s=", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/search?s=goal&count=abc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "goal", searcher.query)
	assert.Equal(t, 5, searcher.count)
	results := decode[[]model.SegmentMatchResult](t, w)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].SegmentIndex)
}

func TestInsightsNotFound(t *testing.T) {
	f := newFixture(t)
	f.handlers.Insights = missingInsights{}

	w := f.do(t, http.MethodGet, "/api/v1/videos/video-9/insights", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyzeEnqueuesTranscription(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/analyze", `{"name":"users/u-7/holiday.mp4","user_id":"u-7","language":"fr"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, model.NewVideoID("uploads", "users/u-7/holiday.mp4"), decode[map[string]string](t, w)["video_id"])

	jobs := f.publisher.Published()
	require.Len(t, jobs, 1)
	assert.Equal(t, queue.JobTranscribe, jobs[0].Type)

	var n cloud.GCSPubSubNotification
	require.NoError(t, json.Unmarshal([]byte(jobs[0].Payload), &n))
	assert.Equal(t, "uploads", n.Bucket)
	assert.Equal(t, "users/u-7/holiday.mp4", n.Name)
	assert.Equal(t, "u-7", n.Metadata("user_id", ""))
	assert.Equal(t, "fr", n.Metadata("language", ""))
}

func TestAnalyzeErrors(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/analyze", `{"bucket":"uploads"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.publisher.Err = errors.New("topic not found")
	w = f.do(t, http.MethodPost, "/api/v1/analyze", `{"name":"clip.mp4"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, f.publisher.Published())
}
