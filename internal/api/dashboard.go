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

// Package api contains the operator routes of the server: cache statistics,
// cost reports, budget status, cache maintenance, segment search and the
// manual analysis trigger. Every route is read-mostly and sits outside the
// invocation path; a failing report never affects an AI call.
//
// Routes (under the group the caller passes in, normally /api/v1):
//   - GET    /stats
//   - GET    /costs?from=&to=&user=
//   - GET    /costs/videos?user=
//   - GET    /costs/daily?from=&to=&user=
//   - GET    /costs/budget?user=&budget=
//   - GET    /cache/footprint
//   - POST   /cache/clear-expired
//   - DELETE /cache/kinds/:kind
//   - DELETE /cache
//   - GET    /search?s=&count=&user=
//   - GET    /videos/:id/insights
//   - POST   /analyze
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jaycherian/gcp-go-video-insights/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/services"
	"github.com/jaycherian/gcp-go-video-insights/internal/queue"
)

// DateLayout is the calendar-day form accepted by the from and to parameters.
const DateLayout = "2006-01-02"

// CacheAdmin is the maintenance surface of the cache store.
type CacheAdmin interface {
	ClearExpired(ctx context.Context) (int64, error)
	ClearByKind(ctx context.Context, kind model.ArtifactKind) (int64, error)
	ClearAll(ctx context.Context) (int64, error)
	StorageFootprint(ctx context.Context) (*model.Footprint, error)
}

// Searcher finds transcript segments close to a query.
type Searcher interface {
	FindSegments(ctx context.Context, query string, maxResults int, userID string) ([]*model.SegmentMatchResult, error)
}

// InsightsReader loads the enrichment row of a video.
type InsightsReader interface {
	Get(ctx context.Context, videoID string) (*model.VideoInsights, error)
}

// Handlers holds the services behind the routes. Search and Insights may be
// nil when no warehouse is configured; their routes then answer 503.
type Handlers struct {
	Analytics   *services.AnalyticsService
	Cache       CacheAdmin
	Search      Searcher
	Insights    InsightsReader
	Publisher   queue.Publisher
	InputBucket string
}

// Dashboard registers the operator routes on r.
func Dashboard(r *gin.RouterGroup, h *Handlers) {
	r.GET("/stats", h.stats)

	costs := r.Group("/costs")
	{
		costs.GET("", h.costs)
		costs.GET("/videos", h.costByVideo)
		costs.GET("/daily", h.dailySeries)
		costs.GET("/budget", h.budget)
	}

	c := r.Group("/cache")
	{
		c.GET("/footprint", h.footprint)
		c.POST("/clear-expired", h.clearExpired)
		c.DELETE("/kinds/:kind", h.clearKind)
		c.DELETE("", h.clearAll)
	}

	r.GET("/search", h.search)
	r.GET("/videos/:id/insights", h.insights)
	r.POST("/analyze", h.analyze)
}

func (h *Handlers) stats(c *gin.Context) {
	out, err := h.Analytics.GlobalStats(c)
	if err != nil {
		internalError(c, "failed to compute stats", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) costs(c *gin.Context) {
	filter, ok := usageFilter(c)
	if !ok {
		return
	}
	out, err := h.Analytics.Costs(c, filter)
	if err != nil {
		internalError(c, "failed to aggregate costs", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) costByVideo(c *gin.Context) {
	out, err := h.Analytics.CostByVideo(c, c.Query("user"))
	if err != nil {
		internalError(c, "failed to compute cost by video", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) dailySeries(c *gin.Context) {
	filter, ok := usageFilter(c)
	if !ok {
		return
	}
	out, err := h.Analytics.DailySeries(c, filter.From, filter.To, filter.UserID)
	if err != nil {
		internalError(c, "failed to compute daily series", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) budget(c *gin.Context) {
	budget := 0.0
	if v := c.Query("budget"); v != "" {
		b, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "budget must be a number"})
			return
		}
		budget = b
	}
	out, err := h.Analytics.BudgetStatus(c, budget, c.Query("user"))
	if err != nil {
		internalError(c, "failed to compute budget status", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) footprint(c *gin.Context) {
	out, err := h.Cache.StorageFootprint(c)
	if err != nil {
		internalError(c, "failed to read cache footprint", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) clearExpired(c *gin.Context) {
	removed, err := h.Cache.ClearExpired(c)
	if err != nil {
		internalError(c, "failed to clear expired entries", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *Handlers) clearKind(c *gin.Context) {
	kind := model.ArtifactKind(c.Param("kind"))
	if !kind.IsKnown() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown artifact kind: " + string(kind)})
		return
	}
	removed, err := h.Cache.ClearByKind(c, kind)
	if err != nil {
		internalError(c, "failed to clear kind", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *Handlers) clearAll(c *gin.Context) {
	removed, err := h.Cache.ClearAll(c)
	if err != nil {
		internalError(c, "failed to clear cache", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *Handlers) search(c *gin.Context) {
	if h.Search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not configured"})
		return
	}
	query := c.Query("s")
	if strings.TrimSpace(query) == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	count, err := strconv.Atoi(c.DefaultQuery("count", "5"))
	if err != nil || count <= 0 {
		count = 5
	}
	out, err := h.Search.FindSegments(c, query, count, c.Query("user"))
	if err != nil {
		internalError(c, "failed to search segments", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) insights(c *gin.Context) {
	if h.Insights == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "insights are not configured"})
		return
	}
	out, err := h.Insights.Get(c, c.Param("id"))
	if errors.Is(err, services.ErrInsightsNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		internalError(c, "failed to read insights", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// AnalyzeRequest asks for an already uploaded object to be transcribed and
// enriched. Bucket defaults to the configured input bucket.
type AnalyzeRequest struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name" binding:"required"`
	ContentType string `json:"content_type"`
	UserID      string `json:"user_id"`
	Language    string `json:"language"`
}

func (h *Handlers) analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Bucket == "" {
		req.Bucket = h.InputBucket
	}
	if req.Bucket == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bucket is required"})
		return
	}

	notification := &cloud.GCSPubSubNotification{
		Kind:        "storage#object",
		Name:        req.Name,
		Bucket:      req.Bucket,
		ContentType: req.ContentType,
		MetaData:    map[string]interface{}{},
	}
	if req.UserID != "" {
		notification.MetaData[commands.MetadataUserID] = req.UserID
	}
	if req.Language != "" {
		notification.MetaData[commands.MetadataLanguage] = req.Language
	}

	if err := h.Publisher.Enqueue(c, queue.JobTranscribe, notification); err != nil {
		internalError(c, "failed to enqueue transcription", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"video_id": model.NewVideoID(req.Bucket, req.Name)})
}

// usageFilter reads from, to and user. Dates are calendar days in UTC; the
// to day is included, so the filter ends at the following midnight.
func usageFilter(c *gin.Context) (model.UsageFilter, bool) {
	filter := model.UsageFilter{UserID: c.Query("user")}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(DateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return filter, false
		}
		filter.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(DateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return filter, false
		}
		filter.To = t.AddDate(0, 0, 1)
	}
	return filter, true
}

func internalError(c *gin.Context, msg string, err error) {
	slog.ErrorContext(c.Request.Context(), msg, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
