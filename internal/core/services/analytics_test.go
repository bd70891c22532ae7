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
	"testing"

	"github.com/zeebo/assert"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/services"
)

func TestGlobalStats(t *testing.T) {
	svc, _, stack := newService(t, testConfig())
	ctx := context.Background()

	_, err := svc.Transcribe(ctx, []byte("audio"), "en", attr)
	assert.NoError(t, err)
	_, err = svc.Transcribe(ctx, []byte("audio"), "en", attr)
	assert.NoError(t, err)
	_, err = svc.Summarize(ctx, model.GetExampleTranscript(), attr)
	assert.NoError(t, err)

	analytics := services.NewAnalyticsService(stack.Store, stack.Ledger, nil, 10)
	stats, err := analytics.GlobalStats(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, stats)

	assert.Equal(t, int64(2), stats.TotalEntries)
	assert.Equal(t, int64(1), stats.TotalHits)
	assert.Equal(t, int64(2), stats.ProviderCalls)
	assert.Equal(t, 2, len(stats.ByKind))
	assert.Equal(t, model.KindSummary, stats.ByKind[0].Kind)
	assert.Equal(t, model.KindTranscription, stats.ByKind[1].Kind)
	assert.Equal(t, 0.05, stats.ByKind[1].HeadlineSavings)
	assert.Equal(t, 0.05, stats.EstimatedSavings)
	assert.Equal(t, 1.0/3.0, stats.HitRate)
}

func TestGlobalStatsEmpty(t *testing.T) {
	_, _, stack := newService(t, testConfig())

	stats, err := services.NewAnalyticsService(stack.Store, stack.Ledger, nil, 0).GlobalStats(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0.0, stats.HitRate)
	assert.Equal(t, int64(0), stats.TotalEntries)
	assert.Equal(t, 0, len(stats.ByKind))
}

func TestBudgetStatusFallsBackToConfiguredBudget(t *testing.T) {
	svc, _, stack := newService(t, testConfig())
	ctx := context.Background()

	_, err := svc.Transcribe(ctx, []byte("audio"), "en", attr)
	assert.NoError(t, err)

	status, err := services.NewAnalyticsService(stack.Store, stack.Ledger, nil, 0.01).BudgetStatus(ctx, 0, "")
	assert.NoError(t, err)
	assert.Equal(t, 0.01, status.Budget)
	assert.Equal(t, model.BudgetHigh, status.Level)
}
