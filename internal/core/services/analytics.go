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

package services

import (
	"context"
	"time"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/pricing"
)

// FootprintReader is the part of the cache store analytics reads.
type FootprintReader interface {
	StorageFootprint(ctx context.Context) (*model.Footprint, error)
}

// UsageReporter is the read side of the usage ledger.
type UsageReporter interface {
	Aggregate(ctx context.Context, filter model.UsageFilter) (*model.UsageSummary, error)
	CostByVideo(ctx context.Context, userID string) ([]model.VideoCost, error)
	DailySeries(ctx context.Context, from time.Time, to time.Time, userID string) ([]model.DailyCost, error)
	BudgetStatus(ctx context.Context, monthlyBudget float64, userID string) (*model.BudgetStatus, error)
}

// AnalyticsService composes cache and ledger reports. It holds no state of
// its own and is never on the invocation path.
type AnalyticsService struct {
	cache         FootprintReader
	usage         UsageReporter
	savings       pricing.Savings
	monthlyBudget float64
}

func NewAnalyticsService(cache FootprintReader, usage UsageReporter, savings pricing.Savings, monthlyBudget float64) *AnalyticsService {
	if savings == nil {
		savings = pricing.DefaultSavings()
	}
	return &AnalyticsService{cache: cache, usage: usage, savings: savings, monthlyBudget: monthlyBudget}
}

// GlobalStats reports cache contents and the headline savings. HitRate is
// hits / (hits + provider calls), where provider calls are the uncached
// ledger records. EstimatedSavings uses the flat per-hit table and is not
// expected to match the ledger's accounting figures.
func (s *AnalyticsService) GlobalStats(ctx context.Context) (*model.GlobalStats, error) {
	footprint, err := s.cache.StorageFootprint(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := s.usage.Aggregate(ctx, model.UsageFilter{})
	if err != nil {
		return nil, err
	}

	out := &model.GlobalStats{
		ByKind:        make([]model.KindStats, 0, len(footprint.ByKind)),
		TotalEntries:  footprint.Entries,
		ProviderCalls: summary.TotalRequests - summary.CachedRequests,
	}
	for _, k := range footprint.ByKind {
		headline := s.savings.HeadlineSavingsEstimate(k.Kind, k.Hits)
		out.ByKind = append(out.ByKind, model.KindStats{
			Kind:            k.Kind,
			Entries:         k.Entries,
			Hits:            k.Hits,
			ApproxBytes:     k.ApproxBytes,
			HeadlineSavings: headline,
		})
		out.TotalHits += k.Hits
		out.EstimatedSavings += headline
	}
	if total := out.TotalHits + out.ProviderCalls; total > 0 {
		out.HitRate = float64(out.TotalHits) / float64(total)
	}
	return out, nil
}

func (s *AnalyticsService) Costs(ctx context.Context, filter model.UsageFilter) (*model.UsageSummary, error) {
	return s.usage.Aggregate(ctx, filter)
}

func (s *AnalyticsService) CostByVideo(ctx context.Context, userID string) ([]model.VideoCost, error) {
	return s.usage.CostByVideo(ctx, userID)
}

func (s *AnalyticsService) DailySeries(ctx context.Context, from time.Time, to time.Time, userID string) ([]model.DailyCost, error) {
	return s.usage.DailySeries(ctx, from, to, userID)
}

// BudgetStatus uses the configured monthly budget when budget is not positive.
func (s *AnalyticsService) BudgetStatus(ctx context.Context, budget float64, userID string) (*model.BudgetStatus, error) {
	if budget <= 0 {
		budget = s.monthlyBudget
	}
	return s.usage.BudgetStatus(ctx, budget, userID)
}
