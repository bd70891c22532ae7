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

package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/clock"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/pricing"
)

// Ledger appends usage records and answers cost questions about them.
//
// Accounting policy: a record served from the cache is written with an
// EstimatedCost of 0, because nothing was billed. What the hit avoided is
// reported separately as EstimatedSavings, priced at read time from the
// quantities the cached records carry.
type Ledger struct {
	repo    Repository
	pricing *pricing.Model
	clock   clock.Clock
}

func New(repo Repository, costs *pricing.Model, clk clock.Clock) *Ledger {
	if clk == nil {
		clk = clock.SystemUTC{}
	}
	return &Ledger{repo: repo, pricing: costs, clock: clk}
}

// Append builds and stores one record, returning the stored row.
func (l *Ledger) Append(ctx context.Context, kind model.UsageKind, modelID string, q model.Quantity, cached bool, attr model.Attribution) (*model.UsageRecord, error) {
	rec := &model.UsageRecord{
		ID:           uuid.NewString(),
		Kind:         kind,
		ModelID:      modelID,
		InputTokens:  q.InputTokens,
		OutputTokens: q.OutputTokens,
		InputMinutes: q.InputMinutes,
		Cached:       cached,
		Timestamp:    l.clock.NowUTC(),
		VideoID:      attr.VideoID,
		UserID:       attr.UserID,
	}
	if !cached {
		rec.EstimatedCost = l.pricing.AccountingCost(kind, modelID, q)
	}
	if err := l.repo.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Records returns the raw rows matching the filter.
func (l *Ledger) Records(ctx context.Context, filter model.UsageFilter) ([]*model.UsageRecord, error) {
	return l.repo.Query(ctx, filter)
}

// Aggregate summarizes the ledger. CacheHitRate is cached/total and is 0 for
// an empty selection.
func (l *Ledger) Aggregate(ctx context.Context, filter model.UsageFilter) (*model.UsageSummary, error) {
	records, err := l.repo.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := &model.UsageSummary{ByKind: make([]model.KindUsage, 0), ByModel: make([]model.ModelUsage, 0)}
	kinds := make(map[model.UsageKind]*model.KindUsage)
	models := make(map[string]*model.ModelUsage)

	for _, r := range records {
		out.TotalCost += r.EstimatedCost
		out.TotalRequests++

		k, ok := kinds[r.Kind]
		if !ok {
			k = &model.KindUsage{Kind: r.Kind}
			kinds[r.Kind] = k
		}
		m, ok := models[r.ModelID]
		if !ok {
			m = &model.ModelUsage{ModelID: r.ModelID}
			models[r.ModelID] = m
		}
		k.Cost += r.EstimatedCost
		k.Requests++
		m.Cost += r.EstimatedCost
		m.Requests++

		if r.Cached {
			out.CachedRequests++
			k.CachedCount++
			m.CachedCount++
			out.EstimatedSavings += l.pricing.AccountingCost(r.Kind, r.ModelID, r.Quantity())
		}
	}
	if out.TotalRequests > 0 {
		out.CacheHitRate = float64(out.CachedRequests) / float64(out.TotalRequests)
	}

	for _, k := range kinds {
		out.ByKind = append(out.ByKind, *k)
	}
	for _, m := range models {
		out.ByModel = append(out.ByModel, *m)
	}
	sort.Slice(out.ByKind, func(i, j int) bool { return out.ByKind[i].Kind < out.ByKind[j].Kind })
	sort.Slice(out.ByModel, func(i, j int) bool {
		if out.ByModel[i].Cost != out.ByModel[j].Cost {
			return out.ByModel[i].Cost > out.ByModel[j].Cost
		}
		return out.ByModel[i].ModelID < out.ByModel[j].ModelID
	})
	return out, nil
}

// CostByVideo returns per-video totals sorted by cost, highest first.
// Records without a video are left out.
func (l *Ledger) CostByVideo(ctx context.Context, userID string) ([]model.VideoCost, error) {
	records, err := l.repo.Query(ctx, model.UsageFilter{UserID: userID})
	if err != nil {
		return nil, err
	}

	byVideo := make(map[string]*model.VideoCost)
	for _, r := range records {
		if r.VideoID == "" {
			continue
		}
		v, ok := byVideo[r.VideoID]
		if !ok {
			v = &model.VideoCost{VideoID: r.VideoID}
			byVideo[r.VideoID] = v
		}
		v.TotalCost += r.EstimatedCost
		v.Requests++
	}

	out := make([]model.VideoCost, 0, len(byVideo))
	for _, v := range byVideo {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCost != out[j].TotalCost {
			return out[i].TotalCost > out[j].TotalCost
		}
		return out[i].VideoID < out[j].VideoID
	})
	return out, nil
}

// DailySeries buckets records by UTC calendar day. Only days that have
// records appear; the series is ascending.
func (l *Ledger) DailySeries(ctx context.Context, from time.Time, to time.Time, userID string) ([]model.DailyCost, error) {
	records, err := l.repo.Query(ctx, model.UsageFilter{From: from, To: to, UserID: userID})
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*model.DailyCost)
	for _, r := range records {
		date := r.Timestamp.UTC().Format(time.DateOnly)
		d, ok := byDay[date]
		if !ok {
			d = &model.DailyCost{Date: date}
			byDay[date] = d
		}
		d.Cost += r.EstimatedCost
		d.Requests++
		if r.Cached {
			d.CachedCount++
		}
	}

	out := make([]model.DailyCost, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// BudgetStatus compares spend from the first of the current UTC month until
// now against monthlyBudget. A non-positive budget is treated as exceeded as
// soon as anything is spent.
func (l *Ledger) BudgetStatus(ctx context.Context, monthlyBudget float64, userID string) (*model.BudgetStatus, error) {
	now := l.clock.NowUTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	records, err := l.repo.Query(ctx, model.UsageFilter{From: monthStart, UserID: userID})
	if err != nil {
		return nil, err
	}

	status := &model.BudgetStatus{Budget: monthlyBudget}
	for _, r := range records {
		if r.Timestamp.After(now) {
			continue
		}
		status.Spend += r.EstimatedCost
	}

	switch {
	case monthlyBudget > 0:
		status.PercentUsed = status.Spend / monthlyBudget * 100
	case status.Spend > 0:
		status.PercentUsed = 100
	}
	status.Level = model.LevelFor(status.PercentUsed)
	return status, nil
}
