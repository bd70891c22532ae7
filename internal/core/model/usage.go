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

package model

import "time"

// UsageKind is the billing category of an AI invocation.
type UsageKind string

const (
	UsageTranscription UsageKind = "transcription"
	UsageCompletion    UsageKind = "completion"
	UsageEmbedding     UsageKind = "embedding"
)

// Quantity carries the consumption figures of one invocation. Only the
// fields relevant to the usage kind are populated: minutes for audio,
// tokens for text and embeddings.
type Quantity struct {
	InputTokens  int64   `json:"input_tokens,omitempty"`
	OutputTokens int64   `json:"output_tokens,omitempty"`
	InputMinutes float64 `json:"input_minutes,omitempty"`
}

// Attribution optionally ties an invocation to a video and a user.
type Attribution struct {
	VideoID string `json:"video_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// UsageRecord is one immutable row of the usage ledger. Every successful
// orchestrated invocation, cached or not, produces exactly one.
type UsageRecord struct {
	ID            string    `json:"id" bigquery:"id"`
	Kind          UsageKind `json:"kind" bigquery:"kind"`
	ModelID       string    `json:"model_id" bigquery:"model_id"`
	InputTokens   int64     `json:"input_tokens" bigquery:"input_tokens"`
	OutputTokens  int64     `json:"output_tokens" bigquery:"output_tokens"`
	InputMinutes  float64   `json:"input_minutes" bigquery:"input_minutes"`
	EstimatedCost float64   `json:"estimated_cost" bigquery:"estimated_cost"`
	Cached        bool      `json:"cached" bigquery:"cached"`
	Timestamp     time.Time `json:"timestamp" bigquery:"timestamp"`
	VideoID       string    `json:"video_id,omitempty" bigquery:"video_id"`
	UserID        string    `json:"user_id,omitempty" bigquery:"user_id"`
}

// Quantity returns the consumption figures recorded on the row.
func (r *UsageRecord) Quantity() Quantity {
	return Quantity{InputTokens: r.InputTokens, OutputTokens: r.OutputTokens, InputMinutes: r.InputMinutes}
}

// UsageFilter narrows a ledger query. Zero values mean unbounded.
// From is inclusive and To is exclusive.
type UsageFilter struct {
	From   time.Time
	To     time.Time
	UserID string
}

// Matches reports whether a record falls inside the filter.
func (f UsageFilter) Matches(r *UsageRecord) bool {
	if !f.From.IsZero() && r.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.Timestamp.Before(f.To) {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	return true
}

type KindUsage struct {
	Kind        UsageKind `json:"kind"`
	Cost        float64   `json:"cost"`
	Requests    int64     `json:"requests"`
	CachedCount int64     `json:"cached_count"`
}

type ModelUsage struct {
	ModelID     string  `json:"model_id"`
	Cost        float64 `json:"cost"`
	Requests    int64   `json:"requests"`
	CachedCount int64   `json:"cached_count"`
}

// UsageSummary is the read-side aggregate over a filtered slice of the ledger.
type UsageSummary struct {
	TotalCost        float64      `json:"total_cost"`
	TotalRequests    int64        `json:"total_requests"`
	CachedRequests   int64        `json:"cached_requests"`
	ByKind           []KindUsage  `json:"by_kind"`
	ByModel          []ModelUsage `json:"by_model"`
	CacheHitRate     float64      `json:"cache_hit_rate"`
	EstimatedSavings float64      `json:"estimated_savings"`
}

type VideoCost struct {
	VideoID   string  `json:"video_id"`
	TotalCost float64 `json:"total_cost"`
	Requests  int64   `json:"requests"`
}

// DailyCost is one UTC calendar day of the ledger. Date is YYYY-MM-DD.
type DailyCost struct {
	Date        string  `json:"date"`
	Cost        float64 `json:"cost"`
	Requests    int64   `json:"requests"`
	CachedCount int64   `json:"cached_count"`
}

// BudgetLevel classifies month-to-date spend against a monthly budget.
type BudgetLevel string

const (
	BudgetLow      BudgetLevel = "low"      // below 60%
	BudgetMedium   BudgetLevel = "medium"   // 60% up to 80%
	BudgetHigh     BudgetLevel = "high"     // 80% up to 100%
	BudgetExceeded BudgetLevel = "exceeded" // 100% and above
)

// LevelFor maps a percentage of budget used onto a BudgetLevel.
func LevelFor(percentUsed float64) BudgetLevel {
	switch {
	case percentUsed >= 100:
		return BudgetExceeded
	case percentUsed >= 80:
		return BudgetHigh
	case percentUsed >= 60:
		return BudgetMedium
	default:
		return BudgetLow
	}
}

type BudgetStatus struct {
	Spend       float64     `json:"spend"`
	Budget      float64     `json:"budget"`
	PercentUsed float64     `json:"percent_used"`
	Level       BudgetLevel `json:"level"`
}

// KindStats is one artifact kind's row in the global cache statistics.
type KindStats struct {
	Kind            ArtifactKind `json:"kind"`
	Entries         int64        `json:"entries"`
	Hits            int64        `json:"hits"`
	ApproxBytes     int64        `json:"approx_bytes"`
	HeadlineSavings float64      `json:"headline_savings"`
}

// GlobalStats is the headline report combining the cache and the ledger.
// EstimatedSavings comes from the flat per-hit savings table and is not
// expected to reconcile with the ledger's accounting cost.
type GlobalStats struct {
	ByKind           []KindStats `json:"by_kind"`
	TotalEntries     int64       `json:"total_entries"`
	TotalHits        int64       `json:"total_hits"`
	ProviderCalls    int64       `json:"provider_calls"`
	HitRate          float64     `json:"hit_rate"`
	EstimatedSavings float64     `json:"estimated_savings"`
}
