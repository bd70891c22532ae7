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

// Package pricing holds the two cost models of the application.
//
//   - Model.AccountingCost is the precise estimate written to the usage ledger:
//     per-minute rates for audio and per-1K-token rates for text and embeddings.
//   - Savings.HeadlineSavingsEstimate is a coarse flat amount per cache hit,
//     used only for the "money saved" headline of the global stats.
//
// The two never feed each other and are not expected to reconcile.
package pricing

import (
	"sync/atomic"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

// Rate is the price of a single model. A model is priced either per minute
// of audio or per 1,000 input/output tokens; the usage kind picks which.
type Rate struct {
	PerMinute   float64 `toml:"per_minute" json:"per_minute,omitempty"`
	InputPer1K  float64 `toml:"input_per_1k" json:"input_per_1k,omitempty"`
	OutputPer1K float64 `toml:"output_per_1k" json:"output_per_1k,omitempty"`
}

// Table maps model ids to their rates.
type Table map[string]Rate

// DefaultTable is the built-in USD rate table. Configuration entries are
// merged over it, so a deployment only lists the models it overrides.
func DefaultTable() Table {
	return Table{
		"whisper-1":              {PerMinute: 0.006},
		"gpt-4o-transcribe":      {PerMinute: 0.006},
		"gpt-4o-mini-transcribe": {PerMinute: 0.003},
		"gpt-4o-mini":            {InputPer1K: 0.00015, OutputPer1K: 0.0006},
		"gpt-4o":                 {InputPer1K: 0.0025, OutputPer1K: 0.01},
		"text-embedding-3-small": {InputPer1K: 0.00002},
		"text-embedding-3-large": {InputPer1K: 0.00013},
		"gemini-2.0-flash":       {PerMinute: 0.0014, InputPer1K: 0.0001, OutputPer1K: 0.0004},
		"gemini-2.5-flash":       {PerMinute: 0.0058, InputPer1K: 0.0003, OutputPer1K: 0.0025},
		"gemini-2.5-pro":         {InputPer1K: 0.00125, OutputPer1K: 0.01},
		"text-embedding-005":     {InputPer1K: 0.000025},
		"gemini-embedding-001":   {InputPer1K: 0.00015},
	}
}

// Merge returns a copy of t with every entry of overrides applied on top.
func (t Table) Merge(overrides Table) Table {
	out := make(Table, len(t)+len(overrides))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Model evaluates accounting costs against a rate table that can be swapped
// atomically while requests are in flight.
type Model struct {
	table atomic.Pointer[Table]
}

// NewModel creates a cost model over the given table. A nil table prices
// every model at zero.
func NewModel(table Table) *Model {
	m := &Model{}
	m.Replace(table)
	return m
}

// Replace swaps the rate table used by subsequent calls.
func (m *Model) Replace(table Table) {
	cp := Table{}.Merge(table)
	m.table.Store(&cp)
}

// Rates returns a copy of the current rate table.
func (m *Model) Rates() Table {
	return Table{}.Merge(*m.table.Load())
}

// AccountingCost is total: an unknown model or kind costs 0, negative
// quantities count as 0, and no rounding happens here.
func (m *Model) AccountingCost(kind model.UsageKind, modelID string, q model.Quantity) float64 {
	rate, ok := (*m.table.Load())[modelID]
	if !ok {
		return 0
	}
	switch kind {
	case model.UsageTranscription:
		return nonNegative(q.InputMinutes) * rate.PerMinute
	case model.UsageCompletion, model.UsageEmbedding:
		in := float64(nonNegativeInt(q.InputTokens)) / 1000 * rate.InputPer1K
		out := float64(nonNegativeInt(q.OutputTokens)) / 1000 * rate.OutputPer1K
		return in + out
	default:
		return 0
	}
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func nonNegativeInt(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// Savings is the flat per-hit table behind the headline savings number.
type Savings map[model.ArtifactKind]float64

// DefaultSavings approximates what one avoided call of each kind costs.
func DefaultSavings() Savings {
	return Savings{
		model.KindTranscription: 0.05,
		model.KindHighlights:    0.01,
		model.KindSummary:       0.005,
		model.KindTopics:        0.003,
		model.KindEmbeddings:    0.002,
	}
}

// HeadlineSavingsEstimate multiplies the hit count by the flat per-hit value
// of the kind. Unknown kinds are worth nothing.
func (s Savings) HeadlineSavingsEstimate(kind model.ArtifactKind, hits int64) float64 {
	if hits <= 0 {
		return 0
	}
	return float64(hits) * s[kind]
}
