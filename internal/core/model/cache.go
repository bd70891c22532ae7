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

// Package model defines the core data structures for the application.
// This file, `cache.go`, holds the types persisted by the response cache:
// the artifact kinds the AI layer produces and the CacheEntry row that maps a
// fingerprint to a previously computed AI response.
package model

import (
	"encoding/json"
	"time"
)

// ArtifactKind is the category of AI-produced output stored in the cache.
// The set is open; new kinds only need a UsageKind mapping and a TTL.
type ArtifactKind string

const (
	KindTranscription ArtifactKind = "transcription"
	KindHighlights    ArtifactKind = "highlights"
	KindSummary       ArtifactKind = "summary"
	KindTopics        ArtifactKind = "topics"
	KindEmbeddings    ArtifactKind = "embeddings"
)

// ArtifactKinds lists the built-in kinds in a stable order, used by
// reporting and by operator tooling to validate input.
func ArtifactKinds() []ArtifactKind {
	return []ArtifactKind{KindTranscription, KindHighlights, KindSummary, KindTopics, KindEmbeddings}
}

// UsageKind maps an artifact kind to the billing category it is accounted
// under. Highlights, summaries and topics are all chat completions.
func (k ArtifactKind) UsageKind() UsageKind {
	switch k {
	case KindTranscription:
		return UsageTranscription
	case KindEmbeddings:
		return UsageEmbedding
	default:
		return UsageCompletion
	}
}

// IsKnown reports whether k is one of the built-in artifact kinds.
func (k ArtifactKind) IsKnown() bool {
	for _, known := range ArtifactKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// CacheEntry is a single cached AI response keyed by its fingerprint.
// The payload is opaque to the cache; its shape depends on Kind.
type CacheEntry struct {
	Fingerprint string          `json:"fingerprint"`
	Kind        ArtifactKind    `json:"kind"`
	ModelID     string          `json:"model_id"`
	Payload     json.RawMessage `json:"payload"`
	InputSize   int64           `json:"input_size"`  // Advisory, reporting only.
	OutputSize  int64           `json:"output_size"` // Advisory, reporting only.
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"` // nil never expires.
	HitCount    int64           `json:"hit_count"`
}

// Expired reports whether the entry has a deadline that is strictly before now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}

// KindFootprint is the per-kind slice of the cache's storage report.
type KindFootprint struct {
	Kind        ArtifactKind `json:"kind"`
	Entries     int64        `json:"entries"`
	Hits        int64        `json:"hits"`
	ApproxBytes int64        `json:"approx_bytes"`
}

// Footprint is an advisory sizing report: the sum of InputSize+OutputSize
// across all entries. It is not an authoritative disk usage figure.
type Footprint struct {
	Entries     int64           `json:"entries"`
	ApproxBytes int64           `json:"approx_bytes"`
	ByKind      []KindFootprint `json:"by_kind"`
}
