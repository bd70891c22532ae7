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

// Package cache implements the content-addressed response cache that sits in
// front of the AI provider.
//
// The package is layered:
//   - Repository is the persistence contract, implemented on SQLite for a
//     single node and on Redis for a shared deployment.
//   - Store applies the cache semantics (lazy expiration, hit counting,
//     upsert with TTL) and returns every persistence error.
//   - BestEffort wraps a Store for the hot path: errors are logged and turned
//     into a miss or a no-op write so caching can never fail a caller.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

// ErrNotFound is returned by a Repository when no entry has the fingerprint.
var ErrNotFound = errors.New("cache entry not found")

// Repository persists CacheEntry rows keyed by fingerprint. Upsert must be
// atomic per fingerprint: a collision overwrites payload, expiry and sizes
// and keeps CreatedAt and HitCount.
type Repository interface {
	Find(ctx context.Context, fingerprint string) (*model.CacheEntry, error)
	Upsert(ctx context.Context, entry *model.CacheEntry) error
	IncrementHits(ctx context.Context, fingerprint string, at time.Time) error
	Delete(ctx context.Context, fingerprint string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteByKind(ctx context.Context, kind model.ArtifactKind) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	Stats(ctx context.Context) ([]model.KindFootprint, error)
	Close() error
}
