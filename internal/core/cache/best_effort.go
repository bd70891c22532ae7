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

package cache

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

// BestEffort is the only place cache errors are swallowed. A failed read is a
// miss and a failed write is a logged no-op, so a cache outage degrades to
// calling the provider and never fails the invocation.
type BestEffort struct {
	store  *Store
	logger *slog.Logger
}

func NewBestEffort(store *Store, logger *slog.Logger) *BestEffort {
	if logger == nil {
		logger = slog.Default()
	}
	return &BestEffort{store: store, logger: logger}
}

func (b *BestEffort) Lookup(ctx context.Context, fp string) (*model.CacheEntry, bool) {
	entry, ok, err := b.store.Lookup(ctx, fp)
	if err != nil {
		b.logger.WarnContext(ctx, "cache read failed, treating as miss", "fingerprint", fp, "error", err)
		return nil, false
	}
	return entry, ok
}

func (b *BestEffort) Get(ctx context.Context, kind model.ArtifactKind, input any, modelID string) (json.RawMessage, bool) {
	payload, ok, err := b.store.Get(ctx, kind, input, modelID)
	if err != nil {
		b.logger.WarnContext(ctx, "cache read failed, treating as miss", "kind", kind, "model", modelID, "error", err)
		return nil, false
	}
	return payload, ok
}

func (b *BestEffort) Put(ctx context.Context, fp string, kind model.ArtifactKind, modelID string, payload json.RawMessage, opts SetOptions) {
	if err := b.store.Put(ctx, fp, kind, modelID, payload, opts); err != nil {
		b.logger.WarnContext(ctx, "cache write failed", "fingerprint", fp, "kind", kind, "error", err)
	}
}

func (b *BestEffort) Set(ctx context.Context, kind model.ArtifactKind, input any, modelID string, payload json.RawMessage, opts SetOptions) {
	if err := b.store.Set(ctx, kind, input, modelID, payload, opts); err != nil {
		b.logger.WarnContext(ctx, "cache write failed", "kind", kind, "model", modelID, "error", err)
	}
}
