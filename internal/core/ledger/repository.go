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

// Package ledger is the append-only record of every AI invocation, served from
// the cache or from the provider, together with its estimated cost. The
// read side (aggregates, per-video and daily breakdowns, budget level) is
// computed from filtered record scans so every backend reports identically.
package ledger

import (
	"context"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

// Repository persists usage records. Insert must be atomic per record; rows
// are never updated.
type Repository interface {
	Insert(ctx context.Context, record *model.UsageRecord) error
	Query(ctx context.Context, filter model.UsageFilter) ([]*model.UsageRecord, error)
	Close() error
}
