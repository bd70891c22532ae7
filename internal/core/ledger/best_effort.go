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
	"log/slog"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

// BestEffort records usage without ever failing the caller. It is the single
// place ledger write errors are swallowed.
type BestEffort struct {
	ledger *Ledger
	logger *slog.Logger
}

func NewBestEffort(l *Ledger, logger *slog.Logger) *BestEffort {
	if logger == nil {
		logger = slog.Default()
	}
	return &BestEffort{ledger: l, logger: logger}
}

func (b *BestEffort) Record(ctx context.Context, kind model.UsageKind, modelID string, q model.Quantity, cached bool, attr model.Attribution) {
	if _, err := b.ledger.Append(ctx, kind, modelID, q, cached, attr); err != nil {
		b.logger.WarnContext(ctx, "usage record dropped", "kind", kind, "model", modelID, "cached", cached, "error", err)
	}
}
