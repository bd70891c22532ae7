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


package workflow

import (
	goctx "context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
)

// ExpiredSweeper deletes expired cache entries. cache.Store implements it.
type ExpiredSweeper interface {
	ClearExpired(ctx goctx.Context) (int64, error)
}

// CacheMaintenanceWorkflow sweeps expired cache entries on a timer. Lookups
// already treat expired entries as misses; the sweep reclaims storage for
// fingerprints that are never asked for again.
type CacheMaintenanceWorkflow struct {
	cor.BaseCommand
	store    ExpiredSweeper
	interval time.Duration
}

func NewCacheMaintenanceWorkflow(store ExpiredSweeper, interval time.Duration) *CacheMaintenanceWorkflow {
	return &CacheMaintenanceWorkflow{
		BaseCommand: *cor.NewBaseCommand("cache-maintenance"),
		store:       store,
		interval:    interval,
	}
}

func (m *CacheMaintenanceWorkflow) IsExecutable(_ cor.Context) bool {
	return true
}

func (m *CacheMaintenanceWorkflow) Execute(context cor.Context) {
	removed, err := m.store.ClearExpired(context.GetContext())
	if err != nil {
		m.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(m.GetName(), err)
		return
	}
	m.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(cor.CtxOut, removed)
	if removed > 0 {
		slog.InfoContext(context.GetContext(), "expired cache entries removed", "count", removed)
	}
}

// StartTimer runs the sweep every interval until ctx is cancelled. A
// non-positive interval disables the timer.
func (m *CacheMaintenanceWorkflow) StartTimer(ctx goctx.Context) {
	if m.interval <= 0 {
		return
	}
	tracer := otel.Tracer("cache-maintenance")
	ticker := time.NewTicker(m.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				traceCtx, span := tracer.Start(ctx, "cache-sweep")
				chainCtx := cor.NewBaseContext()
				chainCtx.SetContext(traceCtx)

				m.Execute(chainCtx)

				if chainCtx.HasErrors() {
					for _, e := range chainCtx.GetErrors() {
						slog.ErrorContext(traceCtx, "cache sweep failed", "error", e)
					}
					span.SetStatus(codes.Error, "failed to sweep cache")
				} else {
					removed, _ := chainCtx.Get(cor.CtxOut).(int64)
					span.SetAttributes(attribute.Int64("removed", removed))
					span.SetStatus(codes.Ok, "swept cache")
				}
				span.End()
			case <-ctx.Done():
				return
			}
		}
	}()
}
