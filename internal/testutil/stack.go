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

package test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/cache"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/clock"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/ledger"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/pricing"
	"github.com/jaycherian/gcp-go-video-insights/internal/storage"
)

// LocalStack is a cache store and a usage ledger sharing one temporary
// SQLite database, driven by a manual clock.
type LocalStack struct {
	Clock     *clock.Manual
	CacheRepo cache.Repository
	Store     *cache.Store
	Cache     *cache.BestEffort
	Ledger    *ledger.Ledger
	Usage     *ledger.BestEffort
	Pricing   *pricing.Model
}

func NewLocalStack(t *testing.T, clk *clock.Manual) *LocalStack {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "insights_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cacheRepo, err := cache.NewSQLiteRepository(db)
	require.NoError(t, err)
	ledgerRepo, err := ledger.NewSQLiteRepository(db)
	require.NoError(t, err)

	costs := pricing.NewModel(pricing.DefaultTable())
	store := cache.NewStore(cacheRepo, clk)
	l := ledger.New(ledgerRepo, costs, clk)
	return &LocalStack{
		Clock:     clk,
		CacheRepo: cacheRepo,
		Store:     store,
		Cache:     cache.NewBestEffort(store, nil),
		Ledger:    l,
		Usage:     ledger.NewBestEffort(l, nil),
		Pricing:   costs,
	}
}
