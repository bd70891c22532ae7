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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insights/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/cache"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/ledger"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/pricing"
	"github.com/jaycherian/gcp-go-video-insights/internal/storage"
)

// setup writes a configuration pointing at a fresh SQLite file and seeds it
// with three cache entries and one 10 minute transcription.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cachectl.db")
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(fmt.Sprintf("[sqlite]\npath = %q\n", dbPath)), 0o644))

	db, err := storage.OpenSQLite(dbPath)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	cacheRepo, err := cache.NewSQLiteRepository(db)
	require.NoError(t, err)
	store := cache.NewStore(cacheRepo, nil)
	payload := json.RawMessage(`{"summary":"a day at the beach"}`)
	require.NoError(t, store.Set(ctx, model.KindSummary, "one", "summary-model", payload, cache.SetOptions{}))
	require.NoError(t, store.Set(ctx, model.KindSummary, "two", "summary-model", payload, cache.SetOptions{}))
	require.NoError(t, store.Set(ctx, model.KindTopics, "one", "topics-model", payload, cache.SetOptions{}))

	ledgerRepo, err := ledger.NewSQLiteRepository(db)
	require.NoError(t, err)
	l := ledger.New(ledgerRepo, pricing.NewModel(pricing.DefaultTable()), nil)
	_, err = l.Append(ctx, model.UsageTranscription, "whisper-1", model.Quantity{InputMinutes: 10}, false, model.Attribution{VideoID: "video-1", UserID: "user-1"})
	require.NoError(t, err)
	return dir
}

func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config-dir", dir, "--runtime", "test"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestStats(t *testing.T) {
	dir := setup(t)

	out, err := execute(t, dir, "stats")
	require.NoError(t, err)
	var stats model.GlobalStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, int64(3), stats.TotalEntries)
	assert.Equal(t, int64(1), stats.ProviderCalls)
	assert.Len(t, stats.ByKind, 2)
}

func TestCostsAndBudget(t *testing.T) {
	dir := setup(t)

	out, err := execute(t, dir, "costs", "--user", "user-1")
	require.NoError(t, err)
	var summary model.UsageSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, int64(1), summary.TotalRequests)
	assert.InDelta(t, 0.06, summary.TotalCost, 1e-9)

	out, err = execute(t, dir, "costs", "videos")
	require.NoError(t, err)
	var videos []model.VideoCost
	require.NoError(t, json.Unmarshal([]byte(out), &videos))
	require.Len(t, videos, 1)
	assert.Equal(t, "video-1", videos[0].VideoID)

	out, err = execute(t, dir, "budget", "--budget", "0.05")
	require.NoError(t, err)
	var status model.BudgetStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, model.BudgetExceeded, status.Level)

	_, err = execute(t, dir, "costs", "daily", "--from", "last week")
	assert.ErrorContains(t, err, "--from must be YYYY-MM-DD")
}

func TestClear(t *testing.T) {
	dir := setup(t)

	_, err := execute(t, dir, "clear", "kind", "thumbnails")
	assert.ErrorContains(t, err, "unknown artifact kind")

	out, err := execute(t, dir, "clear", "kind", "summary")
	require.NoError(t, err)
	assert.JSONEq(t, `{"removed": 2}`, out)

	out, err = execute(t, dir, "clear", "expired")
	require.NoError(t, err)
	assert.JSONEq(t, `{"removed": 0}`, out)

	_, err = execute(t, dir, "clear", "all")
	assert.ErrorContains(t, err, "--yes")

	out, err = execute(t, dir, "clear", "all", "--yes")
	require.NoError(t, err)
	assert.JSONEq(t, `{"removed": 1}`, out)
}
