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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaycherian/gcp-go-video-insights/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/cache"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/clock"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/ledger"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/pricing"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/services"
	"github.com/jaycherian/gcp-go-video-insights/internal/telemetry"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configDir string
	runtime   string
	logLevel  string
}

// app is what a subcommand works with: the strict cache store, the ledger
// and the reports composed over them.
type app struct {
	config    *cloud.Config
	repos     *cloud.Repositories
	store     *cache.Store
	ledger    *ledger.Ledger
	analytics *services.AnalyticsService
}

func (a *app) Close() {
	a.repos.Close()
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "cachectl",
		Short: "Inspect and maintain the AI response cache and usage ledger",
		Long: `cachectl reads the same configuration as the server and works directly on
the configured cache and ledger backends. Reports are printed as JSON.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(telemetry.NewLogger(cmd.ErrOrStderr(), telemetry.ParseLevel(opts.logLevel)))
		},
	}
	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", getEnvOrDefault(cloud.EnvConfigFilePrefix, "configs"), "directory holding .env.toml")
	root.PersistentFlags().StringVar(&opts.runtime, "runtime", getEnvOrDefault(cloud.EnvConfigRuntime, "local"), "runtime overlay, selects .env.<runtime>.toml")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")

	root.AddCommand(newStatsCmd(opts), newCostsCmd(opts), newBudgetCmd(opts), newClearCmd(opts))
	return root
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// open loads the configuration and opens the cache and ledger. The BigQuery
// ledger creates its own client; no other cloud client is needed.
func (o *options) open(ctx context.Context) (*app, error) {
	if err := os.Setenv(cloud.EnvConfigFilePrefix, o.configDir); err != nil {
		return nil, err
	}
	if err := os.Setenv(cloud.EnvConfigRuntime, o.runtime); err != nil {
		return nil, err
	}
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		return nil, err
	}

	repos, err := cloud.OpenRepositories(ctx, config, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open repositories: %w", err)
	}

	costs := pricing.NewModel(config.RateTable())
	if config.Pricing.RatesFile != "" {
		table, err := pricing.LoadFile(config.Pricing.RatesFile, config.RateTable())
		if err != nil {
			slog.Warn("using configured rates, rates file unreadable", "file", config.Pricing.RatesFile, "error", err)
		} else {
			costs.Replace(table)
		}
	}

	clk := clock.SystemUTC{}
	store := cache.NewStore(repos.Cache, clk)
	l := ledger.New(repos.Ledger, costs, clk)
	return &app{
		config:    config,
		repos:     repos,
		store:     store,
		ledger:    l,
		analytics: services.NewAnalyticsService(store, l, config.SavingsTable(), config.Ledger.MonthlyBudget),
	}, nil
}

// run opens the app for the duration of fn.
func (o *options) run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDay reads a YYYY-MM-DD flag. Empty means unbounded.
func parseDay(name string, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}
