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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache contents, hit rate and headline savings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				stats, err := a.analytics.GlobalStats(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func newCostsCmd(opts *options) *cobra.Command {
	var from, to, user string
	costs := &cobra.Command{
		Use:   "costs",
		Short: "Aggregate recorded usage by kind and model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := usageFilter(from, to, user)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				summary, err := a.analytics.Costs(ctx, filter)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
	costs.PersistentFlags().StringVar(&from, "from", "", "first day included, YYYY-MM-DD")
	costs.PersistentFlags().StringVar(&to, "to", "", "last day included, YYYY-MM-DD")
	costs.PersistentFlags().StringVar(&user, "user", "", "only records attributed to this user")

	costs.AddCommand(&cobra.Command{
		Use:   "videos",
		Short: "Cost per video, most expensive first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				videos, err := a.analytics.CostByVideo(ctx, user)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), videos)
			})
		},
	})
	costs.AddCommand(&cobra.Command{
		Use:   "daily",
		Short: "Cost per UTC day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := usageFilter(from, to, user)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				days, err := a.analytics.DailySeries(ctx, filter.From, filter.To, filter.UserID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), days)
			})
		},
	})
	return costs
}

func usageFilter(from string, to string, user string) (model.UsageFilter, error) {
	filter := model.UsageFilter{UserID: user}
	var err error
	if filter.From, err = parseDay("from", from); err != nil {
		return filter, err
	}
	end, err := parseDay("to", to)
	if err != nil {
		return filter, err
	}
	if !end.IsZero() {
		filter.To = end.AddDate(0, 0, 1)
	}
	return filter, nil
}

func newBudgetCmd(opts *options) *cobra.Command {
	var budget float64
	var user string
	budgetCmd := &cobra.Command{
		Use:   "budget",
		Short: "Compare this month's spend against a budget",
		Long: `budget sums the accounting cost recorded since the first of the current
UTC month. Without --budget the configured ledger.monthly_budget is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				status, err := a.analytics.BudgetStatus(ctx, budget, user)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), status)
			})
		},
	}
	budgetCmd.Flags().Float64Var(&budget, "budget", 0, "monthly budget in USD")
	budgetCmd.Flags().StringVar(&user, "user", "", "only spend attributed to this user")
	return budgetCmd
}

func newClearCmd(opts *options) *cobra.Command {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cache entries",
	}

	clearCmd.AddCommand(&cobra.Command{
		Use:   "expired",
		Short: "Remove entries whose lifetime has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				removed, err := a.store.ClearExpired(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int64{"removed": removed})
			})
		},
	})

	clearCmd.AddCommand(&cobra.Command{
		Use:       "kind <kind>",
		Short:     "Remove every entry of one artifact kind",
		Args:      cobra.ExactArgs(1),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := model.ArtifactKind(args[0])
			if !kind.IsKnown() {
				return fmt.Errorf("unknown artifact kind %q, expected one of %v", args[0], kindNames())
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				removed, err := a.store.ClearByKind(ctx, kind)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int64{"removed": removed})
			})
		},
	})

	var yes bool
	all := &cobra.Command{
		Use:   "all",
		Short: "Remove every cache entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear the whole cache without --yes")
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				removed, err := a.store.ClearAll(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int64{"removed": removed})
			})
		},
	}
	all.Flags().BoolVar(&yes, "yes", false, "confirm removing every entry")
	clearCmd.AddCommand(all)
	return clearCmd
}

func kindNames() []string {
	kinds := model.ArtifactKinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
