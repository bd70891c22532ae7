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

// This file builds the application state of the server: configuration, the
// cloud clients, the cache store, the usage ledger, the cached AI service,
// the workflows attached to the job listeners and the operator handlers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-video-insights/internal/api"
	"github.com/jaycherian/gcp-go-video-insights/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/cache"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/clock"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/ledger"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/pricing"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/services"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/workflow"
	"github.com/jaycherian/gcp-go-video-insights/internal/queue"
)

// StateManager holds the shared components of the server.
type StateManager struct {
	config    *cloud.Config
	cloud     *cloud.ServiceClients
	pricing   *pricing.Model
	store     *cache.Store
	ledger    *ledger.Ledger
	ai        *services.CachedAIService
	analytics *services.AnalyticsService
	handlers  *api.Handlers
}

var state = &StateManager{}

// SetupOS defaults the configuration directory and runtime when the
// environment does not name them.
func SetupOS() (err error) {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

func GetConfig() (*cloud.Config, error) {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			return nil, fmt.Errorf("failed to setup os: %w", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			return nil, err
		}
		state.config = config
	}
	return state.config, nil
}

// NewCachedAIConfig maps the agent and embedding model sections onto the
// settings of each cached capability.
func NewCachedAIConfig(config *cloud.Config) (services.CachedAIConfig, error) {
	out := services.CachedAIConfig{
		TranscriptionModel:  config.AgentModels[cloud.ModelTranscription].Model,
		EmbeddingModel:      config.EmbeddingModels[cloud.ModelSegments].Model,
		EmbeddingDimensions: config.EmbeddingModels[cloud.ModelSegments].Dimensions,
		EmbeddingBatchSize:  config.Cache.EmbeddingBatchSize,
		DedupeInFlight:      config.Cache.DedupeInFlight,
		TTLs:                make(map[model.ArtifactKind]time.Duration),
	}
	for _, kind := range model.ArtifactKinds() {
		out.TTLs[kind] = config.Cache.TTL(kind)
	}

	prompts := map[string]string{
		cloud.ModelHighlights: config.PromptTemplates.Highlights,
		cloud.ModelSummary:    config.PromptTemplates.Summary,
		cloud.ModelTopics:     config.PromptTemplates.Topics,
	}
	defaults := map[string]string{
		cloud.ModelHighlights: services.DefaultHighlightsPrompt,
		cloud.ModelSummary:    services.DefaultSummaryPrompt,
		cloud.ModelTopics:     services.DefaultTopicsPrompt,
	}
	targets := map[string]*services.CompletionSettings{
		cloud.ModelHighlights: &out.Highlights,
		cloud.ModelSummary:    &out.Summary,
		cloud.ModelTopics:     &out.Topics,
	}
	for name, settings := range targets {
		values := config.AgentModels[name]
		tmpl, err := services.ParsePrompt(name, prompts[name], defaults[name])
		if err != nil {
			return out, err
		}
		*settings = services.CompletionSettings{
			Model:        values.Model,
			SystemPrompt: values.SystemInstructions,
			Temperature:  values.Temperature,
			MaxTokens:    values.MaxTokens,
			JSONMode:     values.JSONMode(),
			Template:     tmpl,
		}
	}
	return out, nil
}

// InitState creates every component and starts the background workers:
// the job listeners, the cache sweep and the pricing file watcher.
func InitState(ctx context.Context) error {
	config, err := GetConfig()
	if err != nil {
		return err
	}

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = cloudClients

	state.pricing = pricing.NewModel(config.RateTable())
	if config.Pricing.RatesFile != "" {
		watcher := pricing.NewWatcher(config.Pricing.RatesFile, config.RateTable(), state.pricing)
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				slog.Error("pricing watcher stopped", "file", config.Pricing.RatesFile, "error", err)
			}
		}()
	}

	clk := clock.SystemUTC{}
	state.store = cache.NewStore(cloudClients.Repositories.Cache, clk)
	state.ledger = ledger.New(cloudClients.Repositories.Ledger, state.pricing, clk)

	aiConfig, err := NewCachedAIConfig(config)
	if err != nil {
		return err
	}
	state.ai, err = services.NewCachedAIService(
		cloudClients.Provider,
		cache.NewBestEffort(state.store, slog.Default()),
		ledger.NewBestEffort(state.ledger, slog.Default()),
		aiConfig,
		slog.Default(),
	)
	if err != nil {
		return err
	}

	state.analytics = services.NewAnalyticsService(state.store, state.ledger, config.SavingsTable(), config.Ledger.MonthlyBudget)

	datasource := config.BigQueryDataSource
	state.handlers = &api.Handlers{
		Analytics: state.analytics,
		Cache:     state.store,
		Search: &services.SearchService{
			BigqueryClient: cloudClients.BiqQueryClient,
			Embedder:       state.ai,
			DatasetName:    datasource.DatasetName,
			EmbeddingTable: datasource.EmbeddingTable,
		},
		Insights: &services.InsightsService{
			BigqueryClient: cloudClients.BiqQueryClient,
			DatasetName:    datasource.DatasetName,
			InsightsTable:  datasource.InsightsTable,
		},
		Publisher:   cloudClients.Publisher,
		InputBucket: config.Storage.InputBucket,
	}

	maintenance := workflow.NewCacheMaintenanceWorkflow(state.store, time.Duration(config.Cache.SweepIntervalMinutes)*time.Minute)
	maintenance.StartTimer(ctx)

	SetupListeners(ctx, config, cloudClients)
	return nil
}

// SetupListeners attaches the workflows to the job listeners and starts them.
func SetupListeners(ctx context.Context, config *cloud.Config, cloudClients *cloud.ServiceClients) {
	transcription := workflow.NewTranscriptionWorkflow(
		commands.NewGCSMediaReader(cloudClients.StorageClient),
		state.ai,
		cloudClients.Publisher,
		config.Application.DefaultLanguage,
		commands.DefaultMaxMediaBytes,
	)
	enrichment := workflow.NewEnrichmentWorkflow(
		state.ai,
		config.EmbeddingModels[cloud.ModelSegments].Model,
		workflow.EnrichmentTables{
			Client:         cloudClients.BiqQueryClient,
			Dataset:        config.BigQueryDataSource.DatasetName,
			InsightsTable:  config.BigQueryDataSource.InsightsTable,
			EmbeddingTable: config.BigQueryDataSource.EmbeddingTable,
		},
	)

	for jobType, listener := range cloudClients.Listeners {
		switch jobType {
		case queue.JobTranscribe:
			listener.SetCommand(transcription)
		case queue.JobEnrich:
			listener.SetCommand(enrichment)
		default:
			slog.Warn("no workflow for job type, listener not started", "job_type", jobType)
			continue
		}
		listener.Listen(ctx)
		slog.Info("listener started", "job_type", jobType)
	}
}
