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


// This file initializes and holds every client the application talks to. It
// acts as the dependency injection container of the server: the clients,
// the AI provider, the cache and ledger repositories, the job publisher and
// the job listeners are created once here and shared.
//
// Logic Flow:
//  1. OpenRepositories opens the SQLite database and/or Redis connection the
//     configured cache and ledger backends need. The operator CLI stops here.
//  2. NewCloudServiceClients additionally creates the Storage, BigQuery and
//     GenAI clients, the rate limited model handles and the GeminiProvider.
//  3. The queue backend decides between Pub/Sub and Redis Streams for both
//     the publisher and the listeners. Listeners are created without a
//     command; workflows are attached later by the server setup.
package cloud

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/cache"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/ledger"
	"github.com/jaycherian/gcp-go-video-insights/internal/queue"
	vstorage "github.com/jaycherian/gcp-go-video-insights/internal/storage"
)

// JobListener is a background consumer of one job type. PubSubListener and
// queue.RedisStreamConsumer implement it.
type JobListener interface {
	SetCommand(command cor.Command)
	Listen(ctx context.Context)
}

// Repositories are the persistence handles of the cache and the ledger.
type Repositories struct {
	SQLite   *sql.DB          // Set when any backend is "sqlite".
	Redis    *redis.Client    // Set when the cache or the queue uses Redis.
	BigQuery *bigquery.Client // Set when the ledger backend is "bigquery".
	Cache    cache.Repository
	Ledger   ledger.Repository

	ownsBigQuery bool
}

// Close releases the handles the repositories were opened on.
func (r *Repositories) Close() {
	if r.SQLite != nil {
		_ = r.SQLite.Close()
	}
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	if r.BigQuery != nil && r.ownsBigQuery {
		_ = r.BigQuery.Close()
	}
}

// OpenRepositories opens the cache and ledger repositories selected in the
// configuration. bq is reused for a BigQuery ledger; when nil a client is
// created on demand.
func OpenRepositories(ctx context.Context, config *Config, bq *bigquery.Client) (repos *Repositories, err error) {
	repos = &Repositories{}
	defer func() {
		if err != nil {
			repos.Close()
			repos = nil
		}
	}()

	needsSQLite := config.Cache.Backend == BackendSQLite || config.Ledger.Backend == BackendSQLite
	if needsSQLite {
		if repos.SQLite, err = vstorage.OpenSQLite(config.SQLite.Path); err != nil {
			return repos, err
		}
	}
	if config.Cache.Backend == BackendRedis || config.Queue.Backend == BackendRedis {
		if repos.Redis, err = vstorage.OpenRedis(ctx, config.Redis); err != nil {
			return repos, err
		}
	}

	switch config.Cache.Backend {
	case BackendSQLite:
		if repos.Cache, err = cache.NewSQLiteRepository(repos.SQLite); err != nil {
			return repos, err
		}
	case BackendRedis:
		repos.Cache = cache.NewRedisRepository(repos.Redis, config.Redis.KeyPrefix)
	default:
		return repos, fmt.Errorf("unsupported cache backend %q", config.Cache.Backend)
	}

	switch config.Ledger.Backend {
	case BackendSQLite:
		if repos.Ledger, err = ledger.NewSQLiteRepository(repos.SQLite); err != nil {
			return repos, err
		}
	case BackendBigQuery:
		if bq == nil {
			if bq, err = bigquery.NewClient(ctx, config.Application.GoogleProjectId); err != nil {
				return repos, err
			}
			repos.ownsBigQuery = true
		}
		repos.BigQuery = bq
		bqRepo := ledger.NewBigQueryRepository(bq, config.BigQueryDataSource.DatasetName, config.BigQueryDataSource.UsageTable)
		if err = bqRepo.EnsureTable(ctx); err != nil {
			return repos, fmt.Errorf("failed to prepare usage table: %w", err)
		}
		repos.Ledger = bqRepo
	default:
		return repos, fmt.Errorf("unsupported ledger backend %q", config.Ledger.Backend)
	}
	return repos, nil
}

// ServiceClients holds every external client of the server.
type ServiceClients struct {
	StorageClient   *storage.Client  // Reads uploaded media.
	PubsubClient    *pubsub.Client   // Nil unless the queue backend is "pubsub".
	GenAIClient     *genai.Client    // Vertex AI or Gemini API.
	BiqQueryClient  *bigquery.Client // Insights, segment embeddings and vector search.
	Repositories    *Repositories
	Provider        *GeminiProvider
	Publisher       queue.Publisher
	Listeners       map[string]JobListener                  // Keyed by job type.
	EmbeddingModels map[string]*QuotaAwareGenerativeAIModel // Keyed by logical name.
	AgentModels     map[string]*QuotaAwareGenerativeAIModel // Keyed by capability.
}

// Close shuts down all client connections.
func (c *ServiceClients) Close() {
	if p, ok := c.Publisher.(*queue.PubSubPublisher); ok {
		p.Stop()
	}
	_ = c.StorageClient.Close()
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	c.Repositories.Close()
	_ = c.BiqQueryClient.Close()
}

// NewGenAIClient creates the GenAI client for the configured backend.
func NewGenAIClient(ctx context.Context, config *Config) (*genai.Client, error) {
	clientConfig := &genai.ClientConfig{
		Project:  config.Application.GoogleProjectId,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	}
	if config.Application.GenAIBackend == "gemini" {
		clientConfig = &genai.ClientConfig{
			APIKey:  config.Application.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
	}
	return genai.NewClient(ctx, clientConfig)
}

// NewCloudServiceClients creates all clients from the configuration.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	sc, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	bc, err := bigquery.NewClient(ctx, config.Application.GoogleProjectId)
	if err != nil {
		return nil, err
	}

	slog.Info("creating genai client",
		"backend", config.Application.GenAIBackend,
		"project", config.Application.GoogleProjectId,
		"location", config.Application.GoogleLocation)
	gc, err := NewGenAIClient(ctx, config)
	if err != nil {
		slog.Error("error creating genai client", "error", err)
		return nil, err
	}

	repos, err := OpenRepositories(ctx, config, bc)
	if err != nil {
		return nil, err
	}

	embeddingModels := make(map[string]*QuotaAwareGenerativeAIModel)
	for embKey, values := range config.EmbeddingModels {
		embeddingModels[embKey] = NewQuotaAwareModelPerMinute(gc.Models, values.MaxRequestsPerMinute)
	}

	// Every agent model draws on the same project quota, so generation
	// shares one limiter at the most permissive configured rate.
	agentModels := make(map[string]*QuotaAwareGenerativeAIModel)
	shared := 0
	for _, values := range config.AgentModels {
		shared = max(shared, values.RateLimit)
	}
	generate := NewQuotaAwareModel(gc.Models, shared)
	for amKey := range config.AgentModels {
		agentModels[amKey] = generate
	}

	provider, err := NewGeminiProvider(
		generate,
		embeddingModels[ModelSegments],
		config.AgentModels[ModelTranscription].Model,
		config.PromptTemplates.Transcription,
	)
	if err != nil {
		return nil, err
	}

	cloud = &ServiceClients{
		StorageClient:   sc,
		GenAIClient:     gc,
		BiqQueryClient:  bc,
		Repositories:    repos,
		Provider:        provider,
		Listeners:       make(map[string]JobListener),
		EmbeddingModels: embeddingModels,
		AgentModels:     agentModels,
	}

	topics := map[string]string{
		queue.JobTranscribe: config.Queue.TranscribeTopic,
		queue.JobEnrich:     config.Queue.EnrichTopic,
	}
	switch config.Queue.Backend {
	case BackendPubSub:
		pc, err := pubsub.NewClient(ctx, config.Application.GoogleProjectId)
		if err != nil {
			return nil, err
		}
		cloud.PubsubClient = pc
		cloud.Publisher = queue.NewPubSubPublisher(pc, topics)
		for jobType, values := range config.TopicSubscriptions {
			listener, err := NewPubSubListener(pc, values.Name, nil)
			if err != nil {
				return nil, err
			}
			cloud.Listeners[jobType] = listener
		}
	case BackendRedis:
		cloud.Publisher = queue.NewRedisStreamPublisher(repos.Redis, topics)
		consumer, _ := os.Hostname()
		if consumer == "" {
			consumer = config.Application.Name
		}
		block := time.Duration(config.Queue.BlockMilliseconds) * time.Millisecond
		for jobType, stream := range topics {
			cloud.Listeners[jobType] = queue.NewRedisStreamConsumer(repos.Redis, stream, config.Queue.ConsumerGroup, consumer, block, nil)
		}
	default:
		return nil, fmt.Errorf("unsupported queue backend %q", config.Queue.Backend)
	}

	return cloud, nil
}
