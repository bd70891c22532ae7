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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files. It covers the Google Cloud services, the AI models
// behind each capability, the cache and ledger backends, pricing, the job
// queue and the prompt templates.
package cloud

import (
	"time"

	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/pricing"
	"github.com/jaycherian/gcp-go-video-insights/internal/storage"
)

// DefaultSafetySettings defines the default content safety thresholds for GenAI models.
// Transcripts of personal videos are passed through unfiltered.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Logical keys of the agent_models and embedding_models maps.
const (
	ModelTranscription = "transcription"
	ModelHighlights    = "highlights"
	ModelSummary       = "summary"
	ModelTopics        = "topics"
	ModelSegments      = "segments"
)

// Backend names accepted by the cache, ledger and queue sections.
const (
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendBigQuery = "bigquery"
	BackendPubSub   = "pubsub"
)

// BigQueryDataSource represents the configuration for a BigQuery data source.
type BigQueryDataSource struct {
	DatasetName    string `toml:"dataset"`         // The name of the BigQuery dataset.
	InsightsTable  string `toml:"insights_table"`  // Per-video enrichment rows.
	EmbeddingTable string `toml:"embedding_table"` // Transcript segment embeddings used by vector search.
	UsageTable     string `toml:"usage_table"`     // Usage ledger rows when the ledger backend is "bigquery".
}

// PromptTemplates holds the text/template sources of each capability's prompt.
type PromptTemplates struct {
	Transcription string `toml:"transcription"`
	Highlights    string `toml:"highlights"`
	Summary       string `toml:"summary"`
	Topics        string `toml:"topics"`
}

// VertexAiEmbeddingModel represents the configuration for an embedding model.
type VertexAiEmbeddingModel struct {
	Model                string `toml:"model"`                   // The name of the embedding model.
	Dimensions           int    `toml:"dimensions"`              // Output dimensionality; zero keeps the model default.
	MaxRequestsPerMinute int    `toml:"max_requests_per_minute"` // The maximum number of requests allowed per minute.
}

// VertexAiLLMModel represents the configuration for a large language model.
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // The name of the LLM.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the LLM.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter for the LLM.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of tokens for the LLM output.
	OutputFormat       string  `toml:"output_format"`       // The desired output format, "application/json" turns on JSON mode.
	RateLimit          int     `toml:"rate_limit"`          // The rate limit for the LLM in requests per second.
}

// JSONMode reports whether the model is asked for a JSON response.
func (m VertexAiLLMModel) JSONMode() bool {
	return m.OutputFormat == "application/json"
}

// TopicSubscription represents the configuration for a Pub/Sub topic subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The name of the dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // The timeout for the subscription in seconds.
}

// Storage represents the configuration for storage buckets.
type Storage struct {
	InputBucket string `toml:"input_bucket"` // The bucket users upload videos to.
}

// CacheConfig selects the cache backend and its per-kind lifetimes.
type CacheConfig struct {
	Backend              string         `toml:"backend"`                // "sqlite" or "redis".
	TTLDays              map[string]int `toml:"ttl_days"`               // Lifetime per artifact kind, 0 means never expire.
	EmbeddingBatchSize   int            `toml:"embedding_batch_size"`   // Texts per embeddings request and cache entry.
	DedupeInFlight       bool           `toml:"dedupe_in_flight"`       // Collapse concurrent identical misses.
	SweepIntervalMinutes int            `toml:"sweep_interval_minutes"` // Period of the ClearExpired sweep, 0 disables it.
}

// TTL returns the lifetime of a cached artifact kind.
func (c CacheConfig) TTL(kind model.ArtifactKind) time.Duration {
	if days, ok := c.TTLDays[string(kind)]; ok {
		return time.Duration(days) * 24 * time.Hour
	}
	if days, ok := DefaultTTLDays()[string(kind)]; ok {
		return time.Duration(days) * 24 * time.Hour
	}
	return 0
}

// DefaultTTLDays is the lifetime of each artifact kind when not configured.
func DefaultTTLDays() map[string]int {
	return map[string]int{
		string(model.KindTranscription): 60,
		string(model.KindHighlights):    90,
		string(model.KindSummary):       60,
		string(model.KindTopics):        60,
		string(model.KindEmbeddings):    180,
	}
}

// LedgerConfig selects the usage ledger backend.
type LedgerConfig struct {
	Backend       string  `toml:"backend"`        // "sqlite" or "bigquery".
	MonthlyBudget float64 `toml:"monthly_budget"` // USD, used by the budget report when no budget is given.
}

// PricingConfig holds rate overrides and an optional hot-reloaded rates file.
type PricingConfig struct {
	RatesFile string        `toml:"rates_file"`
	Models    pricing.Table `toml:"models"`
}

// QueueConfig selects the job queue backend and names its topics or streams.
type QueueConfig struct {
	Backend           string `toml:"backend"`            // "pubsub" or "redis".
	TranscribeTopic   string `toml:"transcribe_topic"`   // Topic or stream for transcription jobs.
	EnrichTopic       string `toml:"enrich_topic"`       // Topic or stream for enrichment jobs.
	ConsumerGroup     string `toml:"consumer_group"`     // Redis Streams consumer group.
	BlockMilliseconds int    `toml:"block_milliseconds"` // Redis Streams XREADGROUP block time.
}

// Config represents the overall configuration for the application, loaded from TOML files.
// It acts as the root container for all other configuration structs.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name            string `toml:"name"`              // The name of the application.
		GoogleProjectId string `toml:"google_project_id"` // The Google Cloud project ID.
		GoogleLocation  string `toml:"location"`          // The Google Cloud location.
		GenAIBackend    string `toml:"genai_backend"`     // "vertex" (default) or "gemini".
		APIKey          string `toml:"api_key"`           // Gemini API key when genai_backend is "gemini".
		DefaultLanguage string `toml:"default_language"`  // Transcription language when an upload names none.
	} `toml:"application"`
	Server struct {
		Port         int      `toml:"port"`
		AllowOrigins []string `toml:"allow_origins"`
	} `toml:"server"`
	Storage            Storage            `toml:"storage"`               // Storage configuration.
	BigQueryDataSource BigQueryDataSource `toml:"big_query_data_source"` // BigQuery data source configuration.
	SQLite             struct {
		Path string `toml:"path"`
	} `toml:"sqlite"`
	Redis              storage.RedisConfig               `toml:"redis"`
	Cache              CacheConfig                       `toml:"cache"`
	Ledger             LedgerConfig                      `toml:"ledger"`
	Pricing            PricingConfig                     `toml:"pricing"`
	Savings            map[string]float64                `toml:"savings"` // Flat per-hit savings by artifact kind.
	Queue              QueueConfig                       `toml:"queue"`
	PromptTemplates    PromptTemplates                   `toml:"prompt_templates"`    // Prompt templates configuration.
	TopicSubscriptions map[string]TopicSubscription      `toml:"topic_subscriptions"` // Pub/Sub subscriptions keyed by job type.
	EmbeddingModels    map[string]VertexAiEmbeddingModel `toml:"embedding_models"`    // Embedding models keyed by logical name.
	AgentModels        map[string]VertexAiLLMModel       `toml:"agent_models"`        // LLMs keyed by capability.
	Telemetry          struct {
		Exporter string `toml:"exporter"`  // "gcp" or "none".
		LogLevel string `toml:"log_level"` // debug, info, warn or error.
		LogFile  string `toml:"log_file"`  // Optional file the JSON log is duplicated to.
	} `toml:"telemetry"`
}

// NewConfig creates a Config holding the defaults. Loading TOML over it only
// replaces the values the files set, so a missing file still yields a
// runnable configuration.
func NewConfig() *Config {
	c := &Config{
		Savings:            make(map[string]float64),
		TopicSubscriptions: make(map[string]TopicSubscription),
		EmbeddingModels: map[string]VertexAiEmbeddingModel{
			ModelSegments: {Model: "text-embedding-005", Dimensions: 768, MaxRequestsPerMinute: 600},
		},
		AgentModels: map[string]VertexAiLLMModel{
			ModelTranscription: {Model: "gemini-2.0-flash", RateLimit: 2},
			ModelHighlights:    {Model: "gemini-2.0-flash", Temperature: 0.2, MaxTokens: 4096, OutputFormat: "application/json", RateLimit: 2},
			ModelSummary:       {Model: "gemini-2.0-flash", Temperature: 0.3, MaxTokens: 2048, OutputFormat: "application/json", RateLimit: 2},
			ModelTopics:        {Model: "gemini-2.0-flash", Temperature: 0.2, MaxTokens: 1024, OutputFormat: "application/json", RateLimit: 2},
		},
	}
	c.Application.Name = "video-insights"
	c.Application.GoogleLocation = "us-central1"
	c.Application.GenAIBackend = "vertex"
	c.Application.DefaultLanguage = "en"
	c.Server.Port = 8080
	c.Server.AllowOrigins = []string{"*"}
	c.BigQueryDataSource = BigQueryDataSource{
		DatasetName:    "video_insights",
		InsightsTable:  "insights",
		EmbeddingTable: "segment_embeddings",
		UsageTable:     "ai_usage_records",
	}
	c.SQLite.Path = "data/video-insights.db"
	c.Cache = CacheConfig{
		Backend:              BackendSQLite,
		TTLDays:              DefaultTTLDays(),
		EmbeddingBatchSize:   100,
		SweepIntervalMinutes: 60,
	}
	c.Ledger = LedgerConfig{Backend: BackendSQLite}
	c.Pricing.Models = pricing.Table{}
	for kind, v := range pricing.DefaultSavings() {
		c.Savings[string(kind)] = v
	}
	c.Queue = QueueConfig{
		Backend:           BackendPubSub,
		TranscribeTopic:   "video-insights-transcribe",
		EnrichTopic:       "video-insights-enrich",
		ConsumerGroup:     "video-insights",
		BlockMilliseconds: 5000,
	}
	c.Telemetry.Exporter = "none"
	c.Telemetry.LogLevel = "info"
	return c
}

// SavingsTable converts the configured per-hit savings into a pricing.Savings.
func (c *Config) SavingsTable() pricing.Savings {
	out := pricing.DefaultSavings()
	for kind, v := range c.Savings {
		out[model.ArtifactKind(kind)] = v
	}
	return out
}

// RateTable merges the configured pricing overrides over the built-in rates.
func (c *Config) RateTable() pricing.Table {
	return pricing.DefaultTable().Merge(c.Pricing.Models)
}
