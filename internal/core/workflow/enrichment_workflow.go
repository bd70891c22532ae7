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
	"cloud.google.com/go/bigquery"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/services"
)

// EnrichmentTables names where the results are written. A nil client keeps
// the results in the chain context only.
type EnrichmentTables struct {
	Client         *bigquery.Client
	Dataset        string
	InsightsTable  string
	EmbeddingTable string
}

// EnrichmentWorkflow generates highlights, summary, topics and segment
// embeddings for a transcribed video. Highlights are essential; summary and
// topics are best effort.
type EnrichmentWorkflow struct {
	cor.BaseCommand
	ai             *services.CachedAIService
	embeddingModel string
	tables         EnrichmentTables
	chain          cor.Chain
}

func (e *EnrichmentWorkflow) Execute(context cor.Context) {
	e.chain.Execute(context)
}

func (e *EnrichmentWorkflow) initializeChain() {
	out := cor.NewBaseChain(e.GetName())

	out.AddCommand(commands.NewEnrichJobReader("enrich-job-reader"))
	out.AddCommand(commands.NewHighlightsGenerator("generate-highlights", e.ai))
	out.AddCommand(commands.NewSummaryGenerator("generate-summary", e.ai))
	out.AddCommand(commands.NewTopicsGenerator("extract-topics", e.ai))
	out.AddCommand(commands.NewSegmentEmbedder("embed-segments", e.ai, e.embeddingModel))

	if e.tables.Client != nil {
		out.AddCommand(commands.NewPersistToBigQuery(
			"write-insights-to-bigquery",
			e.tables.Client,
			e.tables.Dataset,
			e.tables.InsightsTable,
			commands.ParamInsights))
		out.AddCommand(commands.NewPersistToBigQuery(
			"write-embeddings-to-bigquery",
			e.tables.Client,
			e.tables.Dataset,
			e.tables.EmbeddingTable,
			commands.ParamSegmentEmbeddings))
	}
	e.chain = out
}

func NewEnrichmentWorkflow(ai *services.CachedAIService, embeddingModel string, tables EnrichmentTables) *EnrichmentWorkflow {
	pipeline := &EnrichmentWorkflow{
		BaseCommand:    *cor.NewBaseCommand("enrichment-pipeline"),
		ai:             ai,
		embeddingModel: embeddingModel,
		tables:         tables,
	}
	pipeline.initializeChain()
	return pipeline
}
