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


package commands

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/services"
)

type generateFunc func(ctx context.Context, job *model.EnrichJob, insights *model.VideoInsights) error

// InsightGenerator runs one completion capability over the job transcript
// and stores the result on the VideoInsights in the context. A failing
// optional generator is logged and skipped; a failing essential one fails
// the chain.
type InsightGenerator struct {
	cor.BaseCommand
	optional bool
	generate generateFunc
}

func (g *InsightGenerator) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil &&
		context.Get(ParamEnrichJob) != nil && context.Get(ParamInsights) != nil
}

func (g *InsightGenerator) Execute(context cor.Context) {
	job := context.Get(ParamEnrichJob).(*model.EnrichJob)
	insights := context.Get(ParamInsights).(*model.VideoInsights)

	if err := g.generate(context.GetContext(), job, insights); err != nil {
		g.GetErrorCounter().Add(context.GetContext(), 1)
		if g.optional {
			slog.WarnContext(context.GetContext(), "optional insight skipped", "step", g.GetName(), "video_id", job.VideoID, "error", err)
			context.Add(cor.CtxOut, job)
			return
		}
		context.AddError(g.GetName(), err)
		return
	}
	g.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(cor.CtxOut, job)
}

// NewHighlightsGenerator is essential: an enrichment without highlights is
// retried.
func NewHighlightsGenerator(name string, ai *services.CachedAIService) *InsightGenerator {
	return &InsightGenerator{
		BaseCommand: *cor.NewBaseCommand(name),
		generate: func(ctx context.Context, job *model.EnrichJob, insights *model.VideoInsights) error {
			highlights, err := ai.GenerateHighlights(ctx, job.Transcript, job.Attribution())
			if err != nil {
				return err
			}
			insights.Highlights = highlights
			return nil
		},
	}
}

func NewSummaryGenerator(name string, ai *services.CachedAIService) *InsightGenerator {
	return &InsightGenerator{
		BaseCommand: *cor.NewBaseCommand(name),
		optional:    true,
		generate: func(ctx context.Context, job *model.EnrichJob, insights *model.VideoInsights) error {
			summary, err := ai.Summarize(ctx, job.Transcript, job.Attribution())
			if err != nil {
				return err
			}
			insights.Summary = summary.Summary
			if summary.KeyPoints != nil {
				insights.KeyPoints = summary.KeyPoints
			}
			return nil
		},
	}
}

func NewTopicsGenerator(name string, ai *services.CachedAIService) *InsightGenerator {
	return &InsightGenerator{
		BaseCommand: *cor.NewBaseCommand(name),
		optional:    true,
		generate: func(ctx context.Context, job *model.EnrichJob, insights *model.VideoInsights) error {
			topics, err := ai.ExtractTopics(ctx, job.Transcript, job.Attribution())
			if err != nil {
				return err
			}
			insights.Topics = topics
			return nil
		},
	}
}
