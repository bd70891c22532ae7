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
	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/services"
)

// SegmentEmbedder embeds every transcript segment of the job through the
// cached batch embedding and stores the rows under ParamSegmentEmbeddings.
type SegmentEmbedder struct {
	cor.BaseCommand
	ai        *services.CachedAIService
	modelName string
}

func NewSegmentEmbedder(name string, ai *services.CachedAIService, modelName string) *SegmentEmbedder {
	out := &SegmentEmbedder{BaseCommand: *cor.NewBaseCommand(name), ai: ai, modelName: modelName}
	out.OutputParamName = ParamSegmentEmbeddings
	return out
}

func (s *SegmentEmbedder) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && context.Get(ParamEnrichJob) != nil
}

func (s *SegmentEmbedder) Execute(context cor.Context) {
	job := context.Get(ParamEnrichJob).(*model.EnrichJob)
	texts := job.Transcript.SegmentTexts()

	vectors, err := s.ai.Embed(context.GetContext(), texts, job.Attribution())
	if err != nil {
		s.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(s.GetName(), err)
		return
	}

	rows := make([]*model.SegmentEmbedding, len(texts))
	for i, text := range texts {
		row := model.NewSegmentEmbedding(job.VideoID, i, text, s.modelName)
		for _, v := range vectors[i] {
			row.Embeddings = append(row.Embeddings, float64(v))
		}
		rows[i] = row
	}
	s.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(s.GetOutputParam(), rows)
	context.Add(cor.CtxOut, job)
}
