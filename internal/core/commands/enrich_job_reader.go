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
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

// Context keys shared by the enrichment steps.
const (
	ParamEnrichJob         = "__enrich_job__"
	ParamInsights          = "__insights__"
	ParamSegmentEmbeddings = "__segment_embeddings__"
)

// EnrichJobReader parses the enrich job JSON in CtxIn. It stores the job and
// an empty VideoInsights under the shared keys the generators fill in.
type EnrichJobReader struct {
	cor.BaseCommand
}

func NewEnrichJobReader(name string) *EnrichJobReader {
	out := EnrichJobReader{BaseCommand: *cor.NewBaseCommand(name)}
	out.OutputParamName = ParamEnrichJob
	return &out
}

func (s *EnrichJobReader) Execute(context cor.Context) {
	in := context.Get(s.GetInputParam()).(string)

	job := &model.EnrichJob{}
	if err := json.Unmarshal([]byte(in), job); err != nil {
		s.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(s.GetName(), fmt.Errorf("failed to unmarshal enrich job: %w", err))
		return
	}
	if job.VideoID == "" || job.Transcript == nil || strings.TrimSpace(job.Transcript.Text) == "" {
		s.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(s.GetName(), errors.New("enrich job needs a video id and a transcript"))
		return
	}
	s.GetSuccessCounter().Add(context.GetContext(), 1)

	insights := model.NewVideoInsights(job.VideoID, job.UserID)
	insights.Language = job.Transcript.Language
	insights.Duration = job.Transcript.DurationSeconds

	context.Add(s.GetOutputParam(), job)
	context.Add(ParamInsights, insights)
	context.Add(cor.CtxOut, job)
}
