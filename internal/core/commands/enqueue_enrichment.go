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
	"log/slog"

	"github.com/jaycherian/gcp-go-video-insights/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/queue"
)

// EnqueueEnrichment publishes the follow-on enrich job for the transcript in
// CtxIn. A failed publish fails the chain so the transcription message is
// redelivered; the transcript itself is served from the cache on retry.
type EnqueueEnrichment struct {
	cor.BaseCommand
	publisher queue.Publisher
}

func NewEnqueueEnrichment(name string, publisher queue.Publisher) *EnqueueEnrichment {
	return &EnqueueEnrichment{BaseCommand: *cor.NewBaseCommand(name), publisher: publisher}
}

func (c *EnqueueEnrichment) Execute(context cor.Context) {
	transcript := context.Get(c.GetInputParam()).(*model.Transcript)
	obj := context.Get(cloud.GetGCSObjectName()).(*cloud.GCSObject)

	job := &model.EnrichJob{
		VideoID:    obj.VideoID,
		UserID:     obj.UserID,
		Bucket:     obj.Bucket,
		Object:     obj.Name,
		Transcript: transcript,
	}
	if err := c.publisher.Enqueue(context.GetContext(), queue.JobEnrich, job); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.InfoContext(context.GetContext(), "enrichment enqueued", "video_id", job.VideoID)
	context.Add(c.GetOutputParam(), job)
}
