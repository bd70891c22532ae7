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


// Package workflow assembles the commands into the pipelines the job
// listeners run. Each workflow is itself a cor.Command wrapping a chain.
package workflow

import (
	"github.com/jaycherian/gcp-go-video-insights/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/services"
	"github.com/jaycherian/gcp-go-video-insights/internal/queue"
)

// TranscriptionWorkflow turns an upload notification into a cached
// transcript and enqueues the enrichment of the video.
type TranscriptionWorkflow struct {
	cor.BaseCommand
	reader          commands.MediaReader
	ai              *services.CachedAIService
	publisher       queue.Publisher
	defaultLanguage string
	maxMediaBytes   int64
	chain           cor.Chain
}

func (t *TranscriptionWorkflow) Execute(context cor.Context) {
	t.chain.Execute(context)
}

func (t *TranscriptionWorkflow) initializeChain() {
	out := cor.NewBaseChain(t.GetName())

	// Step 1: notification JSON -> GCSObject with video and user attribution.
	out.AddCommand(commands.NewMediaTriggerToGCSObject("media-trigger-to-gcs-object"))

	// Step 2: read the uploaded media; audio is sent inline to the model.
	out.AddCommand(commands.NewGCSToBytes("gcs-to-bytes", t.reader, t.maxMediaBytes))

	// Step 3: cached transcription. Replays of the notification hit the cache.
	out.AddCommand(commands.NewTranscribeAudio("transcribe-audio", t.ai, t.defaultLanguage))

	// Step 4: hand the transcript to the enrichment workers.
	out.AddCommand(commands.NewEnqueueEnrichment("enqueue-enrichment", t.publisher))

	t.chain = out
}

// NewTranscriptionWorkflow builds the workflow. maxMediaBytes <= 0 selects
// commands.DefaultMaxMediaBytes.
func NewTranscriptionWorkflow(
	reader commands.MediaReader,
	ai *services.CachedAIService,
	publisher queue.Publisher,
	defaultLanguage string,
	maxMediaBytes int64) *TranscriptionWorkflow {

	pipeline := &TranscriptionWorkflow{
		BaseCommand:     *cor.NewBaseCommand("transcription-pipeline"),
		reader:          reader,
		ai:              ai,
		publisher:       publisher,
		defaultLanguage: defaultLanguage,
		maxMediaBytes:   maxMediaBytes,
	}
	pipeline.initializeChain()
	return pipeline
}
