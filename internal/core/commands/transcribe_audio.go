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
	"github.com/jaycherian/gcp-go-video-insights/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/services"
)

// TranscribeAudio runs the cached transcription of the media bytes in CtxIn.
// Usage is attributed to the video and user of the GCSObject in the context.
type TranscribeAudio struct {
	cor.BaseCommand
	ai              *services.CachedAIService
	defaultLanguage string
}

func NewTranscribeAudio(name string, ai *services.CachedAIService, defaultLanguage string) *TranscribeAudio {
	return &TranscribeAudio{BaseCommand: *cor.NewBaseCommand(name), ai: ai, defaultLanguage: defaultLanguage}
}

func (c *TranscribeAudio) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(cloud.GetGCSObjectName()) != nil
}

func (c *TranscribeAudio) Execute(context cor.Context) {
	audio := context.Get(c.GetInputParam()).([]byte)
	obj := context.Get(cloud.GetGCSObjectName()).(*cloud.GCSObject)

	language := obj.Language
	if language == "" {
		language = c.defaultLanguage
	}

	transcript, err := c.ai.Transcribe(context.GetContext(), audio, language, model.Attribution{VideoID: obj.VideoID, UserID: obj.UserID})
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), transcript)
}
