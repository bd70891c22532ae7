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

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/h2non/filetype"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/provider"
)

// DefaultTranscriptionPrompt is used when no transcription template is
// configured. It receives LANGUAGE and EXAMPLE_JSON.
const DefaultTranscriptionPrompt = `Transcribe the attached audio verbatim.
{{ if .LANGUAGE }}The spoken language is "{{ .LANGUAGE }}".{{ else }}Detect the spoken language and report it as an ISO 639-1 code.{{ end }}
Split the transcript into segments of one or two sentences with start and end times in seconds,
and report the total duration of the audio in seconds.
Respond with a single JSON object in this format: {{ .EXAMPLE_JSON }}`

const fallbackAudioMIMEType = "audio/mpeg"

// GeminiProvider implements provider.Provider on top of the GenAI SDK.
// Transcription sends the audio inline with a JSON response schema prompt,
// completions map CompletionRequest onto a GenerateContentConfig, and
// embeddings use EmbedContent with an optional output dimensionality.
type GeminiProvider struct {
	generate              *QuotaAwareGenerativeAIModel
	embed                 *QuotaAwareGenerativeAIModel
	transcriptionModel    string
	transcriptionTemplate *template.Template
}

// NewGeminiProvider builds a provider. An empty prompt selects
// DefaultTranscriptionPrompt.
func NewGeminiProvider(generate *QuotaAwareGenerativeAIModel, embed *QuotaAwareGenerativeAIModel, transcriptionModel string, transcriptionPrompt string) (*GeminiProvider, error) {
	if transcriptionPrompt == "" {
		transcriptionPrompt = DefaultTranscriptionPrompt
	}
	tmpl, err := template.New("transcription").Parse(transcriptionPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transcription prompt: %w", err)
	}
	if embed == nil {
		embed = generate
	}
	return &GeminiProvider{
		generate:              generate,
		embed:                 embed,
		transcriptionModel:    transcriptionModel,
		transcriptionTemplate: tmpl,
	}, nil
}

// TranscriptionModel is the model id transcriptions are billed and cached under.
func (p *GeminiProvider) TranscriptionModel() string {
	return p.transcriptionModel
}

func (p *GeminiProvider) Transcribe(ctx context.Context, audio []byte, language string) (*model.Transcript, error) {
	if len(audio) == 0 {
		return nil, errors.New("audio is empty")
	}

	example, _ := json.Marshal(model.GetExampleTranscript())
	var buffer bytes.Buffer
	err := p.transcriptionTemplate.Execute(&buffer, map[string]interface{}{
		"LANGUAGE":     language,
		"EXAMPLE_JSON": string(example),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute transcription prompt: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(buffer.String()),
			genai.NewPartFromBytes(audio, AudioMIMEType(audio)),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		SafetySettings:   DefaultSafetySettings,
		ResponseMIMEType: "application/json",
	}

	resp, err := p.generate.GenerateContent(ctx, p.transcriptionModel, contents, config)
	if err != nil {
		return nil, err
	}

	out := &model.Transcript{}
	if err := json.Unmarshal([]byte(ResponseText(resp)), out); err != nil {
		return nil, fmt.Errorf("%w: transcript is not valid JSON: %v", provider.ErrInvalidResponse, err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, fmt.Errorf("%w: empty transcript", provider.ErrInvalidResponse)
	}
	if out.Language == "" {
		out.Language = language
	}
	if out.DurationSeconds <= 0 && len(out.Segments) > 0 {
		out.DurationSeconds = out.Segments[len(out.Segments)-1].End
	}
	return out, nil
}

func (p *GeminiProvider) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.Completion, error) {
	config := &genai.GenerateContentConfig{SafetySettings: DefaultSafetySettings}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr[float32](req.Temperature)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = req.MaxTokens
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	resp, err := p.generate.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, err
	}

	text := ResponseText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty completion", provider.ErrInvalidResponse)
	}
	out := &provider.Completion{Text: text}
	if resp.UsageMetadata != nil {
		out.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func (p *GeminiProvider) Embed(ctx context.Context, texts []string, modelID string, dimensions int) (*provider.Embeddings, error) {
	if len(texts) == 0 {
		return &provider.Embeddings{Vectors: make([][]float32, 0)}, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	config := &genai.EmbedContentConfig{}
	if dimensions > 0 {
		config.OutputDimensionality = genai.Ptr[int32](int32(dimensions))
	}

	resp, err := p.embed.EmbedContent(ctx, modelID, contents, config)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: %d vectors for %d inputs", provider.ErrInvalidResponse, len(resp.Embeddings), len(texts))
	}

	out := &provider.Embeddings{Vectors: make([][]float32, len(resp.Embeddings))}
	var counted float64
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("%w: empty vector at index %d", provider.ErrInvalidResponse, i)
		}
		out.Vectors[i] = e.Values
		if e.Statistics != nil {
			counted += float64(e.Statistics.TokenCount)
		}
	}

	// The Gemini API backend reports no statistics; estimate four
	// characters per token like the rest of the accounting does.
	switch {
	case counted > 0:
		out.InputTokens = int64(counted)
	case resp.Metadata != nil && resp.Metadata.BillableCharacterCount > 0:
		out.InputTokens = int64(resp.Metadata.BillableCharacterCount) / 4
	default:
		var chars int
		for _, text := range texts {
			chars += len(text)
		}
		out.InputTokens = int64(chars / 4)
	}
	return out, nil
}

// AudioMIMEType sniffs the container format of an upload. Video containers
// are accepted as well since the model extracts their audio track.
func AudioMIMEType(content []byte) string {
	kind, err := filetype.Match(content)
	if err != nil || kind == filetype.Unknown {
		return fallbackAudioMIMEType
	}
	if filetype.IsAudio(content) || filetype.IsVideo(content) {
		return kind.MIME.Value
	}
	return fallbackAudioMIMEType
}
