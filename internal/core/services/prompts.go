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

package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

// Default prompt templates. Each receives TRANSCRIPT, SEGMENTS (one timed
// line per segment) and EXAMPLE_JSON.
const (
	DefaultHighlightsPrompt = `You are reviewing the transcript of a personal video.
Pick the moments a viewer would most want to jump to. Use the timed segments to set start and end in seconds.
Score each highlight between 0 and 1.

Timed segments:
{{ .SEGMENTS }}

Respond with a JSON list in this format: {{ .EXAMPLE_JSON }}`

	DefaultSummaryPrompt = `Summarize the following video transcript in a short paragraph and list its key points.

Transcript:
{{ .TRANSCRIPT }}

Respond with a JSON object in this format: {{ .EXAMPLE_JSON }}`

	DefaultTopicsPrompt = `List the main topics covered by the following video transcript with a relevance between 0 and 1.

Transcript:
{{ .TRANSCRIPT }}

Respond with a JSON list in this format: {{ .EXAMPLE_JSON }}`
)

// ParsePrompt parses a prompt template, falling back to def when source is empty.
func ParsePrompt(name string, source string, def string) (*template.Template, error) {
	if strings.TrimSpace(source) == "" {
		source = def
	}
	tmpl, err := template.New(name).Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s prompt: %w", name, err)
	}
	return tmpl, nil
}

func renderPrompt(tmpl *template.Template, transcript *model.Transcript, example any) (string, error) {
	exampleJSON, _ := json.Marshal(example)

	var segments strings.Builder
	for _, s := range transcript.Segments {
		fmt.Fprintf(&segments, "[%.1f-%.1f] %s\n", s.Start, s.End, s.Text)
	}
	if segments.Len() == 0 {
		fmt.Fprintf(&segments, "[0.0-%.1f] %s\n", transcript.DurationSeconds, transcript.Text)
	}

	var buffer bytes.Buffer
	err := tmpl.Execute(&buffer, map[string]interface{}{
		"TRANSCRIPT":   transcript.Text,
		"SEGMENTS":     segments.String(),
		"EXAMPLE_JSON": string(exampleJSON),
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buffer.String(), nil
}
