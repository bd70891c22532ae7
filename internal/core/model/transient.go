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

// This file, `transient.go`, contains the shapes of AI results as they move
// through the workflows. They are serialized into cache payloads and job
// messages, but they are not rows of their own.
package model

import "strings"

// TranscriptSegment is a timed slice of a transcript. Times are in seconds
// from the start of the audio.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the validated output of speech-to-text.
type Transcript struct {
	Text            string              `json:"text"`
	Language        string              `json:"language,omitempty"`
	DurationSeconds float64             `json:"duration_seconds"`
	Segments        []TranscriptSegment `json:"segments,omitempty"`
}

// Minutes is the billable audio length.
func (t *Transcript) Minutes() float64 {
	return t.DurationSeconds / 60
}

// SegmentTexts returns the text of every non-blank segment, falling back to
// the full text when the provider returned no segmentation.
func (t *Transcript) SegmentTexts() []string {
	out := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		if strings.TrimSpace(s.Text) != "" {
			out = append(out, s.Text)
		}
	}
	if len(out) == 0 && strings.TrimSpace(t.Text) != "" {
		out = append(out, t.Text)
	}
	return out
}

// Highlight is a notable moment of a video picked by the completion model.
type Highlight struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score,omitempty"`
}

// Summary is the prose summary of a transcript plus its key points.
type Summary struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points,omitempty"`
}

// Topic is a subject the transcript covers, with a 0..1 relevance.
type Topic struct {
	Name      string  `json:"name"`
	Relevance float64 `json:"relevance,omitempty"`
}

// EnrichJob is the payload of the follow-on job enqueued once a video's
// transcription is available.
type EnrichJob struct {
	VideoID    string      `json:"video_id"`
	UserID     string      `json:"user_id,omitempty"`
	Bucket     string      `json:"bucket,omitempty"`
	Object     string      `json:"object,omitempty"`
	Transcript *Transcript `json:"transcript"`
}

// Attribution returns the ledger attribution of the job.
func (j *EnrichJob) Attribution() Attribution {
	return Attribution{VideoID: j.VideoID, UserID: j.UserID}
}

// SegmentMatchResult is a row returned by the BigQuery VECTOR_SEARCH over
// transcript segment embeddings.
type SegmentMatchResult struct {
	VideoID      string  `json:"video_id" bigquery:"video_id"`
	SegmentIndex int     `json:"segment_index" bigquery:"segment_index"`
	Text         string  `json:"text" bigquery:"text"`
	Distance     float64 `json:"distance" bigquery:"distance"`
}
