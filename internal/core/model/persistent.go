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

// This file, `persistent.go`, holds the rows written to the BigQuery dataset
// by the enrichment workflow.
package model

import (
	"time"

	"github.com/google/uuid"
)

// NewVideoID derives a stable id for an uploaded object. The same bucket and
// object name always yield the same id, so replays of a storage notification
// attribute usage to the same video.
func NewVideoID(bucket string, object string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(bucket+"/"+object)).String()
}

// VideoInsights is the enrichment output stored per video.
type VideoInsights struct {
	VideoID    string       `json:"video_id" bigquery:"video_id"`
	UserID     string       `json:"user_id,omitempty" bigquery:"user_id"`
	Language   string       `json:"language,omitempty" bigquery:"language"`
	Duration   float64      `json:"duration_seconds" bigquery:"duration_seconds"`
	Summary    string       `json:"summary" bigquery:"summary"`
	KeyPoints  []string     `json:"key_points" bigquery:"key_points"`
	Highlights []*Highlight `json:"highlights" bigquery:"highlights"`
	Topics     []*Topic     `json:"topics" bigquery:"topics"`
	CreateDate time.Time    `json:"create_date" bigquery:"create_date"`
}

// NewVideoInsights initializes an empty insights row for a video.
func NewVideoInsights(videoID string, userID string) *VideoInsights {
	return &VideoInsights{
		VideoID:    videoID,
		UserID:     userID,
		KeyPoints:  make([]string, 0),
		Highlights: make([]*Highlight, 0),
		Topics:     make([]*Topic, 0),
		CreateDate: time.Now(),
	}
}

// SegmentEmbedding is the vector of one transcript segment.
type SegmentEmbedding struct {
	VideoID      string    `json:"video_id" bigquery:"video_id"`
	SegmentIndex int       `json:"segment_index" bigquery:"segment_index"`
	Text         string    `json:"text" bigquery:"text"`
	ModelName    string    `json:"model_name" bigquery:"model_name"`
	Embeddings   []float64 `json:"embeddings" bigquery:"embeddings"`
}

func NewSegmentEmbedding(videoID string, segmentIndex int, text string, modelName string) *SegmentEmbedding {
	return &SegmentEmbedding{
		VideoID:      videoID,
		SegmentIndex: segmentIndex,
		Text:         text,
		ModelName:    modelName,
		Embeddings:   make([]float64, 0),
	}
}
