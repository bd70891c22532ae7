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
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

// ErrInsightsNotFound is returned when a video has no enrichment row yet.
var ErrInsightsNotFound = errors.New("insights not found")

// InsightsService reads the per-video enrichment rows from BigQuery.
type InsightsService struct {
	BigqueryClient *bigquery.Client
	DatasetName    string
	InsightsTable  string
}

// GetFQN returns the table name in the dotted form standard SQL expects.
func (s *InsightsService) GetFQN() string {
	fqn := s.BigqueryClient.Dataset(s.DatasetName).Table(s.InsightsTable).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", -1)
}

func (s *InsightsService) Get(ctx context.Context, videoID string) (*model.VideoInsights, error) {
	q := s.BigqueryClient.Query(fmt.Sprintf(QryFindInsightsByVideoId, s.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "video_id", Value: videoID}}
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	insights := &model.VideoInsights{}
	err = itr.Next(insights)
	if errors.Is(err, iterator.Done) {
		return nil, ErrInsightsNotFound
	}
	return insights, err
}
