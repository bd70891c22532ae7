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
	"strconv"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

// Embedder turns texts into vectors. CachedAIService implements it, so
// repeated searches for the same phrase never reach the provider twice.
type Embedder interface {
	Embed(ctx context.Context, texts []string, attr model.Attribution) ([][]float32, error)
}

// SearchService performs semantic search over transcript segments.
type SearchService struct {
	BigqueryClient *bigquery.Client
	Embedder       Embedder
	DatasetName    string
	EmbeddingTable string
}

// VectorLiteral renders a vector in the form VECTOR_SEARCH expects inside
// an array literal.
func VectorLiteral(vector []float32) string {
	values := make([]string, len(vector))
	for i, f := range vector {
		values[i] = strconv.FormatFloat(float64(f), 'f', -1, 64)
	}
	return strings.Join(values, ",")
}

// FindSegments embeds the query and returns the closest transcript segments,
// nearest first. The embedding is attributed to userID in the usage ledger.
func (s *SearchService) FindSegments(ctx context.Context, query string, maxResults int, userID string) ([]*model.SegmentMatchResult, error) {
	out := make([]*model.SegmentMatchResult, 0)
	if strings.TrimSpace(query) == "" {
		return out, errors.New("search query is empty")
	}

	vectors, err := s.Embedder.Embed(ctx, []string{query}, model.Attribution{UserID: userID})
	if err != nil {
		return out, err
	}
	if len(vectors) != 1 {
		return out, fmt.Errorf("expected one query vector, got %d", len(vectors))
	}

	fqEmbeddingTable := strings.Replace(s.BigqueryClient.Dataset(s.DatasetName).Table(s.EmbeddingTable).FullyQualifiedName(), ":", ".", -1)
	queryText := fmt.Sprintf(QrySegmentKnn, fqEmbeddingTable, VectorLiteral(vectors[0]), maxResults)

	itr, err := s.BigqueryClient.Query(queryText).Read(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to read from BigQuery: %w", err)
	}
	for {
		r := &model.SegmentMatchResult{}
		err := itr.Next(r)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to iterate results: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}
