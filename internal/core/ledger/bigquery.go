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

package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

// BigQueryRepository streams usage records into a BigQuery table so cost
// reports can be joined with the rest of the analytics dataset.
type BigQueryRepository struct {
	client  *bigquery.Client
	dataset string
	table   string
}

func NewBigQueryRepository(client *bigquery.Client, dataset string, table string) *BigQueryRepository {
	return &BigQueryRepository{client: client, dataset: dataset, table: table}
}

// EnsureTable creates the usage table, partitioned by day on timestamp, when
// it does not exist yet.
func (r *BigQueryRepository) EnsureTable(ctx context.Context) error {
	schema, err := bigquery.InferSchema(model.UsageRecord{})
	if err != nil {
		return fmt.Errorf("infer usage schema: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema:           schema,
		TimePartitioning: &bigquery.TimePartitioning{Field: "timestamp"},
	}
	err = r.client.Dataset(r.dataset).Table(r.table).Create(ctx, meta)
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return nil
	}
	return err
}

func (r *BigQueryRepository) Insert(ctx context.Context, rec *model.UsageRecord) error {
	inserter := r.client.Dataset(r.dataset).Table(r.table).Inserter()
	if err := inserter.Put(ctx, rec); err != nil {
		return fmt.Errorf("bigquery insert failed for usage record %s: %w", rec.ID, err)
	}
	return nil
}

func (r *BigQueryRepository) fullyQualifiedTable() string {
	return strings.Replace(r.client.Dataset(r.dataset).Table(r.table).FullyQualifiedName(), ":", ".", -1)
}

func (r *BigQueryRepository) Query(ctx context.Context, f model.UsageFilter) ([]*model.UsageRecord, error) {
	var where []string
	var params []bigquery.QueryParameter
	if !f.From.IsZero() {
		where = append(where, "timestamp >= @from")
		params = append(params, bigquery.QueryParameter{Name: "from", Value: f.From})
	}
	if !f.To.IsZero() {
		where = append(where, "timestamp < @to")
		params = append(params, bigquery.QueryParameter{Name: "to", Value: f.To})
	}
	if f.UserID != "" {
		where = append(where, "user_id = @user_id")
		params = append(params, bigquery.QueryParameter{Name: "user_id", Value: f.UserID})
	}

	sql := fmt.Sprintf(QryUsageRecords, r.fullyQualifiedTable())
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY timestamp ASC"

	q := r.client.Query(sql)
	q.Parameters = params
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read usage records from BigQuery: %w", err)
	}

	var out []*model.UsageRecord
	for {
		var rec model.UsageRecord
		err := it.Next(&rec)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate usage records: %w", err)
		}
		out = append(out, &rec)
	}
	return out, nil
}

func (r *BigQueryRepository) Close() error {
	return nil
}

const QryUsageRecords = "SELECT id, kind, model_id, input_tokens, output_tokens, input_minutes, estimated_cost, cached, timestamp, video_id, user_id FROM `%s`"
