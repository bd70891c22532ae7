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
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ai_usage_records (
    id              TEXT PRIMARY KEY,
    kind            TEXT NOT NULL,
    model_id        TEXT NOT NULL,
    input_tokens    INTEGER NOT NULL DEFAULT 0,
    output_tokens   INTEGER NOT NULL DEFAULT 0,
    input_minutes   REAL NOT NULL DEFAULT 0,
    estimated_cost  REAL NOT NULL DEFAULT 0,
    cached          INTEGER NOT NULL DEFAULT 0,
    timestamp       INTEGER NOT NULL,
    video_id        TEXT NOT NULL DEFAULT '',
    user_id         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_ai_usage_records_timestamp ON ai_usage_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_ai_usage_records_user ON ai_usage_records(user_id, timestamp);
`

// SQLiteRepository stores usage records in a local SQLite table. Timestamps
// are unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("run ledger migrations: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, rec *model.UsageRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ai_usage_records (
			id, kind, model_id, input_tokens, output_tokens, input_minutes,
			estimated_cost, cached, timestamp, video_id, user_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.ModelID, rec.InputTokens, rec.OutputTokens, rec.InputMinutes,
		rec.EstimatedCost, rec.Cached, rec.Timestamp.UnixMilli(), rec.VideoID, rec.UserID,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Query(ctx context.Context, f model.UsageFilter) ([]*model.UsageRecord, error) {
	var where []string
	var args []any
	if !f.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, f.From.UnixMilli())
	}
	if !f.To.IsZero() {
		where = append(where, "timestamp < ?")
		args = append(args, f.To.UnixMilli())
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}

	query := `
		SELECT id, kind, model_id, input_tokens, output_tokens, input_minutes,
		       estimated_cost, cached, timestamp, video_id, user_id
		FROM ai_usage_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp ASC, rowid ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage records: %w", err)
	}
	defer rows.Close()

	var out []*model.UsageRecord
	for rows.Next() {
		var rec model.UsageRecord
		var kind string
		var ts int64
		if err := rows.Scan(&rec.ID, &kind, &rec.ModelID, &rec.InputTokens, &rec.OutputTokens, &rec.InputMinutes,
			&rec.EstimatedCost, &rec.Cached, &ts, &rec.VideoID, &rec.UserID); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		rec.Kind = model.UsageKind(kind)
		rec.Timestamp = time.UnixMilli(ts).UTC()
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Close is a no-op; the *sql.DB is shared and closed by its owner.
func (r *SQLiteRepository) Close() error {
	return nil
}
