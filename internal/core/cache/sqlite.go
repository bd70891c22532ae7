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

package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ai_cache_entries (
    fingerprint  TEXT PRIMARY KEY,
    kind         TEXT NOT NULL,
    model_id     TEXT NOT NULL,
    payload      BLOB NOT NULL,
    input_size   INTEGER NOT NULL DEFAULT 0,
    output_size  INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL,
    expires_at   INTEGER,
    hit_count    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_ai_cache_entries_kind ON ai_cache_entries(kind);
CREATE INDEX IF NOT EXISTS idx_ai_cache_entries_expires ON ai_cache_entries(expires_at) WHERE expires_at IS NOT NULL;
`

// SQLiteRepository stores cache entries in a local SQLite table. Times are
// stored as unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository runs the schema migration on db.
func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("run cache migrations: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Find(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT fingerprint, kind, model_id, payload, input_size, output_size,
		       created_at, updated_at, expires_at, hit_count
		FROM ai_cache_entries
		WHERE fingerprint = ?`, fingerprint)

	var e model.CacheEntry
	var kind string
	var payload []byte
	var createdAt, updatedAt int64
	var expiresAt sql.NullInt64
	err := row.Scan(&e.Fingerprint, &kind, &e.ModelID, &payload, &e.InputSize, &e.OutputSize,
		&createdAt, &updatedAt, &expiresAt, &e.HitCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find cache entry: %w", err)
	}

	e.Kind = model.ArtifactKind(kind)
	e.Payload = payload
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	e.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if expiresAt.Valid {
		t := time.UnixMilli(expiresAt.Int64).UTC()
		e.ExpiresAt = &t
	}
	return &e, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, e *model.CacheEntry) error {
	var expiresAt sql.NullInt64
	if e.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: e.ExpiresAt.UnixMilli(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ai_cache_entries (
			fingerprint, kind, model_id, payload, input_size, output_size,
			created_at, updated_at, expires_at, hit_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(fingerprint) DO UPDATE SET
			kind        = excluded.kind,
			model_id    = excluded.model_id,
			payload     = excluded.payload,
			input_size  = excluded.input_size,
			output_size = excluded.output_size,
			updated_at  = excluded.updated_at,
			expires_at  = excluded.expires_at`,
		e.Fingerprint, string(e.Kind), e.ModelID, []byte(e.Payload), e.InputSize, e.OutputSize,
		e.CreatedAt.UnixMilli(), e.UpdatedAt.UnixMilli(), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) IncrementHits(ctx context.Context, fingerprint string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE ai_cache_entries SET hit_count = hit_count + 1, updated_at = ? WHERE fingerprint = ?`,
		at.UnixMilli(), fingerprint)
	if err != nil {
		return fmt.Errorf("increment cache hits: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, fingerprint string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ai_cache_entries WHERE fingerprint = ?`, fingerprint); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(ctx, `expires_at IS NOT NULL AND expires_at < ?`, now.UnixMilli())
}

func (r *SQLiteRepository) DeleteByKind(ctx context.Context, kind model.ArtifactKind) (int64, error) {
	return r.deleteWhere(ctx, `kind = ?`, string(kind))
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) (int64, error) {
	return r.deleteWhere(ctx, `1 = 1`)
}

func (r *SQLiteRepository) deleteWhere(ctx context.Context, where string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ai_cache_entries WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete cache entries: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Stats(ctx context.Context) ([]model.KindFootprint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, COUNT(*), COALESCE(SUM(hit_count), 0), COALESCE(SUM(input_size + output_size), 0)
		FROM ai_cache_entries
		GROUP BY kind
		ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("query cache stats: %w", err)
	}
	defer rows.Close()

	var out []model.KindFootprint
	for rows.Next() {
		var f model.KindFootprint
		var kind string
		if err := rows.Scan(&kind, &f.Entries, &f.Hits, &f.ApproxBytes); err != nil {
			return nil, fmt.Errorf("scan cache stats: %w", err)
		}
		f.Kind = model.ArtifactKind(kind)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close is a no-op; the *sql.DB is shared and closed by its owner.
func (r *SQLiteRepository) Close() error {
	return nil
}
