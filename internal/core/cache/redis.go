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
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

// RedisRepository stores cache entries in Redis so several workers share one
// cache. Layout, relative to the key prefix:
//
//	entry:<fingerprint>  hash with the entry fields
//	entries              set of all fingerprints
//	kind:<kind>          set of fingerprints per artifact kind
//	expiry               sorted set of fingerprints scored by expires_at (ms)
//
// Entries carry no native Redis TTL; expiry follows the same lazy and
// sweep-based rules as every other backend.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "aicache:v1:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) entryKey(fingerprint string) string {
	return r.prefix + "entry:" + fingerprint
}

func (r *RedisRepository) kindKey(kind model.ArtifactKind) string {
	return r.prefix + "kind:" + string(kind)
}

func (r *RedisRepository) entriesKey() string { return r.prefix + "entries" }
func (r *RedisRepository) expiryKey() string  { return r.prefix + "expiry" }

func (r *RedisRepository) Find(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	fields, err := r.client.HGetAll(ctx, r.entryKey(fingerprint)).Result()
	if err != nil {
		return nil, fmt.Errorf("find cache entry: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	e := &model.CacheEntry{
		Fingerprint: fingerprint,
		Kind:        model.ArtifactKind(fields["kind"]),
		ModelID:     fields["model_id"],
		Payload:     []byte(fields["payload"]),
		InputSize:   parseInt(fields["input_size"]),
		OutputSize:  parseInt(fields["output_size"]),
		CreatedAt:   time.UnixMilli(parseInt(fields["created_at"])).UTC(),
		UpdatedAt:   time.UnixMilli(parseInt(fields["updated_at"])).UTC(),
		HitCount:    parseInt(fields["hit_count"]),
	}
	if ms := parseInt(fields["expires_at"]); ms > 0 {
		t := time.UnixMilli(ms).UTC()
		e.ExpiresAt = &t
	}
	return e, nil
}

// Upsert writes the entry inside MULTI/EXEC. HSETNX keeps created_at and
// hit_count of an existing entry.
func (r *RedisRepository) Upsert(ctx context.Context, e *model.CacheEntry) error {
	key := r.entryKey(e.Fingerprint)
	var expiresAt int64
	if e.ExpiresAt != nil {
		expiresAt = e.ExpiresAt.UnixMilli()
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "created_at", e.CreatedAt.UnixMilli())
		pipe.HSetNX(ctx, key, "hit_count", 0)
		pipe.HSet(ctx, key,
			"kind", string(e.Kind),
			"model_id", e.ModelID,
			"payload", []byte(e.Payload),
			"input_size", e.InputSize,
			"output_size", e.OutputSize,
			"updated_at", e.UpdatedAt.UnixMilli(),
			"expires_at", expiresAt,
		)
		pipe.SAdd(ctx, r.entriesKey(), e.Fingerprint)
		pipe.SAdd(ctx, r.kindKey(e.Kind), e.Fingerprint)
		if expiresAt > 0 {
			pipe.ZAdd(ctx, r.expiryKey(), redis.Z{Score: float64(expiresAt), Member: e.Fingerprint})
		} else {
			pipe.ZRem(ctx, r.expiryKey(), e.Fingerprint)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

func (r *RedisRepository) IncrementHits(ctx context.Context, fingerprint string, at time.Time) error {
	key := r.entryKey(fingerprint)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("increment cache hits: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, "hit_count", 1)
		pipe.HSet(ctx, key, "updated_at", at.UnixMilli())
		return nil
	})
	if err != nil {
		return fmt.Errorf("increment cache hits: %w", err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, fingerprint string) error {
	_, err := r.deleteMany(ctx, []string{fingerprint})
	return err
}

func (r *RedisRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	// Scores are inclusive, so stop one millisecond short of now.
	fps, err := r.client.ZRangeByScore(ctx, r.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli()-1, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list expired cache entries: %w", err)
	}
	return r.deleteMany(ctx, fps)
}

func (r *RedisRepository) DeleteByKind(ctx context.Context, kind model.ArtifactKind) (int64, error) {
	fps, err := r.client.SMembers(ctx, r.kindKey(kind)).Result()
	if err != nil {
		return 0, fmt.Errorf("list cache entries for kind %s: %w", kind, err)
	}
	return r.deleteMany(ctx, fps)
}

func (r *RedisRepository) DeleteAll(ctx context.Context) (int64, error) {
	fps, err := r.client.SMembers(ctx, r.entriesKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("list cache entries: %w", err)
	}
	return r.deleteMany(ctx, fps)
}

// deleteMany removes entries and their index memberships, returning how many
// entry hashes actually existed.
func (r *RedisRepository) deleteMany(ctx context.Context, fingerprints []string) (int64, error) {
	if len(fingerprints) == 0 {
		return 0, nil
	}

	kinds := make([]*redis.StringCmd, len(fingerprints))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, fp := range fingerprints {
			kinds[i] = pipe.HGet(ctx, r.entryKey(fp), "kind")
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("read cache entry kinds: %w", err)
	}

	dels := make([]*redis.IntCmd, len(fingerprints))
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, fp := range fingerprints {
			dels[i] = pipe.Del(ctx, r.entryKey(fp))
			pipe.SRem(ctx, r.entriesKey(), fp)
			pipe.ZRem(ctx, r.expiryKey(), fp)
			if kind, err := kinds[i].Result(); err == nil {
				pipe.SRem(ctx, r.kindKey(model.ArtifactKind(kind)), fp)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete cache entries: %w", err)
	}

	var count int64
	for _, d := range dels {
		count += d.Val()
	}
	return count, nil
}

func (r *RedisRepository) Stats(ctx context.Context) ([]model.KindFootprint, error) {
	fps, err := r.client.SMembers(ctx, r.entriesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	if len(fps) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.SliceCmd, len(fps))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, fp := range fps {
			cmds[i] = pipe.HMGet(ctx, r.entryKey(fp), "kind", "hit_count", "input_size", "output_size")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query cache stats: %w", err)
	}

	byKind := make(map[model.ArtifactKind]*model.KindFootprint)
	for _, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) != 4 || vals[0] == nil {
			continue
		}
		kind := model.ArtifactKind(fmt.Sprint(vals[0]))
		f, ok := byKind[kind]
		if !ok {
			f = &model.KindFootprint{Kind: kind}
			byKind[kind] = f
		}
		f.Entries++
		f.Hits += parseInt(vals[1])
		f.ApproxBytes += parseInt(vals[2]) + parseInt(vals[3])
	}

	out := make([]model.KindFootprint, 0, len(byKind))
	for _, f := range byKind {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

// Close is a no-op; the client is shared and closed by its owner.
func (r *RedisRepository) Close() error {
	return nil
}

func parseInt(v any) int64 {
	var s string
	switch t := v.(type) {
	case nil:
		return 0
	case string:
		s = t
	default:
		s = fmt.Sprint(t)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
