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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/clock"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/fingerprint"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

// SetOptions carries the optional arguments of a cache write. A TTL of zero
// means the entry never expires.
type SetOptions struct {
	TTL        time.Duration
	InputSize  int64
	OutputSize int64
}

// Store applies cache semantics on top of a Repository and reports every
// persistence error to the caller. Operator tooling uses it directly; the
// request path goes through BestEffort.
type Store struct {
	repo  Repository
	clock clock.Clock
}

// NewStore creates a Store. A nil clock falls back to the system clock.
func NewStore(repo Repository, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.SystemUTC{}
	}
	return &Store{repo: repo, clock: clk}
}

// Lookup returns the live entry for a fingerprint. An expired entry is
// deleted and reported as absent. A live entry has its hit counter
// incremented; the returned copy reflects the increment.
func (s *Store) Lookup(ctx context.Context, fp string) (*model.CacheEntry, bool, error) {
	entry, err := s.repo.Find(ctx, fp)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	now := s.clock.NowUTC()
	if entry.Expired(now) {
		if err := s.repo.Delete(ctx, fp); err != nil {
			return nil, false, fmt.Errorf("delete expired entry: %w", err)
		}
		return nil, false, nil
	}

	if err := s.repo.IncrementHits(ctx, fp, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Removed concurrently between Find and the increment.
			return nil, false, nil
		}
		return nil, false, err
	}
	entry.HitCount++
	entry.UpdatedAt = now
	return entry, true, nil
}

// Get re-derives the fingerprint of (kind, input, modelID) and returns the
// cached payload when a live entry exists.
func (s *Store) Get(ctx context.Context, kind model.ArtifactKind, input any, modelID string) (json.RawMessage, bool, error) {
	fp, err := fingerprint.Compute(kind, modelID, input)
	if err != nil {
		return nil, false, err
	}
	entry, ok, err := s.Lookup(ctx, fp)
	if err != nil || !ok {
		return nil, false, err
	}
	return entry.Payload, true, nil
}

// Put upserts the payload under an already derived fingerprint.
func (s *Store) Put(ctx context.Context, fp string, kind model.ArtifactKind, modelID string, payload json.RawMessage, opts SetOptions) error {
	now := s.clock.NowUTC()
	entry := &model.CacheEntry{
		Fingerprint: fp,
		Kind:        kind,
		ModelID:     modelID,
		Payload:     payload,
		InputSize:   opts.InputSize,
		OutputSize:  opts.OutputSize,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if entry.OutputSize == 0 {
		entry.OutputSize = int64(len(payload))
	}
	if opts.TTL > 0 {
		expires := now.Add(opts.TTL)
		entry.ExpiresAt = &expires
	}
	return s.repo.Upsert(ctx, entry)
}

// Set derives the fingerprint of (kind, input, modelID) and upserts payload.
func (s *Store) Set(ctx context.Context, kind model.ArtifactKind, input any, modelID string, payload json.RawMessage, opts SetOptions) error {
	key, err := fingerprint.Derive(kind, modelID, input)
	if err != nil {
		return err
	}
	if opts.InputSize == 0 {
		opts.InputSize = key.InputSize
	}
	return s.Put(ctx, key.Fingerprint, kind, modelID, payload, opts)
}

// ClearExpired removes every entry whose deadline has passed.
func (s *Store) ClearExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock.NowUTC())
}

func (s *Store) ClearByKind(ctx context.Context, kind model.ArtifactKind) (int64, error) {
	return s.repo.DeleteByKind(ctx, kind)
}

func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	return s.repo.DeleteAll(ctx)
}

// StorageFootprint sums the advisory sizes of all entries.
func (s *Store) StorageFootprint(ctx context.Context) (*model.Footprint, error) {
	byKind, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := &model.Footprint{ByKind: byKind}
	if out.ByKind == nil {
		out.ByKind = make([]model.KindFootprint, 0)
	}
	for _, k := range byKind {
		out.Entries += k.Entries
		out.ApproxBytes += k.ApproxBytes
	}
	return out, nil
}
