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

// Package fingerprint derives the stable cache keys used by the response cache.
//
// Logic Flow:
//  1. The input is reduced to a canonical byte form. Binary audio is content
//     hashed over its full bytes and combined with its language; strings and
//     byte slices are taken as-is; anything else is serialized to JSON, which
//     encoding/json emits in struct field order with sorted map keys.
//  2. The artifact kind, model id and canonical form are joined with a NUL
//     separator and hashed with SHA-256.
//  3. The lowercase hex digest is the fingerprint.
//
// No timestamps or random values ever enter the hash, so the same logical
// input and model produce the same fingerprint across process restarts.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

// Canonicalizer lets an input type control its own canonical form.
type Canonicalizer interface {
	Canonical() ([]byte, error)
}

// Key is a derived fingerprint together with the size of the canonical input,
// which the cache records as the entry's advisory input size.
type Key struct {
	Fingerprint string
	InputSize   int64
}

// Audio is the fingerprint input for speech-to-text: raw audio bytes plus
// the requested language, which is a secondary discriminator.
type Audio struct {
	Content  []byte
	Language string
}

// Canonical hashes the full audio content rather than a sample, so two files
// that differ anywhere never share a key.
func (a Audio) Canonical() ([]byte, error) {
	sum := sha256.Sum256(a.Content)
	return []byte(fmt.Sprintf("audio:%s|language:%s", hex.EncodeToString(sum[:]), a.Language)), nil
}

// Canonical reduces input to its deterministic byte form.
func Canonical(input any) ([]byte, error) {
	switch v := input.(type) {
	case nil:
		return nil, fmt.Errorf("fingerprint input is nil")
	case Canonicalizer:
		return v.Canonical()
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		out, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to canonicalize fingerprint input: %w", err)
		}
		return out, nil
	}
}

// Derive computes the fingerprint of (kind, modelID, input).
func Derive(kind model.ArtifactKind, modelID string, input any) (Key, error) {
	canonical, err := Canonical(input)
	if err != nil {
		return Key{}, err
	}
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(modelID))
	h.Write([]byte{0})
	h.Write(canonical)

	size := int64(len(canonical))
	if a, ok := input.(Audio); ok {
		size = int64(len(a.Content))
	}
	return Key{Fingerprint: hex.EncodeToString(h.Sum(nil)), InputSize: size}, nil
}

// Compute returns only the fingerprint string of (kind, modelID, input).
func Compute(kind model.ArtifactKind, modelID string, input any) (string, error) {
	key, err := Derive(kind, modelID, input)
	if err != nil {
		return "", err
	}
	return key.Fingerprint, nil
}
