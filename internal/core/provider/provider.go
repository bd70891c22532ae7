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

// Package provider declares the contract of the third-party AI API consumed by
// the cached invocation layer. Implementations live in the cloud package; the
// orchestrator never retries, so implementations decide their own quota and
// backoff behaviour.
package provider

import (
	"context"
	"errors"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

// ErrInvalidResponse marks a provider answer that could not be used, for
// example an empty transcript or a vector count that does not match the
// number of inputs. It is treated exactly like a failed call.
var ErrInvalidResponse = errors.New("invalid provider response")

// CompletionRequest is a single chat completion. A zero Temperature or
// MaxTokens leaves the provider default in place.
type CompletionRequest struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Model        string  `json:"model"`
	Temperature  float32 `json:"temperature,omitempty"`
	MaxTokens    int32   `json:"max_tokens,omitempty"`
	JSONMode     bool    `json:"json_mode,omitempty"`
}

type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Embeddings holds one vector per input text, in input order.
type Embeddings struct {
	Vectors     [][]float32
	InputTokens int64
}

// Provider is the AI API. Every call is a single attempt from the caller's
// point of view.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte, language string) (*model.Transcript, error)
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Embed(ctx context.Context, texts []string, modelID string, dimensions int) (*Embeddings, error)
}
