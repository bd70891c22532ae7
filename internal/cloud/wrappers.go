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

// Package cloud provides components for interacting with Google Cloud services.
// This file wraps the GenAI model handle with a rate limiter.
//
// Services like Vertex AI enforce per-minute quotas. The wrapper blocks each
// request until the limiter grants a token (or the context is done) instead
// of letting the call fail with a quota error. It never retries: a failed
// call is reported to the caller once, and nothing upstream caches or bills
// it.
package cloud

import (
	"context"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// QuotaAwareGenerativeAIModel is a decorator over `genai.Models` that applies
// a token bucket to generation and embedding calls.
type QuotaAwareGenerativeAIModel struct {
	ModelHandle *genai.Models
	RateLimit   *rate.Limiter
}

// NewQuotaAwareModel wraps a model handle. requestsPerSecond is both the
// refill rate and the burst; zero or less disables limiting.
func NewQuotaAwareModel(handle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
	return &QuotaAwareGenerativeAIModel{ModelHandle: handle, RateLimit: limiter}
}

// NewQuotaAwareModelPerMinute is the embedding-model flavour, whose quota is
// configured per minute.
func NewQuotaAwareModelPerMinute(handle *genai.Models, requestsPerMinute int) *QuotaAwareGenerativeAIModel {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), max(1, requestsPerMinute/60))
	}
	return &QuotaAwareGenerativeAIModel{ModelHandle: handle, RateLimit: limiter}
}

// GenerateContent waits for the limiter, then issues exactly one request.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, modelName string, content []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	return q.ModelHandle.GenerateContent(ctx, modelName, content, config)
}

// EmbedContent waits for the limiter, then issues exactly one request.
func (q *QuotaAwareGenerativeAIModel) EmbedContent(ctx context.Context, modelName string, content []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	return q.ModelHandle.EmbedContent(ctx, modelName, content, config)
}
