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

// Package services holds the application services that sit between the
// workflows / HTTP handlers and the persistence and AI layers.
//
// CachedAIService is the cached invocation orchestrator. Every capability
// follows the same sequence:
//
//	fingerprint -> lookup -> hit:  record(cached=true)  -> return
//	                      -> miss: provider -> validate -> store -> record(cached=false) -> return
//	                                        -> failure: wrapped error, nothing stored or recorded
//
// The cache and the ledger are reached through best-effort adapters, so
// neither can fail an invocation.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/cache"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/fingerprint"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/provider"
)

// Capability labels used in wrapped errors.
const (
	CapabilityTranscription = "transcription"
	CapabilityHighlights    = "highlight generation"
	CapabilitySummary       = "summarization"
	CapabilityTopics        = "topic extraction"
	CapabilityEmbedding     = "embedding"
)

// DefaultEmbeddingBatchSize is the number of texts per embeddings request.
const DefaultEmbeddingBatchSize = 100

// CapabilityError is returned for every failed invocation.
type CapabilityError struct {
	Capability string
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// ResponseCache is the never-failing view of the cache the orchestrator uses.
// cache.BestEffort implements it.
type ResponseCache interface {
	Lookup(ctx context.Context, fp string) (*model.CacheEntry, bool)
	Put(ctx context.Context, fp string, kind model.ArtifactKind, modelID string, payload json.RawMessage, opts cache.SetOptions)
}

// UsageRecorder is the never-failing view of the ledger. ledger.BestEffort
// implements it.
type UsageRecorder interface {
	Record(ctx context.Context, kind model.UsageKind, modelID string, q model.Quantity, cached bool, attr model.Attribution)
}

// CompletionSettings configures one completion-backed capability.
type CompletionSettings struct {
	Model        string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int32
	JSONMode     bool
	Template     *template.Template
}

func (c CompletionSettings) request(prompt string) provider.CompletionRequest {
	return provider.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: c.SystemPrompt,
		Model:        c.Model,
		Temperature:  c.Temperature,
		MaxTokens:    c.MaxTokens,
		JSONMode:     c.JSONMode,
	}
}

// CachedAIConfig selects the model and cache lifetime of each capability.
// A kind missing from TTLs is cached without expiry.
type CachedAIConfig struct {
	TranscriptionModel  string
	Highlights          CompletionSettings
	Summary             CompletionSettings
	Topics              CompletionSettings
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingBatchSize  int
	TTLs                map[model.ArtifactKind]time.Duration
	DedupeInFlight      bool
}

// CachedAIService fronts the AI provider with the response cache and writes
// one usage record per successful invocation.
type CachedAIService struct {
	provider provider.Provider
	cache    ResponseCache
	usage    UsageRecorder
	config   CachedAIConfig
	logger   *slog.Logger
	group    singleflight.Group

	hitCounter           metric.Int64Counter
	missCounter          metric.Int64Counter
	providerErrorCounter metric.Int64Counter
	inputTokenCounter    metric.Int64Counter
	outputTokenCounter   metric.Int64Counter
}

func NewCachedAIService(p provider.Provider, c ResponseCache, u UsageRecorder, config CachedAIConfig, logger *slog.Logger) (*CachedAIService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.EmbeddingBatchSize <= 0 {
		config.EmbeddingBatchSize = DefaultEmbeddingBatchSize
	}
	for name, settings := range map[string]*CompletionSettings{
		"highlights": &config.Highlights,
		"summary":    &config.Summary,
		"topics":     &config.Topics,
	} {
		if settings.Template != nil {
			continue
		}
		tmpl, err := ParsePrompt(name, "", defaultPrompts[name])
		if err != nil {
			return nil, err
		}
		settings.Template = tmpl
	}

	s := &CachedAIService{provider: p, cache: c, usage: u, config: config, logger: logger}
	meter := otel.Meter("github.com/jaycherian/gcp-go-video-insights/services")
	s.hitCounter, _ = meter.Int64Counter("cache.hit")
	s.missCounter, _ = meter.Int64Counter("cache.miss")
	s.providerErrorCounter, _ = meter.Int64Counter("provider.error")
	s.inputTokenCounter, _ = meter.Int64Counter("tokens.input")
	s.outputTokenCounter, _ = meter.Int64Counter("tokens.output")
	return s, nil
}

var defaultPrompts = map[string]string{
	"highlights": DefaultHighlightsPrompt,
	"summary":    DefaultSummaryPrompt,
	"topics":     DefaultTopicsPrompt,
}

// invocation describes one cacheable provider call.
type invocation[T any] struct {
	capability string
	kind       model.ArtifactKind
	modelID    string
	input      any
	attr       model.Attribution

	// decode turns a cached entry back into a value plus the quantity the
	// hit avoided.
	decode func(entry *model.CacheEntry) (T, model.Quantity, error)
	// produce calls the provider once and validates the answer. The payload
	// is what gets cached.
	produce func(ctx context.Context) (T, json.RawMessage, model.Quantity, error)
}

type outcome[T any] struct {
	value    T
	quantity model.Quantity
}

func invoke[T any](ctx context.Context, s *CachedAIService, inv invocation[T]) (T, error) {
	var zero T
	kindAttr := metric.WithAttributes(attribute.String("kind", string(inv.kind)))
	// Writes after a completed call outlive a caller that gave up waiting.
	persistCtx := context.WithoutCancel(ctx)

	key, err := fingerprint.Derive(inv.kind, inv.modelID, inv.input)
	if err != nil {
		return zero, &CapabilityError{Capability: inv.capability, Err: err}
	}

	if entry, ok := s.cache.Lookup(ctx, key.Fingerprint); ok {
		value, q, err := inv.decode(entry)
		if err == nil {
			s.hitCounter.Add(ctx, 1, kindAttr)
			s.usage.Record(persistCtx, inv.kind.UsageKind(), inv.modelID, q, true, inv.attr)
			return value, nil
		}
		s.logger.WarnContext(ctx, "ignoring undecodable cache entry", "fingerprint", key.Fingerprint, "kind", inv.kind, "error", err)
	}
	s.missCounter.Add(ctx, 1, kindAttr)

	miss := func() (outcome[T], error) {
		value, payload, q, err := inv.produce(ctx)
		if err != nil {
			s.providerErrorCounter.Add(ctx, 1, kindAttr)
			return outcome[T]{}, err
		}
		s.cache.Put(persistCtx, key.Fingerprint, inv.kind, inv.modelID, payload, cache.SetOptions{
			TTL:        s.config.TTLs[inv.kind],
			InputSize:  key.InputSize,
			OutputSize: int64(len(payload)),
		})
		s.inputTokenCounter.Add(ctx, q.InputTokens, kindAttr)
		s.outputTokenCounter.Add(ctx, q.OutputTokens, kindAttr)
		return outcome[T]{value: value, quantity: q}, nil
	}

	if !s.config.DedupeInFlight {
		out, err := miss()
		if err != nil {
			return zero, &CapabilityError{Capability: inv.capability, Err: err}
		}
		s.usage.Record(persistCtx, inv.kind.UsageKind(), inv.modelID, out.quantity, false, inv.attr)
		return out.value, nil
	}

	// Only the caller whose closure runs reaches the provider; callers that
	// joined it are served the same result and billed as cache hits.
	leader := false
	shared, err, _ := s.group.Do(key.Fingerprint, func() (interface{}, error) {
		leader = true
		return miss()
	})
	if err != nil {
		return zero, &CapabilityError{Capability: inv.capability, Err: err}
	}
	out := shared.(outcome[T])
	s.usage.Record(persistCtx, inv.kind.UsageKind(), inv.modelID, out.quantity, !leader, inv.attr)
	return out.value, nil
}

// Transcribe converts audio to text. The cache key covers the full audio
// content and the requested language.
func (s *CachedAIService) Transcribe(ctx context.Context, audio []byte, language string, attr model.Attribution) (*model.Transcript, error) {
	return invoke(ctx, s, invocation[*model.Transcript]{
		capability: CapabilityTranscription,
		kind:       model.KindTranscription,
		modelID:    s.config.TranscriptionModel,
		input:      fingerprint.Audio{Content: audio, Language: language},
		attr:       attr,
		decode: func(entry *model.CacheEntry) (*model.Transcript, model.Quantity, error) {
			out := &model.Transcript{}
			if err := json.Unmarshal(entry.Payload, out); err != nil {
				return nil, model.Quantity{}, err
			}
			return out, model.Quantity{InputMinutes: out.Minutes()}, nil
		},
		produce: func(ctx context.Context) (*model.Transcript, json.RawMessage, model.Quantity, error) {
			out, err := s.provider.Transcribe(ctx, audio, language)
			if err != nil {
				return nil, nil, model.Quantity{}, err
			}
			if out == nil || strings.TrimSpace(out.Text) == "" {
				return nil, nil, model.Quantity{}, fmt.Errorf("%w: empty transcript", provider.ErrInvalidResponse)
			}
			payload, err := json.Marshal(out)
			if err != nil {
				return nil, nil, model.Quantity{}, err
			}
			return out, payload, model.Quantity{InputMinutes: out.Minutes()}, nil
		},
	})
}

// completionEnvelope is the cached form of a completion: the validated value
// plus the token counts the provider reported for it.
type completionEnvelope struct {
	Value        json.RawMessage `json:"value"`
	InputTokens  int64           `json:"input_tokens"`
	OutputTokens int64           `json:"output_tokens"`
}

// complete runs a JSON completion and validates it into T.
func complete[T any](ctx context.Context, s *CachedAIService, capability string, kind model.ArtifactKind, settings CompletionSettings, transcript *model.Transcript, example any, validate func(T) error, attr model.Attribution) (T, error) {
	var zero T
	if transcript == nil || strings.TrimSpace(transcript.Text) == "" {
		return zero, &CapabilityError{Capability: capability, Err: errors.New("transcript is empty")}
	}
	prompt, err := renderPrompt(settings.Template, transcript, example)
	if err != nil {
		return zero, &CapabilityError{Capability: capability, Err: err}
	}
	req := settings.request(prompt)

	return invoke(ctx, s, invocation[T]{
		capability: capability,
		kind:       kind,
		modelID:    settings.Model,
		input:      req,
		attr:       attr,
		decode: func(entry *model.CacheEntry) (T, model.Quantity, error) {
			var env completionEnvelope
			if err := json.Unmarshal(entry.Payload, &env); err != nil {
				return zero, model.Quantity{}, err
			}
			var value T
			if err := json.Unmarshal(env.Value, &value); err != nil {
				return zero, model.Quantity{}, err
			}
			q := model.Quantity{InputTokens: env.InputTokens, OutputTokens: env.OutputTokens}
			if q.InputTokens == 0 && q.OutputTokens == 0 {
				q.InputTokens = entry.InputSize / 4
			}
			return value, q, nil
		},
		produce: func(ctx context.Context) (T, json.RawMessage, model.Quantity, error) {
			resp, err := s.provider.Complete(ctx, req)
			if err != nil {
				return zero, nil, model.Quantity{}, err
			}
			var value T
			if err := json.Unmarshal([]byte(stripFence(resp.Text)), &value); err != nil {
				return zero, nil, model.Quantity{}, fmt.Errorf("%w: %v", provider.ErrInvalidResponse, err)
			}
			if err := validate(value); err != nil {
				return zero, nil, model.Quantity{}, fmt.Errorf("%w: %v", provider.ErrInvalidResponse, err)
			}
			raw, err := json.Marshal(value)
			if err != nil {
				return zero, nil, model.Quantity{}, err
			}
			q := model.Quantity{InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens}
			payload, err := json.Marshal(completionEnvelope{Value: raw, InputTokens: q.InputTokens, OutputTokens: q.OutputTokens})
			if err != nil {
				return zero, nil, model.Quantity{}, err
			}
			return value, payload, q, nil
		},
	})
}

// GenerateHighlights picks the notable moments of a transcript.
func (s *CachedAIService) GenerateHighlights(ctx context.Context, transcript *model.Transcript, attr model.Attribution) ([]*model.Highlight, error) {
	return complete(ctx, s, CapabilityHighlights, model.KindHighlights, s.config.Highlights, transcript, model.GetExampleHighlights(),
		func(out []*model.Highlight) error {
			if out == nil {
				return errors.New("highlights is not a list")
			}
			for i, h := range out {
				if h == nil || strings.TrimSpace(h.Title) == "" {
					return fmt.Errorf("highlight %d has no title", i)
				}
				if h.End < h.Start {
					return fmt.Errorf("highlight %d ends before it starts", i)
				}
			}
			return nil
		}, attr)
}

// Summarize produces the prose summary of a transcript.
func (s *CachedAIService) Summarize(ctx context.Context, transcript *model.Transcript, attr model.Attribution) (*model.Summary, error) {
	return complete(ctx, s, CapabilitySummary, model.KindSummary, s.config.Summary, transcript, model.GetExampleSummary(),
		func(out *model.Summary) error {
			if out == nil || strings.TrimSpace(out.Summary) == "" {
				return errors.New("summary is empty")
			}
			return nil
		}, attr)
}

// ExtractTopics lists the subjects a transcript covers. Failures propagate
// like every other capability; callers that treat topics as optional decide
// to continue without them.
func (s *CachedAIService) ExtractTopics(ctx context.Context, transcript *model.Transcript, attr model.Attribution) ([]*model.Topic, error) {
	return complete(ctx, s, CapabilityTopics, model.KindTopics, s.config.Topics, transcript, model.GetExampleTopics(),
		func(out []*model.Topic) error {
			if out == nil {
				return errors.New("topics is not a list")
			}
			for i, t := range out {
				if t == nil || strings.TrimSpace(t.Name) == "" {
					return fmt.Errorf("topic %d has no name", i)
				}
			}
			return nil
		}, attr)
}

// embeddingBatch is both the fingerprint input and, with vectors filled
// in, the cached payload of one batch.
type embeddingBatch struct {
	Texts      []string `json:"texts"`
	Dimensions int      `json:"dimensions"`
}

type embeddingPayload struct {
	Vectors     [][]float32 `json:"vectors"`
	InputTokens int64       `json:"input_tokens"`
}

// Embed returns one vector per text in input order. Texts are split into
// fixed-size batches that are cached independently and processed one after
// another, so a partially cached set only pays for the missing batches.
func (s *CachedAIService) Embed(ctx context.Context, texts []string, attr model.Attribution) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	size := s.config.EmbeddingBatchSize

	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		batch := embeddingBatch{Texts: texts[start:end], Dimensions: s.config.EmbeddingDimensions}

		vectors, err := invoke(ctx, s, invocation[[][]float32]{
			capability: CapabilityEmbedding,
			kind:       model.KindEmbeddings,
			modelID:    s.config.EmbeddingModel,
			input:      batch,
			attr:       attr,
			decode: func(entry *model.CacheEntry) ([][]float32, model.Quantity, error) {
				var p embeddingPayload
				if err := json.Unmarshal(entry.Payload, &p); err != nil {
					return nil, model.Quantity{}, err
				}
				if len(p.Vectors) != len(batch.Texts) {
					return nil, model.Quantity{}, fmt.Errorf("cached batch has %d vectors for %d texts", len(p.Vectors), len(batch.Texts))
				}
				q := model.Quantity{InputTokens: p.InputTokens}
				if q.InputTokens == 0 {
					q.InputTokens = entry.InputSize / 4
				}
				return p.Vectors, q, nil
			},
			produce: func(ctx context.Context) ([][]float32, json.RawMessage, model.Quantity, error) {
				resp, err := s.provider.Embed(ctx, batch.Texts, s.config.EmbeddingModel, batch.Dimensions)
				if err != nil {
					return nil, nil, model.Quantity{}, err
				}
				if resp == nil || len(resp.Vectors) != len(batch.Texts) {
					return nil, nil, model.Quantity{}, fmt.Errorf("%w: vector count does not match batch size %d", provider.ErrInvalidResponse, len(batch.Texts))
				}
				payload, err := json.Marshal(embeddingPayload{Vectors: resp.Vectors, InputTokens: resp.InputTokens})
				if err != nil {
					return nil, nil, model.Quantity{}, err
				}
				return resp.Vectors, payload, model.Quantity{InputTokens: resp.InputTokens}, nil
			},
		})
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func stripFence(in string) string {
	in = strings.TrimSpace(in)
	in = strings.TrimPrefix(in, "```json")
	in = strings.TrimPrefix(in, "```")
	in = strings.TrimSuffix(in, "```")
	return strings.TrimSpace(in)
}
