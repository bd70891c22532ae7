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

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/provider"
)

// FakeProvider is an in-memory provider.Provider that counts calls and can
// be told to fail.
type FakeProvider struct {
	mu sync.Mutex

	TranscribeCalls int
	CompleteCalls   int
	EmbedCalls      int
	EmbedBatchSizes []int

	TranscribeErr error
	CompleteErr   error
	EmbedErr      error

	// CompleteFunc overrides the default completion, which answers with the
	// example JSON of the capability named in the prompt.
	CompleteFunc func(req provider.CompletionRequest) (*provider.Completion, error)
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{}
}

// FakeTranscript is what FakeProvider.Transcribe returns for the audio.
func FakeTranscript(audio []byte, language string) *model.Transcript {
	text := fmt.Sprintf("transcript of %d bytes", len(audio))
	return &model.Transcript{
		Text:            text,
		Language:        language,
		DurationSeconds: 90,
		Segments: []model.TranscriptSegment{
			{Start: 0, End: 45, Text: text + " part one"},
			{Start: 45, End: 90, Text: text + " part two"},
		},
	}
}

// FakeVector is the deterministic embedding FakeProvider returns for text.
func FakeVector(text string) []float32 {
	var sum float32
	for _, b := range []byte(text) {
		sum += float32(b)
	}
	return []float32{float32(len(text)), sum}
}

func (f *FakeProvider) Transcribe(_ context.Context, audio []byte, language string) (*model.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TranscribeCalls++
	if f.TranscribeErr != nil {
		return nil, f.TranscribeErr
	}
	return FakeTranscript(audio, language), nil
}

func (f *FakeProvider) Complete(_ context.Context, req provider.CompletionRequest) (*provider.Completion, error) {
	f.mu.Lock()
	f.CompleteCalls++
	fn := f.CompleteFunc
	err := f.CompleteErr
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(req)
	}

	var value any
	switch req.Model {
	case "highlights-model":
		value = model.GetExampleHighlights()
	case "summary-model":
		value = model.GetExampleSummary()
	default:
		value = model.GetExampleTopics()
	}
	text, _ := json.Marshal(value)
	return &provider.Completion{Text: string(text), InputTokens: int64(len(req.Prompt) / 4), OutputTokens: int64(len(text) / 4)}, nil
}

func (f *FakeProvider) Embed(_ context.Context, texts []string, _ string, _ int) (*provider.Embeddings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EmbedCalls++
	f.EmbedBatchSizes = append(f.EmbedBatchSizes, len(texts))
	if f.EmbedErr != nil {
		return nil, f.EmbedErr
	}
	out := &provider.Embeddings{Vectors: make([][]float32, len(texts))}
	for i, t := range texts {
		out.Vectors[i] = FakeVector(t)
		out.InputTokens += int64(len(t) / 4)
	}
	return out, nil
}

// Calls returns the total number of provider calls so far.
func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.TranscribeCalls + f.CompleteCalls + f.EmbedCalls
}

// Reset clears the call counters.
func (f *FakeProvider) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TranscribeCalls, f.CompleteCalls, f.EmbedCalls = 0, 0, 0
	f.EmbedBatchSizes = nil
}

// PublishedJob is a job captured by RecordingPublisher.
type PublishedJob struct {
	Type    string
	Payload string
}

// RecordingPublisher is a queue.Publisher that keeps what it is given.
type RecordingPublisher struct {
	mu   sync.Mutex
	jobs []PublishedJob
	Err  error
}

func (p *RecordingPublisher) Enqueue(_ context.Context, jobType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.jobs = append(p.jobs, PublishedJob{Type: jobType, Payload: string(data)})
	return nil
}

func (p *RecordingPublisher) Published() []PublishedJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedJob(nil), p.jobs...)
}

// FakeMediaReader serves object content from memory, keyed by "bucket/name".
type FakeMediaReader struct {
	Objects map[string][]byte
}

func (r *FakeMediaReader) Read(_ context.Context, bucket string, name string, _ int64) ([]byte, error) {
	content, ok := r.Objects[bucket+"/"+name]
	if !ok {
		return nil, fmt.Errorf("gs://%s/%s: %w", bucket, name, os.ErrNotExist)
	}
	return content, nil
}
