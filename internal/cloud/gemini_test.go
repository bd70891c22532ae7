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


package cloud_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-video-insights/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/provider"
)

type fakeGemini struct {
	mu       sync.Mutex
	generate string
	embed    string
	bodies   []string
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, ":generateContent"):
		_, _ = io.WriteString(w, f.generate)
	case strings.HasSuffix(r.URL.Path, ":batchEmbedContents"):
		_, _ = io.WriteString(w, f.embed)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeGemini) lastBody() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		return ""
	}
	return f.bodies[len(f.bodies)-1]
}

func newProvider(t *testing.T, fake *fakeGemini) *cloud.GeminiProvider {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	})
	require.NoError(t, err)

	handle := cloud.NewQuotaAwareModel(client.Models, 0)
	p, err := cloud.NewGeminiProvider(handle, nil, "gemini-2.0-flash", "")
	require.NoError(t, err)
	return p
}

func candidate(text string) string {
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":` + text + `}]}}],` +
		`"usageMetadata":{"promptTokenCount":120,"candidatesTokenCount":30}}`
}

func TestGeminiComplete(t *testing.T) {
	fake := &fakeGemini{generate: candidate(`"{\"summary\":\"ok\"}"`)}
	p := newProvider(t, fake)

	out, err := p.Complete(context.Background(), provider.CompletionRequest{
		Prompt:       "summarize this",
		SystemPrompt: "be brief",
		Model:        "gemini-2.0-flash",
		Temperature:  0.3,
		MaxTokens:    256,
		JSONMode:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, out.Text)
	assert.Equal(t, int64(120), out.InputTokens)
	assert.Equal(t, int64(30), out.OutputTokens)

	body := fake.lastBody()
	assert.Contains(t, body, "summarize this")
	assert.Contains(t, body, "be brief")
	assert.Contains(t, body, "application/json")
}

func TestGeminiCompleteEmpty(t *testing.T) {
	p := newProvider(t, &fakeGemini{generate: candidate(`"  "`)})

	_, err := p.Complete(context.Background(), provider.CompletionRequest{Prompt: "x", Model: "gemini-2.0-flash"})
	assert.ErrorIs(t, err, provider.ErrInvalidResponse)
}

func TestGeminiTranscribe(t *testing.T) {
	transcript := `"` + "```json" + `\n{\"text\":\"hello there\",\"segments\":[{\"start\":0,\"end\":4.5,\"text\":\"hello there\"}]}\n` + "```" + `"`
	p := newProvider(t, &fakeGemini{generate: candidate(transcript)})

	out, err := p.Transcribe(context.Background(), []byte("not really audio"), "en")
	require.NoError(t, err)
	assert.Equal(t, "hello there", out.Text)
	assert.Equal(t, "en", out.Language)
	assert.Equal(t, 4.5, out.DurationSeconds)
	require.Len(t, out.Segments, 1)
}

func TestGeminiTranscribeInvalid(t *testing.T) {
	p := newProvider(t, &fakeGemini{generate: candidate(`"not json"`)})

	_, err := p.Transcribe(context.Background(), []byte("audio"), "en")
	assert.ErrorIs(t, err, provider.ErrInvalidResponse)

	_, err = p.Transcribe(context.Background(), nil, "en")
	assert.Error(t, err)
}

func TestGeminiEmbed(t *testing.T) {
	fake := &fakeGemini{embed: `{"embeddings":[{"values":[0.1,0.2]},{"values":[0.3,0.4]}]}`}
	p := newProvider(t, fake)

	out, err := p.Embed(context.Background(), []string{"first text", "second text!"}, "text-embedding-004", 2)
	require.NoError(t, err)
	require.Len(t, out.Vectors, 2)
	assert.Equal(t, []float32{0.3, 0.4}, out.Vectors[1])
	assert.Equal(t, int64(5), out.InputTokens)
}

func TestGeminiEmbedCountMismatch(t *testing.T) {
	p := newProvider(t, &fakeGemini{embed: `{"embeddings":[{"values":[0.1,0.2]}]}`})

	_, err := p.Embed(context.Background(), []string{"a", "b"}, "text-embedding-004", 0)
	assert.ErrorIs(t, err, provider.ErrInvalidResponse)
}

func TestAudioMIMEType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", cloud.AudioMIMEType([]byte("plain text")))
	// RIFF....WAVE header
	wav := append([]byte("RIFF\x24\x00\x00\x00WAVE"), make([]byte, 32)...)
	assert.Equal(t, "audio/x-wav", cloud.AudioMIMEType(wav))
}
