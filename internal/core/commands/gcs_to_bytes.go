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


package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"

	"github.com/jaycherian/gcp-go-video-insights/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
)

// DefaultMaxMediaBytes caps how much of an upload is read for inline
// transcription.
const DefaultMaxMediaBytes = 20 << 20

// MediaReader loads the content of a stored object.
type MediaReader interface {
	Read(ctx context.Context, bucket string, name string, limit int64) ([]byte, error)
}

// GCSMediaReader reads objects from Cloud Storage.
type GCSMediaReader struct {
	client *storage.Client
}

func NewGCSMediaReader(client *storage.Client) *GCSMediaReader {
	return &GCSMediaReader{client: client}
}

func (r *GCSMediaReader) Read(ctx context.Context, bucket string, name string, limit int64) ([]byte, error) {
	reader, err := r.client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS reader for gs://%s/%s: %w", bucket, name, err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			slog.Warn("failed to close GCS reader", "error", err)
		}
	}()
	if reader.Attrs.Size > limit {
		return nil, fmt.Errorf("gs://%s/%s is %d bytes, over the %d byte limit", bucket, name, reader.Attrs.Size, limit)
	}
	return io.ReadAll(io.LimitReader(reader, limit))
}

// GCSToBytes reads the object referenced by the GCSObject in CtxIn and
// outputs its content.
type GCSToBytes struct {
	cor.BaseCommand
	reader   MediaReader
	maxBytes int64
}

func NewGCSToBytes(name string, reader MediaReader, maxBytes int64) *GCSToBytes {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMediaBytes
	}
	return &GCSToBytes{BaseCommand: *cor.NewBaseCommand(name), reader: reader, maxBytes: maxBytes}
}

func (c *GCSToBytes) Execute(context cor.Context) {
	msg := context.Get(c.GetInputParam()).(*cloud.GCSObject)

	content, err := c.reader.Read(context.GetContext(), msg.Bucket, msg.Name, c.maxBytes)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}
	if len(content) == 0 {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("gs://%s/%s is empty", msg.Bucket, msg.Name))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.InfoContext(context.GetContext(), "read media", "bucket", msg.Bucket, "object", msg.Name, "bytes", len(content))
	context.Add(c.GetOutputParam(), content)
}
