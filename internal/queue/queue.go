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


// Package queue publishes and consumes the background jobs of the insights
// pipeline. A job is a type name plus a JSON payload; Pub/Sub carries them in
// production and Redis Streams on single-host deployments.
package queue

import (
	"context"
	"errors"
)

// Job types understood by the workers.
const (
	JobTranscribe = "transcribe"
	JobEnrich     = "enrich"
)

// ErrUnknownJobType is returned when no topic or stream is configured for a
// job type.
var ErrUnknownJobType = errors.New("unknown job type")

// Publisher enqueues a job. Delivery is fire-and-forget from the caller's
// point of view; Enqueue returns once the broker has accepted the message.
type Publisher interface {
	Enqueue(ctx context.Context, jobType string, payload any) error
}
