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


package workflow_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/workflow"
	"github.com/jaycherian/gcp-go-video-insights/internal/queue"
	test "github.com/jaycherian/gcp-go-video-insights/internal/testutil"
)

const (
	uploadBucket = "video_insights_uploads"
	uploadObject = "users/u-42/hike-001.mp4"
)

var uploadBytes = []byte("fake mp4 container bytes")

func TestTranscriptionWorkflow(t *testing.T) {
	f := newFixture(t)
	f.reader.Objects[uploadBucket+"/"+uploadObject] = uploadBytes
	pipeline := workflow.NewTranscriptionWorkflow(f.reader, f.ai, f.publisher, "en", 0)

	chainCtx := run(pipeline, test.GetTestUploadMessageText())
	require.False(t, chainCtx.HasErrors(), "%v", chainCtx.GetErrors())

	published := f.publisher.Published()
	require.Len(t, published, 1)
	assert.Equal(t, queue.JobEnrich, published[0].Type)

	job := &model.EnrichJob{}
	require.NoError(t, json.Unmarshal([]byte(published[0].Payload), job))
	assert.Equal(t, model.NewVideoID(uploadBucket, uploadObject), job.VideoID)
	assert.Equal(t, "u-42", job.UserID)
	assert.Equal(t, uploadObject, job.Object)
	assert.Equal(t, test.FakeTranscript(uploadBytes, "en"), job.Transcript)

	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, model.UsageTranscription, recs[0].Kind)
	assert.False(t, recs[0].Cached)
	assert.Equal(t, job.VideoID, recs[0].VideoID)
	assert.Equal(t, "u-42", recs[0].UserID)
}

func TestTranscriptionWorkflowReplayHitsCache(t *testing.T) {
	f := newFixture(t)
	f.reader.Objects[uploadBucket+"/"+uploadObject] = uploadBytes
	pipeline := workflow.NewTranscriptionWorkflow(f.reader, f.ai, f.publisher, "en", 0)

	for i := 0; i < 2; i++ {
		chainCtx := run(pipeline, test.GetTestUploadMessageText())
		require.False(t, chainCtx.HasErrors())
	}

	assert.Equal(t, 1, f.fake.TranscribeCalls)
	assert.Len(t, f.publisher.Published(), 2)
	recs := f.records(t)
	require.Len(t, recs, 2)
	assert.True(t, recs[1].Cached)
	assert.Equal(t, 0.0, recs[1].EstimatedCost)
}

func TestTranscriptionWorkflowMissingObject(t *testing.T) {
	f := newFixture(t)
	pipeline := workflow.NewTranscriptionWorkflow(f.reader, f.ai, f.publisher, "en", 0)

	chainCtx := run(pipeline, test.GetTestUploadMessageText())
	assert.True(t, chainCtx.HasErrors())
	assert.Contains(t, chainCtx.GetErrors(), "gcs-to-bytes")
	assert.Equal(t, 0, f.fake.Calls())
	assert.Empty(t, f.publisher.Published())
	assert.Empty(t, f.records(t))
}

func TestTranscriptionWorkflowBadMessage(t *testing.T) {
	f := newFixture(t)
	pipeline := workflow.NewTranscriptionWorkflow(f.reader, f.ai, f.publisher, "en", 0)

	chainCtx := run(pipeline, "not json")
	assert.Contains(t, chainCtx.GetErrors(), "media-trigger-to-gcs-object")
}

func TestTranscriptionWorkflowPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.reader.Objects[uploadBucket+"/"+uploadObject] = uploadBytes
	f.publisher.Err = errors.New("topic not found")
	pipeline := workflow.NewTranscriptionWorkflow(f.reader, f.ai, f.publisher, "en", 0)

	chainCtx := run(pipeline, test.GetTestUploadMessageText())
	assert.Contains(t, chainCtx.GetErrors(), "enqueue-enrichment")

	// The transcript is cached, so the redelivered message costs nothing.
	f.publisher.Err = nil
	chainCtx = run(pipeline, test.GetTestUploadMessageText())
	assert.False(t, chainCtx.HasErrors())
	assert.Equal(t, 1, f.fake.TranscribeCalls)
}
