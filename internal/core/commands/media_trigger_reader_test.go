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


package commands_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insights/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/commands"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
	test "github.com/jaycherian/gcp-go-video-insights/internal/testutil"
)

func execute(cmd cor.Command, in any) cor.Context {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, in)
	cmd.Execute(chainCtx)
	return chainCtx
}

func TestMediaTriggerToGCSObject(t *testing.T) {
	chainCtx := execute(commands.NewMediaTriggerToGCSObject("trigger"), test.GetTestUploadMessageText())
	require.False(t, chainCtx.HasErrors())

	obj := chainCtx.Get(cloud.GetGCSObjectName()).(*cloud.GCSObject)
	assert.Equal(t, "video_insights_uploads", obj.Bucket)
	assert.Equal(t, "users/u-42/hike-001.mp4", obj.Name)
	assert.Equal(t, "video/mp4", obj.MIMEType)
	assert.Equal(t, "u-42", obj.UserID)
	assert.Equal(t, "en", obj.Language)
	assert.Equal(t, model.NewVideoID(obj.Bucket, obj.Name), obj.VideoID)
	assert.Same(t, obj, chainCtx.Get(cor.CtxOut))
}

func TestMediaTriggerUserFromObjectPath(t *testing.T) {
	chainCtx := execute(commands.NewMediaTriggerToGCSObject("trigger"),
		`{"bucket":"uploads","name":"users/u-7/clip.mov","contentType":"video/quicktime"}`)
	require.False(t, chainCtx.HasErrors())

	obj := chainCtx.Get(cloud.GetGCSObjectName()).(*cloud.GCSObject)
	assert.Equal(t, "u-7", obj.UserID)
	assert.Empty(t, obj.Language)
}

func TestMediaTriggerRejectsIncompleteNotification(t *testing.T) {
	chainCtx := execute(commands.NewMediaTriggerToGCSObject("trigger"), `{"bucket":"uploads"}`)
	assert.Contains(t, chainCtx.GetErrors(), "trigger")
}

func TestGCSToBytesRejectsEmptyObject(t *testing.T) {
	reader := &test.FakeMediaReader{Objects: map[string][]byte{"b/empty.mp3": {}}}
	chainCtx := execute(commands.NewGCSToBytes("read", reader, 0), &cloud.GCSObject{Bucket: "b", Name: "empty.mp3"})
	assert.Contains(t, chainCtx.GetErrors(), "read")
}
