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


// Package commands contains the individual steps of the insights workflows.
// Each step is a cor.Command: it reads its input from the chain context,
// does one thing, and writes its output back for the next step.
package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-video-insights/internal/cloud"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
	"github.com/jaycherian/gcp-go-video-insights/internal/core/model"
)

// Object metadata keys read from an upload notification.
const (
	MetadataUserID   = "user_id"
	MetadataLanguage = "language"
)

// MediaTriggerToGCSObject parses a storage notification (raw JSON string in
// CtxIn) into a cloud.GCSObject carrying the video id the usage of the
// whole pipeline is attributed to.
type MediaTriggerToGCSObject struct {
	cor.BaseCommand
}

func NewMediaTriggerToGCSObject(name string) *MediaTriggerToGCSObject {
	return &MediaTriggerToGCSObject{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *MediaTriggerToGCSObject) Execute(context cor.Context) {
	in := context.Get(c.GetInputParam()).(string)

	var out cloud.GCSPubSubNotification
	if err := json.Unmarshal([]byte(in), &out); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to unmarshal GCS notification: %w", err))
		return
	}
	if out.Bucket == "" || out.Name == "" {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("notification is missing bucket or object name"))
		return
	}
	c.GetSuccessCounter().Add(context.GetContext(), 1)

	msg := &cloud.GCSObject{
		Bucket:   out.Bucket,
		Name:     out.Name,
		MIMEType: out.ContentType,
		VideoID:  model.NewVideoID(out.Bucket, out.Name),
		UserID:   out.Metadata(MetadataUserID, userFromObjectName(out.Name)),
		Language: out.Metadata(MetadataLanguage, ""),
	}
	context.Add(cloud.GetGCSObjectName(), msg)
	context.Add(c.GetOutputParam(), msg)
}

// userFromObjectName reads the owner of uploads stored as users/<id>/<file>.
func userFromObjectName(name string) string {
	parts := strings.Split(name, "/")
	if len(parts) >= 3 && parts[0] == "users" {
		return parts[1]
	}
	return ""
}
