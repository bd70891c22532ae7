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


// This file holds the Cloud Storage shapes that enter the transcription
// workflow: the JSON of a bucket notification and the trimmed object passed
// between commands.
package cloud

import "strings"

// GetGCSObjectName is the chain context key of the GCSObject being processed.
func GetGCSObjectName() string {
	return "__GCS__OBJ__"
}

// GCSPubSubNotification maps the JSON payload of a Cloud Storage Pub/Sub
// notification. The operator API publishes the same shape when it asks for
// an object to be analyzed, so both paths share one workflow.
type GCSPubSubNotification struct {
	Kind        string                 `json:"kind,omitempty"`
	ID          string                 `json:"id,omitempty"`
	Name        string                 `json:"name"`
	Bucket      string                 `json:"bucket"`
	ContentType string                 `json:"contentType"`
	TimeCreated string                 `json:"timeCreated,omitempty"`
	Size        string                 `json:"size,omitempty"`
	MD5Hash     string                 `json:"md5Hash,omitempty"`
	MetaData    map[string]interface{} `json:"metadata"` // user_id and language are read from here.
}

// GCSObject is the part of a notification the workflows need.
type GCSObject struct {
	Bucket   string
	Name     string
	MIMEType string
	VideoID  string
	UserID   string
	Language string
}

// Metadata returns a string metadata value, or def when it is absent.
func (n *GCSPubSubNotification) Metadata(key string, def string) string {
	if v, ok := n.MetaData[key].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}
