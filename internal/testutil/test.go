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

// Package test holds helpers shared by the package test suites: the test
// configuration, sample messages and fakes for the AI provider.
package test

import (
	"log"
	"os"

	"github.com/jaycherian/gcp-go-video-insights/internal/cloud"
)

type StateManager struct {
	config *cloud.Config
}

var state = &StateManager{}

// GetTestUploadMessageText is a storage notification for an uploaded video.
func GetTestUploadMessageText() string {
	return `{
  "kind": "storage#object",
  "id": "video_insights_uploads/users/u-42/hike-001.mp4/1728615848664286",
  "selfLink": "https://www.googleapis.com/storage/v1/b/video_insights_uploads/o/users%2Fu-42%2Fhike-001.mp4",
  "name": "users/u-42/hike-001.mp4",
  "bucket": "video_insights_uploads",
  "generation": "1728615848664286",
  "metageneration": "1",
  "contentType": "video/mp4",
  "timeCreated": "2024-10-11T03:04:08.672Z",
  "updated": "2024-10-11T03:04:08.672Z",
  "storageClass": "STANDARD",
  "timeStorageClassUpdated": "2024-10-11T03:04:08.672Z",
  "size": "25934803",
  "md5Hash": "67c1rAU+1RYZzK5zp8iBkA==",
  "mediaLink": "https://storage.googleapis.com/download/storage/v1/b/video_insights_uploads/o/users%2Fu-42%2Fhike-001.mp4?generation=1728615848664286&alt=media",
  "metadata": { "user_id": "u-42", "language": "en" },
  "crc32c": "IYeSTw==",
  "etag": "CN658+yrhYkDEAE="
}`
}

func SetupOS() (err error) {
	// Set the directory where the configuration files are located.
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	// ".env.test.toml" overrides the base file.
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig loads the test configuration once per process. Missing files
// leave the defaults of cloud.NewConfig in place.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load test configuration: %v\n", err)
		}
		state.config = config
	}
	return state.config
}
