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

package services

const (
	// QrySegmentKnn is the k-nearest-neighbour search over transcript segment
	// embeddings.
	//
	// Placeholders:
	// - `%s`: The fully qualified name of the segment embeddings table.
	// - `%s`: The query vector as a comma-separated list of floats.
	// - `%d`: The number of matches to return.
	QrySegmentKnn = "SELECT base.video_id, base.segment_index, base.text, distance FROM VECTOR_SEARCH(TABLE `%s`, 'embeddings', (SELECT [ %s ] as embed), top_k => %d, distance_type => 'EUCLIDEAN') ORDER BY distance asc"

	// QryFindInsightsByVideoId returns the newest insights row of a video.
	// The table name is interpolated, the id is bound as @video_id.
	QryFindInsightsByVideoId = "SELECT * FROM `%s` WHERE video_id = @video_id ORDER BY create_date DESC LIMIT 1"
)
