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

// This file, `examples.go`, provides hardcoded example instances of the AI
// result types. They are rendered into prompts as "few-shot" examples so the
// completion model returns JSON in exactly the shape the services validate.
package model

// GetExampleTranscript returns a short two-segment transcript. It is used as
// the JSON example in the transcription prompt and as fixture data in tests.
func GetExampleTranscript() *Transcript {
	return &Transcript{
		Text:            "Welcome back to the channel. Today we are hiking to the lake at the top of the ridge.",
		Language:        "en",
		DurationSeconds: 12.5,
		Segments: []TranscriptSegment{
			{Start: 0, End: 3.2, Text: "Welcome back to the channel."},
			{Start: 3.2, End: 12.5, Text: "Today we are hiking to the lake at the top of the ridge."},
		},
	}
}

// GetExampleHighlights returns the list shape expected from highlight extraction.
func GetExampleHighlights() []*Highlight {
	return []*Highlight{
		{
			Start:       3.2,
			End:         12.5,
			Title:       "The plan for the day",
			Description: "The host explains the route to the lake at the top of the ridge.",
			Score:       0.8,
		},
	}
}

// GetExampleSummary returns the object shape expected from summarization.
func GetExampleSummary() *Summary {
	return &Summary{
		Summary:   "The host introduces a day hike to a ridge-top lake.",
		KeyPoints: []string{"Day hike", "Destination is a lake on the ridge"},
	}
}

// GetExampleTopics returns the list shape expected from topic extraction.
func GetExampleTopics() []*Topic {
	return []*Topic{
		{Name: "hiking", Relevance: 0.9},
		{Name: "travel vlog", Relevance: 0.6},
	}
}
