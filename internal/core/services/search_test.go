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

package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/services"
)

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "0.5,-1,2.25", services.VectorLiteral([]float32{0.5, -1, 2.25}))
	assert.Equal(t, "", services.VectorLiteral(nil))
}

func TestFindSegmentsRejectsEmptyQuery(t *testing.T) {
	svc, fake, _ := newService(t, testConfig())
	search := &services.SearchService{Embedder: svc}

	out, err := search.FindSegments(context.Background(), "   ", 5, "")
	assert.Error(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, fake.Calls())
}
