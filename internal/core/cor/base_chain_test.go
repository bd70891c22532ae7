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

package cor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
)

// appendStep appends its suffix to the string input, or fails.
type appendStep struct {
	cor.BaseCommand
	suffix string
	err    error
	ran    bool
}

func newStep(name string, suffix string, err error) *appendStep {
	return &appendStep{BaseCommand: *cor.NewBaseCommand(name), suffix: suffix, err: err}
}

func (s *appendStep) Execute(context cor.Context) {
	s.ran = true
	if s.err != nil {
		context.AddError(s.GetName(), s.err)
		return
	}
	context.Add(s.GetOutputParam(), context.Get(s.GetInputParam()).(string)+s.suffix)
}

func TestChainPipesOutputToInput(t *testing.T) {
	chain := cor.NewBaseChain("pipe")
	chain.AddCommand(newStep("a", "-a", nil)).AddCommand(newStep("b", "-b", nil))

	ctx := cor.NewJobContext(context.Background(), "in")
	chain.Execute(ctx)

	require.NoError(t, ctx.Err())
	assert.Equal(t, "in-a-b", ctx.Get(cor.CtxIn))
	assert.Nil(t, ctx.Get(cor.CtxOut))
}

func TestChainStopsOnError(t *testing.T) {
	last := newStep("c", "-c", nil)
	chain := cor.NewBaseChain("stop")
	chain.AddCommand(newStep("a", "-a", nil)).
		AddCommand(newStep("b", "", errors.New("boom"))).
		AddCommand(last)

	ctx := cor.NewJobContext(context.Background(), "in")
	chain.Execute(ctx)

	assert.False(t, last.ran)
	assert.EqualError(t, ctx.Err(), "b: boom")
}

func TestChainContinueOnFailure(t *testing.T) {
	last := newStep("c", "-c", nil)
	chain := cor.NewBaseChain("continue")
	chain.ContinueOnFailure(true)
	chain.AddCommand(newStep("b", "", errors.New("boom"))).AddCommand(last)

	ctx := cor.NewJobContext(context.Background(), "in")
	chain.Execute(ctx)

	// The failing step left no output, so the last step had no input.
	assert.False(t, last.ran)
	assert.True(t, ctx.HasErrors())
}

func TestChainSkipsCommandsWithoutInput(t *testing.T) {
	skipped := newStep("skipped", "-x", nil)
	skipped.InputParamName = "__missing__"
	chain := cor.NewBaseChain("skip")
	chain.AddCommand(skipped).AddCommand(newStep("a", "-a", nil))

	ctx := cor.NewJobContext(context.Background(), "in")
	chain.Execute(ctx)

	assert.False(t, skipped.ran)
	assert.False(t, ctx.HasErrors())
}

func TestChainStopsWhenCancelled(t *testing.T) {
	step := newStep("a", "-a", nil)
	chain := cor.NewBaseChain("cancelled")
	chain.AddCommand(step)

	goCtx, cancel := context.WithCancel(context.Background())
	cancel()
	ctx := cor.NewJobContext(goCtx, "in")
	chain.Execute(ctx)

	assert.False(t, step.ran)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Equal(t, goCtx, ctx.GetContext())
}

func TestContextErrIsSortedByKey(t *testing.T) {
	ctx := cor.NewBaseContext()
	assert.NoError(t, ctx.Err())

	ctx.AddError("zeta", errors.New("last"))
	ctx.AddError("alpha", errors.New("first"))
	assert.EqualError(t, ctx.Err(), "alpha: first\nzeta: last")

	ctx.Add("k", 1)
	ctx.Close()
	assert.Nil(t, ctx.Get("k"))
}
