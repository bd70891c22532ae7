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

// Package cor (Chain of Responsibility) is the small workflow engine behind
// the transcription, enrichment and cache maintenance jobs. A job is a Chain
// of Commands sharing one Context; each command reads its input from the
// context, does one step and writes its output back for the next.
//
// A command reports failure by adding an error under its own name. The chain
// stops at the first error unless it was built with ContinueOnFailure, and
// the queue listeners acknowledge a job only when the context ends without
// errors.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Keys of the value piped from one command to the next.
const (
	// CtxIn holds the input of the running command. The chain fills it with
	// the previous command's output.
	CtxIn = "__IN__"
	// CtxOut is where a command leaves its output.
	CtxOut = "__OUT__"
)

// Context is the state of one job execution.
type Context interface {
	// SetContext replaces the Go context. The chain swaps in the span
	// context of each command while it runs.
	SetContext(ctx context.Context)
	GetContext() context.Context

	// Add stores a value and returns the Context for chaining.
	Add(key string, value interface{}) Context
	Get(key string) interface{}
	Remove(key string)

	// AddError records err under key, normally the failing command's name.
	AddError(key string, err error)
	GetErrors() map[string]error
	HasErrors() bool
	// Err joins every recorded error in key order, or returns nil.
	Err() error

	// Close drops the stored values. Listeners defer it per job.
	Close()
}

// Executable is anything that runs against a Context.
type Executable interface {
	Execute(context Context)
}

// Command is one step of a workflow.
type Command interface {
	Executable

	GetName() string
	// GetInputParam is the context key the command reads its input from.
	GetInputParam() string
	// GetOutputParam is the context key the command writes its output to.
	GetOutputParam() string
	// IsExecutable reports whether the context holds what the command
	// needs. A chain skips commands that are not executable.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain runs commands in order. It is a Command itself, so chains nest.
type Chain interface {
	Command

	// ContinueOnFailure keeps the chain running after a command records an
	// error. Off by default.
	ContinueOnFailure(bool) Chain
	AddCommand(command Command) Chain
}
