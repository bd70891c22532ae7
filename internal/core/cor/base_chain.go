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

package cor

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// BaseChain executes its commands in order and pipes each command's CtxOut
// into the next command's CtxIn.
//
// Logic Flow:
//  1. A span named <chain>_execute wraps the whole run; every command gets a
//     child span and runs with that span's Go context.
//  2. A cancelled Go context stops the chain with the cancellation recorded
//     as the chain's error, so the job is redelivered instead of acked.
//  3. After an error the remaining commands are skipped unless the chain
//     continues on failure.
//  4. A command whose IsExecutable is false is skipped and marked on its
//     span; optional steps rely on this.
//  5. After each command CtxOut moves to CtxIn. A command that leaves no
//     output clears CtxIn.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool
	commands          []Command
}

func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// IsExecutable only needs a Go context; each command checks its own input.
func (c *BaseChain) IsExecutable(context Context) bool {
	return context != nil && context.GetContext() != nil
}

func (c *BaseChain) Execute(chCtx Context) {
	parentCtx := chCtx.GetContext()
	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()
	defer chCtx.SetContext(parentCtx)

	for _, command := range c.commands {
		if err := outerCtx.Err(); err != nil {
			chCtx.AddError(c.GetName(), err)
			break
		}
		if chCtx.HasErrors() && !c.continueOnFailure {
			break
		}

		commandCtx, commandSpan := c.Tracer.Start(outerCtx, command.GetName())
		if command.IsExecutable(chCtx) {
			before := len(chCtx.GetErrors())
			chCtx.SetContext(commandCtx)
			command.Execute(chCtx)
			chCtx.SetContext(outerCtx)

			if len(chCtx.GetErrors()) > before {
				commandSpan.SetStatus(codes.Error, "command recorded an error")
			} else {
				commandSpan.SetStatus(codes.Ok, "")
			}
		} else {
			commandSpan.SetAttributes(attribute.Bool("skipped", true))
		}
		commandSpan.End()

		output := chCtx.Get(CtxOut)
		chCtx.Remove(CtxIn)
		if output != nil {
			chCtx.Add(CtxIn, output)
		}
		chCtx.Remove(CtxOut)
	}

	if chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Error, "chain failed")
		chainSpan.RecordError(chCtx.Err())
	} else {
		chainSpan.SetStatus(codes.Ok, "")
	}
}
