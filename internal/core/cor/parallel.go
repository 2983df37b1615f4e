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
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/codes"
)

// BaseParallel runs its commands concurrently against the same Context. Each
// command sees its own Go context (its span), while data and errors go to the
// shared Context. Commands must therefore write to distinct keys.
type BaseParallel struct {
	BaseCommand
	commands []Command
}

// NewBaseParallel is the constructor for BaseParallel.
func NewBaseParallel(name string) *BaseParallel {
	return &BaseParallel{BaseCommand: *NewBaseCommand(name)}
}

// AddCommand adds a command to the group.
func (p *BaseParallel) AddCommand(command Command) Parallel {
	p.commands = append(p.commands, command)
	return p
}

// IsExecutable requires only a Go context; each member checks its own inputs.
func (p *BaseParallel) IsExecutable(context Context) bool {
	return context != nil && context.GetContext() != nil
}

// Execute starts every executable command and waits for all of them.
func (p *BaseParallel) Execute(chCtx Context) {
	outerCtx, groupSpan := p.Tracer.Start(chCtx.GetContext(), fmt.Sprintf("%s_execute", p.GetName()))
	defer groupSpan.End()

	var wg sync.WaitGroup
	for _, command := range p.commands {
		wg.Add(1)
		go func(command Command) {
			defer wg.Done()
			cmdCtx, span := p.Tracer.Start(outerCtx, command.GetName())
			defer span.End()

			scoped := &scopedContext{Context: chCtx, ctx: cmdCtx}
			if !command.IsExecutable(scoped) {
				span.SetStatus(codes.Error, fmt.Sprintf("command not executable: %s", command.GetName()))
				return
			}
			command.Execute(scoped)
			span.SetStatus(codes.Ok, "command completed")
		}(command)
	}
	wg.Wait()

	if chCtx.HasErrors() {
		groupSpan.SetStatus(codes.Error, "one or more commands failed")
	} else {
		groupSpan.SetStatus(codes.Ok, "all commands completed")
	}
}

// scopedContext overrides the Go context of a shared Context for one goroutine.
type scopedContext struct {
	Context
	mu  sync.RWMutex
	ctx context.Context
}

func (s *scopedContext) GetContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

func (s *scopedContext) SetContext(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
}
