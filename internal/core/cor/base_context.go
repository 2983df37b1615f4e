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

// This file defines `BaseContext`, the default implementation of the `Context`
// interface.
//
// The context is the property bag handed from command to command. A clip's
// enrichment runs its optimize and caption steps at the same time against one
// context, so every accessor takes the lock.
//
// This implementation includes:
//   - A map to hold arbitrary data (`data`).
//   - A map to collect errors from any command in the chain (`errors`).
//   - A slice to track temporary files created during the workflow (`tempFiles`).
//   - A standard Go `context.Context` for cancellation and trace propagation.

package cor

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"
)

// BaseContext is the default implementation of the Context interface. It holds
// the shared state for a workflow execution and is safe for concurrent use.
type BaseContext struct {
	mu        sync.RWMutex
	data      map[string]interface{} // Arbitrary key-value data.
	errors    map[string]error       // Errors keyed by the command name that produced them.
	tempFiles []string               // Paths removed by Close.
	context   context.Context
}

// NewBaseContext is the constructor for BaseContext.
//
// Outputs:
//   - Context: A new, empty context object.
func NewBaseContext() Context {
	return &BaseContext{
		data:      make(map[string]interface{}),
		errors:    make(map[string]error),
		tempFiles: make([]string, 0),
	}
}

// NewBaseContextWith creates a context bound to ctx.
func NewBaseContextWith(ctx context.Context) Context {
	c := NewBaseContext()
	c.SetContext(ctx)
	return c
}

// SetContext sets the underlying standard Go context. This is used by the
// BaseChain to manage the context for OpenTelemetry spans.
func (c *BaseContext) SetContext(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.context = ctx
}

// GetContext retrieves the underlying standard Go context.
func (c *BaseContext) GetContext() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.context
}

// Close removes every temporary file tracked by the context. Files that are
// already gone are not reported.
func (c *BaseContext) Close() {
	for _, file := range c.GetTempFiles() {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove temporary file", "path", file, "error", err)
		}
	}
	c.mu.Lock()
	c.tempFiles = c.tempFiles[:0]
	c.mu.Unlock()
}

// Add stores a key-value pair in the context's data map.
//
// Inputs:
//   - key: The string key to store the data under.
//   - value: The data (of any type) to store.
//
// Outputs:
//   - Context: The context instance, allowing for fluent method chaining.
func (c *BaseContext) Add(key string, value interface{}) Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return c
}

// AddTempFile adds a file path to the list of temporary files that need cleanup.
func (c *BaseContext) AddTempFile(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tempFiles = append(c.tempFiles, file)
}

// GetTempFiles returns a copy of the tracked temporary file paths.
func (c *BaseContext) GetTempFiles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.tempFiles)
}

// AddError records an error keyed by the command name. A second error from the
// same command is joined with the first.
func (c *BaseContext) AddError(key string, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.errors[key]; ok {
		err = errors.Join(prev, err)
	}
	c.errors[key] = err
}

// GetErrors returns a copy of the errors collected during the workflow.
func (c *BaseContext) GetErrors() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.errors)
}

// Get retrieves a value from the context's data map by its key, or nil.
func (c *BaseContext) Get(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[key]
}

// Remove deletes a key-value pair from the context's data map.
func (c *BaseContext) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// HasErrors checks if any errors have been added to the context.
func (c *BaseContext) HasErrors() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.errors) > 0
}

// Err joins every recorded error, or returns nil.
func (c *BaseContext) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := slices.Sorted(maps.Keys(c.errors))
	errs := make([]error, 0, len(keys))
	for _, k := range keys {
		errs = append(errs, c.errors[k])
	}
	return errors.Join(errs...)
}
