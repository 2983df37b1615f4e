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
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/cor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// appendCommand reads a string from its input and writes input+suffix.
type appendCommand struct {
	cor.BaseCommand
	suffix string
	fail   bool
}

func newAppend(name, suffix string) *appendCommand {
	return &appendCommand{BaseCommand: *cor.NewBaseCommand(name), suffix: suffix}
}

func (a *appendCommand) Execute(context cor.Context) {
	if a.fail {
		context.AddError(a.GetName(), errors.New("boom"))
		return
	}
	in := context.Get(a.GetInputParam()).(string)
	context.Add(a.GetOutputParam(), in+a.suffix)
}

// keyWriter writes a value under its own key after an optional delay.
type keyWriter struct {
	cor.BaseCommand
	key     string
	delay   time.Duration
	running *atomic.Int32
	peak    *atomic.Int32
}

func (k *keyWriter) IsExecutable(context cor.Context) bool {
	return context.GetContext() != nil
}

func (k *keyWriter) Execute(context cor.Context) {
	n := k.running.Add(1)
	for {
		p := k.peak.Load()
		if n <= p || k.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(k.delay)
	k.running.Add(-1)
	context.Add(k.key, context.GetContext() != nil)
}

func TestChainPipesOutputToInput(t *testing.T) {
	chain := cor.NewBaseChain("pipe")
	chain.AddCommand(newAppend("a", "-a")).AddCommand(newAppend("b", "-b"))

	ctx := cor.NewBaseContextWith(context.Background())
	ctx.Add(cor.CtxIn, "start")
	chain.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Equal(t, "start-a-b", ctx.Get(cor.CtxIn))
	assert.Nil(t, ctx.Get(cor.CtxOut))
}

func TestChainStopsOnFailure(t *testing.T) {
	failing := newAppend("fails", "")
	failing.fail = true

	chain := cor.NewBaseChain("stop")
	chain.AddCommand(failing).AddCommand(newAppend("after", "-x"))

	ctx := cor.NewBaseContextWith(context.Background())
	ctx.Add(cor.CtxIn, "start")
	chain.Execute(ctx)

	require.True(t, ctx.HasErrors())
	assert.Contains(t, ctx.GetErrors(), "fails")
	// the second command never ran, so the input was only cleared by the flip-flop
	assert.Nil(t, ctx.Get(cor.CtxIn))
}

func TestChainContinueOnFailure(t *testing.T) {
	failing := newAppend("fails", "")
	failing.fail = true
	after := newAppend("after", "-x")
	after.InputParamName = "seed"
	after.OutputParamName = "result"

	chain := cor.NewBaseChain("continue")
	chain.ContinueOnFailure(true).AddCommand(failing).AddCommand(after)

	ctx := cor.NewBaseContextWith(context.Background())
	ctx.Add("seed", "s")
	chain.Execute(ctx)

	assert.Equal(t, "s-x", ctx.Get("result"))
	assert.Error(t, ctx.Err())
}

func TestChainStopsWhenCancelled(t *testing.T) {
	c, cancel := context.WithCancel(context.Background())
	cancel()

	chain := cor.NewBaseChain("cancelled")
	chain.AddCommand(newAppend("a", "-a"))

	ctx := cor.NewBaseContextWith(c)
	ctx.Add(cor.CtxIn, "start")
	chain.Execute(ctx)

	assert.True(t, errors.Is(ctx.Err(), context.Canceled))
	assert.Equal(t, c, ctx.GetContext())
}

func TestParallelRunsCommandsConcurrently(t *testing.T) {
	var running, peak atomic.Int32
	group := cor.NewBaseParallel("group")
	for i := range 3 {
		group.AddCommand(&keyWriter{
			BaseCommand: *cor.NewBaseCommand(fmt.Sprintf("w%d", i)),
			key:         fmt.Sprintf("k%d", i),
			delay:       50 * time.Millisecond,
			running:     &running,
			peak:        &peak,
		})
	}

	root := context.Background()
	ctx := cor.NewBaseContextWith(root)
	group.Execute(ctx)

	for i := range 3 {
		assert.Equal(t, true, ctx.Get(fmt.Sprintf("k%d", i)))
	}
	assert.Greater(t, peak.Load(), int32(1))
	assert.Equal(t, root, ctx.GetContext())
}

func TestParallelCollectsErrorsFromEveryMember(t *testing.T) {
	a := newAppend("a", "")
	a.fail = true
	b := newAppend("b", "")
	b.fail = true

	ctx := cor.NewBaseContextWith(context.Background())
	ctx.Add(cor.CtxIn, "x")
	cor.NewBaseParallel("group").AddCommand(a).AddCommand(b).Execute(ctx)

	assert.Len(t, ctx.GetErrors(), 2)
}

func TestContextCloseRemovesTempFiles(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "tmp.bin")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))

	ctx := cor.NewBaseContext()
	ctx.AddTempFile(f)
	ctx.AddTempFile(filepath.Join(dir, "missing"))
	ctx.Close()

	_, err := os.Stat(f)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Empty(t, ctx.GetTempFiles())
}

func TestContextJoinsRepeatedErrors(t *testing.T) {
	ctx := cor.NewBaseContext()
	first := errors.New("first")
	second := errors.New("second")
	ctx.AddError("cmd", first)
	ctx.AddError("cmd", second)
	ctx.AddError("cmd", nil)

	err := ctx.GetErrors()["cmd"]
	assert.True(t, errors.Is(err, first))
	assert.True(t, errors.Is(err, second))
}
