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

// Per-clip fan-out of the optimization and caption stages.
//
// Logic Flow:
//  1. **Clip pool**: an errgroup limited to `maxConcurrentClips` runs one
//     goroutine per synced clip.
//  2. **Per-clip context**: each goroutine creates its own `cor.Context` holding
//     the clip, the local source path, the caption language and the run scope,
//     so clips never share mutable state. The scope keeps the files of
//     concurrent runs in separate directories.
//  3. **Parallel stages**: a `cor.BaseParallel` runs OptimizeClip and CaptionClip
//     at the same time against that context.
//  4. **Gather**: variants, the caption and every stage diagnostic are copied
//     back onto the clip. A stage that produced nothing leaves its field empty.
//  5. The command returns after every clip has finished, which is the barrier
//     the scheduling stage depends on.

package commands

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/cor"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/services"
	"golang.org/x/sync/errgroup"
)

// ClipOptimizer is the part of services.PlatformOptimizer used by OptimizeClip.
type ClipOptimizer interface {
	OptimizeForPlatforms(ctx context.Context, clip model.ClipCandidate, source string, scope string) ([]model.OptimizedVariant, []model.StageFailure)
}

// ClipEnricher produces the variants and captions of every clip in the batch.
type ClipEnricher struct {
	cor.BaseCommand
	stages             *cor.BaseParallel
	stageNames         []string
	maxConcurrentClips int
	defaultLanguage    string
}

// NewClipEnricher is the constructor for the ClipEnricher command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - optimizer: Produces the per-platform variants.
//   - captioner: Produces the burned-in captions. Nil disables captioning.
//   - maxConcurrentClips: How many clips are processed at once (at least 1).
//   - defaultLanguage: Caption language when the request names none.
func NewClipEnricher(name string, optimizer ClipOptimizer, captioner services.Captioner, maxConcurrentClips int, defaultLanguage string) *ClipEnricher {
	if maxConcurrentClips < 1 {
		maxConcurrentClips = 1
	}
	out := &ClipEnricher{
		BaseCommand:        *cor.NewBaseCommand(name),
		stages:             cor.NewBaseParallel(name + "-stages"),
		maxConcurrentClips: maxConcurrentClips,
		defaultLanguage:    defaultLanguage,
	}
	optimize := NewOptimizeClip(name+"-optimize", optimizer)
	out.stages.AddCommand(optimize)
	out.stageNames = append(out.stageNames, optimize.GetName())
	if captioner != nil {
		caption := NewCaptionClip(name+"-caption", captioner)
		out.stages.AddCommand(caption)
		out.stageNames = append(out.stageNames, caption.GetName())
	}
	return out
}

// IsExecutable requires the synced clips and the local source path.
func (c *ClipEnricher) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil &&
		context.Get(ParamEnrichedClips) != nil && context.Get(ParamSourcePath) != nil
}

// Execute enriches every clip and waits for all of them.
func (c *ClipEnricher) Execute(chCtx cor.Context) {
	ctx := chCtx.GetContext()
	clips := chCtx.Get(ParamEnrichedClips).([]*model.EnrichedClip)
	source := chCtx.Get(ParamSourcePath).(string)
	language := c.defaultLanguage
	if req, ok := chCtx.Get(ParamBatchRequest).(*model.BatchRequest); ok && req.Language != "" {
		language = req.Language
	}
	scope := RunScope(chCtx)

	var g errgroup.Group
	g.SetLimit(c.maxConcurrentClips)
	for _, clip := range clips {
		g.Go(func() error {
			c.enrich(ctx, clip, source, language, scope)
			return nil
		})
	}
	_ = g.Wait()

	c.GetSuccessCounter().Add(ctx, int64(len(clips)))
	chCtx.Add(c.GetOutputParam(), clips)
}

func (c *ClipEnricher) enrich(ctx context.Context, clip *model.EnrichedClip, source string, language string, scope string) {
	clipCtx := cor.NewBaseContextWith(ctx)
	defer clipCtx.Close()
	clipCtx.Add(ParamClip, clip).
		Add(ParamSourcePath, source).
		Add(ParamLanguage, language).
		Add(ParamRunScope, scope)

	c.stages.Execute(clipCtx)

	if variants, ok := clipCtx.Get(ParamVariants).([]model.OptimizedVariant); ok {
		clip.Variants = variants
	}
	if caption, ok := clipCtx.Get(ParamCaption).(*model.CaptionResult); ok {
		clip.Caption = caption
	}
	for _, name := range c.stageNames {
		if failures, ok := clipCtx.Get(FailuresParam(name)).([]model.StageFailure); ok {
			clip.Failures = append(clip.Failures, failures...)
		}
	}
	slog.DebugContext(ctx, "clip enriched", "clip_id", clip.ID,
		"variants", len(clip.Variants), "captioned", clip.Caption != nil, "failures", len(clip.Failures))
}

// RunScope returns the directory scope of the run held by context, assigning
// one on first use: the job id when there is one, otherwise a fresh UUID.
func RunScope(context cor.Context) string {
	if scope, ok := context.Get(ParamRunScope).(string); ok && scope != "" {
		return scope
	}
	scope, _ := context.Get(ParamJobID).(string)
	if scope == "" {
		scope = uuid.NewString()
	}
	context.Add(ParamRunScope, scope)
	return scope
}

// OptimizeClip runs the platform optimizer for the clip of a per-clip context.
type OptimizeClip struct {
	cor.BaseCommand
	optimizer ClipOptimizer
}

// NewOptimizeClip is the constructor for the OptimizeClip command.
func NewOptimizeClip(name string, optimizer ClipOptimizer) *OptimizeClip {
	return &OptimizeClip{BaseCommand: *cor.NewBaseCommand(name), optimizer: optimizer}
}

// IsExecutable requires the clip and the source path.
func (c *OptimizeClip) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil &&
		context.Get(ParamClip) != nil && context.Get(ParamSourcePath) != nil
}

// Execute stores the variants under ParamVariants.
func (c *OptimizeClip) Execute(context cor.Context) {
	ctx := context.GetContext()
	clip := context.Get(ParamClip).(*model.EnrichedClip)
	source := context.Get(ParamSourcePath).(string)

	scope, _ := context.Get(ParamRunScope).(string)

	variants, failures := c.optimizer.OptimizeForPlatforms(ctx, clip.ClipCandidate, source, scope)
	c.GetSuccessCounter().Add(ctx, int64(len(variants)))
	c.GetErrorCounter().Add(ctx, int64(len(failures)))

	context.Add(ParamVariants, variants)
	if len(failures) > 0 {
		context.Add(FailuresParam(c.GetName()), failures)
	}
}

// CaptionClip runs the captioner for the clip of a per-clip context. A
// failure leaves the caption unset and records a diagnostic.
type CaptionClip struct {
	cor.BaseCommand
	captioner services.Captioner
}

// NewCaptionClip is the constructor for the CaptionClip command.
func NewCaptionClip(name string, captioner services.Captioner) *CaptionClip {
	return &CaptionClip{BaseCommand: *cor.NewBaseCommand(name), captioner: captioner}
}

// IsExecutable requires the clip and the source path.
func (c *CaptionClip) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil &&
		context.Get(ParamClip) != nil && context.Get(ParamSourcePath) != nil
}

// Execute stores the caption under ParamCaption.
func (c *CaptionClip) Execute(context cor.Context) {
	ctx := context.GetContext()
	clip := context.Get(ParamClip).(*model.EnrichedClip)
	language, _ := context.Get(ParamLanguage).(string)
	scope, _ := context.Get(ParamRunScope).(string)

	caption, err := c.captioner.Caption(ctx, services.CaptionRequest{
		ClipID:   clip.ID,
		Source:   context.Get(ParamSourcePath).(string),
		Start:    clip.StartTime,
		Duration: clip.Duration,
		Language: language,
		Scope:    scope,
	})
	if err != nil {
		c.GetErrorCounter().Add(ctx, 1)
		slog.WarnContext(ctx, "caption failed, clip continues without captions",
			"clip_id", clip.ID, "stage", model.StageCaption, "error", err)
		context.Add(FailuresParam(c.GetName()), []model.StageFailure{{Stage: model.StageCaption, Reason: err.Error()}})
		return
	}
	c.GetSuccessCounter().Add(ctx, 1)
	context.Add(ParamCaption, caption)
}
