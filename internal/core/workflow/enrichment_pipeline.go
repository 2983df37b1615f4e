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

// Package workflow defines the high-level orchestrations, combining commands
// into pipelines. This file implements the enrichment pipeline itself: the
// library entry point that turns a batch of clip candidates into enriched clips.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/commands"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/cor"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/media"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/services"
)

// PipelineDependencies are the collaborators injected into the pipeline.
// Captioner may be nil, in which case no captions are produced.
type PipelineDependencies struct {
	Prober             media.Prober
	Beats              services.BeatSource
	Optimizer          commands.ClipOptimizer
	Captioner          services.Captioner
	Advisor            *services.SchedulingAdvisor
	MaxConcurrentClips int
	DefaultTimezone    services.UTCOffset
	DefaultLanguage    string
	Clock              func() time.Time
}

// EnrichmentPipeline runs beat sync, per-clip optimization and captioning, and
// batch scheduling. It is a cor.Command so it can be embedded in larger
// workflows, and it exposes EnrichBatch for direct use.
//
// The pipeline never fails a batch because a stage failed: every input clip
// yields an EnrichedClip carrying whatever succeeded plus a diagnostic for what
// did not.
type EnrichmentPipeline struct {
	cor.BaseCommand
	deps  PipelineDependencies
	chain cor.Chain
}

// NewEnrichmentPipeline is the constructor for the EnrichmentPipeline.
//
// Inputs:
//   - name: A string name for this pipeline, used for telemetry.
//   - deps: The collaborators. Prober, Beats, Optimizer and Advisor are required.
//
// Returns:
//   - A pointer to a fully initialized EnrichmentPipeline.
func NewEnrichmentPipeline(name string, deps PipelineDependencies) *EnrichmentPipeline {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	p := &EnrichmentPipeline{
		BaseCommand: *cor.NewBaseCommand(name),
		deps:        deps,
	}
	p.initializeChain()
	return p
}

// initializeChain builds the sequence of stages.
func (p *EnrichmentPipeline) initializeChain() {
	out := cor.NewBaseChain(p.GetName())

	// Step 1: Probe the source duration. A failure is remembered and turns beat
	// detection into a no-op.
	out.AddCommand(commands.NewMediaProbe("probe-source", p.deps.Prober))

	// Step 2: Derive the beat markers of the whole source.
	out.AddCommand(commands.NewBeatDetector("detect-beats", p.deps.Beats))

	// Step 3: Snap every clip's start to its closest beat.
	out.AddCommand(commands.NewBeatSync("sync-clips"))

	// Step 4: Per clip, optimize for every platform and caption concurrently.
	// Returns once every clip is done.
	out.AddCommand(commands.NewClipEnricher("enrich-clips", p.deps.Optimizer, p.deps.Captioner,
		p.deps.MaxConcurrentClips, p.deps.DefaultLanguage))

	// Step 5: Recommend posting times over the whole batch.
	out.AddCommand(commands.NewScheduleAdvisor("recommend-schedule", p.deps.Advisor, p.deps.DefaultTimezone, p.deps.Clock))

	// Step 6: Build the BatchResult in request order.
	out.AddCommand(commands.NewBatchAssembler("assemble-batch", p.deps.DefaultLanguage, p.deps.Clock))

	p.chain = out
}

// IsExecutable requires the request and the local source path.
func (p *EnrichmentPipeline) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil &&
		context.Get(commands.ParamBatchRequest) != nil && context.Get(commands.ParamSourcePath) != nil
}

// Execute runs the pipeline chain against the context.
func (p *EnrichmentPipeline) Execute(context cor.Context) {
	p.chain.Execute(context)
}

// EnrichBatch validates req and enriches its clips from req.Source, which must
// be readable by the injected collaborators. The result holds one EnrichedClip
// per requested clip, in request order.
//
// An error is only returned for an invalid request or when ctx is cancelled
// before the batch completes.
func (p *EnrichmentPipeline) EnrichBatch(ctx context.Context, req *model.BatchRequest) (*model.BatchResult, error) {
	if req == nil {
		return nil, errors.New("batch request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	chCtx := cor.NewBaseContextWith(ctx)
	defer chCtx.Close()
	chCtx.Add(commands.ParamBatchRequest, req).
		Add(commands.ParamSourcePath, req.Source)

	p.Execute(chCtx)

	if err := chCtx.Err(); err != nil {
		return nil, err
	}
	result, ok := chCtx.Get(commands.ParamBatchResult).(*model.BatchResult)
	if !ok {
		return nil, errors.New("enrichment pipeline produced no result")
	}
	return result, nil
}
