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

// The PlatformOptimizer fans a single clip out into one transcode per target
// platform.
//
// Logic Flow:
//  1. Each platform of the clip is looked up in the profile catalog. Unknown
//     platforms are skipped with a warning.
//  2. **Worker Pool**: a `jobs` channel feeds `transcodeWorker` goroutines and a
//     `results` channel collects their outcomes. Every job carries its own span.
//  3. A failed transcode becomes a StageFailure for that platform only; sibling
//     platforms keep going.
//  4. Results are put back in the clip's platform order before returning.
//
// Outputs of one run land in `<outputDir>/<scope>/`, so concurrent jobs that
// reuse clip ids never write to the same file.

package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/catalog"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/media"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Thumbnailer grabs a still frame from a produced rendition.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, source string, at float64, output string) error
}

// OptimizerOption customizes a PlatformOptimizer.
type OptimizerOption func(*PlatformOptimizer)

// WithThumbnails generates a thumbnail for every produced variant.
func WithThumbnails(t Thumbnailer) OptimizerOption {
	return func(o *PlatformOptimizer) { o.thumbnailer = t }
}

// WithDownloadBase changes the prefix of each variant's download URL.
func WithDownloadBase(base string) OptimizerOption {
	return func(o *PlatformOptimizer) { o.downloadBase = base }
}

// DefaultDownloadBase is the HTTP route serving variant downloads.
const DefaultDownloadBase = "/api/v1/download"

// PlatformOptimizer produces the per-platform variants of a clip.
type PlatformOptimizer struct {
	profiles     *catalog.ProfileCatalog
	transcoder   media.Transcoder
	thumbnailer  Thumbnailer
	outputDir    string
	workers      int
	downloadBase string
	tracer       trace.Tracer
}

// NewPlatformOptimizer is the constructor for PlatformOptimizer.
//
// Inputs:
//   - profiles: The platform profile catalog.
//   - transcoder: The external transcode capability.
//   - outputDir: Base directory; each run writes `<scope>/<clipId>_<platform>_optimized.mp4`.
//   - workers: Maximum concurrent transcodes for one clip (at least 1).
//   - opts: Optional thumbnails and download URL prefix.
func NewPlatformOptimizer(profiles *catalog.ProfileCatalog, transcoder media.Transcoder, outputDir string, workers int, opts ...OptimizerOption) *PlatformOptimizer {
	if workers < 1 {
		workers = 1
	}
	o := &PlatformOptimizer{
		profiles:     profiles,
		transcoder:   transcoder,
		outputDir:    outputDir,
		workers:      workers,
		downloadBase: DefaultDownloadBase,
		tracer:       otel.Tracer("platform-optimizer"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunDir returns the directory of one run under base. An empty scope, or one
// that is not a single path element, yields base itself.
func RunDir(base, scope string) string {
	if scope == "" || scope != filepath.Base(scope) || scope == "." || scope == ".." {
		return base
	}
	return filepath.Join(base, scope)
}

// VariantPath returns the output file of a clip's rendition for a platform.
func VariantPath(outputDir, clipID, platform string) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s_optimized.mp4", clipID, platform))
}

// ThumbnailPath returns the thumbnail file of a clip's rendition for a platform.
func ThumbnailPath(outputDir, clipID, platform string) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s_thumb.jpg", clipID, platform))
}

// transcodeJob is one (clip, platform) unit of work.
type transcodeJob struct {
	index    int
	ctx      context.Context
	span     trace.Span
	clipID   string
	dir      string
	platform string
	profile  model.PlatformProfile
	request  media.TranscodeRequest
}

func (j *transcodeJob) Close(status codes.Code, description string) {
	j.span.SetStatus(status, description)
	j.span.End()
}

type transcodeResult struct {
	index   int
	variant *model.OptimizedVariant
	failure *model.StageFailure
}

// OptimizeForPlatforms transcodes clip from source for every platform of the
// clip that has a profile, writing under RunDir(outputDir, scope). It returns
// the produced variants in the clip's platform order and a diagnostic for
// every platform that failed.
func (o *PlatformOptimizer) OptimizeForPlatforms(ctx context.Context, clip model.ClipCandidate, source string, scope string) ([]model.OptimizedVariant, []model.StageFailure) {
	dir := RunDir(o.outputDir, scope)
	jobs := make(chan *transcodeJob, len(clip.Platforms))
	results := make(chan *transcodeResult, len(clip.Platforms))

	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go o.transcodeWorker(jobs, results, &wg)
	}

	for i, platform := range clip.Platforms {
		profile, ok := o.profiles.Lookup(platform)
		if !ok {
			slog.WarnContext(ctx, "no profile registered for platform, skipping",
				"clip_id", clip.ID, "platform", platform, "stage", model.StageTranscode)
			continue
		}
		jobCtx, span := o.tracer.Start(ctx, fmt.Sprintf("transcode_%s", platform))
		effective := profile.EffectiveDuration(clip.Duration)
		span.SetAttributes(
			attribute.String("clip_id", clip.ID),
			attribute.String("platform", platform),
			attribute.Float64("duration", effective),
		)
		jobs <- &transcodeJob{
			index:    i,
			ctx:      jobCtx,
			span:     span,
			clipID:   clip.ID,
			dir:      dir,
			platform: platform,
			profile:  profile,
			request: media.TranscodeRequest{
				Source:      source,
				Start:       clip.StartTime,
				Duration:    effective,
				AspectRatio: profile.AspectRatio,
				Quality:     profile.Quality,
				Preset:      profile.Preset,
				Output:      VariantPath(dir, clip.ID, platform),
			},
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	collected := make([]*transcodeResult, 0, len(clip.Platforms))
	for r := range results {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(a, b int) bool { return collected[a].index < collected[b].index })

	variants := make([]model.OptimizedVariant, 0, len(collected))
	failures := make([]model.StageFailure, 0)
	for _, r := range collected {
		if r.variant != nil {
			variants = append(variants, *r.variant)
		}
		if r.failure != nil {
			failures = append(failures, *r.failure)
		}
	}
	return variants, failures
}

func (o *PlatformOptimizer) transcodeWorker(jobs <-chan *transcodeJob, results chan<- *transcodeResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for j := range jobs {
		platform := j.platform
		out, err := o.transcoder.Transcode(j.ctx, j.request)
		if err != nil {
			slog.WarnContext(j.ctx, "transcode failed",
				"clip_id", j.clipID, "platform", platform, "stage", model.StageTranscode, "error", err)
			j.span.RecordError(err)
			j.Close(codes.Error, "transcode failed")
			results <- &transcodeResult{index: j.index, failure: &model.StageFailure{
				Stage: model.StageTranscode, Platform: platform, Reason: err.Error(),
			}}
			continue
		}

		variant := &model.OptimizedVariant{
			ClipID:      j.clipID,
			Platform:    platform,
			OutputPath:  out,
			DownloadURL: fmt.Sprintf("%s/%s/%s", o.downloadBase, j.clipID, platform),
			AspectRatio: j.profile.AspectRatio,
			Quality:     j.profile.Quality,
			Duration:    j.request.Duration,
		}
		result := &transcodeResult{index: j.index, variant: variant}

		if o.thumbnailer != nil {
			thumb := ThumbnailPath(j.dir, j.clipID, platform)
			if err := o.thumbnailer.Thumbnail(j.ctx, out, 0, thumb); err != nil {
				slog.WarnContext(j.ctx, "thumbnail failed",
					"clip_id", j.clipID, "platform", platform, "stage", model.StageThumbnail, "error", err)
				result.failure = &model.StageFailure{Stage: model.StageThumbnail, Platform: platform, Reason: err.Error()}
			} else {
				variant.ThumbnailPath = thumb
			}
		}
		j.Close(codes.Ok, "transcoded")
		results <- result
	}
}
