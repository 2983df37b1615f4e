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

package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/catalog"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/commands"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/cor"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/services"
	test "github.com/jaycherian/gcp-go-clip-enrichment/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncedContext returns a context holding the request and the un-synced clips.
func syncedContext(req *model.BatchRequest) cor.Context {
	chCtx := cor.NewBaseContextWith(context.Background())
	chCtx.Add(commands.ParamBatchRequest, req).
		Add(commands.ParamSourcePath, req.Source)
	commands.NewBeatSync("sync").Execute(chCtx)
	return chCtx
}

func TestClipEnricherProducesVariantsAndCaptions(t *testing.T) {
	req := test.SampleBatchRequest("stream.mp4")
	chCtx := syncedContext(req)

	transcoder := test.NewFakeTranscoder(map[string]error{"youtube": errors.New("transcode failed: Unknown encoder 'libx264'")})
	optimizer := services.NewPlatformOptimizer(catalog.DefaultProfiles(), transcoder, "out", 2)
	captioner := &test.FakeCaptioner{FailOn: map[string]error{"c3": services.ErrEmptyTranscript}}

	enricher := commands.NewClipEnricher("enrich", optimizer, captioner, 2, "en")
	require.True(t, enricher.IsExecutable(chCtx))
	enricher.Execute(chCtx)
	require.False(t, chCtx.HasErrors())

	clips := chCtx.Get(commands.ParamEnrichedClips).([]*model.EnrichedClip)
	require.Len(t, clips, 3)

	c1 := clips[0]
	require.Len(t, c1.Variants, 1)
	assert.Equal(t, "tiktok", c1.Variants[0].Platform)
	require.Len(t, c1.Failures, 1)
	assert.Equal(t, model.StageTranscode, c1.Failures[0].Stage)
	assert.Equal(t, "youtube", c1.Failures[0].Platform)
	require.NotNil(t, c1.Caption)
	assert.Equal(t, "pt", c1.Caption.Language)

	// Unknown platforms are skipped without a diagnostic.
	c2 := clips[1]
	assert.Equal(t, []string{"instagram"}, c2.ProducedPlatforms())
	assert.Empty(t, c2.Failures)

	c3 := clips[2]
	assert.Equal(t, []string{"kwai"}, c3.ProducedPlatforms())
	assert.Nil(t, c3.Caption)
	require.Len(t, c3.Failures, 1)
	assert.Equal(t, model.StageCaption, c3.Failures[0].Stage)
	assert.Contains(t, c3.Failures[0].Reason, "transcript has no words")

	assert.Len(t, captioner.Requests, 3)
	for _, r := range captioner.Requests {
		assert.Equal(t, "stream.mp4", r.Source)
	}
}

func TestClipEnricherWithoutCaptioner(t *testing.T) {
	req := test.SampleBatchRequest("stream.mp4")
	req.Language = ""
	chCtx := syncedContext(req)

	optimizer := services.NewPlatformOptimizer(catalog.DefaultProfiles(), test.NewFakeTranscoder(nil), "out", 1)
	commands.NewClipEnricher("enrich", optimizer, nil, 0, "en").Execute(chCtx)

	clips := chCtx.Get(commands.ParamEnrichedClips).([]*model.EnrichedClip)
	for _, clip := range clips {
		assert.Nil(t, clip.Caption)
		assert.Empty(t, clip.Failures)
		assert.NotEmpty(t, clip.Variants)
	}
}

func TestClipEnricherProcessesClipsConcurrently(t *testing.T) {
	chCtx := syncedContext(test.SampleBatchRequest("stream.mp4"))

	transcoder := test.NewFakeTranscoder(nil)
	transcoder.Delay = 50 * time.Millisecond
	optimizer := services.NewPlatformOptimizer(catalog.DefaultProfiles(), transcoder, "out", 1)
	commands.NewClipEnricher("enrich", optimizer, nil, 3, "en").Execute(chCtx)

	// One transcode worker per clip, so overlap can only come from clips
	// running side by side.
	assert.Greater(t, transcoder.Peak, 1)
	assert.Len(t, transcoder.Requests, 4)
}

func TestScheduleAdvisorUsesProducedPlatforms(t *testing.T) {
	req := test.SampleBatchRequest("stream.mp4")
	chCtx := syncedContext(req)
	clips := chCtx.Get(commands.ParamEnrichedClips).([]*model.EnrichedClip)
	clips[0].Variants = []model.OptimizedVariant{{ClipID: "c1", Platform: "tiktok"}}
	clips[1].Variants = []model.OptimizedVariant{{ClipID: "c2", Platform: "instagram"}}

	advisor := services.NewSchedulingAdvisor(catalog.DefaultEngagement())
	cmd := commands.NewScheduleAdvisor("schedule", advisor, services.MustParseUTCOffset("Z"), nil)
	require.True(t, cmd.IsExecutable(chCtx))
	cmd.Execute(chCtx)

	report := chCtx.Get(commands.ParamScheduleReport).(*model.ScheduleReport)
	assert.Equal(t, "-03:00", report.Timezone)
	require.Len(t, report.Clips, 3)
	require.Len(t, clips[0].Schedule, 1)
	assert.Equal(t, "tiktok", clips[0].Schedule[0].Platform)
	assert.Equal(t, "-03:00", clips[0].Schedule[0].Timezone)
	assert.Empty(t, clips[2].Schedule, "a clip without variants gets no recommendation")
	require.NotNil(t, report.GlobalOptimum)
}

func TestScheduleAdvisorFallsBackToDefaultTimezone(t *testing.T) {
	req := test.SampleBatchRequest("stream.mp4")
	req.Timezone = "Mars/Olympus"
	chCtx := syncedContext(req)
	clips := chCtx.Get(commands.ParamEnrichedClips).([]*model.EnrichedClip)
	clips[0].Variants = []model.OptimizedVariant{{ClipID: "c1", Platform: "tiktok"}}

	advisor := services.NewSchedulingAdvisor(catalog.DefaultEngagement())
	commands.NewScheduleAdvisor("schedule", advisor, services.MustParseUTCOffset("+01:00"), nil).Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	report := chCtx.Get(commands.ParamScheduleReport).(*model.ScheduleReport)
	assert.Equal(t, "+01:00", report.Timezone)
}

func TestBatchAssembler(t *testing.T) {
	req := test.SampleBatchRequest("stream.mp4")
	chCtx := syncedContext(req)
	clips := chCtx.Get(commands.ParamEnrichedClips).([]*model.EnrichedClip)
	clips[0].Variants = []model.OptimizedVariant{{ClipID: "c1", Platform: "tiktok"}, {ClipID: "c1", Platform: "youtube"}}
	clips[1].Variants = []model.OptimizedVariant{{ClipID: "c2", Platform: "instagram"}}
	clips[2].Failures = []model.StageFailure{{Stage: model.StageCaption, Reason: "no speech"}}
	best := &model.GlobalOptimum{ClipID: "c1", Platform: "tiktok", Time: "21:00", Score: 0.9}
	chCtx.Add(commands.ParamScheduleReport, &model.ScheduleReport{Timezone: "-03:00", GlobalOptimum: best}).
		Add(commands.ParamJobID, "job_1")

	processed := time.Date(2024, time.October, 16, 20, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	cmd := commands.NewBatchAssembler("assemble", "en", func() time.Time { return processed })
	require.True(t, cmd.IsExecutable(chCtx))
	cmd.Execute(chCtx)

	result := chCtx.Get(commands.ParamBatchResult).(*model.BatchResult)
	assert.Same(t, result, chCtx.Get(cor.CtxOut))
	assert.Equal(t, "job_1", result.JobID)
	assert.Equal(t, "stream.mp4", result.Source)
	assert.Equal(t, time.UTC, result.ProcessedAt.Location())
	assert.Equal(t, 3, result.TotalClips)
	assert.Equal(t, []string{"c1", "c2", "c3"}, []string{result.Clips[0].ID, result.Clips[1].ID, result.Clips[2].ID})
	assert.Equal(t, "-03:00", result.Scheduling.Timezone)

	assert.InDelta(t, (87.0+64+71)/3, result.Stats.AvgViralScore, 1e-9)
	assert.Equal(t, []string{"tiktok", "youtube", "instagram"}, result.Stats.Platforms)
	assert.Equal(t, []string{"pt"}, result.Stats.Languages)
	assert.Equal(t, 3, result.Stats.Variants)
	assert.Equal(t, 1, result.Stats.Failures)
	assert.Equal(t, best, result.Stats.BestTiming)
}

func TestRunScope(t *testing.T) {
	withJob := cor.NewBaseContextWith(context.Background())
	withJob.Add(commands.ParamJobID, "job_9")
	assert.Equal(t, "job_9", commands.RunScope(withJob))

	anonymous := cor.NewBaseContextWith(context.Background())
	scope := commands.RunScope(anonymous)
	assert.Regexp(t, `^[0-9a-f-]{36}$`, scope)
	assert.Equal(t, scope, commands.RunScope(anonymous))
	assert.Equal(t, scope, anonymous.Get(commands.ParamRunScope))
}
