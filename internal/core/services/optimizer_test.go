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

package services_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/catalog"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/media"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/services"
	test "github.com/jaycherian/gcp-go-clip-enrichment/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multiPlatformClip(duration float64, platforms ...string) model.ClipCandidate {
	return model.ClipCandidate{
		ID: "c7", StartTime: 10, EndTime: 10 + duration, Duration: duration,
		ViralScore: 90, Platforms: platforms,
	}
}

func TestOptimizeSkipsUnknownPlatform(t *testing.T) {
	transcoder := test.NewFakeTranscoder(nil)
	optimizer := services.NewPlatformOptimizer(catalog.DefaultProfiles(), transcoder, "out", 2)

	variants, failures := optimizer.OptimizeForPlatforms(context.Background(), multiPlatformClip(30, "unknownPlatform"), "src.mp4", "")

	assert.NotNil(t, variants)
	assert.Empty(t, variants)
	assert.Empty(t, failures)
	assert.Empty(t, transcoder.Requests)
}

func TestOptimizeProducesVariantsInPlatformOrder(t *testing.T) {
	transcoder := test.NewFakeTranscoder(nil)
	optimizer := services.NewPlatformOptimizer(catalog.DefaultProfiles(), transcoder, "out", 3)

	variants, failures := optimizer.OptimizeForPlatforms(context.Background(),
		multiPlatformClip(100, "youtube", "myspace", "tiktok", "instagram"), "src.mp4", "")

	require.Empty(t, failures)
	require.Len(t, variants, 3)
	assert.Equal(t, []string{"youtube", "tiktok", "instagram"}, []string{variants[0].Platform, variants[1].Platform, variants[2].Platform})

	tiktok := variants[1]
	assert.Equal(t, "c7", tiktok.ClipID)
	assert.Equal(t, filepath.Join("out", "c7_tiktok_optimized.mp4"), tiktok.OutputPath)
	assert.Equal(t, "/api/v1/download/c7/tiktok", tiktok.DownloadURL)
	assert.Equal(t, model.AspectVertical, tiktok.AspectRatio)
	assert.Equal(t, model.QualityHigh, tiktok.Quality)
	assert.Equal(t, 60.0, tiktok.Duration)
	assert.Equal(t, 90.0, variants[0].Duration)

	req, ok := transcoder.RequestFor("youtube")
	require.True(t, ok)
	assert.Equal(t, media.TranscodeRequest{
		Source:      "src.mp4",
		Start:       10,
		Duration:    90,
		AspectRatio: model.AspectHorizontal,
		Quality:     model.QualityVeryHigh,
		Preset:      "medium",
		Output:      filepath.Join("out", "c7_youtube_optimized.mp4"),
	}, req)
}

func TestOptimizeEffectiveDurationNeverExceedsLimits(t *testing.T) {
	profiles := catalog.DefaultProfiles()
	optimizer := services.NewPlatformOptimizer(profiles, test.NewFakeTranscoder(nil), "out", 4)

	for _, d := range []float64{5, 59.9, 60, 61, 95, 300} {
		c := multiPlatformClip(d, profiles.Platforms()...)
		variants, _ := optimizer.OptimizeForPlatforms(context.Background(), c, "src.mp4", "")
		require.Len(t, variants, len(profiles.Platforms()))
		for _, v := range variants {
			p, _ := profiles.Lookup(v.Platform)
			assert.LessOrEqual(t, v.Duration, p.MaxDuration)
			assert.LessOrEqual(t, v.Duration, d)
		}
	}
}

func TestOptimizeIsolatesTranscodeFailure(t *testing.T) {
	transcoder := test.NewFakeTranscoder(map[string]error{
		"tiktok": &media.TranscodeFailure{Reason: "Unknown encoder 'libx264'"},
	})
	optimizer := services.NewPlatformOptimizer(catalog.DefaultProfiles(), transcoder, "out", 2)

	variants, failures := optimizer.OptimizeForPlatforms(context.Background(),
		multiPlatformClip(30, "tiktok", "youtube", "instagram"), "src.mp4", "")

	require.Len(t, variants, 2)
	assert.Equal(t, "youtube", variants[0].Platform)
	assert.Equal(t, "instagram", variants[1].Platform)
	require.Len(t, failures, 1)
	assert.Equal(t, model.StageFailure{
		Stage:    model.StageTranscode,
		Platform: "tiktok",
		Reason:   "transcode failed: Unknown encoder 'libx264'",
	}, failures[0])
	assert.Len(t, transcoder.Requests, 3)
}

func TestOptimizeRunsPlatformsConcurrently(t *testing.T) {
	transcoder := test.NewFakeTranscoder(nil)
	transcoder.Delay = 50 * time.Millisecond
	optimizer := services.NewPlatformOptimizer(catalog.DefaultProfiles(), transcoder, "out", 3)

	variants, _ := optimizer.OptimizeForPlatforms(context.Background(),
		multiPlatformClip(30, "tiktok", "youtube", "instagram"), "src.mp4", "")

	assert.Len(t, variants, 3)
	assert.Greater(t, transcoder.Peak, 1)
	assert.LessOrEqual(t, transcoder.Peak, 3)
}

func TestOptimizeWithThumbnails(t *testing.T) {
	thumbs := &test.FakeThumbnailer{}
	optimizer := services.NewPlatformOptimizer(catalog.DefaultProfiles(), test.NewFakeTranscoder(nil), "out", 1,
		services.WithThumbnails(thumbs), services.WithDownloadBase("/v2/dl"))

	variants, failures := optimizer.OptimizeForPlatforms(context.Background(), multiPlatformClip(30, "kwai"), "src.mp4", "")

	require.Len(t, variants, 1)
	assert.Empty(t, failures)
	assert.Equal(t, filepath.Join("out", "c7_kwai_thumb.jpg"), variants[0].ThumbnailPath)
	assert.Equal(t, "/v2/dl/c7/kwai", variants[0].DownloadURL)
	assert.Equal(t, []string{filepath.Join("out", "c7_kwai_thumb.jpg")}, thumbs.Calls)
}

func TestOptimizeKeepsVariantWhenThumbnailFails(t *testing.T) {
	thumbs := &test.FakeThumbnailer{Err: errors.New("no frame")}
	optimizer := services.NewPlatformOptimizer(catalog.DefaultProfiles(), test.NewFakeTranscoder(nil), "out", 1,
		services.WithThumbnails(thumbs))

	variants, failures := optimizer.OptimizeForPlatforms(context.Background(), multiPlatformClip(30, "kwai"), "src.mp4", "")

	require.Len(t, variants, 1)
	assert.Empty(t, variants[0].ThumbnailPath)
	require.Len(t, failures, 1)
	assert.Equal(t, model.StageThumbnail, failures[0].Stage)
	assert.Equal(t, "kwai", failures[0].Platform)
}

func TestOptimizeWritesUnderRunScope(t *testing.T) {
	thumbs := &test.FakeThumbnailer{}
	transcoder := test.NewFakeTranscoder(nil)
	optimizer := services.NewPlatformOptimizer(catalog.DefaultProfiles(), transcoder, "out", 2,
		services.WithThumbnails(thumbs))

	a, _ := optimizer.OptimizeForPlatforms(context.Background(), multiPlatformClip(30, "tiktok"), "src.mp4", "job_a")
	b, _ := optimizer.OptimizeForPlatforms(context.Background(), multiPlatformClip(30, "tiktok"), "src.mp4", "job_b")

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, filepath.Join("out", "job_a", "c7_tiktok_optimized.mp4"), a[0].OutputPath)
	assert.Equal(t, filepath.Join("out", "job_b", "c7_tiktok_optimized.mp4"), b[0].OutputPath)
	assert.Equal(t, filepath.Join("out", "job_a", "c7_tiktok_thumb.jpg"), a[0].ThumbnailPath)
	assert.Equal(t, "/api/v1/download/c7/tiktok", a[0].DownloadURL)
}

func TestRunDir(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "job_1"), services.RunDir("out", "job_1"))
	for _, scope := range []string{"", ".", "..", "../x", "a/b"} {
		assert.Equal(t, "out", services.RunDir("out", scope), scope)
	}
}
