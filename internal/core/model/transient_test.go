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

package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func TestClipNormalizeDerivesMissingField(t *testing.T) {
	fromRange := model.ClipCandidate{ID: "a", StartTime: 10, EndTime: 25, Platforms: []string{" TikTok "}}
	fromRange.Normalize()
	assert.Equal(t, 15.0, fromRange.Duration)
	assert.Equal(t, []string{"tiktok"}, fromRange.Platforms)

	fromLength := model.ClipCandidate{ID: "b", StartTime: 10, Duration: 30, Platforms: []string{"youtube"}}
	fromLength.Normalize()
	assert.Equal(t, 40.0, fromLength.EndTime)
}

func TestClipValidate(t *testing.T) {
	valid := model.ClipCandidate{ID: "c1", StartTime: 45, EndTime: 75, Duration: 30, ViralScore: 90, Platforms: []string{"tiktok"}}
	assert.NoError(t, valid.Validate())

	cases := map[string]model.ClipCandidate{
		"missing id":         {StartTime: 1, EndTime: 2, Duration: 1, Platforms: []string{"tiktok"}},
		"negative start":     {ID: "x", StartTime: -1, EndTime: 2, Duration: 3, Platforms: []string{"tiktok"}},
		"duration mismatch":  {ID: "x", StartTime: 1, EndTime: 2, Duration: 5, Platforms: []string{"tiktok"}},
		"score out of range": {ID: "x", StartTime: 1, EndTime: 2, Duration: 1, ViralScore: 101, Platforms: []string{"tiktok"}},
		"no platforms":       {ID: "x", StartTime: 1, EndTime: 2, Duration: 1},
		"duplicate platform": {ID: "x", StartTime: 1, EndTime: 2, Duration: 1, Platforms: []string{"tiktok", "tiktok"}},
		"id escapes dir":     {ID: "../../../etc/cron.d/x", StartTime: 1, EndTime: 2, Duration: 1, Platforms: []string{"tiktok"}},
		"id with separator":  {ID: "a/b", StartTime: 1, EndTime: 2, Duration: 1, Platforms: []string{"tiktok"}},
		"id with backslash":  {ID: `a\b`, StartTime: 1, EndTime: 2, Duration: 1, Platforms: []string{"tiktok"}},
		"hidden file id":     {ID: ".x", StartTime: 1, EndTime: 2, Duration: 1, Platforms: []string{"tiktok"}},
		"id with space":      {ID: "clip 1", StartTime: 1, EndTime: 2, Duration: 1, Platforms: []string{"tiktok"}},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			err := c.Validate()
			assert.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidClip))
		})
	}
}

func TestClipValidateAcceptsFileSafeIDs(t *testing.T) {
	for _, id := range []string{"c1", "clip_1", "Clip-2.v3", "a..b", "0"} {
		c := model.ClipCandidate{ID: id, StartTime: 1, EndTime: 2, Duration: 1, Platforms: []string{"tiktok"}}
		assert.NoError(t, c.Validate(), id)
	}
}

func TestBatchRequestValidateLanguage(t *testing.T) {
	clips := func() []model.ClipCandidate {
		return []model.ClipCandidate{{ID: "c1", StartTime: 0, Duration: 10, Platforms: []string{"tiktok"}}}
	}
	for _, lang := range []string{"", "pt", "eng", "pt-BR", "zh_Hant"} {
		req := &model.BatchRequest{Source: "stream.mp4", Language: lang, Clips: clips()}
		assert.NoError(t, req.Validate(), lang)
	}
	for _, lang := range []string{"../../tmp/evil", "pt/BR", "p", ".pt", "pt BR"} {
		req := &model.BatchRequest{Source: "stream.mp4", Language: lang, Clips: clips()}
		err := req.Validate()
		assert.ErrorIs(t, err, model.ErrInvalidClip, lang)
	}
}

func TestValidateClipsRejectsDuplicateIDs(t *testing.T) {
	clips := []model.ClipCandidate{
		{ID: "c1", StartTime: 0, Duration: 10, Platforms: []string{"tiktok"}},
		{ID: "c1", StartTime: 20, Duration: 10, Platforms: []string{"tiktok"}},
	}
	assert.Error(t, model.ValidateClips(clips))
	assert.Error(t, model.ValidateClips(nil))
}

func TestSyncResultApplyDoesNotAlias(t *testing.T) {
	clip := model.ClipCandidate{ID: "c1", StartTime: 45, EndTime: 75, Duration: 30, Platforms: []string{"tiktok"}}
	synced := model.SyncResult{NewStartTime: 44.5, NewEndTime: 74.5}.Apply(clip)

	assert.Equal(t, 44.5, synced.StartTime)
	assert.Equal(t, 74.5, synced.EndTime)
	assert.Equal(t, 30.0, synced.Duration)

	synced.Platforms[0] = "changed"
	assert.Equal(t, "tiktok", clip.Platforms[0])
}

func TestAspectRatioScaleFilter(t *testing.T) {
	assert.Equal(t, "scale=-2:1280,crop=720:1280", model.AspectVertical.ScaleFilter())
	assert.Equal(t, "scale=1080:-2,crop=1080:1080", model.AspectSquare.ScaleFilter())
	assert.Equal(t, "scale=1920:-2,crop=1920:1080", model.AspectHorizontal.ScaleFilter())
	assert.Equal(t, "scale=1920:-2", model.AspectRatio("4:5").ScaleFilter())
}

func TestQualityTierCRF(t *testing.T) {
	assert.Equal(t, 18, model.QualityVeryHigh.CRF())
	assert.Equal(t, 23, model.QualityHigh.CRF())
	assert.Equal(t, 28, model.QualityMedium.CRF())
	assert.Equal(t, 32, model.QualityLow.CRF())
	assert.Equal(t, 23, model.QualityTier("ultra").CRF())
}

func TestParseWeekday(t *testing.T) {
	d, err := model.ParseWeekday("Wednesday")
	assert.NoError(t, err)
	assert.Equal(t, time.Wednesday, d)

	d, err = model.ParseWeekday("sun")
	assert.NoError(t, err)
	assert.Equal(t, time.Sunday, d)

	_, err = model.ParseWeekday("funday")
	assert.Error(t, err)
}

func TestComputeStats(t *testing.T) {
	clips := []model.EnrichedClip{
		{
			ClipCandidate: model.ClipCandidate{ID: "a", ViralScore: 80},
			Variants:      []model.OptimizedVariant{{Platform: "tiktok"}, {Platform: "youtube"}},
			Caption:       &model.CaptionResult{Language: "pt"},
		},
		{
			ClipCandidate: model.ClipCandidate{ID: "b", ViralScore: 60},
			Variants:      []model.OptimizedVariant{{Platform: "tiktok"}},
			Failures:      []model.StageFailure{{Stage: model.StageCaption}},
		},
	}
	best := &model.GlobalOptimum{ClipID: "a", Platform: "tiktok", Time: "17:00", Score: 0.95}

	stats := model.ComputeStats(clips, "en", best)

	assert.Equal(t, 70.0, stats.AvgViralScore)
	assert.Equal(t, []string{"tiktok", "youtube"}, stats.Platforms)
	assert.Equal(t, []string{"pt"}, stats.Languages)
	assert.Equal(t, 3, stats.Variants)
	assert.Equal(t, 1, stats.Failures)
	assert.Same(t, best, stats.BestTiming)
}
