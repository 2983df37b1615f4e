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
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func TestNewEnrichmentRecord(t *testing.T) {
	clip := &model.EnrichedClip{
		ClipCandidate: model.ClipCandidate{
			ID: "c1", StartTime: 44.5, EndTime: 74.5, Duration: 30, ViralScore: 88, Emotion: "joy",
			Platforms: []string{"tiktok", "youtube"},
		},
		Sync: model.SyncResult{OriginalStartTime: 45, NewStartTime: 44.5, NewEndTime: 74.5, Offset: -0.5},
		Variants: []model.OptimizedVariant{
			{ClipID: "c1", Platform: "tiktok", AspectRatio: model.AspectVertical, Quality: model.QualityHigh, Duration: 30},
		},
		Caption: &model.CaptionResult{Language: "pt", StorageURI: "gs://out/c1_pt_final.mp4", Transcript: "oi"},
		Schedule: []model.ScheduleRecommendation{
			{Platform: "tiktok", Time: "17:00", Score: 0.9, Timezone: "-03:00", Available: true},
		},
		Failures: []model.StageFailure{{Stage: model.StageTranscode, Platform: "youtube", Reason: "encoder missing"}},
	}

	rec := model.NewEnrichmentRecord("job_1", "gs://in/source.mp4", clip)

	assert.Equal(t, uuid.NewSHA1(uuid.NameSpaceURL, []byte("job_1/c1")).String(), rec.Id)
	assert.Equal(t, "c1", rec.ClipId)
	assert.Equal(t, 45.0, rec.OriginalStartTime)
	assert.Equal(t, -0.5, rec.SyncOffset)
	assert.Equal(t, "pt", rec.CaptionLanguage)
	assert.Len(t, rec.Variants, 1)
	assert.Equal(t, "9:16", rec.Variants[0].AspectRatio)
	assert.Len(t, rec.Schedule, 1)
	assert.Equal(t, []string{"transcode[youtube]: encoder missing"}, rec.Failures)
	assert.WithinDuration(t, time.Now(), rec.CreateDate, time.Second)

	again := model.NewEnrichmentRecord("job_1", "gs://in/source.mp4", clip)
	assert.Equal(t, rec.Id, again.Id)
}

func TestNewEnrichmentRecordWithoutCaption(t *testing.T) {
	clip := &model.EnrichedClip{ClipCandidate: model.ClipCandidate{ID: "c2"}}
	rec := model.NewEnrichmentRecord("job_2", "local.mp4", clip)
	assert.Empty(t, rec.CaptionURI)
	assert.NotNil(t, rec.Variants)
	assert.NotNil(t, rec.Failures)
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, model.JobPending.Terminal())
	assert.False(t, model.JobProcessing.Terminal())
	assert.True(t, model.JobCompleted.Terminal())
	assert.True(t, model.JobFailed.Terminal())
}
