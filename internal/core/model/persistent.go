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

// Package model defines the core data structures of the application. This file
// holds the persisted shapes: the BigQuery row written for every enriched clip
// and the job record kept by the job store.
//
// Structs:
//   - EnrichmentRecord: One BigQuery row per enriched clip.
//   - VariantRecord / ScheduleRecord: Repeated records nested in EnrichmentRecord.
//   - Job: The state of an asynchronous enrichment job.
//
// Functions:
//   - NewEnrichmentRecord: Builds a row with a deterministic id.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VariantRecord is the persisted view of an OptimizedVariant.
type VariantRecord struct {
	Platform    string  `json:"platform" bigquery:"platform"`
	AspectRatio string  `json:"aspect_ratio" bigquery:"aspect_ratio"`
	Quality     string  `json:"quality" bigquery:"quality"`
	Duration    float64 `json:"duration" bigquery:"duration"`
	StorageURI  string  `json:"storage_uri" bigquery:"storage_uri"`
	Thumbnail   string  `json:"thumbnail" bigquery:"thumbnail"`
}

// ScheduleRecord is the persisted view of a ScheduleRecommendation.
type ScheduleRecord struct {
	Platform  string  `json:"platform" bigquery:"platform"`
	Time      string  `json:"time" bigquery:"time"`
	Score     float64 `json:"score" bigquery:"score"`
	Timezone  string  `json:"timezone" bigquery:"timezone"`
	Available bool    `json:"available" bigquery:"available"`
}

// EnrichmentRecord is the BigQuery row written for every enriched clip.
type EnrichmentRecord struct {
	Id                string           `json:"id" bigquery:"id"`
	JobId             string           `json:"job_id" bigquery:"job_id"`
	ClipId            string           `json:"clip_id" bigquery:"clip_id"`
	Source            string           `json:"source" bigquery:"source"`
	OriginalStartTime float64          `json:"original_start_time" bigquery:"original_start_time"`
	StartTime         float64          `json:"start_time" bigquery:"start_time"`
	EndTime           float64          `json:"end_time" bigquery:"end_time"`
	SyncOffset        float64          `json:"sync_offset" bigquery:"sync_offset"`
	ViralScore        float64          `json:"viral_score" bigquery:"viral_score"`
	Emotion           string           `json:"emotion" bigquery:"emotion"`
	CaptionLanguage   string           `json:"caption_language" bigquery:"caption_language"`
	CaptionURI        string           `json:"caption_uri" bigquery:"caption_uri"`
	Transcript        string           `json:"transcript" bigquery:"transcript"`
	Variants          []VariantRecord  `json:"variants" bigquery:"variants"`
	Schedule          []ScheduleRecord `json:"schedule" bigquery:"schedule"`
	Failures          []string         `json:"failures" bigquery:"failures"`
	CreateDate        time.Time        `json:"create_date" bigquery:"create_date"`
}

// NewEnrichmentRecord flattens an enriched clip into a BigQuery row. The id is a
// name-based UUID of the job and clip ids, so re-inserting a redelivered job
// produces the same row id.
func NewEnrichmentRecord(jobID string, source string, clip *EnrichedClip) *EnrichmentRecord {
	rec := &EnrichmentRecord{
		Id:                uuid.NewSHA1(uuid.NameSpaceURL, []byte(jobID+"/"+clip.ID)).String(),
		JobId:             jobID,
		ClipId:            clip.ID,
		Source:            source,
		OriginalStartTime: clip.Sync.OriginalStartTime,
		StartTime:         clip.StartTime,
		EndTime:           clip.EndTime,
		SyncOffset:        clip.Sync.Offset,
		ViralScore:        clip.ViralScore,
		Emotion:           clip.Emotion,
		Variants:          make([]VariantRecord, 0, len(clip.Variants)),
		Schedule:          make([]ScheduleRecord, 0, len(clip.Schedule)),
		Failures:          make([]string, 0, len(clip.Failures)),
		CreateDate:        time.Now(),
	}
	if clip.Caption != nil {
		rec.CaptionLanguage = clip.Caption.Language
		rec.CaptionURI = clip.Caption.StorageURI
		rec.Transcript = clip.Caption.Transcript
	}
	for _, v := range clip.Variants {
		rec.Variants = append(rec.Variants, VariantRecord{
			Platform:    v.Platform,
			AspectRatio: string(v.AspectRatio),
			Quality:     string(v.Quality),
			Duration:    v.Duration,
			StorageURI:  v.StorageURI,
			Thumbnail:   v.ThumbnailPath,
		})
	}
	for _, s := range clip.Schedule {
		rec.Schedule = append(rec.Schedule, ScheduleRecord{
			Platform:  s.Platform,
			Time:      s.Time,
			Score:     s.Score,
			Timezone:  s.Timezone,
			Available: s.Available,
		})
	}
	for _, f := range clip.Failures {
		if f.Platform != "" {
			rec.Failures = append(rec.Failures, fmt.Sprintf("%s[%s]: %s", f.Stage, f.Platform, f.Reason))
		} else {
			rec.Failures = append(rec.Failures, fmt.Sprintf("%s: %s", f.Stage, f.Reason))
		}
	}
	return rec
}

// JobStatus is the lifecycle state of an asynchronous job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the job will not change state again.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobSteps are the processing steps reported to clients on submission.
var JobSteps = []string{
	"Synchronizing cut points with beat markers",
	"Optimizing clips for each platform",
	"Generating captions",
	"Recommending posting times",
}

// Job is the persisted state of an asynchronous enrichment job.
type Job struct {
	ID        string        `json:"jobId"`
	Status    JobStatus     `json:"status"`
	Request   *BatchRequest `json:"request,omitempty"`
	Result    *BatchResult  `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
