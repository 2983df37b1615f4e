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

// Package model defines the core data structures that flow through the clip
// enrichment pipeline. This file holds the transient types: values that exist
// only while a batch is being enriched and are handed to the caller once the
// pipeline finishes.
//
// Structs:
//   - ClipCandidate: A proposed excerpt of the source video (time range + score).
//   - SyncResult: The outcome of snapping a clip's start to a beat marker.
//   - OptimizedVariant: One platform-specific rendition of a clip.
//   - CaptionResult / Transcript / Word: The captioning stage outputs.
//   - StageFailure: A diagnostic attached to a clip when a stage degrades.
//   - EnrichedClip: The terminal entity of the pipeline.
package model

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ErrInvalidClip is returned (wrapped) by ClipCandidate.Validate.
var ErrInvalidClip = errors.New("invalid clip candidate")

// clipIDPattern restricts clip identifiers to names that are safe as a file
// name component: no path separators and no leading dot.
var clipIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// durationTolerance absorbs floating point noise when checking
// duration == end - start.
const durationTolerance = 1e-3

// BeatMarker is a timestamp in seconds relative to the start of the source media.
type BeatMarker float64

// Seconds returns the marker as a plain float64.
func (b BeatMarker) Seconds() float64 {
	return float64(b)
}

// ClipCandidate is a proposed short excerpt of a source video, as produced by an
// upstream detector. Times are expressed in seconds.
type ClipCandidate struct {
	ID         string   `json:"id"`
	StartTime  float64  `json:"startTime"`
	EndTime    float64  `json:"endTime"`
	Duration   float64  `json:"duration"`
	ViralScore float64  `json:"viralScore"`
	Emotion    string   `json:"emotion,omitempty"`
	Platforms  []string `json:"platforms"`
}

// Normalize fills in whichever of EndTime or Duration was omitted, so that
// callers may describe a clip either as a range or as a start plus a length.
// Platform identifiers are trimmed and lower-cased.
func (c *ClipCandidate) Normalize() {
	switch {
	case c.Duration == 0 && c.EndTime > c.StartTime:
		c.Duration = c.EndTime - c.StartTime
	case c.EndTime == 0 && c.Duration > 0:
		c.EndTime = c.StartTime + c.Duration
	}
	for i, p := range c.Platforms {
		c.Platforms[i] = strings.ToLower(strings.TrimSpace(p))
	}
}

// Validate checks the clip invariants. It does not modify the clip.
func (c *ClipCandidate) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidClip)
	}
	if !clipIDPattern.MatchString(c.ID) {
		return fmt.Errorf("%w: id %q may only contain letters, digits, '.', '_' and '-' and must not start with '.'", ErrInvalidClip, c.ID)
	}
	if c.StartTime < 0 || math.IsNaN(c.StartTime) {
		return fmt.Errorf("%w: clip %s has a negative start time", ErrInvalidClip, c.ID)
	}
	if c.Duration <= 0 || math.IsNaN(c.Duration) {
		return fmt.Errorf("%w: clip %s has no positive duration", ErrInvalidClip, c.ID)
	}
	if math.Abs((c.EndTime-c.StartTime)-c.Duration) > durationTolerance {
		return fmt.Errorf("%w: clip %s duration %.3f does not match its range [%.3f, %.3f]",
			ErrInvalidClip, c.ID, c.Duration, c.StartTime, c.EndTime)
	}
	if c.ViralScore < 0 || c.ViralScore > 100 {
		return fmt.Errorf("%w: clip %s viral score %.2f is outside [0, 100]", ErrInvalidClip, c.ID, c.ViralScore)
	}
	if len(c.Platforms) == 0 {
		return fmt.Errorf("%w: clip %s has no platforms", ErrInvalidClip, c.ID)
	}
	seen := make(map[string]struct{}, len(c.Platforms))
	for _, p := range c.Platforms {
		if p == "" {
			return fmt.Errorf("%w: clip %s has an empty platform", ErrInvalidClip, c.ID)
		}
		if _, ok := seen[p]; ok {
			return fmt.Errorf("%w: clip %s lists platform %s twice", ErrInvalidClip, c.ID, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

// ValidateClips normalizes and validates a batch, additionally requiring clip
// identifiers to be unique across the batch.
func ValidateClips(clips []ClipCandidate) error {
	if len(clips) == 0 {
		return fmt.Errorf("%w: batch contains no clips", ErrInvalidClip)
	}
	ids := make(map[string]struct{}, len(clips))
	var errs error
	for i := range clips {
		clips[i].Normalize()
		if err := clips[i].Validate(); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if _, ok := ids[clips[i].ID]; ok {
			errs = errors.Join(errs, fmt.Errorf("%w: duplicate clip id %s", ErrInvalidClip, clips[i].ID))
		}
		ids[clips[i].ID] = struct{}{}
	}
	return errs
}

// SyncResult describes how a clip's start was moved to land on a beat marker.
// NewEndTime - NewStartTime always equals the clip's original duration.
type SyncResult struct {
	OriginalStartTime float64      `json:"originalStartTime"`
	NewStartTime      float64      `json:"newStartTime"`
	NewEndTime        float64      `json:"newEndTime"`
	Offset            float64      `json:"offset"`
	NearbyBeats       []BeatMarker `json:"nearbyBeats"`
	Synced            bool         `json:"synced"`
}

// Apply returns a copy of the clip moved to the synced range. The platform
// slice is copied so the result never aliases the caller's input.
func (s SyncResult) Apply(clip ClipCandidate) ClipCandidate {
	out := clip
	out.StartTime = s.NewStartTime
	out.EndTime = s.NewEndTime
	out.Platforms = append([]string(nil), clip.Platforms...)
	return out
}

// OptimizedVariant is one rendition of a clip tailored to a single platform.
type OptimizedVariant struct {
	ClipID        string      `json:"clipId"`
	Platform      string      `json:"platform"`
	OutputPath    string      `json:"outputPath"`
	ThumbnailPath string      `json:"thumbnailPath,omitempty"`
	StorageURI    string      `json:"storageUri,omitempty"`
	DownloadURL   string      `json:"downloadUrl"`
	AspectRatio   AspectRatio `json:"aspectRatio"`
	Quality       QualityTier `json:"quality"`
	Duration      float64     `json:"duration"`
}

// Word is a single transcribed token with its timing relative to the clip start.
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the speech-to-text output for one clip.
type Transcript struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Words    []Word `json:"words"`
}

// CaptionResult references the captioned artifact produced for a clip.
type CaptionResult struct {
	Language   string `json:"language"`
	FilePath   string `json:"filePath"`
	StorageURI string `json:"storageUri,omitempty"`
	SrtContent string `json:"srtContent"`
	Transcript string `json:"transcript"`
}

// Stage names used in StageFailure diagnostics and log attributes.
const (
	StageBeatDetect = "beat-detect"
	StageTranscode  = "transcode"
	StageThumbnail  = "thumbnail"
	StageCaption    = "caption"
	StageSchedule   = "schedule"
	StageUpload     = "upload"
)

// StageFailure records a recoverable failure that degraded part of a clip.
type StageFailure struct {
	Stage    string `json:"stage"`
	Platform string `json:"platform,omitempty"`
	Reason   string `json:"reason"`
}

// EnrichedClip is the result of the pipeline for one ClipCandidate. The
// embedded candidate carries the synced start and end times.
type EnrichedClip struct {
	ClipCandidate
	Sync     SyncResult               `json:"sync"`
	Variants []OptimizedVariant       `json:"variants"`
	Caption  *CaptionResult           `json:"caption"`
	Schedule []ScheduleRecommendation `json:"schedule"`
	Failures []StageFailure           `json:"failures,omitempty"`
}

// ProducedPlatforms returns the platforms for which a variant exists, in
// variant order.
func (e *EnrichedClip) ProducedPlatforms() []string {
	out := make([]string, 0, len(e.Variants))
	for _, v := range e.Variants {
		out = append(out, v.Platform)
	}
	return out
}
