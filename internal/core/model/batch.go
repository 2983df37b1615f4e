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

package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// languagePattern accepts BCP 47 style tags such as "pt", "eng" or "pt-BR".
var languagePattern = regexp.MustCompile(`^[A-Za-z]{2,3}([_-][A-Za-z0-9]{2,8})*$`)

// BatchRequest is what a host submits to have a set of clips enriched.
// Source is either a local path or a gs:// URI.
type BatchRequest struct {
	Clips         []ClipCandidate `json:"clips"`
	Source        string          `json:"source"`
	Timezone      string          `json:"timezone,omitempty"`
	Language      string          `json:"language,omitempty"`
	ReferenceTime *time.Time      `json:"referenceTime,omitempty"`
}

// Validate normalizes the clips in place and checks the request is usable.
func (r *BatchRequest) Validate() error {
	if strings.TrimSpace(r.Source) == "" {
		return fmt.Errorf("%w: source media is required", ErrInvalidClip)
	}
	if r.Language != "" && !languagePattern.MatchString(r.Language) {
		return fmt.Errorf("%w: language %q is not a language tag", ErrInvalidClip, r.Language)
	}
	return ValidateClips(r.Clips)
}

// BatchStats summarises a finished batch.
type BatchStats struct {
	AvgViralScore float64        `json:"avgViralScore"`
	Platforms     []string       `json:"platforms"`
	Languages     []string       `json:"languages"`
	Variants      int            `json:"variants"`
	Failures      int            `json:"failures"`
	BestTiming    *GlobalOptimum `json:"bestTiming,omitempty"`
}

// BatchResult is the complete output of one enrichment run. Clips are in the
// same order as the request.
type BatchResult struct {
	JobID       string         `json:"jobId,omitempty"`
	Source      string         `json:"source"`
	ProcessedAt time.Time      `json:"processedAt"`
	TotalClips  int            `json:"totalClips"`
	Clips       []EnrichedClip `json:"clips"`
	Scheduling  ScheduleReport `json:"scheduling"`
	Stats       BatchStats     `json:"stats"`
}

// ComputeStats derives the summary block from the enriched clips.
func ComputeStats(clips []EnrichedClip, language string, best *GlobalOptimum) BatchStats {
	stats := BatchStats{
		Platforms:  make([]string, 0),
		Languages:  make([]string, 0),
		BestTiming: best,
	}
	if len(clips) == 0 {
		return stats
	}
	seen := make(map[string]struct{})
	langs := make(map[string]struct{})
	total := 0.0
	for _, c := range clips {
		total += c.ViralScore
		stats.Variants += len(c.Variants)
		stats.Failures += len(c.Failures)
		for _, v := range c.Variants {
			if _, ok := seen[v.Platform]; !ok {
				seen[v.Platform] = struct{}{}
				stats.Platforms = append(stats.Platforms, v.Platform)
			}
		}
		if c.Caption != nil {
			if _, ok := langs[c.Caption.Language]; !ok {
				langs[c.Caption.Language] = struct{}{}
				stats.Languages = append(stats.Languages, c.Caption.Language)
			}
		}
	}
	if len(stats.Languages) == 0 && language != "" {
		stats.Languages = append(stats.Languages, language)
	}
	stats.AvgViralScore = total / float64(len(clips))
	return stats
}
