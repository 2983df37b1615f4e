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
	"strings"
	"time"
)

// AspectRatio is the target frame shape of a platform rendition.
type AspectRatio string

const (
	AspectVertical   AspectRatio = "9:16"
	AspectSquare     AspectRatio = "1:1"
	AspectHorizontal AspectRatio = "16:9"
)

// ScaleFilter returns the ffmpeg video filter used to reach the aspect ratio.
// Vertical scales to a fixed height and center-crops the width, square scales
// by width and center-crops the height, horizontal scales to a fixed width.
// Anything else keeps the source aspect and only scales the width.
func (a AspectRatio) ScaleFilter() string {
	switch a {
	case AspectVertical:
		return "scale=-2:1280,crop=720:1280"
	case AspectSquare:
		return "scale=1080:-2,crop=1080:1080"
	case AspectHorizontal:
		return "scale=1920:-2,crop=1920:1080"
	default:
		return "scale=1920:-2"
	}
}

// QualityTier is an ordered encode-quality bucket.
type QualityTier string

const (
	QualityLow      QualityTier = "low"
	QualityMedium   QualityTier = "medium"
	QualityHigh     QualityTier = "high"
	QualityVeryHigh QualityTier = "veryhigh"
)

// CRF maps the tier to an x264 constant rate factor. Unknown tiers encode as high.
func (q QualityTier) CRF() int {
	switch q {
	case QualityVeryHigh:
		return 18
	case QualityMedium:
		return 28
	case QualityLow:
		return 32
	default:
		return 23
	}
}

// PlatformProfile holds the encoding and duration constraints for one platform.
type PlatformProfile struct {
	Platform    string      `json:"platform" toml:"platform"`
	AspectRatio AspectRatio `json:"aspectRatio" toml:"aspect_ratio"`
	Quality     QualityTier `json:"quality" toml:"quality"`
	MaxDuration float64     `json:"maxDuration" toml:"max_duration"`
	Preset      string      `json:"preset" toml:"preset"`
}

// Validate reports profiles that could never produce a usable variant.
func (p PlatformProfile) Validate() error {
	if strings.TrimSpace(p.Platform) == "" {
		return fmt.Errorf("profile has no platform")
	}
	if p.MaxDuration <= 0 {
		return fmt.Errorf("profile %s has a non-positive max duration", p.Platform)
	}
	if strings.TrimSpace(p.Preset) == "" {
		return fmt.Errorf("profile %s has no encoder preset", p.Platform)
	}
	return nil
}

// EffectiveDuration is the length a variant of a clip with the given duration
// will have under this profile.
func (p PlatformProfile) EffectiveDuration(clipDuration float64) float64 {
	if clipDuration > p.MaxDuration {
		return p.MaxDuration
	}
	return clipDuration
}

// EngagementEntry is a heuristic engagement score for posting on a platform at
// a given UTC hour of a weekday.
type EngagementEntry struct {
	Platform string       `json:"platform"`
	Day      time.Weekday `json:"day"`
	Hour     int          `json:"hour"`
	Score    float64      `json:"score"`
}

// ParseWeekday accepts English weekday names ("monday", "Mon") case-insensitively.
func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if n == full || (len(n) == 3 && strings.HasPrefix(full, n)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", name)
}
