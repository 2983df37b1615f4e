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

// The SchedulingAdvisor picks a posting time per (clip, platform) and the best
// pair across the batch.
//
// Logic Flow:
//  1. The reference instant is moved into the caller's fixed offset to get the
//     weekday and the current local hour (minutes are ignored).
//  2. For each clip and each of its platforms the day's engagement slots are
//     fetched. Each slot's UTC hour is shifted to local time modulo 24.
//  3. The first slot (table order) whose local hour is strictly later than the
//     current hour wins. When none is, the best-scoring slot of the day wins.
//     The reported time keeps the offset's minutes ("00:30" at +05:30).
//  4. A platform without slots that day is reported unavailable with score 0.
//  5. The highest score across the batch is the global optimum; the first pair
//     reaching it is kept.

package services

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/catalog"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
)

// ErrScheduleUnavailable marks a platform/day pair with no engagement data.
var ErrScheduleUnavailable = errors.New("no engagement data")

// ScheduleNotes is attached to every report.
const ScheduleNotes = "Posting times come from static engagement tables and are suggestions, not predictions."

var reOffset = regexp.MustCompile(`^([+-])?(\d{1,2})(?::?(\d{2}))?$`)

// UTCOffset is a fixed timezone offset.
type UTCOffset struct {
	minutes int
	label   string
}

// ParseUTCOffset accepts "Z", "UTC", "-03:00", "+0530", "-3" and "+5:45".
func ParseUTCOffset(s string) (UTCOffset, error) {
	if s == "" || s == "Z" || s == "UTC" {
		return UTCOffset{label: "+00:00"}, nil
	}
	m := reOffset.FindStringSubmatch(s)
	if m == nil {
		return UTCOffset{}, fmt.Errorf("invalid timezone offset %q", s)
	}
	hours, _ := strconv.Atoi(m[2])
	mins := 0
	if m[3] != "" {
		mins, _ = strconv.Atoi(m[3])
	}
	if hours > 14 || mins > 59 {
		return UTCOffset{}, fmt.Errorf("timezone offset %q out of range", s)
	}
	total := hours*60 + mins
	sign := "+"
	if m[1] == "-" {
		total = -total
		sign = "-"
	}
	if total == 0 {
		sign = "+"
	}
	return UTCOffset{minutes: total, label: fmt.Sprintf("%s%02d:%02d", sign, hours, mins)}, nil
}

// MustParseUTCOffset is ParseUTCOffset for constants.
func MustParseUTCOffset(s string) UTCOffset {
	o, err := ParseUTCOffset(s)
	if err != nil {
		panic(err)
	}
	return o
}

// Minutes returns the signed offset in minutes.
func (o UTCOffset) Minutes() int {
	return o.minutes
}

// String renders the offset as ±HH:MM.
func (o UTCOffset) String() string {
	if o.label == "" {
		return "+00:00"
	}
	return o.label
}

// Location returns a time.Location for the offset.
func (o UTCOffset) Location() *time.Location {
	return time.FixedZone(o.String(), o.minutes*60)
}

// localMinute is the minute of the local day at which a UTC hour starts.
func (o UTCOffset) localMinute(utcHour int) int {
	return ((utcHour*60+o.minutes)%1440 + 1440) % 1440
}

// LocalHour shifts a UTC hour into the offset, wrapping modulo 24.
func (o UTCOffset) LocalHour(utcHour int) int {
	return o.localMinute(utcHour) / 60
}

// LocalClock renders a UTC hour as the local "HH:MM" wall-clock time, keeping
// the minutes of half-hour and quarter-hour offsets.
func (o UTCOffset) LocalClock(utcHour int) string {
	m := o.localMinute(utcHour)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ScheduleSubject is what the advisor needs to know about one clip.
type ScheduleSubject struct {
	ClipID     string
	ViralScore float64
	Platforms  []string
}

// SchedulingAdvisor recommends posting times from an engagement catalog.
type SchedulingAdvisor struct {
	engagement *catalog.EngagementCatalog
}

// NewSchedulingAdvisor is the constructor for SchedulingAdvisor.
func NewSchedulingAdvisor(engagement *catalog.EngagementCatalog) *SchedulingAdvisor {
	return &SchedulingAdvisor{engagement: engagement}
}

// Recommend computes per-clip recommendations and the batch's global optimum.
// It performs no I/O and is deterministic for a fixed ref.
func (a *SchedulingAdvisor) Recommend(subjects []ScheduleSubject, offset UTCOffset, ref time.Time) model.ScheduleReport {
	local := ref.In(offset.Location())
	day := local.Weekday()
	currentHour := local.Hour()

	report := model.ScheduleReport{
		Clips:    make([]model.ClipSchedule, 0, len(subjects)),
		Timezone: offset.String(),
		Notes:    ScheduleNotes,
	}
	for _, s := range subjects {
		clip := model.ClipSchedule{
			ClipID:          s.ClipID,
			ViralScore:      s.ViralScore,
			Recommendations: make([]model.ScheduleRecommendation, 0, len(s.Platforms)),
		}
		for _, platform := range s.Platforms {
			rec, err := a.recommend(platform, day, currentHour, offset)
			clip.Recommendations = append(clip.Recommendations, rec)
			if err != nil {
				slog.Debug("no posting time", "clip_id", s.ClipID, "platform", platform,
					"stage", model.StageSchedule, "error", err)
				continue
			}
			if report.GlobalOptimum == nil || rec.Score > report.GlobalOptimum.Score {
				report.GlobalOptimum = &model.GlobalOptimum{
					ClipID:   s.ClipID,
					Platform: platform,
					Time:     rec.Time,
					Score:    rec.Score,
				}
			}
		}
		report.Clips = append(report.Clips, clip)
	}
	return report
}

// RecommendPlatform picks the posting time for a single platform. The error
// wraps ErrScheduleUnavailable when the platform has no slots that day; the
// returned recommendation is then marked unavailable.
func (a *SchedulingAdvisor) RecommendPlatform(platform string, offset UTCOffset, ref time.Time) (model.ScheduleRecommendation, error) {
	local := ref.In(offset.Location())
	return a.recommend(platform, local.Weekday(), local.Hour(), offset)
}

func (a *SchedulingAdvisor) recommend(platform string, day time.Weekday, currentHour int, offset UTCOffset) (model.ScheduleRecommendation, error) {
	entries := a.engagement.ForDay(platform, day)
	if len(entries) == 0 {
		err := fmt.Errorf("%w for %s on %s", ErrScheduleUnavailable, platform, day)
		return model.ScheduleRecommendation{
			Platform: platform,
			Reason:   err.Error(),
			Timezone: offset.String(),
		}, err
	}

	chosen := -1
	for i, e := range entries {
		if offset.LocalHour(e.Hour) > currentHour {
			chosen = i
			break
		}
	}
	if chosen < 0 {
		chosen = 0
		for i, e := range entries {
			if e.Score > entries[chosen].Score {
				chosen = i
			}
		}
	}
	e := entries[chosen]
	return model.ScheduleRecommendation{
		Platform:  platform,
		Time:      offset.LocalClock(e.Hour),
		Score:     e.Score,
		Reason:    fmt.Sprintf("Based on %s engagement data for %s in your timezone (%s).", platform, day, offset),
		Timezone:  offset.String(),
		Available: true,
	}, nil
}
