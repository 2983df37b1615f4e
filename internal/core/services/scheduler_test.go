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
	"errors"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/catalog"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wednesdayAt returns a Wednesday instant at the given UTC hour.
func wednesdayAt(hour int) time.Time {
	return time.Date(2024, time.October, 16, hour, 10, 0, 0, time.UTC)
}

func twoSlotAdvisor(t *testing.T) *services.SchedulingAdvisor {
	engagement, err := catalog.NewEngagementCatalog([]model.EngagementEntry{
		{Platform: "tiktok", Day: time.Wednesday, Hour: 19, Score: 0.8},
		{Platform: "tiktok", Day: time.Wednesday, Hour: 22, Score: 0.95},
	})
	require.NoError(t, err)
	return services.NewSchedulingAdvisor(engagement)
}

func subjects() []services.ScheduleSubject {
	return []services.ScheduleSubject{
		{ClipID: "c1", ViralScore: 90, Platforms: []string{"tiktok"}},
		{ClipID: "c2", ViralScore: 70, Platforms: []string{"tiktok"}},
	}
}

func TestRecommendPicksNextUpcomingSlot(t *testing.T) {
	report := twoSlotAdvisor(t).Recommend(subjects(), services.MustParseUTCOffset("+00:00"), wednesdayAt(20))

	require.Len(t, report.Clips, 2)
	rec := report.Clips[0].Recommendations[0]
	assert.Equal(t, "22:00", rec.Time)
	assert.Equal(t, 0.95, rec.Score)
	assert.True(t, rec.Available)
	assert.Equal(t, "Based on tiktok engagement data for Wednesday in your timezone (+00:00).", rec.Reason)
	assert.Equal(t, "+00:00", rec.Timezone)
}

func TestRecommendPrefersEarliestUpcomingOverBest(t *testing.T) {
	report := twoSlotAdvisor(t).Recommend(subjects(), services.MustParseUTCOffset("Z"), wednesdayAt(17))

	rec := report.Clips[0].Recommendations[0]
	assert.Equal(t, "19:00", rec.Time)
	assert.Equal(t, 0.8, rec.Score)
}

func TestRecommendFallsBackToBestScore(t *testing.T) {
	report := twoSlotAdvisor(t).Recommend(subjects(), services.MustParseUTCOffset("Z"), wednesdayAt(23))

	rec := report.Clips[1].Recommendations[0]
	assert.Equal(t, "22:00", rec.Time)
	assert.Equal(t, 0.95, rec.Score)
	require.NotNil(t, report.GlobalOptimum)
	assert.Equal(t, model.GlobalOptimum{ClipID: "c1", Platform: "tiktok", Time: "22:00", Score: 0.95}, *report.GlobalOptimum)
}

func TestRecommendConvertsToLocalHours(t *testing.T) {
	offset := services.MustParseUTCOffset("-03:00")
	// 23:10 UTC is 20:10 local; local slots are 16:00 and 19:00, both past.
	report := twoSlotAdvisor(t).Recommend(subjects(), offset, wednesdayAt(23))

	rec := report.Clips[0].Recommendations[0]
	assert.Equal(t, "19:00", rec.Time)
	assert.Equal(t, 0.95, rec.Score)
	assert.Equal(t, "-03:00", report.Timezone)
}

func TestRecommendKeepsOffsetMinutes(t *testing.T) {
	offset := services.MustParseUTCOffset("+05:30")
	// 12:10 UTC is 17:40 local; the slots fall at 00:30 and 03:30 local, both
	// earlier hours, so the best slot wins and keeps its half hour.
	report := twoSlotAdvisor(t).Recommend(subjects(), offset, wednesdayAt(12))

	rec := report.Clips[0].Recommendations[0]
	assert.Equal(t, "03:30", rec.Time)
	assert.Equal(t, 0.95, rec.Score)
	assert.Equal(t, "03:30", report.GlobalOptimum.Time)
}

func TestLocalClock(t *testing.T) {
	assert.Equal(t, "00:30", services.MustParseUTCOffset("+05:30").LocalClock(19))
	assert.Equal(t, "21:00", services.MustParseUTCOffset("-03:00").LocalClock(0))
	assert.Equal(t, "19:30", services.MustParseUTCOffset("-09:30").LocalClock(5))
	assert.Equal(t, "07:45", services.MustParseUTCOffset("+05:45").LocalClock(2))
	assert.Equal(t, "23:00", services.MustParseUTCOffset("Z").LocalClock(23))
}

func TestRecommendUnavailablePlatform(t *testing.T) {
	advisor := services.NewSchedulingAdvisor(catalog.DefaultEngagement())
	report := advisor.Recommend([]services.ScheduleSubject{
		{ClipID: "c1", ViralScore: 50, Platforms: []string{"twitter"}},
	}, services.MustParseUTCOffset("-03:00"), wednesdayAt(12))

	rec := report.Clips[0].Recommendations[0]
	assert.False(t, rec.Available)
	assert.Empty(t, rec.Time)
	assert.Equal(t, 0.0, rec.Score)
	assert.Nil(t, report.GlobalOptimum)
	assert.Equal(t, services.ScheduleNotes, report.Notes)

	_, err := advisor.RecommendPlatform("twitter", services.MustParseUTCOffset("Z"), wednesdayAt(12))
	assert.True(t, errors.Is(err, services.ErrScheduleUnavailable))
}

func TestGlobalOptimumDominatesEveryRecommendation(t *testing.T) {
	advisor := services.NewSchedulingAdvisor(catalog.DefaultEngagement())
	subjects := []services.ScheduleSubject{
		{ClipID: "a", Platforms: []string{"tiktok", "youtube"}},
		{ClipID: "b", Platforms: []string{"instagram", "twitter"}},
		{ClipID: "c", Platforms: []string{"kwai"}},
	}
	for _, tz := range []string{"-03:00", "+05:30", "Z", "-11"} {
		for h := 0; h < 24; h++ {
			report := advisor.Recommend(subjects, services.MustParseUTCOffset(tz), wednesdayAt(h))
			require.NotNil(t, report.GlobalOptimum)
			for _, c := range report.Clips {
				for _, r := range c.Recommendations {
					assert.GreaterOrEqual(t, report.GlobalOptimum.Score, r.Score)
				}
			}
		}
	}
}

func TestParseUTCOffset(t *testing.T) {
	cases := map[string]struct {
		minutes int
		label   string
	}{
		"":       {0, "+00:00"},
		"Z":      {0, "+00:00"},
		"UTC":    {0, "+00:00"},
		"-03:00": {-180, "-03:00"},
		"-3":     {-180, "-03:00"},
		"+0530":  {330, "+05:30"},
		"5:45":   {345, "+05:45"},
		"-00:00": {0, "+00:00"},
	}
	for in, want := range cases {
		o, err := services.ParseUTCOffset(in)
		require.NoError(t, err, in)
		assert.Equal(t, want.minutes, o.Minutes(), in)
		assert.Equal(t, want.label, o.String(), in)
	}
	for _, bad := range []string{"America/Sao_Paulo", "+15:00", "-03:75", "3h"} {
		_, err := services.ParseUTCOffset(bad)
		assert.Error(t, err, bad)
	}
}

func TestLocalHourIsPeriodic(t *testing.T) {
	utc := services.MustParseUTCOffset("+00:00")
	minus := services.MustParseUTCOffset("-03:00")
	plus := services.MustParseUTCOffset("+03:00")
	for h := 0; h < 24; h++ {
		assert.Equal(t, h, utc.LocalHour(h))
		assert.Equal(t, h%24, plus.LocalHour(minus.LocalHour(h)))
	}
	assert.Equal(t, 21, minus.LocalHour(0))
	assert.Equal(t, 1, plus.LocalHour(22))
}
