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

package catalog_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/catalog"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfiles(t *testing.T) {
	c := catalog.DefaultProfiles()

	expected := map[string]model.PlatformProfile{
		"tiktok":    {Platform: "tiktok", AspectRatio: "9:16", Quality: "high", MaxDuration: 60, Preset: "veryfast"},
		"instagram": {Platform: "instagram", AspectRatio: "9:16", Quality: "high", MaxDuration: 90, Preset: "fast"},
		"youtube":   {Platform: "youtube", AspectRatio: "16:9", Quality: "veryhigh", MaxDuration: 90, Preset: "medium"},
		"kwai":      {Platform: "kwai", AspectRatio: "9:16", Quality: "medium", MaxDuration: 60, Preset: "superfast"},
		"twitter":   {Platform: "twitter", AspectRatio: "16:9", Quality: "medium", MaxDuration: 140, Preset: "fast"},
		"facebook":  {Platform: "facebook", AspectRatio: "16:9", Quality: "high", MaxDuration: 240, Preset: "fast"},
	}
	for name, want := range expected {
		got, ok := c.Lookup(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, []string{"tiktok", "instagram", "youtube", "kwai", "twitter", "facebook"}, c.Platforms())

	_, ok := c.Lookup("unknownPlatform")
	assert.False(t, ok)
}

func TestDefaultEngagement(t *testing.T) {
	c := catalog.DefaultEngagement()

	wed := c.ForDay("tiktok", time.Wednesday)
	require.Len(t, wed, 3)
	assert.Equal(t, 15, wed[0].Hour)
	assert.Equal(t, 0.8, wed[0].Score)
	assert.Equal(t, 21, wed[2].Hour)
	assert.Equal(t, 0.95, wed[2].Score)

	sat := c.ForDay("instagram", time.Saturday)
	require.Len(t, sat, 3)
	assert.Equal(t, 9, sat[0].Hour)

	for _, p := range []string{"tiktok", "instagram", "youtube", "kwai"} {
		for d := time.Sunday; d <= time.Saturday; d++ {
			assert.Len(t, c.ForDay(p, d), 3, "%s %s", p, d)
		}
	}

	assert.Empty(t, c.ForDay("twitter", time.Monday))
	assert.Empty(t, c.ForDay("facebook", time.Monday))
	assert.Equal(t, []string{"instagram", "kwai", "tiktok", "youtube"}, c.Platforms())
}

func TestForDayReturnsCopy(t *testing.T) {
	c := catalog.DefaultEngagement()
	day := c.ForDay("youtube", time.Monday)
	day[0].Score = 0
	assert.Equal(t, 0.7, c.ForDay("youtube", time.Monday)[0].Score)
}

func TestNewProfileCatalogRejectsInvalid(t *testing.T) {
	_, err := catalog.NewProfileCatalog([]model.PlatformProfile{
		{Platform: "tiktok", AspectRatio: "9:16", Quality: "high", MaxDuration: 60, Preset: "veryfast"},
		{Platform: "tiktok", AspectRatio: "9:16", Quality: "high", MaxDuration: 60, Preset: "veryfast"},
	})
	assert.Error(t, err)

	_, err = catalog.NewProfileCatalog([]model.PlatformProfile{{Platform: "x", MaxDuration: 0, Preset: "fast"}})
	assert.Error(t, err)
}

func TestNewEngagementCatalogRejectsInvalid(t *testing.T) {
	_, err := catalog.NewEngagementCatalog([]model.EngagementEntry{{Platform: "tiktok", Day: time.Monday, Hour: 24, Score: 0.5}})
	assert.Error(t, err)
	_, err = catalog.NewEngagementCatalog([]model.EngagementEntry{{Platform: "tiktok", Day: time.Monday, Hour: 10, Score: 1.5}})
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	profiles := filepath.Join(dir, "profiles.toml")
	engagement := filepath.Join(dir, "engagement.toml")
	require.NoError(t, os.WriteFile(profiles, []byte(`
[[profile]]
platform = "Snapchat"
aspect_ratio = "9:16"
quality = "low"
max_duration = 30
preset = "ultrafast"
`), 0o644))
	require.NoError(t, os.WriteFile(engagement, []byte(`
[snapchat]
friday = [{ hour = 19, score = 0.8 }, { hour = 22, score = 0.95 }]
`), 0o644))

	p, e, err := catalog.Load(profiles, engagement)
	require.NoError(t, err)

	got, ok := p.Lookup("snapchat")
	assert.True(t, ok)
	assert.Equal(t, model.QualityLow, got.Quality)
	_, ok = p.Lookup("tiktok")
	assert.False(t, ok)

	fri := e.ForDay("snapchat", time.Friday)
	require.Len(t, fri, 2)
	assert.Equal(t, 19, fri[0].Hour)
	assert.Equal(t, 22, fri[1].Hour)
}

func TestLoadDefaultsAndMissingFile(t *testing.T) {
	p, e, err := catalog.Load("", "")
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.NotNil(t, e)

	_, _, err = catalog.Load(filepath.Join(t.TempDir(), "missing.toml"), "")
	assert.Error(t, err)
}
