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

package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
)

//go:embed data/profiles.toml
var defaultProfiles []byte

//go:embed data/engagement.toml
var defaultEngagement []byte

type profileFile struct {
	Profiles []model.PlatformProfile `toml:"profile"`
}

type engagementSlot struct {
	Hour  int     `toml:"hour"`
	Score float64 `toml:"score"`
}

// ParseProfiles decodes a TOML profile table.
func ParseProfiles(data []byte) (*ProfileCatalog, error) {
	var f profileFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	for i := range f.Profiles {
		f.Profiles[i].Platform = strings.ToLower(strings.TrimSpace(f.Profiles[i].Platform))
	}
	return NewProfileCatalog(f.Profiles)
}

// ParseEngagement decodes a TOML engagement table keyed by platform then weekday.
// Slot order within a day is kept as written.
func ParseEngagement(data []byte) (*EngagementCatalog, error) {
	var f map[string]map[string][]engagementSlot
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("failed to decode engagement table: %w", err)
	}
	entries := make([]model.EngagementEntry, 0)
	for platform, days := range f {
		for dayName, slots := range days {
			day, err := model.ParseWeekday(dayName)
			if err != nil {
				return nil, fmt.Errorf("platform %s: %w", platform, err)
			}
			for _, s := range slots {
				entries = append(entries, model.EngagementEntry{
					Platform: strings.ToLower(platform),
					Day:      day,
					Hour:     s.Hour,
					Score:    s.Score,
				})
			}
		}
	}
	return NewEngagementCatalog(entries)
}

// DefaultProfiles returns the built-in profile catalog.
func DefaultProfiles() *ProfileCatalog {
	c, err := ParseProfiles(defaultProfiles)
	if err != nil {
		panic(err) // embedded data is validated by tests
	}
	return c
}

// DefaultEngagement returns the built-in engagement catalog.
func DefaultEngagement() *EngagementCatalog {
	c, err := ParseEngagement(defaultEngagement)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads the catalogs once at start-up. An empty path selects the embedded
// table; otherwise the file replaces it entirely.
func Load(profilesPath string, engagementPath string) (*ProfileCatalog, *EngagementCatalog, error) {
	profiles := DefaultProfiles()
	if profilesPath != "" {
		data, err := os.ReadFile(profilesPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read profile catalog %s: %w", profilesPath, err)
		}
		if profiles, err = ParseProfiles(data); err != nil {
			return nil, nil, err
		}
	}
	engagement := DefaultEngagement()
	if engagementPath != "" {
		data, err := os.ReadFile(engagementPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read engagement catalog %s: %w", engagementPath, err)
		}
		if engagement, err = ParseEngagement(data); err != nil {
			return nil, nil, err
		}
	}
	return profiles, engagement, nil
}
