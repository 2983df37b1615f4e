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

// Package catalog holds the two static lookup tables the enrichment pipeline
// depends on: the platform encoding profiles and the per-platform engagement
// schedules. Both are immutable once constructed and are injected into the
// components that read them, so tests can substitute their own tables.
//
// Structs:
//   - ProfileCatalog: platform -> PlatformProfile.
//   - EngagementCatalog: (platform, weekday) -> ordered EngagementEntry slots.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
)

// ProfileCatalog is a read-only mapping from platform identifier to its profile.
type ProfileCatalog struct {
	profiles map[string]model.PlatformProfile
	order    []string
}

// NewProfileCatalog builds a catalog from the given profiles. Duplicate or
// invalid profiles are rejected.
func NewProfileCatalog(profiles []model.PlatformProfile) (*ProfileCatalog, error) {
	c := &ProfileCatalog{profiles: make(map[string]model.PlatformProfile, len(profiles))}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, ok := c.profiles[p.Platform]; ok {
			return nil, fmt.Errorf("duplicate profile for platform %s", p.Platform)
		}
		c.profiles[p.Platform] = p
		c.order = append(c.order, p.Platform)
	}
	return c, nil
}

// Lookup returns the profile for a platform. The boolean is false for
// unregistered platforms, which callers skip rather than treat as an error.
func (c *ProfileCatalog) Lookup(platform string) (model.PlatformProfile, bool) {
	p, ok := c.profiles[platform]
	return p, ok
}

// Platforms lists the registered platforms in declaration order.
func (c *ProfileCatalog) Platforms() []string {
	return append([]string(nil), c.order...)
}

// EngagementCatalog maps a platform and weekday to its engagement slots.
type EngagementCatalog struct {
	tables map[string]map[time.Weekday][]model.EngagementEntry
}

// NewEngagementCatalog groups entries by platform and weekday, keeping the
// relative order in which they were supplied.
func NewEngagementCatalog(entries []model.EngagementEntry) (*EngagementCatalog, error) {
	c := &EngagementCatalog{tables: make(map[string]map[time.Weekday][]model.EngagementEntry)}
	var errs error
	for _, e := range entries {
		if e.Hour < 0 || e.Hour > 23 {
			errs = errors.Join(errs, fmt.Errorf("%s %s: hour %d outside [0, 23]", e.Platform, e.Day, e.Hour))
			continue
		}
		if e.Score < 0 || e.Score > 1 {
			errs = errors.Join(errs, fmt.Errorf("%s %s: score %.2f outside [0, 1]", e.Platform, e.Day, e.Score))
			continue
		}
		days, ok := c.tables[e.Platform]
		if !ok {
			days = make(map[time.Weekday][]model.EngagementEntry)
			c.tables[e.Platform] = days
		}
		days[e.Day] = append(days[e.Day], e)
	}
	if errs != nil {
		return nil, errs
	}
	return c, nil
}

// ForDay returns the slots of a platform for a weekday, or an empty slice when
// the platform is unregistered or has no data for that day.
func (c *EngagementCatalog) ForDay(platform string, day time.Weekday) []model.EngagementEntry {
	days, ok := c.tables[platform]
	if !ok {
		return []model.EngagementEntry{}
	}
	return append([]model.EngagementEntry{}, days[day]...)
}

// Platforms lists the platforms with at least one slot, sorted.
func (c *EngagementCatalog) Platforms() []string {
	out := make([]string, 0, len(c.tables))
	for p := range c.tables {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
