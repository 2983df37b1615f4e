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

package services

import (
	"math"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
)

// NearbyBeatWindow is how far (in seconds) outside the synced range a marker
// may lie and still be reported as nearby.
const NearbyBeatWindow = 5.0

// Sync snaps the clip's start to the closest beat marker.
//
// Logic Flow:
//  1. With no markers the identity transform is returned (Synced is false).
//  2. Otherwise the marker minimizing |marker - start| is chosen. On an exact
//     tie the earlier marker in sequence order wins.
//  3. The chosen start is clamped to be non-negative. The duration is kept, so
//     the new end is the new start plus the original duration.
//  4. Markers inside [newStart - 5, newEnd + 5] (lower bound clamped to 0) are
//     reported as nearby beats.
//
// Sync is pure and never fails.
func Sync(clip model.ClipCandidate, markers []model.BeatMarker) model.SyncResult {
	result := model.SyncResult{
		OriginalStartTime: clip.StartTime,
		NewStartTime:      clip.StartTime,
		NewEndTime:        clip.StartTime + clip.Duration,
		NearbyBeats:       []model.BeatMarker{},
	}
	if len(markers) == 0 {
		return result
	}

	best := markers[0].Seconds()
	bestDist := math.Abs(best - clip.StartTime)
	for _, m := range markers[1:] {
		if d := math.Abs(m.Seconds() - clip.StartTime); d < bestDist {
			best, bestDist = m.Seconds(), d
		}
	}

	newStart := math.Max(0, best)
	result.NewStartTime = newStart
	result.NewEndTime = newStart + clip.Duration
	result.Offset = newStart - clip.StartTime
	result.Synced = true

	lo := math.Max(0, newStart-NearbyBeatWindow)
	hi := result.NewEndTime + NearbyBeatWindow
	for _, m := range markers {
		if s := m.Seconds(); s >= lo && s <= hi {
			result.NearbyBeats = append(result.NearbyBeats, m)
		}
	}
	return result
}
