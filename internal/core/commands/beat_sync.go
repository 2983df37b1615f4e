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

package commands

import (
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/cor"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/services"
)

// BeatSync snaps every clip of the request to its closest beat marker and
// creates the EnrichedClip that the remaining stages fill in. Clips are handled
// one after the other in request order; the work is pure computation.
type BeatSync struct {
	cor.BaseCommand
}

// NewBeatSync is the constructor for the BeatSync command.
func NewBeatSync(name string) *BeatSync {
	return &BeatSync{BaseCommand: *cor.NewBaseCommand(name)}
}

// IsExecutable requires the batch request.
func (c *BeatSync) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && context.Get(ParamBatchRequest) != nil
}

// Execute stores the synced clips under ParamEnrichedClips.
func (c *BeatSync) Execute(context cor.Context) {
	req := context.Get(ParamBatchRequest).(*model.BatchRequest)
	markers, _ := context.Get(ParamBeatMarkers).([]model.BeatMarker)
	reason, _ := context.Get(ParamBeatFailure).(string)

	clips := make([]*model.EnrichedClip, 0, len(req.Clips))
	for _, candidate := range req.Clips {
		sync := services.Sync(candidate, markers)
		clip := &model.EnrichedClip{
			ClipCandidate: sync.Apply(candidate),
			Sync:          sync,
			Variants:      make([]model.OptimizedVariant, 0),
			Schedule:      make([]model.ScheduleRecommendation, 0),
		}
		if reason != "" {
			clip.Failures = append(clip.Failures, model.StageFailure{Stage: model.StageBeatDetect, Reason: reason})
		}
		clips = append(clips, clip)
	}

	c.GetSuccessCounter().Add(context.GetContext(), int64(len(clips)))
	context.Add(ParamEnrichedClips, clips)
	context.Add(c.GetOutputParam(), clips)
}
