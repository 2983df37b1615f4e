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
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/cor"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/services"
)

// ScheduleAdvisor recommends posting times once every clip has been enriched.
// A clip is scheduled for the platforms it actually got a variant for.
type ScheduleAdvisor struct {
	cor.BaseCommand
	advisor         *services.SchedulingAdvisor
	defaultTimezone services.UTCOffset
	now             func() time.Time
}

// NewScheduleAdvisor is the constructor for the ScheduleAdvisor command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - advisor: The scheduling advisor.
//   - defaultTimezone: Offset used when the request has none or an invalid one.
//   - now: Clock used when the request carries no reference time. Nil means time.Now.
func NewScheduleAdvisor(name string, advisor *services.SchedulingAdvisor, defaultTimezone services.UTCOffset, now func() time.Time) *ScheduleAdvisor {
	if now == nil {
		now = time.Now
	}
	return &ScheduleAdvisor{
		BaseCommand:     *cor.NewBaseCommand(name),
		advisor:         advisor,
		defaultTimezone: defaultTimezone,
		now:             now,
	}
}

// IsExecutable requires the enriched clips.
func (c *ScheduleAdvisor) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && context.Get(ParamEnrichedClips) != nil
}

// Execute attaches the recommendations to every clip and stores the batch
// report under ParamScheduleReport.
func (c *ScheduleAdvisor) Execute(context cor.Context) {
	ctx := context.GetContext()
	clips := context.Get(ParamEnrichedClips).([]*model.EnrichedClip)

	offset := c.defaultTimezone
	ref := c.now()
	if req, ok := context.Get(ParamBatchRequest).(*model.BatchRequest); ok {
		if req.Timezone != "" {
			parsed, err := services.ParseUTCOffset(req.Timezone)
			if err != nil {
				slog.WarnContext(ctx, "invalid timezone, using default",
					"timezone", req.Timezone, "default", c.defaultTimezone.String(), "stage", model.StageSchedule)
			} else {
				offset = parsed
			}
		}
		if req.ReferenceTime != nil {
			ref = *req.ReferenceTime
		}
	}

	subjects := make([]services.ScheduleSubject, 0, len(clips))
	for _, clip := range clips {
		subjects = append(subjects, services.ScheduleSubject{
			ClipID:     clip.ID,
			ViralScore: clip.ViralScore,
			Platforms:  clip.ProducedPlatforms(),
		})
	}
	report := c.advisor.Recommend(subjects, offset, ref)
	for i, clip := range clips {
		clip.Schedule = report.Clips[i].Recommendations
	}

	c.GetSuccessCounter().Add(ctx, 1)
	context.Add(ParamScheduleReport, &report)
	context.Add(c.GetOutputParam(), &report)
}
