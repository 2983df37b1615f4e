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
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/cor"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
)

// BatchAssembler combines the enriched clips and the schedule report into the
// final model.BatchResult. Clips keep the order of the request.
type BatchAssembler struct {
	cor.BaseCommand
	defaultLanguage string
	now             func() time.Time
}

// NewBatchAssembler is the constructor for the BatchAssembler command.
func NewBatchAssembler(name string, defaultLanguage string, now func() time.Time) *BatchAssembler {
	if now == nil {
		now = time.Now
	}
	return &BatchAssembler{BaseCommand: *cor.NewBaseCommand(name), defaultLanguage: defaultLanguage, now: now}
}

// IsExecutable requires the enriched clips.
func (c *BatchAssembler) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && context.Get(ParamEnrichedClips) != nil
}

// Execute stores the result under ParamBatchResult and as output.
func (c *BatchAssembler) Execute(context cor.Context) {
	clips := context.Get(ParamEnrichedClips).([]*model.EnrichedClip)

	result := &model.BatchResult{
		ProcessedAt: c.now().UTC(),
		TotalClips:  len(clips),
		Clips:       make([]model.EnrichedClip, 0, len(clips)),
	}
	language := c.defaultLanguage
	if req, ok := context.Get(ParamBatchRequest).(*model.BatchRequest); ok {
		result.Source = req.Source
		if req.Language != "" {
			language = req.Language
		}
	}
	if jobID, ok := context.Get(ParamJobID).(string); ok {
		result.JobID = jobID
	}
	if report, ok := context.Get(ParamScheduleReport).(*model.ScheduleReport); ok {
		result.Scheduling = *report
	}
	for _, clip := range clips {
		result.Clips = append(result.Clips, *clip)
	}
	result.Stats = model.ComputeStats(result.Clips, language, result.Scheduling.GlobalOptimum)

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(ParamBatchResult, result)
	context.Add(c.GetOutputParam(), result)
}
