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

// ScheduleRecommendation is the suggested posting time for one clip on one
// platform. Time is empty when no engagement data exists for the platform on
// the reference day; such recommendations have Available set to false and a
// zero score.
type ScheduleRecommendation struct {
	Platform  string  `json:"platform"`
	Time      string  `json:"time,omitempty"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
	Timezone  string  `json:"timezone"`
	Available bool    `json:"available"`
}

// ClipSchedule groups the recommendations of a single clip, in platform order.
type ClipSchedule struct {
	ClipID          string                   `json:"clipId"`
	ViralScore      float64                  `json:"viralScore"`
	Recommendations []ScheduleRecommendation `json:"recommendations"`
}

// GlobalOptimum is the single best (clip, platform, time) found in a batch.
type GlobalOptimum struct {
	ClipID   string  `json:"clipId"`
	Platform string  `json:"platform"`
	Time     string  `json:"time"`
	Score    float64 `json:"score"`
}

// ScheduleReport is the batch-level output of the scheduling stage.
type ScheduleReport struct {
	Clips         []ClipSchedule `json:"clips"`
	GlobalOptimum *GlobalOptimum `json:"globalOptimum,omitempty"`
	Timezone      string         `json:"timezone"`
	Notes         string         `json:"notes"`
}
