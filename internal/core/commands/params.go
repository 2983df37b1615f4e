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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. Every stage of the clip
// enrichment pipeline, and every host I/O step around it, is one command.
//
// Commands exchange data through well-known context keys declared here:
//
//	batch request -> source path -> source duration -> beat markers
//	  -> enriched clips -> schedule report -> batch result
package commands

// Context keys shared by the enrichment commands.
const (
	ParamBatchRequest   = "__BATCH_REQUEST__"   // *model.BatchRequest
	ParamJobID          = "__JOB_ID__"          // string
	ParamRunScope       = "__RUN_SCOPE__"       // string, per-run subdirectory of the output and work dirs
	ParamSourcePath     = "__SOURCE_PATH__"     // string, local media file
	ParamSourceDuration = "__SOURCE_DURATION__" // float64 seconds
	ParamBeatMarkers    = "__BEAT_MARKERS__"    // []model.BeatMarker
	ParamBeatFailure    = "__BEAT_FAILURE__"    // string, why markers are missing
	ParamEnrichedClips  = "__ENRICHED_CLIPS__"  // []*model.EnrichedClip
	ParamScheduleReport = "__SCHEDULE_REPORT__" // *model.ScheduleReport
	ParamBatchResult    = "__BATCH_RESULT__"    // *model.BatchResult
)

// Keys of the per-clip context used inside ClipEnricher.
const (
	ParamClip     = "__CLIP__"     // *model.EnrichedClip
	ParamLanguage = "__LANGUAGE__" // string
	ParamVariants = "__VARIANTS__" // []model.OptimizedVariant
	ParamCaption  = "__CAPTION__"  // *model.CaptionResult
	ParamFailures = "__FAILURES__" // prefix, one key per producing command
)

// FailuresParam returns the key a command stores its []model.StageFailure under.
func FailuresParam(commandName string) string {
	return ParamFailures + commandName
}
