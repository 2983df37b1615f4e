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

// Package test provides utility functions, fixtures and fakes to support the
// application's test suite. It loads the test configuration and supplies
// in-memory stand-ins for ffmpeg, the transcriber and the other collaborators
// so no media tooling or cloud access is needed.
package test

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/cloud"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
)

// StateManager caches the configuration for the duration of a test run.
type StateManager struct {
	config *cloud.Config
}

var state = &StateManager{}

// ReferenceTime is a fixed Wednesday, 23:30 UTC (20:30 at -03:00).
var ReferenceTime = time.Date(2024, time.October, 16, 23, 30, 0, 0, time.UTC)

// SampleClips returns three valid candidates. The second one lists a platform
// without a profile.
func SampleClips() []model.ClipCandidate {
	return []model.ClipCandidate{
		{ID: "c1", StartTime: 45, EndTime: 75, Duration: 30, ViralScore: 87, Emotion: "surprise", Platforms: []string{"tiktok", "youtube"}},
		{ID: "c2", StartTime: 120, EndTime: 220, Duration: 100, ViralScore: 64, Emotion: "joy", Platforms: []string{"instagram", "myspace"}},
		{ID: "c3", StartTime: 2, EndTime: 17, Duration: 15, ViralScore: 71, Emotion: "anger", Platforms: []string{"kwai"}},
	}
}

// SampleBatchRequest wraps SampleClips in a request for source.
func SampleBatchRequest(source string) *model.BatchRequest {
	ref := ReferenceTime
	return &model.BatchRequest{
		Clips:         SampleClips(),
		Source:        source,
		Timezone:      "-03:00",
		Language:      "pt",
		ReferenceTime: &ref,
	}
}

// GetTestBatchRequestText returns a Pub/Sub payload requesting a batch.
func GetTestBatchRequestText() string {
	return `{
  "source": "gs://clip_enrichment_input/test-stream-001.mp4",
  "timezone": "-03:00",
  "language": "pt",
  "clips": [
    { "id": "c1", "startTime": 45.0, "endTime": 75.0, "viralScore": 87, "emotion": "surprise", "platforms": ["tiktok", "youtube"] },
    { "id": "c2", "startTime": 120.0, "duration": 100, "viralScore": 64, "emotion": "joy", "platforms": ["instagram"] }
  ]
}`
}

// GetTestTranscriptText returns a model answer as the transcriber receives it,
// wrapped in a markdown fence.
func GetTestTranscriptText() string {
	return "```json\n" + `{"language": "pt", "text": "Olha só", "words": [
  {"word": "Olha", "start": 0.12, "end": 0.41},
  {"word": "só", "start": 0.41, "end": 0.30}
]}` + "\n```"
}

// ConfigDir returns the absolute path of the repository's configs directory.
func ConfigDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "configs")
}

// SetupOS points the configuration loader at the repository configs with the
// "test" runtime, so `.env.test.toml` overrides `.env.toml`.
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, ConfigDir())
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig is a singleton accessor for the test configuration.
func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load test config: %v\n", err)
		}
		state.config = config
	}
	return state.config
}
