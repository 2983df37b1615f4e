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

// Package cloud defines the application configuration, loaded from TOML files,
// and the clients used to talk to Google Cloud.
//
// This file centralizes all configuration-related structs.
//
// Structs:
//   - Storage: Buckets for uploaded sources, produced artifacts and scratch objects.
//   - BigQueryDataSource: Dataset and table receiving enrichment results.
//   - PromptTemplates: Templates for prompts sent to GenAI models.
//   - VertexAiLLMModel: Configuration for a Vertex AI Large Language Model (LLM).
//   - TopicSubscription: Configuration for a single Pub/Sub topic subscription.
//   - Pipeline: Tuning of the enrichment pipeline itself.
//   - Catalog: Optional replacement files for the platform and engagement tables.
//   - Jobs: Background job execution and persistence.
//   - Server: HTTP host settings.
//   - Telemetry: Exporter switches.
//   - Config: The top-level struct that aggregates all other configuration structs.
package cloud

import (
	"time"

	"google.golang.org/genai"
)

// DefaultSafetySettings defines the default content safety thresholds for GenAI
// models. Transcription must never be blocked by the content of the speech, so
// every category is let through.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// BigQueryDataSource represents the configuration for the results table.
type BigQueryDataSource struct {
	DatasetName  string `toml:"dataset"`       // The name of the BigQuery dataset.
	ResultsTable string `toml:"results_table"` // One row per enriched clip.
}

// PromptTemplates holds the templates for different types of prompts.
type PromptTemplates struct {
	TranscriptPrompt string `toml:"transcript"` // Word-level transcription prompt. Placeholders: {{ .LANGUAGE }}, {{ .EXAMPLE_JSON }}.
}

// VertexAiLLMModel represents the configuration for a Vertex AI large language model (LLM).
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // The name of the Vertex AI LLM.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the LLM.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter for the LLM.
	TopP               float32 `toml:"top_p"`               // The top_p parameter for the LLM.
	TopK               float32 `toml:"top_k"`               // The top_k parameter for the LLM.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of tokens for the LLM output.
	OutputFormat       string  `toml:"output_format"`       // The desired output format for the LLM.
	RateLimit          int     `toml:"rate_limit"`          // The rate limit for the LLM in requests per second.
}

// TopicSubscription represents the configuration for a Pub/Sub topic subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The name of the dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // The timeout for the subscription in seconds.
}

// Storage represents the configuration for storage buckets and local directories.
type Storage struct {
	InputBucket    string `toml:"input_bucket"`     // Uploaded source videos.
	OutputBucket   string `toml:"output_bucket"`    // Variants, thumbnails and captioned clips.
	WorkBucket     string `toml:"work_bucket"`      // Short-lived objects such as staged audio for transcription.
	LocalOutputDir string `toml:"local_output_dir"` // Where ffmpeg writes before upload.
	LocalWorkDir   string `toml:"local_work_dir"`   // Downloaded sources and intermediate files.
}

// Pipeline tunes the enrichment stages.
type Pipeline struct {
	MaxConcurrentClips      int     `toml:"max_concurrent_clips"`
	MaxConcurrentTranscodes int     `toml:"max_concurrent_transcodes"`
	GenerateThumbnails      bool    `toml:"generate_thumbnails"`
	GenerateCaptions        bool    `toml:"generate_captions"`
	BeatSource              string  `toml:"beat_source"` // "placeholder" or "silence"
	BeatSeed                uint64  `toml:"beat_seed"`   // 0 seeds from the clock
	SilenceNoiseDB          float64 `toml:"silence_noise_db"`
	SilenceMinDuration      float64 `toml:"silence_min_duration"`
	DefaultTimezone         string  `toml:"default_timezone"`
	DefaultLanguage         string  `toml:"default_language"`
	FFmpegPath              string  `toml:"ffmpeg_path"`
	FFprobePath             string  `toml:"ffprobe_path"`
	TranscriptionModel      string  `toml:"transcription_model"` // Key into agent_models.
}

// Catalog points at replacement data files. Empty values use the embedded tables.
type Catalog struct {
	ProfilesFile   string `toml:"profiles_file"`
	EngagementFile string `toml:"engagement_file"`
}

// Jobs configures background batch execution.
type Jobs struct {
	DatabasePath      string `toml:"database_path"`
	MaxConcurrentJobs int    `toml:"max_concurrent_jobs"`
	TimeoutInSeconds  int    `toml:"timeout_in_seconds"`
}

// Timeout returns the per-job timeout, or zero for none.
func (j Jobs) Timeout() time.Duration {
	return time.Duration(j.TimeoutInSeconds) * time.Second
}

// Server configures the HTTP host.
type Server struct {
	Port                   string `toml:"port"`
	MaxUploadMB            int64  `toml:"max_upload_mb"`
	RateLimitRequests      int    `toml:"rate_limit_requests"`
	RateLimitWindowSeconds int    `toml:"rate_limit_window_seconds"`
	SignedURLMinutes       int    `toml:"signed_url_minutes"`
}

// Telemetry switches the Google Cloud exporters on or off.
type Telemetry struct {
	Enabled  bool   `toml:"enabled"`
	LogLevel string `toml:"log_level"` // debug, info, warn or error
	LogFile  string `toml:"log_file"`  // Optional copy of the JSON log.
}

// Config represents the overall configuration for the application, loaded from TOML files.
// It acts as the root container for all other configuration structs.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name                      string `toml:"name"`                         // The name of the application.
		Version                   string `toml:"version"`                      // Reported by the status endpoint.
		GoogleProjectId           string `toml:"google_project_id"`            // The Google Cloud project ID.
		GoogleLocation            string `toml:"location"`                     // The Google Cloud location.
		ThreadPoolSize            int    `toml:"thread_pool_size"`             // Default size of worker pools.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"` // The service account email used for signing GCS URLs.
	} `toml:"application"`
	Storage            Storage                      `toml:"storage"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"`
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"` // Keyed by a logical name (e.g., "BatchRequestTopic").
	AgentModels        map[string]VertexAiLLMModel  `toml:"agent_models"`        // Keyed by a logical name (e.g., "transcriber").
	Pipeline           Pipeline                     `toml:"pipeline"`
	Catalog            Catalog                      `toml:"catalog"`
	Jobs               Jobs                         `toml:"jobs"`
	Server             Server                       `toml:"server"`
	Telemetry          Telemetry                    `toml:"telemetry"`
}

// NewConfig creates a Config with its maps initialized and the defaults the
// TOML files may override.
//
// Outputs:
//   - *Config: A pointer to a new Config struct.
func NewConfig() *Config {
	c := &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		AgentModels:        make(map[string]VertexAiLLMModel),
	}
	c.Application.Name = "clip-enrichment"
	c.Application.Version = "0.1.0"
	c.Application.ThreadPoolSize = 4
	c.Storage.LocalOutputDir = "output"
	c.Storage.LocalWorkDir = "work"
	c.Pipeline = Pipeline{
		MaxConcurrentClips:      4,
		MaxConcurrentTranscodes: 3,
		GenerateThumbnails:      true,
		GenerateCaptions:        true,
		BeatSource:              "placeholder",
		SilenceNoiseDB:          -30,
		SilenceMinDuration:      0.2,
		DefaultTimezone:         "-03:00",
		DefaultLanguage:         "pt",
	}
	c.Telemetry.LogLevel = "info"
	c.Jobs = Jobs{DatabasePath: "jobs.db", MaxConcurrentJobs: 2, TimeoutInSeconds: 1800}
	c.Server = Server{
		Port:                   "8080",
		MaxUploadMB:            500,
		RateLimitRequests:      100,
		RateLimitWindowSeconds: 900,
		SignedURLMinutes:       15,
	}
	return c
}
