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

package workflow

import (
	"fmt"
	"os"
	"text/template"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/cloud"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/catalog"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/media"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/services"
)

// NewPipelineDependencies wires the production collaborators from the
// configuration.
//
// Logic Flow:
//  1. Creates the local output and work directories.
//  2. Loads the profile and engagement catalogs (embedded unless overridden).
//  3. Builds ffmpeg/ffprobe, the configured beat source and the platform
//     optimizer (with thumbnails when enabled).
//  4. Captions need the GenAI transcription model and the work bucket, so the
//     captioner is only built when `clients` is not nil and captions are enabled.
//
// Inputs:
//   - config: The loaded configuration.
//   - clients: The cloud clients; nil for a fully local run.
func NewPipelineDependencies(config *cloud.Config, clients *cloud.ServiceClients) (PipelineDependencies, error) {
	deps := PipelineDependencies{}
	p := config.Pipeline

	for _, dir := range []string{config.Storage.LocalOutputDir, config.Storage.LocalWorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return deps, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	profiles, engagement, err := catalog.Load(config.Catalog.ProfilesFile, config.Catalog.EngagementFile)
	if err != nil {
		return deps, err
	}
	offset, err := services.ParseUTCOffset(p.DefaultTimezone)
	if err != nil {
		return deps, fmt.Errorf("invalid pipeline.default_timezone: %w", err)
	}

	ffmpeg := media.NewFFmpeg(p.FFmpegPath, media.ExecRunner{})
	beats, err := services.NewBeatSource(p.BeatSource, p.BeatSeed, ffmpeg, p.SilenceNoiseDB, p.SilenceMinDuration)
	if err != nil {
		return deps, err
	}

	opts := make([]services.OptimizerOption, 0)
	if p.GenerateThumbnails {
		opts = append(opts, services.WithThumbnails(ffmpeg))
	}

	deps = PipelineDependencies{
		Prober:             media.NewFFProbe(p.FFprobePath, media.ExecRunner{}),
		Beats:              beats,
		Optimizer:          services.NewPlatformOptimizer(profiles, ffmpeg, config.Storage.LocalOutputDir, p.MaxConcurrentTranscodes, opts...),
		Advisor:            services.NewSchedulingAdvisor(engagement),
		MaxConcurrentClips: p.MaxConcurrentClips,
		DefaultTimezone:    offset,
		DefaultLanguage:    p.DefaultLanguage,
	}

	if p.GenerateCaptions && clients != nil {
		agent, ok := clients.AgentModels[p.TranscriptionModel]
		if !ok {
			return deps, fmt.Errorf("transcription model %q is not configured in agent_models", p.TranscriptionModel)
		}
		prompt, err := template.New("transcript-template").Parse(config.PromptTemplates.TranscriptPrompt)
		if err != nil {
			return deps, fmt.Errorf("invalid transcript prompt template: %w", err)
		}
		stager := cloud.NewBucketStore(clients.StorageClient, config.Storage.WorkBucket)
		transcriber := services.NewGenAITranscriber("transcriber", agent, stager, prompt)
		deps.Captioner = services.NewSubtitleCaptioner(ffmpeg, transcriber, config.Storage.LocalWorkDir, config.Storage.LocalOutputDir)
	}
	return deps, nil
}

// NewBatchJobOptions wires the host-side collaborators of the batch workflow.
func NewBatchJobOptions(config *cloud.Config, clients *cloud.ServiceClients) BatchJobOptions {
	opts := BatchJobOptions{
		WorkDir:       config.Storage.LocalWorkDir,
		UploadWorkers: config.Application.ThreadPoolSize,
	}
	if clients == nil {
		return opts
	}
	opts.StorageClient = clients.StorageClient
	if clients.StorageClient != nil && config.Storage.OutputBucket != "" {
		opts.Artifacts = cloud.NewBucketStore(clients.StorageClient, config.Storage.OutputBucket)
	}
	if clients.BiqQueryClient != nil && config.BigQueryDataSource.ResultsTable != "" {
		opts.Results = clients.BiqQueryClient.
			Dataset(config.BigQueryDataSource.DatasetName).
			Table(config.BigQueryDataSource.ResultsTable).
			Inserter()
	}
	return opts
}
