// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/cloud"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/services"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/workflow"
	"github.com/spf13/cobra"
)

type runOptions struct {
	clips      string
	source     string
	timezone   string
	language   string
	output     string
	outputDir  string
	captions   bool
	thumbnails bool
	beats      string
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enrich a batch of clips cut from a local video",
		Long: `run reads clip candidates, snaps them to the beat of the source, renders a
variant per platform with ffmpeg, optionally burns in captions and prints the
batch result as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.clips, "clips", "", "JSON file with clip candidates or a batch request (required)")
	cmd.Flags().StringVar(&opts.source, "source", "", "source video; overrides the clips file")
	cmd.Flags().StringVar(&opts.timezone, "timezone", "", "UTC offset for posting times, e.g. -03:00")
	cmd.Flags().StringVar(&opts.language, "language", "", "caption language")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the result here instead of stdout")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "directory for rendered files; each run writes to its own subdirectory")
	cmd.Flags().BoolVar(&opts.captions, "captions", false, "burn in captions (needs a Google Cloud project)")
	cmd.Flags().BoolVar(&opts.thumbnails, "thumbnails", true, "extract a thumbnail per variant")
	cmd.Flags().StringVar(&opts.beats, "beats", "", "beat source: placeholder or silence")
	_ = cmd.MarkFlagRequired("clips")
	return cmd
}

func (a *app) run(cmd *cobra.Command, opts *runOptions) error {
	req, err := readClips(opts.clips)
	if err != nil {
		return err
	}
	if opts.source != "" {
		req.Source = opts.source
	}
	if req.Source == "" {
		return errors.New("no source video: pass --source or set it in the clips file")
	}
	if abs, err := filepath.Abs(req.Source); err == nil && !cloud.IsGCSURI(req.Source) {
		req.Source = abs
	}
	if opts.timezone != "" {
		if _, err := services.ParseUTCOffset(opts.timezone); err != nil {
			return err
		}
		req.Timezone = opts.timezone
	}
	if opts.language != "" {
		req.Language = opts.language
	}
	if err := req.Validate(); err != nil {
		return err
	}

	config := a.config
	config.Pipeline.GenerateCaptions = opts.captions
	config.Pipeline.GenerateThumbnails = opts.thumbnails
	if opts.beats != "" {
		config.Pipeline.BeatSource = opts.beats
	}
	if opts.outputDir != "" {
		config.Storage.LocalOutputDir = opts.outputDir
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var clients *cloud.ServiceClients
	if opts.captions {
		if config.Application.GoogleProjectId == "" {
			return errors.New("--captions needs application.google_project_id in the configuration")
		}
		if clients, err = cloud.NewCloudServiceClients(ctx, config); err != nil {
			return err
		}
		defer func() { _ = clients.Close() }()
	}

	deps, err := workflow.NewPipelineDependencies(config, clients)
	if err != nil {
		return err
	}
	result, err := workflow.NewEnrichmentPipeline("enrichment-pipeline", deps).EnrichBatch(ctx, req)
	if err != nil {
		return err
	}
	slog.Info("batch enriched", "clips", result.TotalClips, "variants", result.Stats.Variants, "failures", result.Stats.Failures)

	return a.emit(opts.output, result)
}

// emit writes v as indented JSON to path, or to stdout when path is empty.
func (a *app) emit(path string, v any) error {
	if path == "" {
		return writeJSON(a.stdout, v)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeJSON(f, v); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
