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

// Package main is the `enrich` command line tool. It runs the enrichment
// pipeline over a local video without the server, or prints posting time
// recommendations for a set of clips.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/cloud"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/spf13/cobra"
)

// app carries what every sub-command shares.
type app struct {
	configDir string
	runtime   string
	verbose   bool
	quiet     bool
	config    *cloud.Config
	stdout    io.Writer
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	a := &app{stdout: stdout}
	root := &cobra.Command{
		Use:   "enrich",
		Short: "Enrich viral clip candidates for social platforms",
		Long: `enrich syncs clip candidates to the beat of their source video, renders a
variant per target platform, burns in captions and recommends posting times.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.setupLogging()
			return a.loadConfig()
		},
	}
	root.SetOut(stdout)
	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "configs", "directory holding .env.toml")
	root.PersistentFlags().StringVar(&a.runtime, "runtime", "local", "configuration overlay (.env.<runtime>.toml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "suppress non-error output")

	root.AddCommand(newRunCmd(a), newScheduleCmd(a))
	return root
}

func (a *app) setupLogging() {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	if a.quiet {
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func (a *app) loadConfig() error {
	if err := os.Setenv(cloud.EnvConfigFilePrefix, a.configDir); err != nil {
		return err
	}
	if err := os.Setenv(cloud.EnvConfigRuntime, a.runtime); err != nil {
		return err
	}
	a.config = cloud.NewConfig()
	return cloud.LoadConfig(a.config)
}

// readClips loads the clips file. It holds either a bare array of clip
// candidates or a whole batch request.
func readClips(path string) (*model.BatchRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read clips: %w", err)
	}
	req := &model.BatchRequest{}
	var clips []model.ClipCandidate
	if err := json.Unmarshal(data, &clips); err == nil {
		req.Clips = clips
		return req, nil
	}
	if err := json.Unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("clips file %s is neither a clip list nor a batch request: %w", path, err)
	}
	return req, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
