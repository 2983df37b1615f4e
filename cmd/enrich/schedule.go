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
	"fmt"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/catalog"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/services"
	"github.com/spf13/cobra"
)

type scheduleOptions struct {
	clips    string
	timezone string
	at       string
}

// newScheduleCmd recommends posting times for the requested platforms of each
// clip. Nothing is rendered, so no source video is needed.
func newScheduleCmd(a *app) *cobra.Command {
	opts := &scheduleOptions{}
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Recommend posting times for clip candidates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.schedule(opts)
		},
	}
	cmd.Flags().StringVar(&opts.clips, "clips", "", "JSON file with clip candidates or a batch request (required)")
	cmd.Flags().StringVar(&opts.timezone, "timezone", "", "UTC offset, e.g. -03:00 (default pipeline.default_timezone)")
	cmd.Flags().StringVar(&opts.at, "at", "", "reference time in RFC 3339 (default now)")
	_ = cmd.MarkFlagRequired("clips")
	return cmd
}

func (a *app) schedule(opts *scheduleOptions) error {
	req, err := readClips(opts.clips)
	if err != nil {
		return err
	}

	tz := opts.timezone
	if tz == "" {
		tz = req.Timezone
	}
	if tz == "" {
		tz = a.config.Pipeline.DefaultTimezone
	}
	offset, err := services.ParseUTCOffset(tz)
	if err != nil {
		return err
	}

	ref := time.Now()
	if req.ReferenceTime != nil {
		ref = *req.ReferenceTime
	}
	if opts.at != "" {
		if ref, err = time.Parse(time.RFC3339, opts.at); err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
	}

	_, engagement, err := catalog.Load(a.config.Catalog.ProfilesFile, a.config.Catalog.EngagementFile)
	if err != nil {
		return err
	}
	subjects := make([]services.ScheduleSubject, 0, len(req.Clips))
	for _, clip := range req.Clips {
		subjects = append(subjects, services.ScheduleSubject{ClipID: clip.ID, ViralScore: clip.ViralScore, Platforms: clip.Platforms})
	}
	report := services.NewSchedulingAdvisor(engagement).Recommend(subjects, offset, ref)
	return writeJSON(a.stdout, report)
}
