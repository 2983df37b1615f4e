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
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/cor"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/media"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/services"
)

// MediaProbe reads the duration of the source media. A probe failure is not
// fatal: the duration is left unset and the beat detector reports the source
// as unavailable.
type MediaProbe struct {
	cor.BaseCommand
	prober media.Prober
}

// NewMediaProbe is the constructor for the MediaProbe command.
func NewMediaProbe(name string, prober media.Prober) *MediaProbe {
	return &MediaProbe{BaseCommand: *cor.NewBaseCommand(name), prober: prober}
}

// IsExecutable requires the local source path.
func (c *MediaProbe) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && context.Get(ParamSourcePath) != nil
}

// Execute stores the duration under ParamSourceDuration.
func (c *MediaProbe) Execute(context cor.Context) {
	ctx := context.GetContext()
	path := context.Get(ParamSourcePath).(string)

	duration, err := c.prober.Duration(ctx, path)
	if err != nil {
		c.GetErrorCounter().Add(ctx, 1)
		reason := fmt.Errorf("%w: %w", services.ErrSourceUnavailable, err)
		slog.WarnContext(ctx, "failed to probe source media", "path", path, "stage", model.StageBeatDetect, "error", err)
		context.Add(ParamBeatFailure, reason.Error())
		return
	}
	c.GetSuccessCounter().Add(ctx, 1)
	context.Add(ParamSourceDuration, duration)
}

// BeatDetector asks the configured BeatSource for markers over the whole
// source. Whatever goes wrong, the chain continues with an empty marker
// sequence, which makes every clip's sync a no-op.
type BeatDetector struct {
	cor.BaseCommand
	source services.BeatSource
}

// NewBeatDetector is the constructor for the BeatDetector command.
func NewBeatDetector(name string, source services.BeatSource) *BeatDetector {
	return &BeatDetector{BaseCommand: *cor.NewBaseCommand(name), source: source}
}

// IsExecutable requires the local source path.
func (c *BeatDetector) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && context.Get(ParamSourcePath) != nil
}

// Execute stores the markers under ParamBeatMarkers.
func (c *BeatDetector) Execute(context cor.Context) {
	ctx := context.GetContext()
	path := context.Get(ParamSourcePath).(string)
	markers := make([]model.BeatMarker, 0)
	defer func() { context.Add(ParamBeatMarkers, markers) }()

	duration, ok := context.Get(ParamSourceDuration).(float64)
	if !ok {
		if context.Get(ParamBeatFailure) == nil {
			context.Add(ParamBeatFailure, fmt.Sprintf("%s: media duration unknown", services.ErrSourceUnavailable))
		}
		return
	}

	found, err := c.source.Markers(ctx, path, duration)
	if err != nil {
		c.GetErrorCounter().Add(ctx, 1)
		slog.WarnContext(ctx, "beat markers unavailable, clips keep their timing",
			"path", path, "stage", model.StageBeatDetect, "error", err)
		context.Add(ParamBeatFailure, err.Error())
		return
	}
	markers = found
	c.GetSuccessCounter().Add(ctx, 1)
	slog.DebugContext(ctx, "beat markers detected", "count", len(markers), "duration", duration)
}
