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

// Package services contains the business logic of the clip enrichment pipeline:
// beat detection and synchronization, per-platform optimization, captioning,
// scheduling and result lookups.
//
// This file defines the BeatSource capability and its two implementations.
//
// Structs:
//   - PlaceholderBeatSource: Quasi-periodic markers with bounded random jitter.
//   - SilenceOnsetBeatSource: Sound onsets found by ffmpeg's silencedetect filter.
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/media"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
)

// ErrSourceUnavailable is returned when beat markers cannot be derived from the
// source. Callers continue with an empty marker sequence.
var ErrSourceUnavailable = errors.New("beat source unavailable")

const (
	placeholderBaseInterval = 0.8
	placeholderJitter       = 0.4
)

// BeatSource produces ordered beat markers covering [0, totalDuration).
type BeatSource interface {
	Markers(ctx context.Context, source string, totalDuration float64) ([]model.BeatMarker, error)
}

func checkDuration(totalDuration float64) error {
	if math.IsNaN(totalDuration) || math.IsInf(totalDuration, 0) || totalDuration <= 0 {
		return fmt.Errorf("%w: media duration %v", ErrSourceUnavailable, totalDuration)
	}
	return nil
}

// PlaceholderBeatSource stands in for a real onset detector. Markers start at 0
// and advance by 0.8s plus up to 0.4s of jitter, rounded to centiseconds.
type PlaceholderBeatSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPlaceholderBeatSource creates a source. A zero seed seeds from the clock;
// any other seed makes the marker sequence reproducible.
func NewPlaceholderBeatSource(seed uint64) *PlaceholderBeatSource {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &PlaceholderBeatSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Markers implements BeatSource. The source handle is not read.
func (p *PlaceholderBeatSource) Markers(_ context.Context, _ string, totalDuration float64) ([]model.BeatMarker, error) {
	if err := checkDuration(totalDuration); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	markers := make([]model.BeatMarker, 0, int(totalDuration/placeholderBaseInterval)+1)
	for t := 0.0; t < totalDuration; t += placeholderBaseInterval + p.rng.Float64()*placeholderJitter {
		markers = append(markers, model.BeatMarker(math.Round(t*100)/100))
	}
	return markers, nil
}

// SilenceDetector is the part of media.FFmpeg used for onset detection.
type SilenceDetector interface {
	DetectSilence(ctx context.Context, source string, noiseDB float64, minSilence float64) ([]float64, error)
}

// SilenceOnsetBeatSource reports every point where sound resumes after a
// silence as a beat marker.
type SilenceOnsetBeatSource struct {
	detector   SilenceDetector
	noiseDB    float64
	minSilence float64
}

// NewSilenceOnsetBeatSource creates the source. noiseDB is the silence
// threshold (e.g., -30) and minSilence the shortest gap in seconds.
func NewSilenceOnsetBeatSource(detector SilenceDetector, noiseDB, minSilence float64) *SilenceOnsetBeatSource {
	return &SilenceOnsetBeatSource{detector: detector, noiseDB: noiseDB, minSilence: minSilence}
}

// Markers implements BeatSource.
func (s *SilenceOnsetBeatSource) Markers(ctx context.Context, source string, totalDuration float64) ([]model.BeatMarker, error) {
	if err := checkDuration(totalDuration); err != nil {
		return nil, err
	}
	ends, err := s.detector.DetectSilence(ctx, source, s.noiseDB, s.minSilence)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	markers := make([]model.BeatMarker, 0, len(ends))
	for _, e := range ends {
		if e >= 0 && e < totalDuration {
			markers = append(markers, model.BeatMarker(e))
		}
	}
	return markers, nil
}

// NewBeatSource selects the implementation named by kind ("placeholder" or "silence").
func NewBeatSource(kind string, seed uint64, ffmpeg *media.FFmpeg, noiseDB, minSilence float64) (BeatSource, error) {
	switch kind {
	case "", "placeholder":
		return NewPlaceholderBeatSource(seed), nil
	case "silence":
		return NewSilenceOnsetBeatSource(ffmpeg, noiseDB, minSilence), nil
	default:
		return nil, fmt.Errorf("unknown beat source %q", kind)
	}
}
