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

// The SubtitleCaptioner produces a captioned copy of a clip.
//
// Logic Flow:
//  1. The clip's audio range is extracted to `<workDir>/<scope>/<clipId>_audio.mp3`.
//  2. The Transcriber turns the audio into word tokens with timings.
//  3. The words become an SRT file with one cue per word.
//  4. ffmpeg burns the SRT into `<outputDir>/<scope>/<clipId>_<lang>_final.mp4`.
//  5. The audio and SRT scratch files are removed.
//
// Any failing step yields a CaptionFailure; the caller keeps the clip without
// captions.

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/media"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
)

// CaptionRequest is one clip range to caption.
type CaptionRequest struct {
	ClipID   string
	Source   string
	Start    float64
	Duration float64
	Language string
	// Scope names the run directory under the work and output dirs.
	Scope string
}

// Captioner produces a caption artifact and transcript for a clip range.
type Captioner interface {
	Caption(ctx context.Context, req CaptionRequest) (*model.CaptionResult, error)
}

// Transcriber turns an audio file into timestamped words.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, language string) (*model.Transcript, error)
}

// SubtitleRenderer is the part of media.FFmpeg used by the captioner.
type SubtitleRenderer interface {
	ExtractAudio(ctx context.Context, source string, start, duration float64, output string) error
	BurnSubtitles(ctx context.Context, source string, start, duration float64, srtPath, output string) error
}

// CaptionFailure reports that a clip could not be captioned.
type CaptionFailure struct {
	ClipID string
	Step   string
	Err    error
}

func (e *CaptionFailure) Error() string {
	return fmt.Sprintf("caption %s failed at %s: %v", e.ClipID, e.Step, e.Err)
}

func (e *CaptionFailure) Unwrap() error {
	return e.Err
}

// ErrEmptyTranscript is the cause of a CaptionFailure when no words were heard.
var ErrEmptyTranscript = errors.New("transcript has no words")

// SubtitleCaptioner implements Captioner with ffmpeg and a Transcriber.
type SubtitleCaptioner struct {
	renderer    SubtitleRenderer
	transcriber Transcriber
	workDir     string
	outputDir   string
}

// NewSubtitleCaptioner is the constructor for SubtitleCaptioner.
func NewSubtitleCaptioner(renderer SubtitleRenderer, transcriber Transcriber, workDir, outputDir string) *SubtitleCaptioner {
	return &SubtitleCaptioner{renderer: renderer, transcriber: transcriber, workDir: workDir, outputDir: outputDir}
}

// CaptionPath returns the captioned clip's output file.
func CaptionPath(outputDir, clipID, language string) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s_final.mp4", clipID, language))
}

// Caption implements Captioner.
func (s *SubtitleCaptioner) Caption(ctx context.Context, req CaptionRequest) (*model.CaptionResult, error) {
	fail := func(step string, err error) (*model.CaptionResult, error) {
		return nil, &CaptionFailure{ClipID: req.ClipID, Step: step, Err: err}
	}

	workDir := RunDir(s.workDir, req.Scope)
	outputDir := RunDir(s.outputDir, req.Scope)
	audioPath := filepath.Join(workDir, fmt.Sprintf("%s_audio.mp3", req.ClipID))
	srtPath := filepath.Join(workDir, fmt.Sprintf("%s.srt", req.ClipID))
	defer removeScratch(audioPath, srtPath)

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fail("prepare", err)
	}
	if err := s.renderer.ExtractAudio(ctx, req.Source, req.Start, req.Duration, audioPath); err != nil {
		return fail("extract-audio", err)
	}

	transcript, err := s.transcriber.Transcribe(ctx, audioPath, req.Language)
	if err != nil {
		return fail("transcribe", err)
	}
	if transcript == nil || len(transcript.Words) == 0 {
		return fail("transcribe", ErrEmptyTranscript)
	}

	srt := media.BuildSRT(transcript.Words)
	if err := os.WriteFile(srtPath, []byte(srt), 0o644); err != nil {
		return fail("write-srt", err)
	}

	output := CaptionPath(outputDir, req.ClipID, req.Language)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fail("prepare", err)
	}
	if err := s.renderer.BurnSubtitles(ctx, req.Source, req.Start, req.Duration, srtPath, output); err != nil {
		return fail("burn-in", err)
	}

	text := transcript.Text
	if text == "" {
		words := make([]string, 0, len(transcript.Words))
		for _, w := range transcript.Words {
			words = append(words, strings.TrimSpace(w.Text))
		}
		text = strings.Join(words, " ")
	}
	return &model.CaptionResult{
		Language:   req.Language,
		FilePath:   output,
		SrtContent: srt,
		Transcript: text,
	}, nil
}

func removeScratch(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove scratch file", "path", p, "error", err)
		}
	}
}
