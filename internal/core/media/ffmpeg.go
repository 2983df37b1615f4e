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

// ffmpeg command lines.
//
// Logic Flow (Transcode):
//  1. The caller supplies a TranscodeRequest: source, time range and the
//     encoding knobs taken from a platform profile.
//  2. TranscodeArgs turns the request into an argument list. The aspect ratio
//     selects the scale/crop filter and the quality tier selects the CRF.
//  3. The Runner executes ffmpeg. On failure the last stderr line becomes the
//     TranscodeFailure reason.

package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
)

const (
	DefaultFFmpegPath = "ffmpeg"
	// ThumbnailSize is the frame size of generated thumbnails.
	ThumbnailSize = "640x360"
	// SubtitleStyle is the libass force_style used when burning captions.
	SubtitleStyle = "Fontname=Arial,FontSize=24,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000,BorderStyle=1,Outline=1,Shadow=0,Alignment=2"
)

var reSilenceEnd = regexp.MustCompile(`silence_end:\s*(-?[0-9.]+)`)

// TranscodeRequest describes one platform rendition to produce.
type TranscodeRequest struct {
	Source      string
	Start       float64
	Duration    float64
	AspectRatio model.AspectRatio
	Quality     model.QualityTier
	Preset      string
	Output      string
}

// TranscodeFailure is returned when a rendition could not be produced.
type TranscodeFailure struct {
	Reason string
	Err    error
}

func (e *TranscodeFailure) Error() string {
	return fmt.Sprintf("transcode failed: %s", e.Reason)
}

func (e *TranscodeFailure) Unwrap() error {
	return e.Err
}

// Transcoder produces a rendition and returns the handle (path) of the output.
type Transcoder interface {
	Transcode(ctx context.Context, req TranscodeRequest) (string, error)
}

// FFmpeg runs ffmpeg through a Runner.
type FFmpeg struct {
	path   string
	runner Runner
}

// NewFFmpeg creates an FFmpeg wrapper. An empty path resolves "ffmpeg" from PATH
// and a nil runner uses ExecRunner.
func NewFFmpeg(path string, runner Runner) *FFmpeg {
	if strings.TrimSpace(path) == "" {
		path = DefaultFFmpegPath
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &FFmpeg{path: path, runner: runner}
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// TranscodeArgs builds the ffmpeg argument list for a rendition.
func TranscodeArgs(req TranscodeRequest) []string {
	return []string{
		"-hide_banner", "-y",
		"-ss", seconds(req.Start),
		"-i", req.Source,
		"-t", seconds(req.Duration),
		"-vf", req.AspectRatio.ScaleFilter(),
		"-c:v", "libx264",
		"-preset", req.Preset,
		"-crf", strconv.Itoa(req.Quality.CRF()),
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "48000",
		"-movflags", "faststart",
		req.Output,
	}
}

// Transcode implements Transcoder.
func (f *FFmpeg) Transcode(ctx context.Context, req TranscodeRequest) (string, error) {
	if req.Duration <= 0 {
		return "", &TranscodeFailure{Reason: fmt.Sprintf("non-positive duration %.3f", req.Duration)}
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return "", &TranscodeFailure{Reason: err.Error(), Err: err}
	}
	if err := f.run(ctx, TranscodeArgs(req)); err != nil {
		_ = os.Remove(req.Output)
		return "", err
	}
	return req.Output, nil
}

// Thumbnail grabs a single frame at the given offset.
func (f *FFmpeg) Thumbnail(ctx context.Context, source string, at float64, output string) error {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	return f.run(ctx, []string{
		"-hide_banner", "-y",
		"-ss", seconds(at),
		"-i", source,
		"-frames:v", "1",
		"-s", ThumbnailSize,
		output,
	})
}

// ExtractAudio writes the audio track of a range as an mp3.
func (f *FFmpeg) ExtractAudio(ctx context.Context, source string, start, duration float64, output string) error {
	return f.run(ctx, []string{
		"-hide_banner", "-y",
		"-ss", seconds(start),
		"-i", source,
		"-t", seconds(duration),
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "2",
		output,
	})
}

// BurnSubtitlesArgs builds the argument list that renders an SRT file onto a range.
func BurnSubtitlesArgs(source string, start, duration float64, srtPath, output string) []string {
	filter := fmt.Sprintf("subtitles=%s:force_style='%s'", escapeFilterPath(srtPath), SubtitleStyle)
	return []string{
		"-hide_banner", "-y",
		"-ss", seconds(start),
		"-i", source,
		"-t", seconds(duration),
		"-vf", filter,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "copy",
		"-movflags", "faststart",
		output,
	}
}

// BurnSubtitles renders the SRT onto the given range of the source.
func (f *FFmpeg) BurnSubtitles(ctx context.Context, source string, start, duration float64, srtPath, output string) error {
	return f.run(ctx, BurnSubtitlesArgs(source, start, duration, srtPath, output))
}

// DetectSilence runs the silencedetect filter over the audio track and returns
// the end of every silent stretch, which is where sound resumes.
func (f *FFmpeg) DetectSilence(ctx context.Context, source string, noiseDB float64, minSilence float64) ([]float64, error) {
	filter := fmt.Sprintf("silencedetect=noise=%sdB:d=%s",
		strconv.FormatFloat(noiseDB, 'f', -1, 64), strconv.FormatFloat(minSilence, 'f', -1, 64))
	res := f.runner.Run(ctx, f.path, "-hide_banner", "-nostats", "-i", source, "-vn", "-af", filter, "-f", "null", "-")
	if res.Err != nil {
		return nil, failure(res)
	}
	return ParseSilenceEnds(res.Stderr), nil
}

// ParseSilenceEnds extracts the silence_end timestamps from silencedetect output, sorted.
func ParseSilenceEnds(stderr string) []float64 {
	out := make([]float64, 0)
	for _, m := range reSilenceEnd.FindAllStringSubmatch(stderr, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v < 0 {
			continue
		}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

func (f *FFmpeg) run(ctx context.Context, args []string) error {
	res := f.runner.Run(ctx, f.path, args...)
	if res.Err != nil {
		return failure(res)
	}
	return nil
}

func failure(res ExecResult) error {
	reason := lastLine(res.Stderr)
	if reason == "" {
		reason = res.Err.Error()
	}
	var exitErr interface{ ExitCode() int }
	if errors.As(res.Err, &exitErr) && exitErr.ExitCode() >= 0 {
		reason = fmt.Sprintf("%s (exit %d)", reason, exitErr.ExitCode())
	}
	return &TranscodeFailure{Reason: reason, Err: res.Err}
}

// escapeFilterPath quotes a path for use as a filtergraph option value.
func escapeFilterPath(p string) string {
	r := strings.NewReplacer(`\`, `/`, `:`, `\:`, `'`, `\'`)
	return r.Replace(p)
}
