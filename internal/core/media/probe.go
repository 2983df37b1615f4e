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

package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

const DefaultFFProbePath = "ffprobe"

// ErrUnsupportedMedia is returned when content sniffing rejects a file.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// SupportedVideoTypes are the MIME types accepted as source media.
var SupportedVideoTypes = map[string]bool{
	"video/mp4":       true,
	"video/quicktime": true,
	"video/x-msvideo": true,
	"video/webm":      true,
}

// Prober reports the duration of a media file in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFProbe implements Prober with ffprobe's JSON output.
type FFProbe struct {
	path   string
	runner Runner
}

// NewFFProbe creates an ffprobe wrapper with the same defaults as NewFFmpeg.
func NewFFProbe(path string, runner Runner) *FFProbe {
	if strings.TrimSpace(path) == "" {
		path = DefaultFFProbePath
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &FFProbe{path: path, runner: runner}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration implements Prober.
func (p *FFProbe) Duration(ctx context.Context, path string) (float64, error) {
	res := p.runner.Run(ctx, p.path, "-v", "error", "-show_entries", "format=duration", "-of", "json", path)
	if res.Err != nil {
		return 0, fmt.Errorf("ffprobe %s: %s: %w", path, lastLine(res.Stderr), res.Err)
	}
	return ParseDuration([]byte(res.Stdout))
}

// ParseDuration reads format.duration from ffprobe JSON output.
func ParseDuration(data []byte) (float64, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if out.Format.Duration == "" || out.Format.Duration == "N/A" {
		return 0, errors.New("ffprobe reported no duration")
	}
	d, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", out.Format.Duration, err)
	}
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, fmt.Errorf("invalid duration %q", out.Format.Duration)
	}
	return d, nil
}

// SniffVideo inspects the leading bytes of a file (261 are enough) and returns
// its detected type when it is an accepted video container.
func SniffVideo(header []byte) (types.Type, error) {
	kind, err := filetype.Match(header)
	if err != nil {
		return types.Unknown, err
	}
	if kind == types.Unknown || !SupportedVideoTypes[kind.MIME.Value] {
		return kind, fmt.Errorf("%w: %s", ErrUnsupportedMedia, kind.MIME.Value)
	}
	return kind, nil
}

// SniffVideoFile is SniffVideo for a file on disk.
func SniffVideoFile(path string) (types.Type, error) {
	kind, err := filetype.MatchFile(path)
	if err != nil {
		return types.Unknown, err
	}
	if kind == types.Unknown || !SupportedVideoTypes[kind.MIME.Value] {
		return kind, fmt.Errorf("%w: %s", ErrUnsupportedMedia, kind.MIME.Value)
	}
	return kind, nil
}
