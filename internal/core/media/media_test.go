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

package media_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/media"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu     sync.Mutex
	calls  [][]string
	result media.ExecResult
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) media.ExecResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.result
}

func TestTranscodeArgs(t *testing.T) {
	args := media.TranscodeArgs(media.TranscodeRequest{
		Source:      "/in/source.mp4",
		Start:       44.5,
		Duration:    30,
		AspectRatio: model.AspectVertical,
		Quality:     model.QualityHigh,
		Preset:      "veryfast",
		Output:      "/out/c1_tiktok_optimized.mp4",
	})

	joined := strings.Join(args, " ")
	assert.Equal(t,
		"-hide_banner -y -ss 44.500 -i /in/source.mp4 -t 30.000 -vf scale=-2:1280,crop=720:1280 "+
			"-c:v libx264 -preset veryfast -crf 23 -c:a aac -b:a 192k -ar 48000 -movflags faststart "+
			"/out/c1_tiktok_optimized.mp4", joined)
}

func TestTranscodeUsesRunner(t *testing.T) {
	runner := &recordingRunner{}
	ff := media.NewFFmpeg("/usr/bin/ffmpeg", runner)

	out, err := ff.Transcode(context.Background(), media.TranscodeRequest{
		Source: "src.mp4", Duration: 10, AspectRatio: model.AspectHorizontal, Quality: model.QualityVeryHigh,
		Preset: "medium", Output: "out.mp4",
	})

	require.NoError(t, err)
	assert.Equal(t, "out.mp4", out)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "/usr/bin/ffmpeg", runner.calls[0][0])
	assert.Contains(t, runner.calls[0], "18")
}

func TestTranscodeFailureCarriesLastStderrLine(t *testing.T) {
	runner := &recordingRunner{result: media.ExecResult{
		Stderr: "ffmpeg version 6.1\n  built with gcc\nUnknown encoder 'libx264'\n\n",
		Err:    errors.New("exit status 1"),
	}}
	ff := media.NewFFmpeg("", runner)

	_, err := ff.Transcode(context.Background(), media.TranscodeRequest{Source: "s", Duration: 5, Output: "o", Preset: "fast"})

	var tf *media.TranscodeFailure
	require.True(t, errors.As(err, &tf))
	assert.Equal(t, "Unknown encoder 'libx264'", tf.Reason)
	assert.Equal(t, "ffmpeg", runner.calls[0][0])
}

func TestTranscodeRejectsNonPositiveDuration(t *testing.T) {
	runner := &recordingRunner{}
	_, err := media.NewFFmpeg("", runner).Transcode(context.Background(), media.TranscodeRequest{Duration: 0})
	var tf *media.TranscodeFailure
	assert.True(t, errors.As(err, &tf))
	assert.Empty(t, runner.calls)
}

func TestBurnSubtitlesArgs(t *testing.T) {
	args := media.BurnSubtitlesArgs("src.mp4", 1, 2, "/tmp/c1.srt", "/out/c1_pt_final.mp4")
	assert.Contains(t, args, "subtitles=/tmp/c1.srt:force_style='"+media.SubtitleStyle+"'")
	assert.Contains(t, args, "copy")
	assert.Equal(t, "/out/c1_pt_final.mp4", args[len(args)-1])
}

func TestExtractAudioAndThumbnail(t *testing.T) {
	runner := &recordingRunner{}
	ff := media.NewFFmpeg("", runner)

	require.NoError(t, ff.ExtractAudio(context.Background(), "src.mp4", 3, 4, "a.mp3"))
	require.NoError(t, ff.Thumbnail(context.Background(), "v.mp4", 0.5, "t.jpg"))

	audio := strings.Join(runner.calls[0], " ")
	assert.Contains(t, audio, "-vn -acodec libmp3lame -q:a 2 a.mp3")
	thumb := strings.Join(runner.calls[1], " ")
	assert.Contains(t, thumb, "-frames:v 1 -s 640x360 t.jpg")
}

func TestParseSilenceEnds(t *testing.T) {
	stderr := `[silencedetect @ 0x1] silence_start: 0
[silencedetect @ 0x1] silence_end: 2.504 | silence_duration: 2.504
[silencedetect @ 0x1] silence_start: 5.1
[silencedetect @ 0x1] silence_end: 1.25 | silence_duration: 0.3`
	assert.Equal(t, []float64{1.25, 2.504}, media.ParseSilenceEnds(stderr))
	assert.Empty(t, media.ParseSilenceEnds("nothing here"))
}

func TestDetectSilence(t *testing.T) {
	runner := &recordingRunner{result: media.ExecResult{Stderr: "silence_end: 3.5 | silence_duration: 1"}}
	ends, err := media.NewFFmpeg("", runner).DetectSilence(context.Background(), "src.mp4", -30, 0.2)
	require.NoError(t, err)
	assert.Equal(t, []float64{3.5}, ends)
	assert.Contains(t, runner.calls[0], "silencedetect=noise=-30dB:d=0.2")
}

func TestParseDuration(t *testing.T) {
	d, err := media.ParseDuration([]byte(`{"format": {"duration": "125.480000"}}`))
	require.NoError(t, err)
	assert.Equal(t, 125.48, d)

	for _, bad := range []string{`{"format": {}}`, `{"format": {"duration": "N/A"}}`, `{"format": {"duration": "0"}}`, `nope`} {
		_, err := media.ParseDuration([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestFFProbeDuration(t *testing.T) {
	runner := &recordingRunner{result: media.ExecResult{Stdout: `{"format": {"duration": "60.0"}}`}}
	d, err := media.NewFFProbe("", runner).Duration(context.Background(), "x.mp4")
	require.NoError(t, err)
	assert.Equal(t, 60.0, d)
	assert.Equal(t, []string{"ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "json", "x.mp4"}, runner.calls[0])

	runner.result = media.ExecResult{Stderr: "x.mp4: No such file or directory", Err: errors.New("exit status 1")}
	_, err = media.NewFFProbe("", runner).Duration(context.Background(), "x.mp4")
	assert.Error(t, err)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00,000", media.FormatTimestamp(0))
	assert.Equal(t, "00:00:01,500", media.FormatTimestamp(1.5))
	assert.Equal(t, "01:02:03,004", media.FormatTimestamp(3723.004))
	assert.Equal(t, "00:00:00,000", media.FormatTimestamp(-2))
}

func TestBuildSRT(t *testing.T) {
	srt := media.BuildSRT([]model.Word{
		{Text: " Olha ", Start: 0.12, End: 0.41},
		{Text: "", Start: 0.41, End: 0.5},
		{Text: "só", Start: 0.5, End: 0.4},
	})
	assert.Equal(t, "1\n00:00:00,120 --> 00:00:00,410\nOlha\n\n2\n00:00:00,500 --> 00:00:00,500\nsó\n\n", srt)
	assert.Empty(t, media.BuildSRT(nil))
}

func TestSniffVideo(t *testing.T) {
	mp4 := append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypisom\x00\x00\x02\x00isomiso2avc1mp41")...)
	kind, err := media.SniffVideo(mp4)
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", kind.MIME.Value)

	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D}
	_, err = media.SniffVideo(png)
	assert.True(t, errors.Is(err, media.ErrUnsupportedMedia))
}
