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

package test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/cloud"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/media"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/services"
	"google.golang.org/genai"
)

// FakeTranscoder records requests and fails for selected platforms. A platform
// is recognized by the "_<platform>_" segment of the output file name.
type FakeTranscoder struct {
	mu       sync.Mutex
	FailOn   map[string]error
	Delay    time.Duration
	Requests []media.TranscodeRequest
	active   int
	Peak     int
}

// NewFakeTranscoder creates a transcoder failing with the given errors.
func NewFakeTranscoder(failOn map[string]error) *FakeTranscoder {
	if failOn == nil {
		failOn = map[string]error{}
	}
	return &FakeTranscoder{FailOn: failOn}
}

func (f *FakeTranscoder) Transcode(ctx context.Context, req media.TranscodeRequest) (string, error) {
	f.mu.Lock()
	f.Requests = append(f.Requests, req)
	f.active++
	if f.active > f.Peak {
		f.Peak = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	base := filepath.Base(req.Output)
	for platform, err := range f.FailOn {
		if strings.Contains(base, "_"+platform+"_") {
			return "", err
		}
	}
	return req.Output, nil
}

// RequestFor returns the recorded request whose output belongs to platform.
func (f *FakeTranscoder) RequestFor(platform string) (media.TranscodeRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.Requests {
		if strings.Contains(filepath.Base(r.Output), "_"+platform+"_") {
			return r, true
		}
	}
	return media.TranscodeRequest{}, false
}

// FakeThumbnailer counts calls and optionally fails.
type FakeThumbnailer struct {
	mu    sync.Mutex
	Err   error
	Calls []string
}

func (f *FakeThumbnailer) Thumbnail(_ context.Context, _ string, _ float64, output string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, output)
	return f.Err
}

// FakeCaptioner returns a canned caption unless the clip is listed in FailOn.
type FakeCaptioner struct {
	mu       sync.Mutex
	FailOn   map[string]error
	Requests []services.CaptionRequest
}

func (f *FakeCaptioner) Caption(_ context.Context, req services.CaptionRequest) (*model.CaptionResult, error) {
	f.mu.Lock()
	f.Requests = append(f.Requests, req)
	f.mu.Unlock()
	if err, ok := f.FailOn[req.ClipID]; ok {
		return nil, &services.CaptionFailure{ClipID: req.ClipID, Step: "transcribe", Err: err}
	}
	return &model.CaptionResult{
		Language:   req.Language,
		FilePath:   services.CaptionPath(services.RunDir("out", req.Scope), req.ClipID, req.Language),
		SrtContent: "1\n00:00:00,000 --> 00:00:00,500\nOlá\n\n",
		Transcript: "Olá",
	}, nil
}

// FakeProber reports a fixed duration.
type FakeProber struct {
	Seconds float64
	Err     error
}

func (f *FakeProber) Duration(_ context.Context, _ string) (float64, error) {
	return f.Seconds, f.Err
}

// FakeBeatSource returns fixed markers.
type FakeBeatSource struct {
	Result []model.BeatMarker
	Err    error
}

func (f *FakeBeatSource) Markers(_ context.Context, _ string, _ float64) ([]model.BeatMarker, error) {
	return f.Result, f.Err
}

// FakeTranscriber returns a fixed transcript.
type FakeTranscriber struct {
	Transcript *model.Transcript
	Err        error
	Audio      []string
}

func (f *FakeTranscriber) Transcribe(_ context.Context, audioPath string, _ string) (*model.Transcript, error) {
	f.Audio = append(f.Audio, audioPath)
	return f.Transcript, f.Err
}

// FakeRenderer writes empty files where ffmpeg would write its outputs.
type FakeRenderer struct {
	ExtractErr error
	BurnErr    error
	SRTSeen    string
}

func (f *FakeRenderer) ExtractAudio(_ context.Context, _ string, _, _ float64, output string) error {
	if f.ExtractErr != nil {
		return f.ExtractErr
	}
	return os.WriteFile(output, []byte{}, 0o644)
}

func (f *FakeRenderer) BurnSubtitles(_ context.Context, _ string, _, _ float64, srtPath, output string) error {
	if f.BurnErr != nil {
		return f.BurnErr
	}
	data, err := os.ReadFile(srtPath)
	if err != nil {
		return err
	}
	f.SRTSeen = string(data)
	return os.WriteFile(output, []byte{}, 0o644)
}

// FakeGenerator answers every request with Text and keeps the last contents.
type FakeGenerator struct {
	mu       sync.Mutex
	Text     string
	Err      error
	Calls    int
	Contents []*genai.Content
}

func (f *FakeGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.Contents = contents
	if f.Err != nil {
		return nil, f.Err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: f.Text}}}}},
	}, nil
}

// FakeStager records uploads and deletes against an imaginary bucket.
type FakeStager struct {
	mu       sync.Mutex
	Name     string
	Uploaded []string
	Deleted  []string
	Err      error
}

func (f *FakeStager) Bucket() string {
	return f.Name
}

func (f *FakeStager) Upload(_ context.Context, _ string, objectName string, contentType string) (cloud.GCSObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return cloud.GCSObject{}, f.Err
	}
	f.Uploaded = append(f.Uploaded, objectName)
	return cloud.GCSObject{Bucket: f.Name, Name: objectName, MIMEType: contentType}, nil
}

func (f *FakeStager) Delete(_ context.Context, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, objectName)
	return nil
}
