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

// The GenAITranscriber asks Gemini for a word-level transcript of an audio file.
//
// Logic Flow:
//  1. The audio is staged in the work bucket so the model can read it by URI.
//  2. The prompt template is filled with the language and an example transcript
//     in JSON, so the model knows the exact shape to return.
//  3. The prompt and the audio FileData are sent through the rate-limited model.
//  4. The JSON answer is decoded into a Transcript; the staged object is deleted.

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"text/template"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/cloud"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

// AudioStager makes a local file readable by the model and cleans it up later.
type AudioStager interface {
	Bucket() string
	Upload(ctx context.Context, path string, objectName string, contentType string) (cloud.GCSObject, error)
	Delete(ctx context.Context, objectName string) error
}

// GenAITranscriber implements Transcriber with a Gemini model.
type GenAITranscriber struct {
	model        *cloud.QuotaAwareGenerativeAIModel
	stager       AudioStager
	prompt       *template.Template
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	retryCounter metric.Int64Counter
	objectPrefix string
}

// NewGenAITranscriber is the constructor for GenAITranscriber.
//
// Inputs:
//   - name: Prefix of the token and retry counters.
//   - model: The rate-limited model.
//   - stager: Work bucket receiving the audio.
//   - prompt: Template with {{ .LANGUAGE }} and {{ .EXAMPLE_JSON }} placeholders.
func NewGenAITranscriber(name string, model *cloud.QuotaAwareGenerativeAIModel, stager AudioStager, prompt *template.Template) *GenAITranscriber {
	meter := otel.Meter("github.com/jaycherian/gcp-go-clip-enrichment")
	t := &GenAITranscriber{model: model, stager: stager, prompt: prompt, objectPrefix: "transcribe"}
	t.inputTokens, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.token.input", name))
	t.outputTokens, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.token.output", name))
	t.retryCounter, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.retry", name))
	return t
}

// BuildTranscriptPrompt renders the transcription prompt for language.
func BuildTranscriptPrompt(prompt *template.Template, language string) (string, error) {
	example, err := json.Marshal(model.GetExampleTranscript())
	if err != nil {
		return "", err
	}
	var doc bytes.Buffer
	if err := prompt.Execute(&doc, map[string]string{
		"LANGUAGE":     language,
		"EXAMPLE_JSON": string(example),
	}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return doc.String(), nil
}

// ParseTranscript decodes the model's JSON answer. Words with an end before
// their start are clamped.
func ParseTranscript(value string, language string) (*model.Transcript, error) {
	out := &model.Transcript{}
	if err := json.Unmarshal([]byte(cloud.StripJSONFence(value)), out); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}
	if out.Language == "" {
		out.Language = language
	}
	for i := range out.Words {
		if out.Words[i].End < out.Words[i].Start {
			out.Words[i].End = out.Words[i].Start
		}
	}
	return out, nil
}

// Transcribe implements Transcriber.
func (t *GenAITranscriber) Transcribe(ctx context.Context, audioPath string, language string) (*model.Transcript, error) {
	text, err := BuildTranscriptPrompt(t.prompt, language)
	if err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("%s/%s%s", t.objectPrefix, uuid.NewString(), filepath.Ext(audioPath))
	staged, err := t.stager.Upload(ctx, audioPath, objectName, "audio/mpeg")
	if err != nil {
		return nil, fmt.Errorf("failed to stage audio: %w", err)
	}
	defer func() {
		if err := t.stager.Delete(context.WithoutCancel(ctx), objectName); err != nil {
			slog.WarnContext(ctx, "failed to delete staged audio", "object", staged.URI(), "error", err)
		}
	}()

	contents := []*genai.Content{
		{Parts: []*genai.Part{
			{Text: text},
			cloud.NewFileData(staged.URI(), "audio/mpeg"),
		}, Role: "user"},
	}
	value, err := cloud.GenerateMultiModalResponse(ctx, t.inputTokens, t.outputTokens, t.retryCounter, 0, t.model, contents)
	if err != nil {
		return nil, err
	}
	return ParseTranscript(value, language)
}
