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

// General-purpose helpers of the cloud package: hierarchical configuration
// loading and resilient GenAI calls.
//
// Functions:
//   - LoadConfig: Reads the base configuration file, then overwrites values with
//     the runtime-specific file (e.g., .env.local.toml, .env.test.toml).
//   - GenerateMultiModalResponse: Calls the GenAI model with retries and records
//     token usage metrics.
//   - NewTextPart, NewFileData: Factories for prompt parts.

package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

// Cloud Constants define key strings and values used throughout the package,
// primarily for configuration loading and API interaction policies.
const (
	ConfigFileBaseName  = ".env"              // The base name for configuration files (e.g., ".env.toml").
	ConfigFileExtension = ".toml"             // The file extension for configuration files.
	ConfigSeparator     = "."                 // The separator used in config file names (e.g., ".env.local.toml").
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // The environment variable for specifying the config directory.
	EnvConfigRuntime    = "GCP_RUNTIME"       // The environment variable for specifying the runtime context (e.g., "local", "test", "prod").
	DefaultRuntime      = "test"
	MaxRetries          = 3 // The maximum number of times to retry a failed API call.
)

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// ConfigFiles returns the base and runtime-specific configuration paths derived
// from GCP_CONFIG_PREFIX and GCP_RUNTIME.
func ConfigFiles() (base string, runtime string) {
	prefix := os.Getenv(EnvConfigFilePrefix)
	env := os.Getenv(EnvConfigRuntime)
	if env == "" {
		env = DefaultRuntime
	}
	base = filepath.Join(prefix, ConfigFileBaseName+ConfigFileExtension)
	runtime = filepath.Join(prefix, ConfigFileBaseName+ConfigSeparator+env+ConfigFileExtension)
	return base, runtime
}

// LoadConfig decodes the base configuration file and then the runtime file into
// baseConfig. Values in the runtime file overwrite the base values. Missing
// files are skipped.
//
// Inputs:
//   - baseConfig: A pointer to the configuration struct to populate.
//
// Outputs:
//   - error: The first decode failure, if any.
func LoadConfig(baseConfig interface{}) error {
	base, runtime := ConfigFiles()
	for _, file := range []string{base, runtime} {
		if !fileExists(file) {
			slog.Debug("configuration file not found", "path", file)
			continue
		}
		if _, err := toml.DecodeFile(file, baseConfig); err != nil {
			return fmt.Errorf("failed to decode configuration file %s: %w", file, err)
		}
		slog.Info("loaded configuration file", "path", file)
	}
	return nil
}

// GenerateMultiModalResponse executes a multi-modal request against a
// Generative AI model, retrying up to MaxRetries times.
//
// Inputs:
//   - ctx: The context for the request, which controls cancellation and tracing.
//   - inputTokenCounter: An OpenTelemetry counter for prompt tokens used.
//   - outputTokenCounter: An OpenTelemetry counter for response tokens generated.
//   - retryCounter: An OpenTelemetry counter for tracking the number of retries.
//   - tryCount: The current attempt number for this request (starts at 0).
//   - model: The rate-limited, quota-aware generative model to use.
//   - content: The prompt contents (text and file data).
//
// Outputs:
//   - string: The concatenated text of the response with any ```json fence removed.
//   - error: An error if the request fails after all retries.
func GenerateMultiModalResponse(
	ctx context.Context,
	inputTokenCounter metric.Int64Counter,
	outputTokenCounter metric.Int64Counter,
	retryCounter metric.Int64Counter,
	tryCount int,
	model *QuotaAwareGenerativeAIModel,
	content []*genai.Content) (value string, err error) {
	resp, err := model.GenerateContent(ctx, content)
	if err != nil {
		if tryCount < MaxRetries && ctx.Err() == nil {
			retryCounter.Add(ctx, 1)
			return GenerateMultiModalResponse(ctx, inputTokenCounter, outputTokenCounter, retryCounter, tryCount+1, model, content)
		}
		return "", err
	}
	if resp.UsageMetadata != nil {
		inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}

	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				b.WriteString(part.Text)
			}
		}
	}
	return StripJSONFence(b.String()), nil
}

// StripJSONFence removes a surrounding ```json ... ``` block from model output.
func StripJSONFence(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "```json")
	value = strings.TrimPrefix(value, "```")
	value = strings.TrimSuffix(value, "```")
	return strings.TrimSpace(value)
}

// NewTextPart creates a user content holding a single text part.
func NewTextPart(in string) []*genai.Content {
	return genai.Text(in)
}

// NewFileData creates a file data part for a GCS object.
//
// Inputs:
//   - in: The URI of the file (e.g., a gs:// path).
//   - mimeType: The MIME type of the file (e.g., "audio/mpeg").
func NewFileData(in string, mimeType string) *genai.Part {
	return genai.NewPartFromURI(in, mimeType)
}
