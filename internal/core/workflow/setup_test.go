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

package workflow_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-clip-enrichment/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipelineDependenciesFromTestConfig(t *testing.T) {
	config := *test.GetConfig()
	assert.Equal(t, "clip-enrichment-test", config.Application.Name)
	assert.False(t, config.Pipeline.GenerateCaptions)

	dir := t.TempDir()
	config.Storage.LocalOutputDir = filepath.Join(dir, "output")
	config.Storage.LocalWorkDir = filepath.Join(dir, "work")

	deps, err := workflow.NewPipelineDependencies(&config, nil)
	require.NoError(t, err)
	assert.NotNil(t, deps.Prober)
	assert.NotNil(t, deps.Beats)
	assert.NotNil(t, deps.Optimizer)
	assert.NotNil(t, deps.Advisor)
	assert.Nil(t, deps.Captioner)
	assert.Equal(t, "-03:00", deps.DefaultTimezone.String())
	assert.Equal(t, 2, deps.MaxConcurrentClips)

	for _, d := range []string{config.Storage.LocalOutputDir, config.Storage.LocalWorkDir} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	opts := workflow.NewBatchJobOptions(&config, nil)
	assert.Nil(t, opts.Artifacts)
	assert.Nil(t, opts.Results)
	assert.Equal(t, config.Storage.LocalWorkDir, opts.WorkDir)
}

func TestNewPipelineDependenciesRejectsBadSettings(t *testing.T) {
	config := *test.GetConfig()
	dir := t.TempDir()
	config.Storage.LocalOutputDir = filepath.Join(dir, "output")
	config.Storage.LocalWorkDir = filepath.Join(dir, "work")

	bad := config
	bad.Pipeline.DefaultTimezone = "Mars/Olympus"
	_, err := workflow.NewPipelineDependencies(&bad, nil)
	assert.Error(t, err)

	bad = config
	bad.Pipeline.BeatSource = "metronome"
	_, err = workflow.NewPipelineDependencies(&bad, nil)
	assert.Error(t, err)

	bad = config
	bad.Catalog.ProfilesFile = filepath.Join(dir, "missing.toml")
	_, err = workflow.NewPipelineDependencies(&bad, nil)
	assert.Error(t, err)
}
