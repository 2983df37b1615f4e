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

// Package media wraps the external media tools (ffmpeg and ffprobe) used by the
// enrichment pipeline. Every invocation goes through a Runner so the argument
// lists can be verified in tests without the binaries being installed.
//
// Structs:
//   - ExecResult: The captured output of one process invocation.
//   - ExecRunner: A Runner backed by os/exec.
//   - FFmpeg: Transcoding, thumbnails, audio extraction, subtitle burn-in and silence detection.
//   - FFProbe: Media duration probing.
package media

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// ExecResult holds the outcome of a single tool invocation.
type ExecResult struct {
	Stdout string
	Stderr string
	Err    error
}

// Runner executes an external program.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ExecResult
}

// ExecRunner runs programs with os/exec, capturing stdout and stderr.
type ExecRunner struct{}

// Run starts the program and waits for it. The process is killed if ctx is
// cancelled before it exits.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ExecResult {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
		Err:    err,
	}
}

// lastLine returns the last non-empty line of tool output. ffmpeg prints the
// fatal condition last, after the banner and stream mapping.
func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
