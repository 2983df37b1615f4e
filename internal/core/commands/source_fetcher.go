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

// Bridges a GCS-hosted source video to the local-file tools (ffmpeg, ffprobe).
//
// Logic Flow:
//  1. Reads the source handle of the `model.BatchRequest` in the context.
//  2. A `gs://` handle is streamed into a file under the work directory, named
//     after a fresh UUID plus the object's extension, and registered as a temp
//     file so the context removes it on Close.
//  3. A local handle must exist on disk.
//  4. The file's leading bytes are sniffed; only mp4, mov, avi and webm pass.
//  5. The local path is stored under ParamSourcePath and passed on as output.

package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/cloud"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/cor"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/media"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
)

// SourceFetcher makes the batch's source media available as a local file.
type SourceFetcher struct {
	cor.BaseCommand
	client  *storage.Client
	workDir string
}

// NewSourceFetcher is the constructor for the SourceFetcher command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - client: The GCS client used for `gs://` sources. May be nil when only local sources are used.
//   - workDir: Directory receiving downloaded sources.
func NewSourceFetcher(name string, client *storage.Client, workDir string) *SourceFetcher {
	return &SourceFetcher{BaseCommand: *cor.NewBaseCommand(name), client: client, workDir: workDir}
}

// IsExecutable requires a batch request.
func (c *SourceFetcher) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && context.Get(ParamBatchRequest) != nil
}

// Execute resolves the source to a local path.
func (c *SourceFetcher) Execute(context cor.Context) {
	req := context.Get(ParamBatchRequest).(*model.BatchRequest)
	ctx := context.GetContext()

	path := req.Source
	if cloud.IsGCSURI(req.Source) {
		obj, err := cloud.ParseGCSURI(req.Source)
		if err != nil {
			c.fail(context, err)
			return
		}
		if c.client == nil {
			c.fail(context, fmt.Errorf("no storage client configured for %s", req.Source))
			return
		}
		path = filepath.Join(c.workDir, uuid.NewString()+filepath.Ext(obj.Name))
		if err := cloud.DownloadObject(ctx, c.client, obj, path); err != nil {
			c.fail(context, err)
			return
		}
		context.AddTempFile(path)
		slog.InfoContext(ctx, "downloaded source media", "source", req.Source, "path", path)
	} else if _, err := os.Stat(path); err != nil {
		c.fail(context, fmt.Errorf("source media %s: %w", path, err))
		return
	}

	kind, err := media.SniffVideoFile(path)
	if err != nil {
		c.fail(context, fmt.Errorf("source media %s: %w", req.Source, err))
		return
	}

	c.GetSuccessCounter().Add(ctx, 1)
	slog.DebugContext(ctx, "source media ready", "path", path, "mime", kind.MIME.Value)
	context.Add(ParamSourcePath, path)
	context.Add(c.GetOutputParam(), path)
}

func (c *SourceFetcher) fail(context cor.Context, err error) {
	c.GetErrorCounter().Add(context.GetContext(), 1)
	context.AddError(c.GetName(), err)
}
