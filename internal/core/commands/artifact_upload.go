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

// Publishes the produced artifacts to the output bucket.
//
// Logic Flow:
//  1. Reads the `model.BatchResult` from the context.
//  2. One goroutine per clip (bounded by the worker count) uploads the clip's
//     variants, thumbnails and captioned video under
//     `<jobId>/<clipId>/<file name>`.
//  3. The `gs://` URI of each upload is recorded on the artifact: StorageURI for
//     variants and captions, ThumbnailPath is replaced by its URI.
//  4. A failed upload is logged and recorded as an "upload" StageFailure on the
//     clip. It never fails the chain; the local file is still there.

package commands

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/cloud"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/cor"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"golang.org/x/sync/errgroup"
)

// ArtifactStore uploads a local file as an object.
type ArtifactStore interface {
	Upload(ctx context.Context, path string, objectName string, contentType string) (cloud.GCSObject, error)
}

// ArtifactUpload copies every artifact of the batch to the output bucket.
type ArtifactUpload struct {
	cor.BaseCommand
	store   ArtifactStore
	workers int
}

// NewArtifactUpload is the constructor for the ArtifactUpload command.
func NewArtifactUpload(name string, store ArtifactStore, workers int) *ArtifactUpload {
	if workers < 1 {
		workers = 1
	}
	return &ArtifactUpload{BaseCommand: *cor.NewBaseCommand(name), store: store, workers: workers}
}

// IsExecutable requires the batch result.
func (c *ArtifactUpload) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && context.Get(ParamBatchResult) != nil
}

// Execute uploads the artifacts and passes the result on.
func (c *ArtifactUpload) Execute(context cor.Context) {
	ctx := context.GetContext()
	result := context.Get(ParamBatchResult).(*model.BatchResult)
	prefix := result.JobID
	if prefix == "" {
		prefix = "adhoc"
	}

	failed := make([]int, len(result.Clips))
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i := range result.Clips {
		clip := &result.Clips[i]
		g.Go(func() error {
			failed[i] = c.uploadClip(ctx, prefix, clip)
			return nil
		})
	}
	_ = g.Wait()

	for _, n := range failed {
		result.Stats.Failures += n
	}
	context.Add(c.GetOutputParam(), result)
}

func (c *ArtifactUpload) uploadClip(ctx context.Context, prefix string, clip *model.EnrichedClip) int {
	failures := 0
	upload := func(local, contentType, platform string) (string, bool) {
		objectName := path.Join(prefix, clip.ID, filepath.Base(local))
		obj, err := c.store.Upload(ctx, local, objectName, contentType)
		if err != nil {
			failures++
			c.GetErrorCounter().Add(ctx, 1)
			slog.WarnContext(ctx, "failed to upload artifact", "clip_id", clip.ID, "platform", platform,
				"stage", model.StageUpload, "path", local, "error", err)
			clip.Failures = append(clip.Failures, model.StageFailure{Stage: model.StageUpload, Platform: platform, Reason: err.Error()})
			return "", false
		}
		c.GetSuccessCounter().Add(ctx, 1)
		return obj.URI(), true
	}

	for j := range clip.Variants {
		v := &clip.Variants[j]
		if uri, ok := upload(v.OutputPath, "video/mp4", v.Platform); ok {
			v.StorageURI = uri
		}
		if v.ThumbnailPath != "" {
			if uri, ok := upload(v.ThumbnailPath, "image/jpeg", v.Platform); ok {
				v.ThumbnailPath = uri
			}
		}
	}
	if clip.Caption != nil && clip.Caption.FilePath != "" {
		if uri, ok := upload(clip.Caption.FilePath, "video/mp4", ""); ok {
			clip.Caption.StorageURI = uri
		}
	}
	return failures
}
