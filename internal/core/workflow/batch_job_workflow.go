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

package workflow

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/commands"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/cor"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
)

// BatchJobOptions are the host-side collaborators of a BatchJobWorkflow. A nil
// Artifacts or Results skips the corresponding step.
type BatchJobOptions struct {
	StorageClient *storage.Client        // Downloads gs:// sources.
	WorkDir       string                 // Where downloaded sources are written.
	Artifacts     commands.ArtifactStore // Output bucket for variants, thumbnails and captions.
	UploadWorkers int
	Results       commands.RowWriter // BigQuery results table.
}

// BatchJobWorkflow wraps the EnrichmentPipeline with the host I/O of a job:
// reading a Pub/Sub request, fetching the source, publishing artifacts and
// persisting one row per clip.
//
// It is used both as the command of the batch-request Pub/Sub listener (input
// under cor.CtxIn) and as the BatchRunner of the JobManager.
type BatchJobWorkflow struct {
	cor.BaseCommand
	pipeline *EnrichmentPipeline
	options  BatchJobOptions
	chain    cor.Chain
}

// NewBatchJobWorkflow is the constructor for the BatchJobWorkflow.
func NewBatchJobWorkflow(name string, pipeline *EnrichmentPipeline, options BatchJobOptions) *BatchJobWorkflow {
	w := &BatchJobWorkflow{
		BaseCommand: *cor.NewBaseCommand(name),
		pipeline:    pipeline,
		options:     options,
	}
	w.initializeChain()
	return w
}

func (w *BatchJobWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())

	// Step 1: Decode and validate a JSON request delivered under cor.CtxIn.
	// Jobs submitted through the JobManager already carry the request and skip
	// this step.
	out.AddCommand(commands.NewBatchRequestReader("read-batch-request"))

	// Step 2: Make the source available locally.
	out.AddCommand(commands.NewSourceFetcher("fetch-source", w.options.StorageClient, w.options.WorkDir))

	// Step 3: Enrich the batch.
	out.AddCommand(w.pipeline)

	// Step 4: Publish the produced files.
	if w.options.Artifacts != nil {
		out.AddCommand(commands.NewArtifactUpload("upload-artifacts", w.options.Artifacts, w.options.UploadWorkers))
	}

	// Step 5: Persist the results.
	if w.options.Results != nil {
		out.AddCommand(commands.NewResultsPersist("write-to-bigquery", w.options.Results))
	}

	w.chain = out
}

// IsExecutable requires either a raw request under cor.CtxIn or a decoded one.
func (w *BatchJobWorkflow) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil &&
		(context.Get(cor.CtxIn) != nil || context.Get(commands.ParamBatchRequest) != nil)
}

// Execute assigns a job id when the context has none and runs the chain.
func (w *BatchJobWorkflow) Execute(context cor.Context) {
	if _, ok := context.Get(commands.ParamJobID).(string); !ok {
		context.Add(commands.ParamJobID, NewJobID(time.Now()))
	}
	w.chain.Execute(context)
}

// Run executes one job and returns its result.
func (w *BatchJobWorkflow) Run(ctx context.Context, jobID string, req *model.BatchRequest) (*model.BatchResult, error) {
	chCtx := cor.NewBaseContextWith(ctx)
	defer chCtx.Close()
	chCtx.Add(commands.ParamJobID, jobID).
		Add(commands.ParamBatchRequest, req)

	w.Execute(chCtx)

	if err := chCtx.Err(); err != nil {
		return nil, err
	}
	result, ok := chCtx.Get(commands.ParamBatchResult).(*model.BatchResult)
	if !ok {
		return nil, errors.New("batch job produced no result")
	}
	return result, nil
}
