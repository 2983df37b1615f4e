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

// Persistence step of the batch workflow.
//
// Logic Flow:
//  1. Reads the `model.BatchResult` from the context.
//  2. Converts every enriched clip to a `model.EnrichmentRecord`. Record ids are
//     derived from the job id and clip id, so a retried message produces the
//     same ids.
//  3. Streams all rows with one BigQuery `Inserter.Put`. The client maps the
//     struct fields to columns through their `bigquery` tags.
//  4. A failed insert is a chain error: the Pub/Sub message is then not acked
//     and will be redelivered.

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/cor"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
)

// RowWriter is satisfied by *bigquery.Inserter.
type RowWriter interface {
	Put(ctx context.Context, src interface{}) error
}

// ResultsPersistToBigQuery writes one row per enriched clip.
type ResultsPersistToBigQuery struct {
	cor.BaseCommand
	writer RowWriter
}

// NewResultsPersist is the constructor for the ResultsPersistToBigQuery command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - writer: Usually the `*bigquery.Inserter` of the results table.
func NewResultsPersist(name string, writer RowWriter) *ResultsPersistToBigQuery {
	return &ResultsPersistToBigQuery{BaseCommand: *cor.NewBaseCommand(name), writer: writer}
}

// IsExecutable requires the batch result.
func (s *ResultsPersistToBigQuery) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && context.Get(ParamBatchResult) != nil
}

// Execute inserts the rows.
func (s *ResultsPersistToBigQuery) Execute(context cor.Context) {
	ctx := context.GetContext()
	result := context.Get(ParamBatchResult).(*model.BatchResult)

	rows := make([]*model.EnrichmentRecord, 0, len(result.Clips))
	for i := range result.Clips {
		rows = append(rows, model.NewEnrichmentRecord(result.JobID, result.Source, &result.Clips[i]))
	}
	if len(rows) == 0 {
		context.Add(s.GetOutputParam(), result)
		return
	}

	if err := s.writer.Put(ctx, rows); err != nil {
		s.GetErrorCounter().Add(ctx, 1)
		context.AddError(s.GetName(), fmt.Errorf("bigquery insert failed for job %s: %w", result.JobID, err))
		return
	}

	s.GetSuccessCounter().Add(ctx, int64(len(rows)))
	slog.InfoContext(ctx, "persisted enrichment results", "job_id", result.JobID, "rows", len(rows))
	context.Add(s.GetOutputParam(), result)
}
