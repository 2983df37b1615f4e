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
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-clip-enrichment/internal/testutil"
	"github.com/zeebo/assert"
)

func openStore(t *testing.T, path string) *workflow.JobStore {
	t.Helper()
	store, err := workflow.OpenJobStore(path)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newJob(id string, status model.JobStatus, created time.Time) *model.Job {
	return &model.Job{
		ID:        id,
		Status:    status,
		Request:   test.SampleBatchRequest("gs://in/stream.mp4"),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestJobStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "nested", "jobs.db"))

	created := time.Date(2024, time.October, 16, 23, 30, 0, 0, time.UTC)
	assert.NoError(t, store.Create(ctx, newJob("job_1", model.JobPending, created)))

	job, err := store.Get(ctx, "job_1")
	assert.NoError(t, err)
	assert.Equal(t, job.Status, model.JobPending)
	assert.Equal(t, job.Request.Source, "gs://in/stream.mp4")
	assert.Equal(t, len(job.Request.Clips), 3)
	assert.That(t, job.Result == nil)
	assert.That(t, job.CreatedAt.Equal(created))

	assert.NoError(t, store.UpdateStatus(ctx, "job_1", model.JobProcessing, nil, ""))
	result := &model.BatchResult{JobID: "job_1", Source: "gs://in/stream.mp4", TotalClips: 3}
	assert.NoError(t, store.UpdateStatus(ctx, "job_1", model.JobCompleted, result, ""))

	job, err = store.Get(ctx, "job_1")
	assert.NoError(t, err)
	assert.Equal(t, job.Status, model.JobCompleted)
	assert.That(t, job.Result != nil)
	assert.Equal(t, job.Result.TotalClips, 3)
	assert.Equal(t, job.Error, "")
}

func TestJobStoreUnknownJob(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "jobs.db"))

	_, err := store.Get(ctx, "job_missing")
	assert.That(t, errors.Is(err, workflow.ErrJobNotFound))

	err = store.UpdateStatus(ctx, "job_missing", model.JobFailed, nil, "boom")
	assert.That(t, errors.Is(err, workflow.ErrJobNotFound))
}

func TestJobStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "jobs.db"))

	base := time.Date(2024, time.October, 16, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"job_a", "job_b", "job_c"} {
		assert.NoError(t, store.Create(ctx, newJob(id, model.JobCompleted, base.Add(time.Duration(i)*time.Minute))))
	}

	jobs, err := store.List(ctx, 2)
	assert.NoError(t, err)
	assert.Equal(t, len(jobs), 2)
	assert.Equal(t, jobs[0].ID, "job_c")
	assert.Equal(t, jobs[1].ID, "job_b")
}

func TestJobStoreMarksInterruptedJobsOnReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "jobs.db")
	now := time.Now().UTC()

	first, err := workflow.OpenJobStore(path)
	assert.NoError(t, err)
	assert.NoError(t, first.Create(ctx, newJob("job_pending", model.JobPending, now)))
	assert.NoError(t, first.Create(ctx, newJob("job_running", model.JobProcessing, now)))
	assert.NoError(t, first.Create(ctx, newJob("job_done", model.JobCompleted, now)))
	assert.NoError(t, first.Close())

	// Reopening also re-runs the migration check, which must be a no-op.
	second := openStore(t, path)
	for _, id := range []string{"job_pending", "job_running"} {
		job, err := second.Get(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, job.Status, model.JobFailed)
		assert.Equal(t, job.Error, workflow.InterruptedJobError)
	}
	job, err := second.Get(ctx, "job_done")
	assert.NoError(t, err)
	assert.Equal(t, job.Status, model.JobCompleted)
}
