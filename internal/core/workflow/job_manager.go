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
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// ErrShuttingDown is returned by Submit once Shutdown has been called.
var ErrShuttingDown = errors.New("job manager is shutting down")

// BatchRunner executes one batch on behalf of a job.
type BatchRunner interface {
	Run(ctx context.Context, jobID string, req *model.BatchRequest) (*model.BatchResult, error)
}

// NewJobID returns an id of the form job_<unixMillis>_<8 hex>.
func NewJobID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("job_%d_%s", now.UnixMilli(), suffix)
}

// JobManager runs batches in the background. Submit returns a handle (the
// persisted job) straight away; the job moves pending -> processing ->
// completed | failed and its result is read back through Get or Wait.
type JobManager struct {
	store   *JobStore
	runner  BatchRunner
	sem     *semaphore.Weighted
	timeout time.Duration
	tracer  trace.Tracer

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	inFlight map[string]chan struct{}
}

// NewJobManager is the constructor for the JobManager.
//
// Inputs:
//   - store: Where jobs are persisted.
//   - runner: Executes a batch, usually a *BatchJobWorkflow.
//   - maxConcurrent: How many jobs may run at once (at least 1).
//   - timeout: Upper bound for one job. Zero means no limit.
func NewJobManager(store *JobStore, runner BatchRunner, maxConcurrent int, timeout time.Duration) *JobManager {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		store:    store,
		runner:   runner,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		timeout:  timeout,
		tracer:   otel.Tracer("job-manager"),
		baseCtx:  ctx,
		cancel:   cancel,
		inFlight: make(map[string]chan struct{}),
	}
}

// Submit validates and persists req as a pending job and starts it in the
// background. The returned job is the handle passed to Get and Wait.
func (m *JobManager) Submit(ctx context.Context, req *model.BatchRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("batch request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrShuttingDown
	}

	now := time.Now().UTC()
	job := &model.Job{
		ID:        NewJobID(now),
		Status:    model.JobPending,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Create(ctx, job); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	m.inFlight[job.ID] = done
	m.wg.Add(1)
	go m.run(job.ID, req, done)

	slog.InfoContext(ctx, "job submitted", "job_id", job.ID, "clips", len(req.Clips), "source", req.Source)
	return job, nil
}

func (m *JobManager) run(id string, req *model.BatchRequest, done chan struct{}) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.inFlight, id)
		m.mu.Unlock()
		close(done)
	}()

	ctx, span := m.tracer.Start(m.baseCtx, "batch-job")
	span.SetAttributes(attribute.String("job_id", id), attribute.Int("clips", len(req.Clips)))
	defer span.End()
	// Status writes must land even when the job context is done.
	writeCtx := context.WithoutCancel(ctx)

	if err := m.sem.Acquire(ctx, 1); err != nil {
		m.finish(writeCtx, span, id, nil, fmt.Errorf("job cancelled before start: %w", err))
		return
	}
	defer m.sem.Release(1)

	if err := m.store.UpdateStatus(writeCtx, id, model.JobProcessing, nil, ""); err != nil {
		slog.ErrorContext(ctx, "failed to mark job processing", "job_id", id, "error", err)
	}

	runCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	started := time.Now()
	result, err := m.runner.Run(runCtx, id, req)
	slog.InfoContext(ctx, "job finished", "job_id", id, "elapsed", time.Since(started).String(), "ok", err == nil)
	m.finish(writeCtx, span, id, result, err)
}

func (m *JobManager) finish(ctx context.Context, span trace.Span, id string, result *model.BatchResult, err error) {
	status, msg := model.JobCompleted, ""
	if err != nil {
		status, msg = model.JobFailed, err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "job failed")
		slog.ErrorContext(ctx, "job failed", "job_id", id, "error", err)
	} else {
		span.SetStatus(codes.Ok, "job completed")
	}
	if uerr := m.store.UpdateStatus(ctx, id, status, result, msg); uerr != nil {
		slog.ErrorContext(ctx, "failed to record job outcome", "job_id", id, "status", status, "error", uerr)
	}
}

// Get returns the current state of the job, including its result once
// completed. Unknown ids return ErrJobNotFound.
func (m *JobManager) Get(ctx context.Context, id string) (*model.Job, error) {
	return m.store.Get(ctx, id)
}

// List returns the most recent jobs.
func (m *JobManager) List(ctx context.Context, limit int) ([]*model.Job, error) {
	return m.store.List(ctx, limit)
}

// Wait blocks until the job reaches a terminal state or ctx is done, then
// returns its latest state.
func (m *JobManager) Wait(ctx context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	done, running := m.inFlight[id]
	m.mu.Unlock()

	if running {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.store.Get(ctx, id)
}

// Shutdown stops accepting jobs and waits for the in-flight ones. When ctx
// expires first the remaining jobs are cancelled and ctx's error is returned.
func (m *JobManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-drained
		return ctx.Err()
	}
}
