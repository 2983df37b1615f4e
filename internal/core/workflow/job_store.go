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

// SQLite persistence for asynchronous batch jobs.
//
// Logic Flow:
//  1. `OpenJobStore` creates the database directory, opens the file with the
//     pure-Go `modernc.org/sqlite` driver and enables WAL.
//  2. Embedded migrations under `migrations/` are applied once each, in file
//     name order, and recorded in `_migrations`.
//  3. Jobs left `pending` or `processing` by a previous process are marked
//     `failed` with "interrupted by restart", since nothing will resume them.
//  4. Request and result are stored as JSON text columns.

package workflow

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrJobNotFound is returned when no job has the requested id.
var ErrJobNotFound = errors.New("job not found")

// InterruptedJobError is the error recorded on jobs that were running when the
// previous process stopped.
const InterruptedJobError = "interrupted by restart"

// JobStore reads and writes model.Job rows.
type JobStore struct {
	conn *sql.DB
}

// OpenJobStore opens (or creates) the job database at dbPath.
func OpenJobStore(dbPath string) (*JobStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create job database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open job database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping job database: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	store := &JobStore{conn: conn}
	if err := store.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run job migrations: %w", err)
	}
	if n, err := store.markInterrupted(context.Background()); err != nil {
		slog.Warn("failed to mark interrupted jobs", "error", err)
	} else if n > 0 {
		slog.Info("marked interrupted jobs as failed", "count", n)
	}
	return store, nil
}

// Close closes the database.
func (s *JobStore) Close() error {
	return s.conn.Close()
}

func (s *JobStore) migrate() error {
	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	for _, m := range migrations {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if s.isMigrationApplied(name) {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		slog.Debug("applied job migration", "name", name)
	}
	return nil
}

func (s *JobStore) isMigrationApplied(name string) bool {
	var exists int
	if err := s.conn.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists); err != nil {
		return false
	}
	var applied int
	err := s.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

func (s *JobStore) markInterrupted(ctx context.Context) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE status IN (?, ?)`,
		string(model.JobFailed), InterruptedJobError, formatTime(time.Now()),
		string(model.JobPending), string(model.JobProcessing))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Create inserts a new job.
func (s *JobStore) Create(ctx context.Context, job *model.Job) error {
	request, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("failed to encode job request: %w", err)
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO jobs (id, status, request, result, error, created_at, updated_at)
		VALUES (?, ?, ?, NULL, NULL, ?, ?)
	`, job.ID, string(job.Status), string(request), formatTime(job.CreatedAt), formatTime(job.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", job.ID, err)
	}
	return nil
}

// UpdateStatus moves a job to status. A non-nil result and a non-empty
// errMsg are stored with it.
func (s *JobStore) UpdateStatus(ctx context.Context, id string, status model.JobStatus, result *model.BatchResult, errMsg string) error {
	var encoded sql.NullString
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to encode job result: %w", err)
		}
		encoded = sql.NullString{String: string(data), Valid: true}
	}
	res, err := s.conn.ExecContext(ctx,
		`UPDATE jobs SET status = ?, result = COALESCE(?, result), error = ?, updated_at = ? WHERE id = ?`,
		string(status), encoded, nullString(errMsg), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}

// Get returns the job with the given id or ErrJobNotFound.
func (s *JobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, status, request, result, error, created_at, updated_at
		FROM jobs WHERE id = ?
	`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, err
}

// List returns the most recent jobs first.
func (s *JobStore) List(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, status, request, result, error, created_at, updated_at
		FROM jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]*model.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.Job, error) {
	var (
		job                  model.Job
		status, request      string
		result, errMsg       sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&job.ID, &status, &request, &result, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	job.Status = model.JobStatus(status)
	job.Error = errMsg.String
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	job.Request = &model.BatchRequest{}
	if err := json.Unmarshal([]byte(request), job.Request); err != nil {
		return nil, fmt.Errorf("failed to decode request of job %s: %w", job.ID, err)
	}
	if result.Valid {
		job.Result = &model.BatchResult{}
		if err := json.Unmarshal([]byte(result.String), job.Result); err != nil {
			return nil, fmt.Errorf("failed to decode result of job %s: %w", job.ID, err)
		}
	}
	return &job, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
