// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main contains the setup and initialization logic for the application's state.
// This file creates the centralized state manager that holds the configuration,
// the Google Cloud clients, the enrichment workflow and the job manager.
//
// Functions:
//   - SetupOS: Points the configuration loader at the configs directory.
//   - GetConfig: Loads the configuration once.
//   - InitState: Creates the clients, the workflows and the job manager, and
//     starts the Pub/Sub listeners.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/api"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/cloud"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/services"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/workflow"
)

// StateManager holds all the shared dependencies of the server.
type StateManager struct {
	config   *cloud.Config
	cloud    *cloud.ServiceClients // nil when running without a Google Cloud project.
	store    *workflow.JobStore
	jobs     *workflow.JobManager
	batch    *workflow.BatchJobWorkflow
	results  *services.ResultService
	uploads  *cloud.BucketStore
}

var state = &StateManager{}

// SetupOS sets the environment variables the configuration loader uses to
// find the TOML files. An existing GCP_RUNTIME wins over "local".
func SetupOS() (err error) {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig provides a singleton instance of the application configuration.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup os: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load configuration: %v\n", err)
		}
		state.config = config
	}
	return state.config
}

// InitState initializes the entire application state.
//
// This function performs the following steps:
//  1. Creates the Google Cloud clients, unless no project is configured, in
//     which case the server runs local-only (no uploads, downloads, listeners
//     or result persistence).
//  2. Builds the enrichment pipeline and wraps it in the BatchJobWorkflow.
//  3. Opens the SQLite job store and starts the JobManager over the workflow.
//  4. Builds the upload bucket and the result reader for the HTTP routes.
//  5. Attaches the workflow to the Pub/Sub listeners and starts them.
func InitState(ctx context.Context) error {
	config := GetConfig()

	if config.Application.GoogleProjectId != "" {
		clients, err := cloud.NewCloudServiceClients(ctx, config)
		if err != nil {
			return err
		}
		state.cloud = clients
	} else {
		slog.Warn("no google_project_id configured, running without cloud services")
	}

	deps, err := workflow.NewPipelineDependencies(config, state.cloud)
	if err != nil {
		return err
	}
	pipeline := workflow.NewEnrichmentPipeline("enrichment-pipeline", deps)
	state.batch = workflow.NewBatchJobWorkflow("batch-job", pipeline, workflow.NewBatchJobOptions(config, state.cloud))

	store, err := workflow.OpenJobStore(config.Jobs.DatabasePath)
	if err != nil {
		return err
	}
	state.store = store
	state.jobs = workflow.NewJobManager(store, state.batch, config.Jobs.MaxConcurrentJobs, config.Jobs.Timeout())

	if state.cloud != nil {
		state.uploads = cloud.NewBucketStore(state.cloud.StorageClient, config.Storage.InputBucket)
		state.results = &services.ResultService{
			BigqueryClient: state.cloud.BiqQueryClient,
			StorageClient:  state.cloud.StorageClient,
			IAMClient:      state.cloud.IAMClient,
			SignerEmail:    config.Application.SignerServiceAccountEmail,
			DatasetName:    config.BigQueryDataSource.DatasetName,
			ResultsTable:   config.BigQueryDataSource.ResultsTable,
		}
		SetupListeners(ctx, state.cloud, state.batch)
	}
	return nil
}

// NewAPIServer exposes the state to the HTTP routes.
func NewAPIServer(config *cloud.Config) *api.Server {
	s := api.NewServer(config, state.jobs)
	if state.uploads != nil {
		s.Uploads = state.uploads
	}
	if state.results != nil {
		s.Results = state.results
	}
	return s
}

// CloseState drains the running jobs and releases every client.
func CloseState(ctx context.Context) error {
	var errs []error
	if state.jobs != nil {
		if err := state.jobs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("job manager: %w", err))
		}
	}
	if state.store != nil {
		errs = append(errs, state.store.Close())
	}
	if state.cloud != nil {
		errs = append(errs, state.cloud.Close())
	}
	return errors.Join(errs...)
}
