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
// *****************************************************************************************************//
// Package main is the entry point for the clip enrichment server.
//
// The server exposes the REST API of package api under "/api/v1" with gin,
// runs submitted batches in the background through the JobManager, and
// listens on Pub/Sub for batch requests. It is instrumented with OpenTelemetry
// and writes Cloud Logging structured logs.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/api"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/telemetry"
)

// main loads the configuration, sets up logging and telemetry, initializes
// the state, serves HTTP and shuts everything down on SIGINT or SIGTERM.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := GetConfig()

	closeLog, err := telemetry.SetupLogging(config)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = closeLog() }()

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}

	if err := InitState(ctx); err != nil {
		slog.Error("failed to initialize state", "error", err)
		log.Fatal(err)
	}
	slog.Info("initialized state")

	srv := &http.Server{
		Addr:         ":" + config.Server.Port,
		Handler:      api.NewRouter(NewAPIServer(config)),
		ReadTimeout:  5 * time.Minute, // uploads of up to max_upload_mb
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen", "error", err)
			cancel()
		}
	}()
	slog.Info("server ready", "port", config.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	// Stops the Pub/Sub receive loops before draining jobs.
	cancel()
	if err := CloseState(shutdownCtx); err != nil {
		slog.Error("state shutdown failed", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("telemetry shutdown failed", "error", err)
	}
	log.Println("server exiting")
}
