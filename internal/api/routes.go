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

// Package api contains the HTTP routes of the clip enrichment server.
//
// Functions:
//   - NewRouter: Builds the gin engine with tracing, CORS and rate limiting and
//     registers every route group under "/api/v1".
//   - JobRouter: Submits batches and reports job state.
//   - FileUpload: Accepts source videos and stores them in the input bucket.
//   - DownloadRouter: Issues signed URLs for produced variants.
//   - ResultRouter: Reads persisted results back from BigQuery.
//   - Status: Reports service health.
//   - Dashboard: Summarizes recent jobs.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/cloud"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/media"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/services"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/workflow"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// sniffLength is how many leading bytes filetype needs to recognise a container.
const sniffLength = 261

// JobService runs enrichment batches asynchronously. It is satisfied by
// *workflow.JobManager.
type JobService interface {
	Submit(ctx context.Context, req *model.BatchRequest) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, limit int) ([]*model.Job, error)
}

// ObjectUploader streams an upload into a bucket. It is satisfied by
// *cloud.BucketStore.
type ObjectUploader interface {
	UploadReader(ctx context.Context, r io.Reader, objectName string, contentType string) (cloud.GCSObject, error)
}

// ResultReader reads persisted results and signs download URLs. It is
// satisfied by *services.ResultService.
type ResultReader interface {
	FindVariant(ctx context.Context, clipID string, platform string) (*model.VariantRecord, error)
	FindJobClips(ctx context.Context, jobID string) ([]*model.EnrichmentRecord, error)
	GenerateSignedURL(ctx context.Context, gcsURI string, expires time.Duration) (string, error)
}

// Server holds the collaborators of the HTTP handlers. Uploads and Results
// may be nil for a server without cloud access; their routes then answer 503.
type Server struct {
	Jobs           JobService
	Uploads        ObjectUploader
	Results        ResultReader
	MaxUploadBytes int64
	SignedURLTTL   time.Duration
	RateLimit      int
	RateWindow     time.Duration
	Name           string
	Version        string
	Started        time.Time
}

// NewServer fills a Server's limits from the configuration.
func NewServer(config *cloud.Config, jobs JobService) *Server {
	return &Server{
		Jobs:           jobs,
		MaxUploadBytes: config.Server.MaxUploadMB << 20,
		SignedURLTTL:   time.Duration(config.Server.SignedURLMinutes) * time.Minute,
		RateLimit:      config.Server.RateLimitRequests,
		RateWindow:     time.Duration(config.Server.RateLimitWindowSeconds) * time.Second,
		Name:           config.Application.Name,
		Version:        config.Application.Version,
		Started:        time.Now(),
	}
}

// NewRouter builds the gin engine.
//
// Logic Flow:
//  1. otelgin opens a span per request.
//  2. CORS is permissive (cors.Default).
//  3. Everything under "/api/v1" is rate limited per client IP.
//  4. Unknown routes answer 404 with the list of available endpoints.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(s.Name))
	r.Use(cors.Default())

	apiV1 := r.Group("/api/v1")
	apiV1.Use(RateLimit(s.RateLimit, s.RateWindow))
	{
		JobRouter(apiV1, s)
		FileUpload(apiV1, s)
		DownloadRouter(apiV1, s)
		ResultRouter(apiV1, s)
		Status(apiV1, s)
		Dashboard(apiV1, s.Jobs)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "endpoint not found",
			"availableEndpoints": []string{
				"POST /api/v1/jobs",
				"GET /api/v1/jobs/:id",
				"POST /api/v1/uploads",
				"GET /api/v1/download/:clipId/:platform",
				"GET /api/v1/results/:jobId",
				"GET /api/v1/status",
				"GET /api/v1/stats",
			},
		})
	})
	return r
}

// JobRouter sets up the job routes.
//
// This function defines the following endpoints:
//   - POST /jobs: Validates a BatchRequest and starts it; answers 202 with the job
//     id and the processing steps.
//   - GET /jobs/:id: Returns the job with its result once completed.
func JobRouter(r *gin.RouterGroup, s *Server) {
	jobs := r.Group("/jobs")
	{
		jobs.POST("", func(c *gin.Context) {
			req := &model.BatchRequest{}
			if err := c.ShouldBindJSON(req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
				return
			}
			if req.Timezone != "" {
				if _, err := services.ParseUTCOffset(req.Timezone); err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timezone", "message": err.Error()})
					return
				}
			}

			job, err := s.Jobs.Submit(c.Request.Context(), req)
			switch {
			case errors.Is(err, model.ErrInvalidClip):
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch request", "message": err.Error()})
				return
			case errors.Is(err, workflow.ErrShuttingDown):
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
				return
			case err != nil:
				slog.ErrorContext(c.Request.Context(), "failed to submit job", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit job"})
				return
			}

			c.JSON(http.StatusAccepted, gin.H{
				"jobId":  job.ID,
				"status": job.Status,
				"clips":  len(req.Clips),
				"steps":  model.JobSteps,
			})
		})

		jobs.GET("/:id", func(c *gin.Context) {
			job, err := s.Jobs.Get(c.Request.Context(), c.Param("id"))
			if errors.Is(err, workflow.ErrJobNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
				return
			}
			if err != nil {
				slog.ErrorContext(c.Request.Context(), "failed to read job", "job_id", c.Param("id"), "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read job"})
				return
			}
			c.JSON(http.StatusOK, job)
		})
	}
}

// FileUpload sets up POST /uploads.
//
// It accepts one multipart file under the "video" field, no larger than
// MaxUploadBytes. The content is sniffed rather than trusting the declared
// type; only mp4, mov, avi and webm pass. The file is streamed to the input
// bucket under a fresh UUID and the `gs://` URI is returned for use as a
// batch source.
func FileUpload(r *gin.RouterGroup, s *Server) {
	r.POST("/uploads", func(c *gin.Context) {
		if s.Uploads == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads are not configured"})
			return
		}
		if s.MaxUploadBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.MaxUploadBytes)
		}

		header, err := c.FormFile("video")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large", "limitBytes": s.MaxUploadBytes})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "no video uploaded", "code": "NO_FILE"})
			return
		}
		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload", "message": err.Error()})
			return
		}
		defer file.Close()

		head := make([]byte, sniffLength)
		n, err := io.ReadFull(file, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload", "message": err.Error()})
			return
		}
		kind, err := media.SniffVideo(head[:n])
		if err != nil {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported format, use MP4, MOV, AVI or WebM"})
			return
		}

		objectName := uuid.NewString() + "." + kind.Extension
		body := io.MultiReader(bytes.NewReader(head[:n]), file)
		obj, err := s.Uploads.UploadReader(c.Request.Context(), body, objectName, kind.MIME.Value)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to store upload", "file", filepath.Base(header.Filename), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
			return
		}

		slog.InfoContext(c.Request.Context(), "stored upload", "file", filepath.Base(header.Filename), "uri", obj.URI(), "bytes", header.Size)
		c.JSON(http.StatusCreated, gin.H{
			"source":   obj.URI(),
			"filename": header.Filename,
			"mimeType": kind.MIME.Value,
			"size":     header.Size,
		})
	})
}

// DownloadRouter sets up GET /download/:clipId/:platform, which answers with a
// time-limited signed URL for the newest stored variant.
func DownloadRouter(r *gin.RouterGroup, s *Server) {
	r.GET("/download/:clipId/:platform", func(c *gin.Context) {
		if s.Results == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "downloads are not configured"})
			return
		}
		clipID, platform := c.Param("clipId"), c.Param("platform")

		variant, err := s.Results.FindVariant(c.Request.Context(), clipID, platform)
		if errors.Is(err, services.ErrNotFound) || (err == nil && variant.StorageURI == "") {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no %s variant for clip %s", platform, clipID)})
			return
		}
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to find variant", "clip_id", clipID, "platform", platform, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to find variant"})
			return
		}

		url, err := s.Results.GenerateSignedURL(c.Request.Context(), variant.StorageURI, s.SignedURLTTL)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to sign url", "uri", variant.StorageURI, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate download URL"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"url":         url,
			"expiresIn":   int(s.SignedURLTTL.Seconds()),
			"platform":    variant.Platform,
			"aspectRatio": variant.AspectRatio,
			"quality":     variant.Quality,
			"duration":    variant.Duration,
		})
	})
}

// ResultRouter sets up GET /results/:jobId, the rows persisted for a job. It
// outlives the local job store, which only keeps what this host ran.
func ResultRouter(r *gin.RouterGroup, s *Server) {
	r.GET("/results/:jobId", func(c *gin.Context) {
		if s.Results == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "results are not configured"})
			return
		}
		jobID := c.Param("jobId")
		rows, err := s.Results.FindJobClips(c.Request.Context(), jobID)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to read results", "job_id", jobID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read results"})
			return
		}
		if len(rows) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "no results for job " + jobID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"jobId": jobID, "clips": rows})
	})
}

// Status sets up GET /status.
func Status(r *gin.RouterGroup, s *Server) {
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "online",
			"service":   s.Name,
			"version":   s.Version,
			"uptime":    time.Since(s.Started).Seconds(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
