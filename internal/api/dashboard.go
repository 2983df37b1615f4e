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

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
)

// JobSummary is one row of the dashboard.
type JobSummary struct {
	ID            string          `json:"jobId"`
	Status        model.JobStatus `json:"status"`
	Source        string          `json:"source"`
	Clips         int             `json:"clips"`
	Variants      int             `json:"variants"`
	AvgViralScore float64         `json:"avgViralScore,omitempty"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// DashboardStats aggregates the most recent jobs.
type DashboardStats struct {
	ByStatus map[model.JobStatus]int `json:"byStatus"`
	Jobs     []JobSummary            `json:"jobs"`
}

// Summarize builds the dashboard view of jobs, keeping their order.
func Summarize(jobs []*model.Job) DashboardStats {
	out := DashboardStats{ByStatus: make(map[model.JobStatus]int), Jobs: make([]JobSummary, 0, len(jobs))}
	for _, job := range jobs {
		out.ByStatus[job.Status]++
		row := JobSummary{ID: job.ID, Status: job.Status, Error: job.Error, CreatedAt: job.CreatedAt}
		if job.Request != nil {
			row.Source = job.Request.Source
			row.Clips = len(job.Request.Clips)
		}
		if job.Result != nil {
			row.Variants = job.Result.Stats.Variants
			row.AvgViralScore = job.Result.Stats.AvgViralScore
		}
		out.Jobs = append(out.Jobs, row)
	}
	return out
}

// Dashboard configures GET /stats, a summary of the latest jobs (`limit`,
// default 20) with counts per status.
func Dashboard(r *gin.RouterGroup, jobs JobService) {
	stats := r.Group("/stats")
	{
		stats.GET("", func(c *gin.Context) {
			list, err := jobs.List(c.Request.Context(), queryInt(c, "limit", 20))
			if err != nil {
				slog.ErrorContext(c.Request.Context(), "failed to list jobs", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
				return
			}
			c.JSON(http.StatusOK, Summarize(list))
		})
	}
}
