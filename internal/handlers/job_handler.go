// -----------------------------------------------------------------------
// Job Handler - job creation, listing and lifecycle API
// -----------------------------------------------------------------------

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/models"
)

// JobLauncher starts background execution of a saved job
type JobLauncher interface {
	Launch(job *models.Job)
}

// TopicIngestionRequest is the payload for POST /api/ingest/topic
type TopicIngestionRequest struct {
	Query      string `json:"query" validate:"required,min=2"`
	MaxResults int    `json:"max_results" validate:"omitempty,min=1,max=50"`
}

// TopicResearchRequest is the payload for POST /api/research/topic
type TopicResearchRequest struct {
	Query         string `json:"query" validate:"required,min=2"`
	MaxWebResults int    `json:"max_web_results" validate:"omitempty,min=1,max=50"`
	MaxVideos     int    `json:"max_videos" validate:"omitempty,min=1,max=25"`
}

// JobHandler exposes the async job API. Creation endpoints return the
// pending job immediately; the runner executes it in the background.
type JobHandler struct {
	jobs   interfaces.JobStorage
	runner JobLauncher
	config *common.SearchConfig
	logger arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobStorage interfaces.JobStorage, runner JobLauncher, config *common.SearchConfig, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobs:   jobStorage,
		runner: runner,
		config: config,
		logger: logger,
	}
}

// CreateTopicIngestionHandler starts an async topic ingestion job
// POST /api/ingest/topic
func (h *JobHandler) CreateTopicIngestionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req TopicIngestionRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}
	if req.MaxResults == 0 {
		req.MaxResults = h.config.MaxResults
	}

	job, err := models.NewJob(models.JobTypeTopicIngestion, models.JobParameters{
		TopicIngestion: &models.TopicIngestionParams{
			Query:      req.Query,
			MaxResults: req.MaxResults,
		},
	})
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.launch(w, r, job)
}

// CreateTopicResearchHandler starts an async topic research job
// POST /api/research/topic
func (h *JobHandler) CreateTopicResearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req TopicResearchRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}
	if req.MaxWebResults == 0 {
		req.MaxWebResults = h.config.MaxResults
	}
	if req.MaxVideos == 0 {
		req.MaxVideos = h.config.MaxResults
	}

	job, err := models.NewJob(models.JobTypeTopicResearch, models.JobParameters{
		TopicResearch: &models.TopicResearchParams{
			Query:         req.Query,
			MaxWebResults: req.MaxWebResults,
			MaxVideos:     req.MaxVideos,
		},
	})
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.launch(w, r, job)
}

// launch persists the pending job, detaches the runner and returns the
// job record with 202 Accepted
func (h *JobHandler) launch(w http.ResponseWriter, r *http.Request, job *models.Job) {
	if err := h.jobs.SaveJob(r.Context(), job); err != nil {
		h.logger.Error().Err(err).Msg("Failed to save job")
		WriteError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	h.runner.Launch(job)

	h.logger.Info().
		Str("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Msg("Job created")

	WriteJSON(w, http.StatusAccepted, job)
}

// ListJobsHandler returns jobs newest first with optional filters
// GET /api/jobs?job_type=topic_research&status=running&limit=50&offset=0
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	opts := &interfaces.JobListOptions{
		Type:   models.JobType(r.URL.Query().Get("job_type")),
		Status: models.JobStatus(r.URL.Query().Get("status")),
		Limit:  50,
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			opts.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			opts.Offset = offset
		}
	}

	list, err := h.jobs.ListJobs(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	counts, err := h.jobs.CountJobsByStatus(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to count jobs")
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":   list,
		"counts": counts,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

// GetJobHandler returns a single job by id
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// GetJobStatusHandler returns a lightweight status view of a job
// GET /api/jobs/{id}/status
func (h *JobHandler) GetJobStatusHandler(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":          job.ID,
		"job_type":        job.Type,
		"status":          job.Status,
		"progress":        job.Progress,
		"total_items":     job.TotalItems,
		"processed_items": job.ProcessedItems,
		"created_items":   job.CreatedItems,
		"error_message":   job.ErrorMessage,
	})
}

// DeleteJobHandler deletes a terminal or pending job. Running jobs are
// rejected.
// DELETE /api/jobs/{id}
func (h *JobHandler) DeleteJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := PathID(r.URL.Path, "/api/jobs")
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	err := h.jobs.DeleteJob(r.Context(), jobID)
	switch {
	case errors.Is(err, interfaces.ErrJobRunning):
		WriteError(w, http.StatusBadRequest, "Cannot delete a running job")
	case errors.Is(err, interfaces.ErrNotFound):
		WriteError(w, http.StatusNotFound, "Job not found")
	case err != nil:
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to delete job")
		WriteError(w, http.StatusInternalServerError, "Failed to delete job")
	default:
		h.logger.Info().Str("job_id", jobID).Msg("Job deleted")
		WriteJSON(w, http.StatusOK, map[string]string{
			"job_id":  jobID,
			"message": "Job deleted",
		})
	}
}

func (h *JobHandler) loadJob(w http.ResponseWriter, r *http.Request) (*models.Job, bool) {
	jobID := PathID(r.URL.Path, "/api/jobs")
	if jobID == "" || strings.Contains(jobID, "/") {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return nil, false
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if errors.Is(err, interfaces.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Job not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to load job")
		WriteError(w, http.StatusInternalServerError, "Failed to load job")
		return nil, false
	}
	return job, true
}
