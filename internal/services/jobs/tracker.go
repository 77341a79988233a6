// -----------------------------------------------------------------------
// Job Tracker - persists job updates and publishes progress events
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/models"
)

// Update describes a partial job mutation. Nil fields are left untouched.
// Message is transient: it rides on the progress event but is never
// persisted.
type Update struct {
	Status         *models.JobStatus
	Progress       *int
	TotalItems     *int
	ProcessedItems *int
	CreatedItems   *int
	ErrorMessage   *string
	Result         *models.JobResult
	Message        string
}

// ProgressEvent is the payload published on every tracked job update.
// The websocket layer serializes it to subscribers as-is.
type ProgressEvent struct {
	JobID          string            `json:"job_id"`
	JobType        models.JobType    `json:"job_type"`
	Status         models.JobStatus  `json:"status"`
	Progress       int               `json:"progress"`
	TotalItems     int               `json:"total_items"`
	ProcessedItems int               `json:"processed_items"`
	CreatedItems   int               `json:"created_items"`
	Message        string            `json:"message,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	Result         *models.JobResult `json:"result,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Tracker applies job updates: persist first, then publish the progress
// event synchronously so per-job delivery order matches persistence
// order. Tracking is best effort; failures are logged and never bubble
// into the pipeline.
type Tracker struct {
	jobs   interfaces.JobStorage
	events interfaces.EventService
	logger arbor.ILogger
}

// NewTracker creates a new job tracker
func NewTracker(jobs interfaces.JobStorage, events interfaces.EventService, logger arbor.ILogger) *Tracker {
	return &Tracker{
		jobs:   jobs,
		events: events,
		logger: logger,
	}
}

// Apply loads the job, applies the update, saves it and publishes the
// progress event. Returns the updated job, or nil when the job could not
// be loaded or saved.
func (t *Tracker) Apply(ctx context.Context, jobID string, update Update) *models.Job {
	job, err := t.jobs.GetJob(ctx, jobID)
	if err != nil {
		t.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to load job for tracking update")
		return nil
	}

	if update.Status != nil {
		if err := t.applyStatus(job, *update.Status, update); err != nil {
			t.logger.Warn().Err(err).
				Str("job_id", jobID).
				Str("status", string(job.Status)).
				Str("next", string(*update.Status)).
				Msg("Rejected job status transition")
			return nil
		}
	}
	if update.Progress != nil {
		job.SetProgress(*update.Progress)
	}
	if update.TotalItems != nil {
		job.TotalItems = *update.TotalItems
	}
	if update.ProcessedItems != nil {
		job.ProcessedItems = *update.ProcessedItems
	}
	if update.CreatedItems != nil {
		job.CreatedItems = *update.CreatedItems
	}

	if err := t.jobs.SaveJob(ctx, job); err != nil {
		t.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to persist job update")
		return nil
	}

	t.publish(ctx, job, update.Message)
	return job
}

func (t *Tracker) applyStatus(job *models.Job, next models.JobStatus, update Update) error {
	switch next {
	case models.JobStatusCompleted:
		return job.MarkCompleted(update.Result)
	case models.JobStatusFailed:
		message := ""
		if update.ErrorMessage != nil {
			message = *update.ErrorMessage
		}
		return job.MarkFailed(message)
	default:
		return job.SetStatus(next)
	}
}

// publish emits the job snapshot synchronously to keep delivery ordered
func (t *Tracker) publish(ctx context.Context, job *models.Job, message string) {
	if t.events == nil {
		return
	}

	event := interfaces.Event{
		Type: interfaces.EventJobProgress,
		Payload: &ProgressEvent{
			JobID:          job.ID,
			JobType:        job.Type,
			Status:         job.Status,
			Progress:       job.Progress,
			TotalItems:     job.TotalItems,
			ProcessedItems: job.ProcessedItems,
			CreatedItems:   job.CreatedItems,
			Message:        message,
			ErrorMessage:   job.ErrorMessage,
			Result:         job.Result,
			Timestamp:      time.Now().UTC(),
		},
	}
	if err := t.events.PublishSync(ctx, event); err != nil {
		t.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Progress event delivery failed")
	}
}

// MarkRunning transitions the job to running
func (t *Tracker) MarkRunning(ctx context.Context, jobID string) *models.Job {
	status := models.JobStatusRunning
	return t.Apply(ctx, jobID, Update{Status: &status, Message: "Job started"})
}

// MarkCompleted transitions the job to completed with its result
func (t *Tracker) MarkCompleted(ctx context.Context, jobID string, result *models.JobResult, message string) *models.Job {
	status := models.JobStatusCompleted
	return t.Apply(ctx, jobID, Update{Status: &status, Result: result, Message: message})
}

// MarkFailed transitions the job to failed with the error message
func (t *Tracker) MarkFailed(ctx context.Context, jobID string, errorMessage string) *models.Job {
	status := models.JobStatusFailed
	return t.Apply(ctx, jobID, Update{Status: &status, ErrorMessage: &errorMessage, Message: "Job failed"})
}

// SetProgress updates progress with an optional transient message
func (t *Tracker) SetProgress(ctx context.Context, jobID string, progress int, message string) *models.Job {
	return t.Apply(ctx, jobID, Update{Progress: &progress, Message: message})
}

// SetCounts updates the item counters and scales progress into the
// acquisition band [0, ceiling]
func (t *Tracker) SetCounts(ctx context.Context, jobID string, total, processed, created, ceiling int) *models.Job {
	update := Update{
		TotalItems:     &total,
		ProcessedItems: &processed,
		CreatedItems:   &created,
	}
	if total > 0 && ceiling > 0 {
		progress := processed * ceiling / total
		update.Progress = &progress
	}
	return t.Apply(ctx, jobID, update)
}
