// -----------------------------------------------------------------------
// Job - Async job record, state machine and progress tracking
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobType identifies the pipeline a job executes. It is also the tag that
// selects the active variant of JobParameters and JobResult.
type JobType string

const (
	JobTypeTopicIngestion JobType = "topic_ingestion"
	JobTypeTopicResearch  JobType = "topic_research"
	JobTypeFeedIngestion  JobType = "feed_ingestion"
)

// IsTerminal returns true for states that admit no further transitions
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether the state machine permits moving to next.
// Valid transitions: pending -> running, running -> completed, running -> failed,
// pending -> failed (startup reconciliation of jobs that never ran).
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusFailed
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// TopicIngestionParams configures a web search ingestion run
type TopicIngestionParams struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// TopicResearchParams configures a combined web + video research run
type TopicResearchParams struct {
	Query         string `json:"query"`
	MaxWebResults int    `json:"max_web_results"`
	MaxVideos     int    `json:"max_videos"`
}

// FeedIngestionParams configures an RSS/Atom feed refresh run
type FeedIngestionParams struct {
	FeedURL     string `json:"feed_url"`
	SourceName  string `json:"source_name"`
	MaxArticles int    `json:"max_articles"`
}

// JobParameters is a tagged union keyed by JobType. Exactly one variant is
// set; the others stay nil and are omitted from the serialized blob.
type JobParameters struct {
	TopicIngestion *TopicIngestionParams `json:"topic_ingestion,omitempty"`
	TopicResearch  *TopicResearchParams  `json:"topic_research,omitempty"`
	FeedIngestion  *FeedIngestionParams  `json:"feed_ingestion,omitempty"`
}

// Validate checks that the active variant matches the declared job type
func (p JobParameters) Validate(jobType JobType) error {
	var active int
	if p.TopicIngestion != nil {
		active++
	}
	if p.TopicResearch != nil {
		active++
	}
	if p.FeedIngestion != nil {
		active++
	}
	if active != 1 {
		return fmt.Errorf("job parameters must carry exactly one variant, got %d", active)
	}

	switch jobType {
	case JobTypeTopicIngestion:
		if p.TopicIngestion == nil {
			return fmt.Errorf("job type %s requires topic_ingestion parameters", jobType)
		}
	case JobTypeTopicResearch:
		if p.TopicResearch == nil {
			return fmt.Errorf("job type %s requires topic_research parameters", jobType)
		}
	case JobTypeFeedIngestion:
		if p.FeedIngestion == nil {
			return fmt.Errorf("job type %s requires feed_ingestion parameters", jobType)
		}
	default:
		return fmt.Errorf("unknown job type: %s", jobType)
	}
	return nil
}

// IngestionResult summarizes a completed ingestion run
type IngestionResult struct {
	Success         bool     `json:"success"`
	Query           string   `json:"query,omitempty"`
	FeedURL         string   `json:"feed_url,omitempty"`
	ArticlesCreated int      `json:"articles_created"`
	Skipped         int      `json:"skipped"`
	Errors          []string `json:"errors,omitempty"`
}

// ResearchResult summarizes a completed research run including the
// post-processing stage counts
type ResearchResult struct {
	Success              bool     `json:"success"`
	Query                string   `json:"query"`
	WebArticlesCreated   int      `json:"web_articles_created"`
	VideoArticlesCreated int      `json:"video_articles_created"`
	TotalArticlesCreated int      `json:"total_articles_created"`
	EmbeddingsGenerated  int      `json:"embeddings_generated"`
	LinksCreated         int      `json:"links_created"`
	Errors               []string `json:"errors,omitempty"`
}

// JobResult is a tagged union keyed by JobType, populated on completion
type JobResult struct {
	Ingestion *IngestionResult `json:"ingestion,omitempty"`
	Research  *ResearchResult  `json:"research,omitempty"`
}

// Job represents an asynchronous pipeline run. One goroutine owns the job
// while it is running; readers see persisted snapshots.
type Job struct {
	ID             string         `json:"id" badgerhold:"key"`
	Type           JobType        `json:"job_type" badgerholdIndex:"Type"`
	Status         JobStatus      `json:"status" badgerholdIndex:"Status"`
	Progress       int            `json:"progress"`
	TotalItems     int            `json:"total_items"`
	ProcessedItems int            `json:"processed_items"`
	CreatedItems   int            `json:"created_items"`
	Parameters     JobParameters  `json:"parameters"`
	Result         *JobResult     `json:"result,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// NewJob creates a pending job for the given type and parameters
func NewJob(jobType JobType, params JobParameters) (*Job, error) {
	if err := params.Validate(jobType); err != nil {
		return nil, err
	}
	return &Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		Status:     JobStatusPending,
		Progress:   0,
		Parameters: params,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// IsTerminal returns true once the job reached completed or failed
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// SetStatus transitions the job to next, stamping StartedAt/CompletedAt.
// Invalid transitions are rejected so terminal jobs stay immutable.
func (j *Job) SetStatus(next JobStatus) error {
	if j.Status == next {
		return nil
	}
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("invalid job transition %s -> %s", j.Status, next)
	}

	now := time.Now().UTC()
	switch next {
	case JobStatusRunning:
		j.StartedAt = &now
	case JobStatusCompleted, JobStatusFailed:
		j.CompletedAt = &now
	}
	j.Status = next
	return nil
}

// MarkStarted moves the job to running
func (j *Job) MarkStarted() error {
	return j.SetStatus(JobStatusRunning)
}

// MarkCompleted moves the job to completed with its result and full progress
func (j *Job) MarkCompleted(result *JobResult) error {
	if err := j.SetStatus(JobStatusCompleted); err != nil {
		return err
	}
	j.Result = result
	j.Progress = 100
	return nil
}

// MarkFailed moves the job to failed and records the error message
func (j *Job) MarkFailed(message string) error {
	if err := j.SetStatus(JobStatusFailed); err != nil {
		return err
	}
	j.ErrorMessage = message
	return nil
}

// SetProgress clamps progress into [0,100] and keeps it monotone
func (j *Job) SetProgress(progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress < j.Progress {
		return
	}
	j.Progress = progress
}

// Duration returns the job run time, zero until the job has started
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.CompletedAt != nil {
		return j.CompletedAt.Sub(*j.StartedAt)
	}
	return time.Since(*j.StartedAt)
}

// MarshalParameters serializes the parameter union for storage or transport
func (j *Job) MarshalParameters() ([]byte, error) {
	data, err := json.Marshal(j.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job parameters: %w", err)
	}
	return data, nil
}
