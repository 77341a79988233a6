// -----------------------------------------------------------------------
// Job Runner - launches pipelines and drives them through the stages
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/models"
	"github.com/ternarybob/curio/internal/services/embeddings"
	"github.com/ternarybob/curio/internal/services/ingestion"
	"github.com/ternarybob/curio/internal/services/research"
)

// Progress checkpoints. Content acquisition owns [0,70]; the embedding
// and linking stages land on fixed marks after it.
const (
	progressItemsDone  = 70
	progressEmbeddings = 85
	progressLinks      = 95
)

// Runner executes jobs on detached goroutines. Each job walks the same
// stage sequence: acquire content, generate embeddings, compute links.
// Stage failures after acquisition degrade the result instead of failing
// the job.
type Runner struct {
	jobs       interfaces.JobStorage
	tracker    *Tracker
	ingestion  *ingestion.Service
	research   *research.Service
	embeddings *embeddings.Service
	logger     arbor.ILogger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a new job runner
func NewRunner(
	jobs interfaces.JobStorage,
	tracker *Tracker,
	ingestionService *ingestion.Service,
	researchService *research.Service,
	embeddingsService *embeddings.Service,
	logger arbor.ILogger,
) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		jobs:       jobs,
		tracker:    tracker,
		ingestion:  ingestionService,
		research:   researchService,
		embeddings: embeddingsService,
		logger:     logger,
		baseCtx:    ctx,
		cancel:     cancel,
	}
}

// Launch runs the job on a detached goroutine and returns immediately.
// The job must already be persisted in pending state.
func (r *Runner) Launch(job *models.Job) {
	r.wg.Add(1)
	common.SafeGoWithContext(r.baseCtx, r.logger, "job-"+job.ID, func() {
		defer r.wg.Done()
		r.run(r.baseCtx, job)
	})
}

func (r *Runner) run(ctx context.Context, job *models.Job) {
	r.logger.Info().
		Str("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Msg("Job started")

	if updated := r.tracker.MarkRunning(ctx, job.ID); updated == nil {
		return
	}

	switch job.Type {
	case models.JobTypeTopicIngestion:
		r.runTopicIngestion(ctx, job)
	case models.JobTypeFeedIngestion:
		r.runFeedIngestion(ctx, job)
	case models.JobTypeTopicResearch:
		r.runTopicResearch(ctx, job)
	default:
		r.tracker.MarkFailed(ctx, job.ID, fmt.Sprintf("unknown job type: %s", job.Type))
	}
}

func (r *Runner) runTopicIngestion(ctx context.Context, job *models.Job) {
	params := job.Parameters.TopicIngestion

	result, err := r.ingestion.IngestTopic(ctx, params.Query, params.MaxResults, r.countsFunc(ctx, job.ID))
	if err != nil {
		r.tracker.MarkFailed(ctx, job.ID, err.Error())
		return
	}

	r.postProcess(ctx, job.ID)

	r.tracker.MarkCompleted(ctx, job.ID, &models.JobResult{
		Ingestion: &models.IngestionResult{
			Success:         result.Success(),
			Query:           params.Query,
			ArticlesCreated: result.Created,
			Skipped:         result.Skipped,
			Errors:          result.Errors,
		},
	}, fmt.Sprintf("Created %d articles", result.Created))
}

func (r *Runner) runFeedIngestion(ctx context.Context, job *models.Job) {
	params := job.Parameters.FeedIngestion

	result, err := r.ingestion.IngestFeed(ctx, params.FeedURL, params.SourceName, params.MaxArticles, r.countsFunc(ctx, job.ID))
	if err != nil {
		r.tracker.MarkFailed(ctx, job.ID, err.Error())
		return
	}

	r.postProcess(ctx, job.ID)

	r.tracker.MarkCompleted(ctx, job.ID, &models.JobResult{
		Ingestion: &models.IngestionResult{
			Success:         result.Success(),
			FeedURL:         params.FeedURL,
			ArticlesCreated: result.Created,
			Skipped:         result.Skipped,
			Errors:          result.Errors,
		},
	}, fmt.Sprintf("Created %d articles", result.Created))
}

func (r *Runner) runTopicResearch(ctx context.Context, job *models.Job) {
	params := job.Parameters.TopicResearch

	output, err := r.research.Run(ctx, params.Query, params.MaxWebResults, params.MaxVideos, r.countsFunc(ctx, job.ID))
	if err != nil {
		r.tracker.MarkFailed(ctx, job.ID, err.Error())
		return
	}

	embedded, linked := r.postProcess(ctx, job.ID)

	r.tracker.MarkCompleted(ctx, job.ID, &models.JobResult{
		Research: &models.ResearchResult{
			Success:              output.TotalCreated() > 0 || len(output.Errors) == 0,
			Query:                params.Query,
			WebArticlesCreated:   output.WebCreated,
			VideoArticlesCreated: output.VideoCreated,
			TotalArticlesCreated: output.TotalCreated(),
			EmbeddingsGenerated:  embedded,
			LinksCreated:         linked,
			Errors:               output.Errors,
		},
	}, fmt.Sprintf("Created %d articles, %d links", output.TotalCreated(), linked))
}

// countsFunc maps per-item progress into the acquisition band
func (r *Runner) countsFunc(ctx context.Context, jobID string) ingestion.ProgressFunc {
	return func(total, processed, created int) {
		r.tracker.SetCounts(ctx, jobID, total, processed, created, progressItemsDone)
	}
}

// postProcess runs the embedding and linking stages. Failures here are
// logged and degrade the result; the acquired articles are already safe.
func (r *Runner) postProcess(ctx context.Context, jobID string) (embedded, linked int) {
	r.tracker.SetProgress(ctx, jobID, progressItemsDone, "Content acquisition complete")

	embedded, err := r.embeddings.EmbedMissing(ctx, 0)
	if err != nil {
		r.logger.Warn().Err(err).Str("job_id", jobID).Msg("Embedding stage failed")
	}
	r.tracker.SetProgress(ctx, jobID, progressEmbeddings, fmt.Sprintf("Generated %d embeddings", embedded))

	linked, err = r.embeddings.ComputeLinks(ctx, 0)
	if err != nil {
		r.logger.Warn().Err(err).Str("job_id", jobID).Msg("Linking stage failed")
	}
	r.tracker.SetProgress(ctx, jobID, progressLinks, fmt.Sprintf("Created %d links", linked))

	return embedded, linked
}

// SweepStale reconciles jobs left in non-terminal states by a previous
// process. Runs once at startup before any new job launches.
func (r *Runner) SweepStale(ctx context.Context) error {
	swept := 0
	for _, status := range []models.JobStatus{models.JobStatusRunning, models.JobStatusPending} {
		stale, err := r.jobs.ListJobs(ctx, &interfaces.JobListOptions{Status: status})
		if err != nil {
			return fmt.Errorf("failed to list %s jobs: %w", status, err)
		}
		for _, job := range stale {
			r.tracker.MarkFailed(ctx, job.ID, "interrupted by service restart")
			swept++
		}
	}

	if swept > 0 {
		r.logger.Warn().Int("count", swept).Msg("Swept stale jobs from previous run")
	}
	return nil
}

// Wait blocks until all launched jobs finish
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close cancels running jobs and waits for their goroutines to exit
func (r *Runner) Close() error {
	r.cancel()
	r.wg.Wait()
	return nil
}
