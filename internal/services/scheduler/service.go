// -----------------------------------------------------------------------
// Scheduler Service - cron-driven feed refresh and digest delivery
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/models"
	"gopkg.in/yaml.v3"
)

// Window of articles included in a scheduled digest email
const digestWindow = 24 * time.Hour

// FeedDefinition is one entry in the feeds file
type FeedDefinition struct {
	URL         string `yaml:"url"`
	Name        string `yaml:"name"`
	MaxArticles int    `yaml:"max_articles"`
}

type feedsFile struct {
	Feeds []FeedDefinition `yaml:"feeds"`
}

// jobLauncher starts background execution of a saved job
type jobLauncher interface {
	Launch(job *models.Job)
}

// digestSender composes and delivers the periodic digest email
type digestSender interface {
	SendDigest(ctx context.Context, window time.Duration) (int, error)
}

// Service schedules recurring feed refresh jobs and digest emails using
// cron expressions from the scheduler configuration.
type Service struct {
	config *common.SchedulerConfig
	jobs   interfaces.JobStorage
	runner jobLauncher
	digest digestSender
	cron   *cron.Cron
	logger arbor.ILogger

	mu           sync.Mutex // Protects isRefreshing
	isRefreshing bool
	running      bool
}

// NewService creates a new scheduler service
func NewService(config *common.SchedulerConfig, jobs interfaces.JobStorage, runner jobLauncher, digest digestSender, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		jobs:   jobs,
		runner: runner,
		digest: digest,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start registers the cron entries and begins scheduling. A disabled
// scheduler is a no-op so the rest of the service can run without it.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Scheduler disabled")
		return nil
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	feedSchedule := s.config.FeedSchedule
	if feedSchedule == "" {
		feedSchedule = "0 */6 * * *"
	}
	if _, err := s.cron.AddFunc(feedSchedule, s.runFeedRefresh); err != nil {
		return fmt.Errorf("invalid feed schedule %q: %w", feedSchedule, err)
	}
	s.logger.Info().
		Str("schedule", feedSchedule).
		Str("feeds_file", s.config.FeedsFile).
		Msg("Feed refresh scheduled")

	if s.config.DigestSchedule != "" && s.digest != nil {
		if _, err := s.cron.AddFunc(s.config.DigestSchedule, s.runDigest); err != nil {
			return fmt.Errorf("invalid digest schedule %q: %w", s.config.DigestSchedule, err)
		}
		s.logger.Info().
			Str("schedule", s.config.DigestSchedule).
			Msg("Digest delivery scheduled")
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for in-flight cron callbacks
func (s *Service) Stop() {
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
}

// IsRunning returns true if the scheduler is active
func (s *Service) IsRunning() bool {
	return s.running
}

// runFeedRefresh is the cron entry point for feed refresh
func (s *Service) runFeedRefresh() {
	if _, err := s.RefreshFeeds(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled feed refresh failed")
	}
}

// RefreshFeeds launches one feed ingestion job per configured feed and
// returns the number of jobs launched. Overlapping refresh cycles are
// skipped rather than queued.
func (s *Service) RefreshFeeds(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.isRefreshing {
		s.mu.Unlock()
		s.logger.Warn().Msg("Feed refresh already in progress, skipping cycle")
		return 0, nil
	}
	s.isRefreshing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isRefreshing = false
		s.mu.Unlock()
	}()

	feeds, err := LoadFeeds(s.config.FeedsFile)
	if err != nil {
		return 0, err
	}
	if len(feeds) == 0 {
		s.logger.Warn().Str("feeds_file", s.config.FeedsFile).Msg("No feeds configured")
		return 0, nil
	}

	launched := 0
	for _, feed := range feeds {
		job, err := models.NewJob(models.JobTypeFeedIngestion, models.JobParameters{
			FeedIngestion: &models.FeedIngestionParams{
				FeedURL:     feed.URL,
				SourceName:  feed.Name,
				MaxArticles: feed.MaxArticles,
			},
		})
		if err != nil {
			s.logger.Error().Err(err).Str("feed_url", feed.URL).Msg("Failed to create feed job")
			continue
		}
		if err := s.jobs.SaveJob(ctx, job); err != nil {
			s.logger.Error().Err(err).Str("feed_url", feed.URL).Msg("Failed to save feed job")
			continue
		}
		s.runner.Launch(job)
		launched++

		s.logger.Info().
			Str("job_id", job.ID).
			Str("feed_url", feed.URL).
			Msg("Feed refresh job launched")
	}

	s.logger.Info().Int("count", launched).Msg("Feed refresh cycle started")
	return launched, nil
}

// runDigest is the cron entry point for digest delivery
func (s *Service) runDigest() {
	count, err := s.digest.SendDigest(context.Background(), digestWindow)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled digest failed")
		return
	}
	s.logger.Info().Int("articles", count).Msg("Scheduled digest delivered")
}

// LoadFeeds parses the feeds YAML file. Entries without a URL are
// rejected so a typo does not silently drop a feed.
func LoadFeeds(path string) ([]FeedDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds file: %w", err)
	}

	var doc feedsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse feeds file: %w", err)
	}

	for i, feed := range doc.Feeds {
		if feed.URL == "" {
			return nil, fmt.Errorf("feed entry %d is missing a url", i+1)
		}
	}
	return doc.Feeds, nil
}
