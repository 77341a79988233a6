package jobs

import (
	"context"
	"sync"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/models"
	"github.com/ternarybob/curio/internal/services/events"
	"github.com/ternarybob/curio/internal/storage/badger"
)

func newTestJobStorage(t *testing.T) interfaces.JobStorage {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return badger.NewJobStorage(db, logger)
}

// progressCollector records progress events in delivery order
type progressCollector struct {
	mu     sync.Mutex
	events []*ProgressEvent
}

func (c *progressCollector) handler(ctx context.Context, event interfaces.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if progress, ok := event.Payload.(*ProgressEvent); ok {
		c.events = append(c.events, progress)
	}
	return nil
}

func (c *progressCollector) snapshot() []*ProgressEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ProgressEvent, len(c.events))
	copy(out, c.events)
	return out
}

func newPendingJob(t *testing.T, storage interfaces.JobStorage) *models.Job {
	t.Helper()
	job, err := models.NewJob(models.JobTypeTopicIngestion, models.JobParameters{
		TopicIngestion: &models.TopicIngestionParams{Query: "test", MaxResults: 5},
	})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if err := storage.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}
	return job
}

func TestTrackerLifecycle(t *testing.T) {
	storage := newTestJobStorage(t)
	logger := arbor.NewLogger()
	eventService := events.NewService(logger)
	collector := &progressCollector{}
	eventService.Subscribe(interfaces.EventJobProgress, collector.handler)

	tracker := NewTracker(storage, eventService, logger)
	job := newPendingJob(t, storage)
	ctx := context.Background()

	if updated := tracker.MarkRunning(ctx, job.ID); updated == nil || updated.Status != models.JobStatusRunning {
		t.Fatalf("MarkRunning did not transition to running: %+v", updated)
	}

	tracker.SetProgress(ctx, job.ID, 50, "Halfway")
	tracker.MarkCompleted(ctx, job.ID, &models.JobResult{
		Ingestion: &models.IngestionResult{Success: true, ArticlesCreated: 3},
	}, "Done")

	final, err := storage.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if final.Status != models.JobStatusCompleted {
		t.Errorf("Status = %s, want completed", final.Status)
	}
	if final.Progress != 100 {
		t.Errorf("Progress = %d, want 100", final.Progress)
	}
	if final.Result == nil || final.Result.Ingestion == nil || final.Result.Ingestion.ArticlesCreated != 3 {
		t.Errorf("Result not persisted: %+v", final.Result)
	}

	delivered := collector.snapshot()
	if len(delivered) != 3 {
		t.Fatalf("Expected 3 progress events, got %d", len(delivered))
	}
	if delivered[0].Status != models.JobStatusRunning ||
		delivered[1].Progress != 50 ||
		delivered[2].Status != models.JobStatusCompleted {
		t.Errorf("Events out of order: %+v", delivered)
	}
	if delivered[1].Message != "Halfway" {
		t.Errorf("Transient message lost: %q", delivered[1].Message)
	}
}

func TestTrackerRejectsTerminalMutation(t *testing.T) {
	storage := newTestJobStorage(t)
	logger := arbor.NewLogger()
	tracker := NewTracker(storage, events.NewService(logger), logger)
	job := newPendingJob(t, storage)
	ctx := context.Background()

	tracker.MarkRunning(ctx, job.ID)
	tracker.MarkFailed(ctx, job.ID, "boom")

	// A late completion attempt must not resurrect the job
	if updated := tracker.MarkCompleted(ctx, job.ID, nil, ""); updated != nil {
		t.Errorf("Expected terminal job to reject completion, got %+v", updated)
	}

	final, _ := storage.GetJob(ctx, job.ID)
	if final.Status != models.JobStatusFailed {
		t.Errorf("Status = %s, want failed", final.Status)
	}
	if final.ErrorMessage != "boom" {
		t.Errorf("ErrorMessage = %q, want boom", final.ErrorMessage)
	}
}

func TestTrackerProgressMonotone(t *testing.T) {
	storage := newTestJobStorage(t)
	logger := arbor.NewLogger()
	tracker := NewTracker(storage, events.NewService(logger), logger)
	job := newPendingJob(t, storage)
	ctx := context.Background()

	tracker.MarkRunning(ctx, job.ID)
	tracker.SetProgress(ctx, job.ID, 60, "")
	tracker.SetProgress(ctx, job.ID, 40, "")

	final, _ := storage.GetJob(ctx, job.ID)
	if final.Progress != 60 {
		t.Errorf("Progress regressed to %d, want 60", final.Progress)
	}
}

func TestTrackerSetCountsScalesProgress(t *testing.T) {
	storage := newTestJobStorage(t)
	logger := arbor.NewLogger()
	tracker := NewTracker(storage, events.NewService(logger), logger)
	job := newPendingJob(t, storage)
	ctx := context.Background()

	tracker.MarkRunning(ctx, job.ID)
	tracker.SetCounts(ctx, job.ID, 10, 5, 4, 70)

	final, _ := storage.GetJob(ctx, job.ID)
	if final.Progress != 35 {
		t.Errorf("Progress = %d, want 35 (5/10 of the 70 ceiling)", final.Progress)
	}
	if final.TotalItems != 10 || final.ProcessedItems != 5 || final.CreatedItems != 4 {
		t.Errorf("Counters not persisted: %+v", final)
	}
}

func TestTrackerUnknownJob(t *testing.T) {
	storage := newTestJobStorage(t)
	logger := arbor.NewLogger()
	tracker := NewTracker(storage, events.NewService(logger), logger)

	if updated := tracker.SetProgress(context.Background(), "missing", 10, ""); updated != nil {
		t.Errorf("Expected nil for unknown job, got %+v", updated)
	}
}
