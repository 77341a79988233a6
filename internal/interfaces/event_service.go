package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	// EventJobProgress carries a job state/progress snapshot to live observers
	EventJobProgress EventType = "job_progress"
	// EventArticleCreated announces a newly persisted article
	EventArticleCreated EventType = "article_created"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Unsubscribe from an event type
	Unsubscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete.
	// Job progress uses this to keep per-job delivery ordered.
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
