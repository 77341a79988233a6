package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsRetryableClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"rate limit", &HTTPError{StatusCode: 429}, true},
		{"server error", &HTTPError{StatusCode: 503}, true},
		{"bad request", &HTTPError{StatusCode: 400}, false},
		{"unauthorized", &HTTPError{StatusCode: 401}, false},
		{"not found", &HTTPError{StatusCode: 404}, false},
		{"wrapped server error", fmt.Errorf("call failed: %w", &HTTPError{StatusCode: 500}), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"quota text", errors.New("Error 429, Status: RESOURCE_EXHAUSTED"), true},
		{"plain error", errors.New("invalid payload"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: quota exceeded. Please retry in 12.5s., Status: RESOURCE_EXHAUSTED")
	if got := ExtractRetryDelay(err); got != 12500*time.Millisecond {
		t.Errorf("ExtractRetryDelay = %v, want 12.5s", got)
	}
	if got := ExtractRetryDelay(errors.New("no delay here")); got != 0 {
		t.Errorf("ExtractRetryDelay = %v, want 0", got)
	}
}

func TestCalculateBackoffCapped(t *testing.T) {
	cfg := &RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}

	if got := cfg.CalculateBackoff(0, 0); got != 2*time.Second {
		t.Errorf("attempt 0 backoff = %v, want 2s", got)
	}
	if got := cfg.CalculateBackoff(1, 0); got != 4*time.Second {
		t.Errorf("attempt 1 backoff = %v, want 4s", got)
	}
	if got := cfg.CalculateBackoff(4, 0); got != 10*time.Second {
		t.Errorf("attempt 4 backoff = %v, want capped 10s", got)
	}
	// API-provided delay overrides the configured base
	if got := cfg.CalculateBackoff(0, 3*time.Second); got != 3*time.Second {
		t.Errorf("api delay backoff = %v, want 3s", got)
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	cfg := &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	calls := 0
	err := cfg.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &HTTPError{StatusCode: 503}
		}
		return nil
	})
	if err != nil {
		t.Errorf("Expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	cfg := NewDefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond

	calls := 0
	err := cfg.Do(context.Background(), func() error {
		calls++
		return &HTTPError{StatusCode: 400, Body: "bad request"}
	})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("Expected no retries for permanent error, got %d calls", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	cfg := &RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	calls := 0
	err := cfg.Do(context.Background(), func() error {
		calls++
		return &HTTPError{StatusCode: 429}
	})
	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}
