package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
)

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		config common.SMTPConfig
		want   bool
	}{
		{
			name: "fully configured",
			config: common.SMTPConfig{
				Host: "smtp.example.com", Port: 587,
				Username: "user", Password: "pass", From: "curio@example.com",
			},
			want: true,
		},
		{name: "empty", config: common.SMTPConfig{}, want: false},
		{
			name:   "missing credentials",
			config: common.SMTPConfig{Host: "smtp.example.com", From: "curio@example.com"},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(&tt.config, arbor.NewLogger())
			if got := service.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSendUnconfigured(t *testing.T) {
	service := NewService(&common.SMTPConfig{}, arbor.NewLogger())
	if err := service.Send(context.Background(), "to@example.com", "Subject", "", "body"); err == nil {
		t.Fatal("Expected error when SMTP is not configured")
	}
}

func TestBuildMessagePlainText(t *testing.T) {
	service := NewService(&common.SMTPConfig{
		From: "curio@example.com", FromName: "Curio",
	}, arbor.NewLogger())

	msg := service.buildMessage("to@example.com", "Daily Digest", "", "plain body")

	if !strings.Contains(msg, "From: Curio <curio@example.com>") {
		t.Errorf("Missing from header: %q", msg)
	}
	if !strings.Contains(msg, "Subject: Daily Digest") {
		t.Errorf("Missing subject header: %q", msg)
	}
	if !strings.Contains(msg, "plain body") {
		t.Errorf("Missing body: %q", msg)
	}
	if strings.Contains(msg, "multipart") {
		t.Error("Plain text message should not be multipart")
	}
}

func TestBuildMessageMultipart(t *testing.T) {
	service := NewService(&common.SMTPConfig{
		From: "curio@example.com", FromName: "Curio",
	}, arbor.NewLogger())

	msg := service.buildMessage("to@example.com", "Daily Digest", "<h1>Hello</h1>", "Hello")

	if !strings.Contains(msg, "multipart/alternative") {
		t.Errorf("Expected multipart message: %q", msg)
	}
	if !strings.Contains(msg, "text/html") || !strings.Contains(msg, "text/plain") {
		t.Errorf("Expected both body parts: %q", msg)
	}
	// Bodies are base64 encoded, raw HTML must not leak into the message
	if strings.Contains(msg, "<h1>") {
		t.Error("HTML body should be base64 encoded")
	}
}

func TestEncodeBase64WithLineBreaks(t *testing.T) {
	long := strings.Repeat("x", 300)
	encoded := encodeBase64WithLineBreaks(long)

	for i, line := range strings.Split(encoded, "\r\n") {
		if len(line) > 76 {
			t.Errorf("Line %d length %d exceeds 76", i, len(line))
		}
	}
}
