package models_test

import (
	"strings"
	"testing"

	"aichat-backend/internal/models"
)

func TestTitleFromPrompt(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{
			name:   "Short prompt",
			prompt: "Hello bot",
			want:   "Hello bot",
		},
		{
			name:   "Surrounding whitespace",
			prompt: "  Hello bot  ",
			want:   "Hello bot",
		},
		{
			name:   "Long prompt",
			prompt: strings.Repeat("a", 60),
			want:   strings.Repeat("a", 50) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := models.TitleFromPrompt(tt.prompt); got != tt.want {
				t.Errorf("TitleFromPrompt(%q) = %q, want %q", tt.prompt, got, tt.want)
			}
		})
	}
}

func TestRenderMarkdown(t *testing.T) {
	got, err := models.RenderMarkdown("some **bold** text")
	if err != nil {
		t.Fatalf("RenderMarkdown() error = %v", err)
	}
	if !strings.Contains(string(got), "<strong>bold</strong>") {
		t.Errorf("RenderMarkdown() = %q, want bold markup", got)
	}
}
