package handlers

import (
	"context"
	"encoding/json"
	"html/template"
	"iter"
	"log/slog"
	"net/http"

	aichatbackend "aichat-backend"
	"aichat-backend/internal/models"
)

// Generator is the unified response-generation entry point. A call produces a fresh,
// one-shot fragment sequence that always terminates; backend failures arrive as
// ordinary error-text fragments, never as raised errors.
type Generator interface {
	Generate(
		ctx context.Context,
		prompt string,
		history []models.Message,
		apiKey string,
		model string,
	) iter.Seq[string]
}

// Store defines the interface for chat and message persistence. Messages are
// append-only; the only mutation a chat ever sees after creation is deletion, which
// cascades to its messages.
type Store interface {
	AddChat(ctx context.Context, chat models.Chat) error
	Chat(ctx context.Context, chatID string) (models.Chat, error)
	Chats(ctx context.Context) ([]models.Chat, error)
	DeleteChat(ctx context.Context, chatID string) error

	AddMessage(ctx context.Context, chatID string, message models.Message) (models.Message, error)
	Messages(ctx context.Context, chatID string) ([]models.Message, error)
}

// Main handles the core functionality of the chat backend, coordinating response
// generation, persistence, and SSE delivery to clients.
type Main struct {
	templates *template.Template

	generator Generator
	store     Store

	logger *slog.Logger
}

const errLoggerKey = "err"

// NewMain creates a new Main instance with the provided Generator and Store
// implementations, parsing the transcript templates from the embedded filesystem.
func NewMain(generator Generator, store Store, logger *slog.Logger) (Main, error) {
	tmpl, err := template.ParseFS(aichatbackend.TemplateFS, "templates/*.html")
	if err != nil {
		return Main{}, err
	}

	return Main{
		templates: tmpl,
		generator: generator,
		store:     store,
		logger:    logger.With(slog.String("module", "handlers")),
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
