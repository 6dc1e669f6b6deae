package services

import (
	"context"
	"iter"
	"log/slog"

	"aichat-backend/internal/models"
)

// backend is the single contract both generation paths satisfy: a one-shot, finite
// sequence of text fragments for a prompt plus prior history.
type backend interface {
	Stream(ctx context.Context, prompt string, history []models.Message) iter.Seq[string]
}

// Generator is the unified entry point for response generation. It routes each call
// to the hosted backend when an API key is supplied and to the local fallback
// otherwise, exposing one fragment sequence regardless of which path produced it.
type Generator struct {
	fallback backend
	hosted   func(apiKey, model string) backend

	logger *slog.Logger
}

// NewGenerator creates a Generator that falls back to the given Ollama backend and
// constructs a hosted OpenAI backend per call from the client-supplied API key.
func NewGenerator(fallback *Ollama, logger *slog.Logger) Generator {
	return Generator{
		fallback: fallback,
		hosted: func(apiKey, model string) backend {
			return NewOpenAI(apiKey, model, logger)
		},
		logger: logger.With(slog.String("module", "generator")),
	}
}

// Generate returns a fresh, one-shot fragment sequence for the prompt. The sequence
// always terminates: backend failures are converted into a single terminal
// error-text fragment by the backends themselves, never raised to the caller. The
// model parameter is only meaningful for the hosted path and defaults to
// DefaultOpenAIModel when empty.
func (g Generator) Generate(
	ctx context.Context,
	prompt string,
	history []models.Message,
	apiKey string,
	model string,
) iter.Seq[string] {
	if apiKey != "" {
		g.logger.Debug("Routing to hosted backend", slog.String("model", model))
		return g.hosted(apiKey, model).Stream(ctx, prompt, history)
	}
	g.logger.Debug("Routing to fallback backend")
	return g.fallback.Stream(ctx, prompt, history)
}
