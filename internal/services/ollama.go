package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"aichat-backend/internal/models"
	"github.com/ollama/ollama/api"
)

// The fallback backend keeps its requests small: a short history window, a capped
// context, and a modest completion budget.
const (
	ollamaHistoryLimit = 5
	ollamaNumCtx       = 1024
	ollamaNumPredict   = 100
	ollamaTemperature  = 0.7
	ollamaTopP         = 0.9
)

// Ollama provides the fallback generation backend used when no API key is supplied.
// It talks to a locally running Ollama server, which loads the model on first use and
// keeps it resident between calls; the client itself is initialized at most once per
// process.
type Ollama struct {
	host  string
	model string

	once    sync.Once
	client  *api.Client
	initErr error

	logger *slog.Logger
}

// NewOllama creates a fallback backend for the given Ollama host URL and model name.
// No connection is made until the first Stream call.
func NewOllama(host, model string, logger *slog.Logger) *Ollama {
	return &Ollama{
		host:   host,
		model:  model,
		logger: logger.With(slog.String("module", "ollama")),
	}
}

// init parses the host URL and builds the API client exactly once. Concurrent first
// calls are serialized here, so there is no duplicate-initialization race.
func (o *Ollama) init() error {
	o.once.Do(func() {
		u, err := url.Parse(o.host)
		if err != nil {
			o.initErr = fmt.Errorf("invalid ollama host %q: %w", o.host, err)
			return
		}
		o.client = api.NewClient(u, &http.Client{})
	})
	return o.initErr
}

// ollamaMessages builds the turn sequence for a request from at most the last
// ollamaHistoryLimit history entries plus the new prompt as the final user turn.
func ollamaMessages(prompt string, history []models.Message) []api.Message {
	if len(history) > ollamaHistoryLimit {
		history = history[len(history)-ollamaHistoryLimit:]
	}

	msgs := make([]api.Message, 0, len(history)+1)
	for _, msg := range history {
		role := "user"
		if msg.Role == models.RoleBot {
			role = "assistant"
		}
		msgs = append(msgs, api.Message{
			Role:    role,
			Content: msg.Content,
		})
	}

	return append(msgs, api.Message{
		Role:    "user",
		Content: prompt,
	})
}

// Stream generates a response for the prompt and prior history, yielding each
// non-empty token chunk verbatim in production order.
//
// The blocking generation call runs on its own goroutine and feeds an unbuffered
// channel; the consuming side drains that channel to completion even when the caller
// abandons the sequence early, so the goroutine never outlives the call. Any failure
// during setup or generation yields a single "Error" fragment and terminates the
// sequence.
func (o *Ollama) Stream(ctx context.Context, prompt string, history []models.Message) iter.Seq[string] {
	return func(yield func(string) bool) {
		if err := o.init(); err != nil {
			yield(fmt.Sprintf("Error: %v", err))
			return
		}

		stream := true
		req := &api.ChatRequest{
			Model:    o.model,
			Messages: ollamaMessages(prompt, history),
			Stream:   &stream,
			// Keep the model loaded between requests; the server-side residency is
			// the lazy-loaded-once model state shared by all calls.
			KeepAlive: &api.Duration{Duration: 30 * time.Minute},
			Options: map[string]any{
				"num_ctx":     ollamaNumCtx,
				"num_predict": ollamaNumPredict,
				"temperature": ollamaTemperature,
				"top_p":       ollamaTopP,
			},
		}

		fragments := make(chan string)
		errc := make(chan error, 1)

		go func() {
			defer close(fragments)
			errc <- o.client.Chat(ctx, req, func(res api.ChatResponse) error {
				if strings.TrimSpace(res.Message.Content) != "" {
					fragments <- res.Message.Content
				}
				return nil
			})
		}()

		abandoned := false
		for fragment := range fragments {
			if abandoned {
				// Keep draining so the producer can finish.
				continue
			}
			if !yield(fragment) {
				abandoned = true
			}
		}

		// The producer has pushed its result by the time the channel closes; waiting
		// here joins the goroutine before the sequence is declared exhausted.
		err := <-errc
		if err != nil && !abandoned && !errors.Is(err, context.Canceled) {
			o.logger.Error("Generation failed", slog.String("err", err.Error()))
			yield(fmt.Sprintf("Error: %v", err))
		}
	}
}
