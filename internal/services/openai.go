package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"aichat-backend/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used by the hosted backend when the caller does not specify
// a model.
const DefaultOpenAIModel = "gpt-3.5-turbo"

// The hosted backend only ever sees the tail of the conversation to keep requests
// within the context window.
const openAIHistoryLimit = 10

const (
	openAITemperature = 0.7
	openAIMaxTokens   = 500
)

// OpenAI provides the hosted generation backend on top of OpenAI's streaming chat
// completion API. A fresh instance is created per request since the API key is
// supplied by the client.
type OpenAI struct {
	model  string
	client *goopenai.Client

	logger *slog.Logger
}

// NewOpenAI creates an OpenAI backend authenticated with the given API key. If model
// is empty, DefaultOpenAIModel is used.
func NewOpenAI(apiKey, model string, logger *slog.Logger) OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return OpenAI{
		model:  model,
		client: goopenai.NewClient(apiKey),
		logger: logger.With(slog.String("module", "openai")),
	}
}

// openAIMessages builds the role-tagged turn sequence for a request: at most the last
// openAIHistoryLimit history entries with bot relabeled to assistant, followed by the
// new prompt as the final user turn. History is captured before the prompt is
// persisted, so the prompt never appears twice.
func openAIMessages(prompt string, history []models.Message) []goopenai.ChatCompletionMessage {
	if len(history) > openAIHistoryLimit {
		history = history[len(history)-openAIHistoryLimit:]
	}

	msgs := make([]goopenai.ChatCompletionMessage, 0, len(history)+1)
	for _, msg := range history {
		role := goopenai.ChatMessageRoleUser
		if msg.Role == models.RoleBot {
			role = goopenai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	return append(msgs, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: prompt,
	})
}

// Stream opens a streaming completion for the prompt and prior history, yielding each
// non-empty delta verbatim in production order. Failures never escape as errors: a
// service-level rejection yields a single "OpenAI Error" fragment and anything else a
// single "Error" fragment, after which the sequence terminates. One attempt per call,
// no retry.
func (o OpenAI) Stream(ctx context.Context, prompt string, history []models.Message) iter.Seq[string] {
	return func(yield func(string) bool) {
		req := goopenai.ChatCompletionRequest{
			Model:       o.model,
			Messages:    openAIMessages(prompt, history),
			Stream:      true,
			Temperature: openAITemperature,
			MaxTokens:   openAIMaxTokens,
		}

		stream, err := o.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			o.logger.Error("Failed to open completion stream", slog.String("err", err.Error()))
			yield(openAIErrorFragment(err))
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				o.logger.Error("Failed to receive completion chunk", slog.String("err", err.Error()))
				yield(openAIErrorFragment(err))
				return
			}

			if len(response.Choices) == 0 {
				continue
			}
			if delta := response.Choices[0].Delta.Content; delta != "" {
				if !yield(delta) {
					return
				}
			}
		}
	}
}

// openAIErrorFragment converts a failure into the single terminal fragment the
// orchestrator contract requires. Errors reported by the service itself point the
// user at their API key; anything else is surfaced as a generic error.
func openAIErrorFragment(err error) string {
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	if errors.As(err, &apiErr) || errors.As(err, &reqErr) {
		return fmt.Sprintf("OpenAI Error: %v. Please check your API key.", err)
	}
	return fmt.Sprintf("Error: %v", err)
}
