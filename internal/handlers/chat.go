package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"aichat-backend/internal/models"
	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
)

// streamEvent is the payload published for every fragment: the full accumulated text
// so far, not just the delta, so a client can simply replace its displayed message.
type streamEvent struct {
	User      string    `json:"user"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	ChatID    string    `json:"chat_id"`
}

// streamError is the terminal event published when the stream fails unexpectedly.
type streamError struct {
	Error string `json:"error"`
}

type loadChatResponse struct {
	ChatID   string           `json:"chat_id"`
	Title    string           `json:"title"`
	Messages []models.Message `json:"messages"`
}

type statusResponse struct {
	Message string `json:"message"`
}

// HandleChat processes a prompt and streams the generated response over SSE.
//
// The request carries a required "prompt" and optional "chat_id", "api_key", and
// "model" parameters; a missing chat_id creates a new chat titled after the prompt.
// Prior history is read strictly before the prompt is persisted, so the prompt never
// duplicates itself inside the history handed to the hosted backend. Every fragment
// grows an in-memory accumulator whose trimmed snapshot is published as an event, and
// exactly one bot message, the final accumulated text, is persisted once the
// fragment sequence is exhausted.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	prompt := r.FormValue("prompt")
	if prompt == "" {
		m.logger.Error("Prompt is required")
		http.Error(w, "Prompt is required", http.StatusBadRequest)
		return
	}

	apiKey := r.FormValue("api_key")
	if apiKey == "" {
		apiKey = r.Header.Get("X-API-Key")
	}
	model := r.FormValue("model")

	ctx := r.Context()

	chatID := r.FormValue("chat_id")
	if chatID == "" {
		chatID = uuid.New().String()
		chat := models.Chat{
			ID:    chatID,
			Title: models.TitleFromPrompt(prompt),
		}
		if err := m.store.AddChat(ctx, chat); err != nil {
			m.logger.Error("Failed to add chat", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	} else {
		if _, err := m.store.Chat(ctx, chatID); err != nil {
			if errors.Is(err, models.ErrChatNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Chat not found"})
				return
			}
			m.logger.Error("Failed to get chat", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	// History must be captured before the user message is written; reversing the
	// order would duplicate the prompt inside the history sent to the backend.
	history, err := m.store.Messages(ctx, chatID)
	if err != nil {
		m.logger.Error("Failed to get messages",
			slog.String("chatID", chatID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	userMsg := models.Message{
		ChatID:    chatID,
		Role:      models.RoleUser,
		Content:   prompt,
		Timestamp: time.Now().UTC(),
	}
	if _, err := m.store.AddMessage(ctx, chatID, userMsg); err != nil {
		m.logger.Error("Failed to add user message", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		m.logger.Error("Failed to upgrade to SSE", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var sb strings.Builder
	accumulated := ""
	delivered := true

	for fragment := range m.generator.Generate(ctx, prompt, history, apiKey, model) {
		sb.WriteString(fragment)
		accumulated = strings.TrimSpace(sb.String())

		event := streamEvent{
			User:      string(models.RoleBot),
			Message:   accumulated,
			Timestamp: time.Now().UTC(),
			ChatID:    chatID,
		}
		if err := m.publish(sess, event); err != nil {
			// The client is gone; stop publishing and abandon the sequence. The
			// generator joins its worker before the loop exits.
			m.logger.Warn("Stopped publishing to closed client",
				slog.String("chatID", chatID),
				slog.String(errLoggerKey, err.Error()))
			delivered = false
			break
		}
	}

	if !delivered {
		// A dropped connection loses in-flight content but not committed history.
		return
	}

	botMsg := models.Message{
		ChatID:    chatID,
		Role:      models.RoleBot,
		Content:   accumulated,
		Timestamp: time.Now().UTC(),
	}
	if _, err := m.store.AddMessage(ctx, chatID, botMsg); err != nil {
		m.logger.Error("Failed to add bot message",
			slog.String("chatID", chatID),
			slog.String(errLoggerKey, err.Error()))
		_ = m.publish(sess, streamError{Error: err.Error()})
	}
}

func (m Main) publish(sess *sse.Session, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	e := &sse.Message{}
	e.AppendData(string(data))

	if err := sess.Send(e); err != nil {
		return err
	}
	return sess.Flush()
}

// HandleListChats returns all chats in creation order.
func (m Main) HandleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := m.store.Chats(r.Context())
	if err != nil {
		m.logger.Error("Failed to get chats", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if chats == nil {
		chats = []models.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

// HandleLoadChat returns a single chat with its ordered message history. A chat with
// no messages yields an empty message list, not an error.
func (m Main) HandleLoadChat(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chat_id")

	chat, err := m.store.Chat(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, models.ErrChatNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Chat not found"})
			return
		}
		m.logger.Error("Failed to get chat", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	messages, err := m.store.Messages(r.Context(), chatID)
	if err != nil {
		m.logger.Error("Failed to get messages",
			slog.String("chatID", chatID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, loadChatResponse{
		ChatID:   chat.ID,
		Title:    chat.Title,
		Messages: messages,
	})
}

// HandleDeleteChat removes a chat and all of its messages. Deleting a chat that
// doesn't exist is a reported nothing-to-do outcome, not a fault.
func (m Main) HandleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chat_id")

	if err := m.store.DeleteChat(r.Context(), chatID); err != nil {
		if errors.Is(err, models.ErrChatNotFound) {
			writeJSON(w, http.StatusOK, statusResponse{Message: "Chat not found"})
			return
		}
		m.logger.Error("Failed to delete chat",
			slog.String("chatID", chatID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Message: "Chat deleted successfully"})
}
