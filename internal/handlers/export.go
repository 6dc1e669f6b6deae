package handlers

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"aichat-backend/internal/models"
)

type exportMessage struct {
	Role      string
	Content   template.HTML
	Timestamp time.Time
}

type exportPageData struct {
	Title    string
	Messages []exportMessage
}

// HandleExportChat renders a conversation as a standalone HTML transcript, with
// message content converted from markdown.
func (m Main) HandleExportChat(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chat_id")

	chat, err := m.store.Chat(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, models.ErrChatNotFound) {
			http.Error(w, "Chat not found", http.StatusNotFound)
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

	data := exportPageData{
		Title:    chat.Title,
		Messages: make([]exportMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		content, err := models.RenderMarkdown(msg.Content)
		if err != nil {
			m.logger.Error("Failed to render message",
				slog.Int64("messageID", msg.ID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data.Messages = append(data.Messages, exportMessage{
			Role:      string(msg.Role),
			Content:   content,
			Timestamp: msg.Timestamp,
		})
	}

	if err := m.templates.ExecuteTemplate(w, "transcript.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
