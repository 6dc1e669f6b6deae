package models

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Chat represents a conversation container in the chat system. Its title is derived
// from the first prompt unless one is supplied explicitly, and it is never mutated
// after creation except by deletion.
type Chat struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Message represents an individual communication entry within a chat. Messages are
// immutable once written; a streaming response is accumulated in memory and persisted
// as exactly one final Message.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      Role      `json:"user"`
	Content   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Role represents the author of a message.
type Role string

const (
	// RoleUser marks a message written by the human participant.
	RoleUser Role = "user"
	// RoleBot marks a message generated by the assistant.
	RoleBot Role = "bot"
)

// ErrChatNotFound is reported when an operation references a chat that does not exist.
var ErrChatNotFound = errors.New("chat not found")

const maxTitleLen = 50

// TitleFromPrompt derives a chat title from the first prompt of a conversation by
// truncating it to a display-friendly length.
func TitleFromPrompt(prompt string) string {
	title := strings.TrimSpace(prompt)
	if utf8.RuneCountInString(title) <= maxTitleLen {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:maxTitleLen])) + "..."
}
