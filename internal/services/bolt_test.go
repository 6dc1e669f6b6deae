package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"aichat-backend/internal/models"
)

func testBoltDB(t *testing.T) BoltDB {
	t.Helper()

	db, err := NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("NewBoltDB() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestBoltDBChats(t *testing.T) {
	db := testBoltDB(t)
	ctx := context.Background()

	chats, err := db.Chats(ctx)
	if err != nil {
		t.Fatalf("Chats() error = %v", err)
	}
	if len(chats) != 0 {
		t.Fatalf("Chats() = %v, want empty", chats)
	}

	first := models.Chat{ID: "chat-1", Title: "First Chat"}
	second := models.Chat{ID: "chat-2", Title: "Second Chat"}
	for _, chat := range []models.Chat{first, second} {
		if err := db.AddChat(ctx, chat); err != nil {
			t.Fatalf("AddChat() error = %v", err)
		}
	}

	chats, err = db.Chats(ctx)
	if err != nil {
		t.Fatalf("Chats() error = %v", err)
	}
	if len(chats) != 2 || chats[0] != first || chats[1] != second {
		t.Errorf("Chats() = %v, want [%v %v] in creation order", chats, first, second)
	}

	got, err := db.Chat(ctx, "chat-1")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got != first {
		t.Errorf("Chat() = %v, want %v", got, first)
	}

	if _, err := db.Chat(ctx, "missing"); !errors.Is(err, models.ErrChatNotFound) {
		t.Errorf("Chat() error = %v, want ErrChatNotFound", err)
	}
}

func TestBoltDBMessagesOrdering(t *testing.T) {
	db := testBoltDB(t)
	ctx := context.Background()

	if err := db.AddChat(ctx, models.Chat{ID: "chat-1", Title: "Chat"}); err != nil {
		t.Fatalf("AddChat() error = %v", err)
	}

	messages, err := db.Messages(ctx, "chat-1")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("Messages() = %v, want empty for a fresh chat", messages)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	contents := []string{"Hello", "Hi there!", "What is 2+2?"}
	roles := []models.Role{models.RoleUser, models.RoleBot, models.RoleUser}
	for i, content := range contents {
		msg := models.Message{
			Role:      roles[i],
			Content:   content,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		stored, err := db.AddMessage(ctx, "chat-1", msg)
		if err != nil {
			t.Fatalf("AddMessage() error = %v", err)
		}
		if stored.ID != int64(i+1) {
			t.Errorf("AddMessage() ID = %d, want %d", stored.ID, i+1)
		}
		if stored.ChatID != "chat-1" {
			t.Errorf("AddMessage() ChatID = %q, want %q", stored.ChatID, "chat-1")
		}
	}

	messages, err = db.Messages(ctx, "chat-1")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != len(contents) {
		t.Fatalf("Messages() returned %d messages, want %d", len(messages), len(contents))
	}
	for i, msg := range messages {
		if msg.Content != contents[i] {
			t.Errorf("Messages()[%d].Content = %q, want %q (write order)", i, msg.Content, contents[i])
		}
		if i > 0 && msg.Timestamp.Before(messages[i-1].Timestamp) {
			t.Errorf("Messages()[%d] out of timestamp order", i)
		}
	}

	if _, err := db.Messages(ctx, "missing"); !errors.Is(err, models.ErrChatNotFound) {
		t.Errorf("Messages() error = %v, want ErrChatNotFound", err)
	}

	if _, err := db.AddMessage(ctx, "missing", models.Message{}); !errors.Is(err, models.ErrChatNotFound) {
		t.Errorf("AddMessage() error = %v, want ErrChatNotFound", err)
	}
}

func TestBoltDBDeleteChatCascades(t *testing.T) {
	db := testBoltDB(t)
	ctx := context.Background()

	if err := db.AddChat(ctx, models.Chat{ID: "chat-1", Title: "Chat"}); err != nil {
		t.Fatalf("AddChat() error = %v", err)
	}
	if _, err := db.AddMessage(ctx, "chat-1", models.Message{
		Role:      models.RoleUser,
		Content:   "Hello",
		Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}

	if err := db.DeleteChat(ctx, "chat-1"); err != nil {
		t.Fatalf("DeleteChat() error = %v", err)
	}

	if _, err := db.Chat(ctx, "chat-1"); !errors.Is(err, models.ErrChatNotFound) {
		t.Errorf("Chat() after delete error = %v, want ErrChatNotFound", err)
	}
	if _, err := db.Messages(ctx, "chat-1"); !errors.Is(err, models.ErrChatNotFound) {
		t.Errorf("Messages() after delete error = %v, want ErrChatNotFound", err)
	}

	if err := db.DeleteChat(ctx, "chat-1"); !errors.Is(err, models.ErrChatNotFound) {
		t.Errorf("DeleteChat() on missing chat error = %v, want ErrChatNotFound", err)
	}
}
