package services

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"aichat-backend/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the conversation store on a BoltDB backend. Chats live in a
// single "chats" bucket keyed by chat ID; each chat owns a message bucket whose keys
// are big-endian sequence numbers, so iteration order is exactly write order.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB creates a new BoltDB instance with the specified file path. The database
// file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte("chats"))
		return err
	})

	return BoltDB{db: db}, err
}

func messageBucketName(chatID string) []byte {
	return []byte(fmt.Sprintf("messages-%s", chatID))
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// AddChat stores a new chat record and creates its message bucket. The caller is
// responsible for assigning the chat ID.
func (b BoltDB) AddChat(_ context.Context, chat models.Chat) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte("chats"))

		if _, err := tx.CreateBucketIfNotExists(messageBucketName(chat.ID)); err != nil {
			return fmt.Errorf("failed to create message bucket: %w", err)
		}

		v, err := json.Marshal(chat)
		if err != nil {
			return fmt.Errorf("failed to marshal chat: %w", err)
		}

		return bkt.Put([]byte(chat.ID), v)
	})
}

// Chat retrieves a single chat record by ID, reporting models.ErrChatNotFound when
// no such chat exists.
func (b BoltDB) Chat(_ context.Context, chatID string) (models.Chat, error) {
	var chat models.Chat
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte("chats")).Get([]byte(chatID))
		if v == nil {
			return models.ErrChatNotFound
		}
		if err := json.Unmarshal(v, &chat); err != nil {
			return fmt.Errorf("failed to unmarshal chat: %w", err)
		}
		return nil
	})
	return chat, err
}

// Chats retrieves all stored chat records in creation order.
func (b BoltDB) Chats(context.Context) ([]models.Chat, error) {
	var chats []models.Chat
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte("chats")).ForEach(func(_, v []byte) error {
			var chat models.Chat
			if err := json.Unmarshal(v, &chat); err != nil {
				return fmt.Errorf("failed to unmarshal chat: %w", err)
			}
			chats = append(chats, chat)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return chats, nil
}

// DeleteChat removes a chat and cascades to all of its messages. Deleting a chat
// that doesn't exist reports models.ErrChatNotFound so callers can treat it as a
// nothing-to-do outcome rather than a fault.
func (b BoltDB) DeleteChat(_ context.Context, chatID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte("chats"))
		if bkt.Get([]byte(chatID)) == nil {
			return models.ErrChatNotFound
		}

		if err := bkt.Delete([]byte(chatID)); err != nil {
			return fmt.Errorf("failed to delete chat: %w", err)
		}

		if tx.Bucket(messageBucketName(chatID)) != nil {
			if err := tx.DeleteBucket(messageBucketName(chatID)); err != nil {
				return fmt.Errorf("failed to delete message bucket: %w", err)
			}
		}
		return nil
	})
}

// AddMessage appends a message to the chat's message bucket, assigning it the next
// sequence number as its ID. The stored key preserves write order, which keeps
// retrieval order consistent with timestamp order.
func (b BoltDB) AddMessage(_ context.Context, chatID string, message models.Message) (models.Message, error) {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(messageBucketName(chatID))
		if bkt == nil {
			return models.ErrChatNotFound
		}

		seq, err := bkt.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		message.ID = int64(seq)
		message.ChatID = chatID

		v, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		return bkt.Put(itob(seq), v)
	})
	if err != nil {
		return models.Message{}, err
	}
	return message, nil
}

// Messages retrieves all messages of a chat in write order. A chat with no messages
// yields an empty slice, not an error.
func (b BoltDB) Messages(_ context.Context, chatID string) ([]models.Message, error) {
	messages := []models.Message{}
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(messageBucketName(chatID))
		if bkt == nil {
			return models.ErrChatNotFound
		}

		return bkt.ForEach(func(_, v []byte) error {
			var message models.Message
			if err := json.Unmarshal(v, &message); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			messages = append(messages, message)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Close releases the underlying database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}
