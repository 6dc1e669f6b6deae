package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"aichat-backend/internal/models"
	"github.com/ollama/ollama/api"
)

func testOllama(t *testing.T, handler http.HandlerFunc) *Ollama {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewOllama(srv.URL, "test-model", testLogger())
}

func writeChatChunks(w http.ResponseWriter, contents ...string) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, content := range contents {
		_ = enc.Encode(api.ChatResponse{
			Model:   "test-model",
			Message: api.Message{Role: "assistant", Content: content},
		})
	}
	_ = enc.Encode(api.ChatResponse{
		Model:   "test-model",
		Message: api.Message{Role: "assistant"},
		Done:    true,
	})
}

func TestOllamaStream(t *testing.T) {
	o := testOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		writeChatChunks(w, "Hello", " ", " there!")
	})

	got := collect(o.Stream(context.Background(), "Hello", nil))

	// The whitespace-only chunk is dropped; the rest arrive verbatim and in order.
	if want := []string{"Hello", " there!"}; !slices.Equal(got, want) {
		t.Errorf("Stream() = %v, want %v", got, want)
	}
}

func TestOllamaStreamCapsHistory(t *testing.T) {
	var gotReq api.ChatRequest
	o := testOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeChatChunks(w, "ok")
	})

	history := make([]models.Message, 20)
	for i := range history {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleBot
		}
		history[i] = historyMessage(role, fmt.Sprintf("Message %d", i))
	}

	got := collect(o.Stream(context.Background(), "Hello", history))

	if len(got) == 0 {
		t.Fatal("Stream() should still succeed with a long history")
	}
	if len(gotReq.Messages) != ollamaHistoryLimit+1 {
		t.Fatalf("request carried %d turns, want %d", len(gotReq.Messages), ollamaHistoryLimit+1)
	}
	if last := gotReq.Messages[len(gotReq.Messages)-1]; last.Content != "Hello" || last.Role != "user" {
		t.Errorf("final turn = %+v, want the prompt as a user turn", last)
	}
}

func TestOllamaStreamFailure(t *testing.T) {
	o := testOllama(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	got := collect(o.Stream(context.Background(), "Hello", nil))

	if len(got) != 1 {
		t.Fatalf("Stream() yielded %d fragments, want exactly 1", len(got))
	}
	if !strings.HasPrefix(got[0], "Error: ") {
		t.Errorf("Stream() = %q, want an Error fragment", got[0])
	}
}

func TestOllamaStreamAbandoned(t *testing.T) {
	o := testOllama(t, func(w http.ResponseWriter, _ *http.Request) {
		writeChatChunks(w, "one", "two", "three", "four")
	})

	var got []string
	for fragment := range o.Stream(context.Background(), "Hello", nil) {
		got = append(got, fragment)
		break
	}

	// Abandoning the sequence early must not leak or deadlock the worker; reaching
	// this point means the producing goroutine was drained and joined.
	if want := []string{"one"}; !slices.Equal(got, want) {
		t.Errorf("Stream() = %v, want %v", got, want)
	}
}

func TestOllamaInitBadHost(t *testing.T) {
	o := NewOllama("://bad-url", "test-model", testLogger())

	got := collect(o.Stream(context.Background(), "Hello", nil))

	if len(got) != 1 || !strings.HasPrefix(got[0], "Error: ") {
		t.Errorf("Stream() = %v, want a single Error fragment", got)
	}
}
