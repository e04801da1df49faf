package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(baseURL string) *Client {
	return &Client{
		BaseURL:   baseURL,
		APIKey:    "test-key",
		Model:     "gpt-4o",
		MaxTokens: 1024,
		Client:    &http.Client{Timeout: 5 * time.Second},
	}
}

func TestChat(t *testing.T) {
	var gotReq ChatRequest
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ChatResponse{
			ID: "chatcmpl-1",
			Choices: []Choice{
				{Message: ChatMessage{Role: "assistant", Content: "hello"}},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	got, err := client.Chat(context.Background(), []ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello" {
		t.Fatalf("unexpected content: %q", got)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o" || len(gotReq.Messages) != 2 || gotReq.MaxTokens != 1024 {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
}

func TestChatAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChatResponse{
			Error: &APIError{Message: "invalid api key", Type: "auth_error"},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Chat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	if err == nil || !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestChatEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChatResponse{ID: "chatcmpl-2"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Chat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestChatContextCancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := client.Chat(ctx, []ChatMessage{{Role: "user", Content: "hi"}})
		errCh <- err
	}()

	<-started
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected cancellation error")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("chat did not return after cancel")
	}
}
