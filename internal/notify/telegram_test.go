package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTelegramSender_Send(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewTelegramSender("test-token", WithTelegramBaseURL(server.URL))
	if err := s.Send(context.Background(), "chat-42", "Price alert", "details"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotPayload["chat_id"] != "chat-42" {
		t.Errorf("chat_id = %v", gotPayload["chat_id"])
	}
	if gotPayload["text"] != "Price alert\n\ndetails" {
		t.Errorf("text = %v", gotPayload["text"])
	}
}

func TestTelegramSender_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer server.Close()

	s := NewTelegramSender("test-token", WithTelegramBaseURL(server.URL))
	if err := s.Send(context.Background(), "chat-42", "subject", "body"); err == nil {
		t.Error("expected error on non-200 response")
	}
}
