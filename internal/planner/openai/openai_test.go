package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sakif/analysis-engine/internal/planner"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected Bearer auth, got %q", r.Header.Get("Authorization"))
		}

		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "qwen-max" {
			t.Errorf("expected model qwen-max, got %q", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" {
			t.Errorf("expected system role first, got %q", req.Messages[0].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"{\"action\":\"compute\"}"}}]}`)
	}))
	defer srv.Close()

	client := NewClient("test-key", "qwen-max", discardLogger(), WithBaseURL(srv.URL))
	text, err := client.Send(context.Background(), []planner.Message{
		{Role: planner.RoleSystem, Content: "contract"},
		{Role: planner.RoleUser, Content: "context"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != `{"action":"compute"}` {
		t.Errorf("unexpected response text: %q", text)
	}
}

func TestSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	client := NewClient("test-key", "qwen-max", discardLogger(), WithBaseURL(srv.URL))
	_, err := client.Send(context.Background(), []planner.Message{
		{Role: planner.RoleUser, Content: "context"},
	})
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestSendNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	client := NewClient("", "qwen-max", discardLogger(), WithBaseURL(srv.URL))
	_, err := client.Send(context.Background(), []planner.Message{
		{Role: planner.RoleUser, Content: "context"},
	})
	if err == nil {
		t.Fatal("expected error when no choices are returned")
	}
}
