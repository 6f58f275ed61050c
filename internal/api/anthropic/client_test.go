package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ShivankK26/ai-voice-agent/internal/testutil"
)

func TestCreateMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}

		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("expected x-api-key header to be 'test-key', got %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("expected anthropic-version header to be set")
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{
  "id": "msg_123",
  "type": "message",
  "role": "assistant",
  "content": [{"type": "text", "text": "Hello!"}],
  "model": "claude-opus-4-1-20250805",
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 10, "output_tokens": 5}
}`)
	}))
	defer ts.Close()

	c := NewClient("test-key", WithBaseURL(ts.URL))

	temp := float32(0.7)
	resp, err := c.CreateMessage(context.Background(), &MessagesRequest{
		Model:       "claude-opus-4-1-20250805",
		Messages:    []Message{{Role: "user", Content: ContentBlock{{Type: "text", Text: "Hello"}}}},
		MaxTokens:   100,
		Temperature: &temp,
	})
	if err != nil {
		t.Fatalf("CreateMessage returned error: %v", err)
	}

	if resp.ID != "msg_123" {
		t.Errorf("unexpected ID: %s", resp.ID)
	}
	if resp.Text() != "Hello!" {
		t.Errorf("unexpected text: %q", resp.Text())
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 5 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
}

func TestCreateMessageAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	}))
	defer ts.Close()

	c := NewClient("test-key", WithBaseURL(ts.URL))

	_, err := c.CreateMessage(context.Background(), &MessagesRequest{
		Model:     "claude-opus-4-1-20250805",
		Messages:  []Message{{Role: "user", Content: ContentBlock{{Type: "text", Text: "Hi"}}}},
		MaxTokens: 10,
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Type != "overloaded_error" {
		t.Errorf("unexpected error type: %s", apiErr.Type)
	}
}

func TestCreateMessageRecorded(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "create_message")
	defer cleanup()

	c := NewClient("test-key", WithHTTPClient(testutil.VCRHTTPClient(r)))

	resp, err := c.CreateMessage(context.Background(), &MessagesRequest{
		Model:     "claude-opus-4-1-20250805",
		Messages:  []Message{{Role: "user", Content: ContentBlock{{Type: "text", Text: "Customer said: \"I can't pay right now\""}}}},
		MaxTokens: 200,
	})
	if err != nil {
		t.Fatalf("CreateMessage returned error: %v", err)
	}

	if resp.StopReason != "end_turn" {
		t.Errorf("unexpected stop reason: %s", resp.StopReason)
	}
	if resp.Text() == "" {
		t.Error("expected non-empty completion text")
	}
}
