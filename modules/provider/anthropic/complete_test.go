package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/quillworks/quill/internal/provider"
)

func TestComplete_Text(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "A concise synopsis."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 40, "output_tokens": 8}
		}`))
	}))
	defer srv.Close()

	a := newTestProvider(srv.URL)

	out, err := a.Complete(context.Background(), provider.Request{
		Prompt: "Condense this.",
		Params: provider.Params{MaxTokens: 1000, System: "You are terse."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "A concise synopsis." {
		t.Errorf("Complete() = %q", out)
	}

	if got := gotBody["max_tokens"]; got != float64(1000) {
		t.Errorf("request max_tokens = %v, want 1000", got)
	}
	if _, ok := gotBody["system"]; !ok {
		t.Error("request missing system field")
	}
}

func TestComplete_DefaultMaxTokens(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_2",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "ok"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 4, "output_tokens": 1}
		}`))
	}))
	defer srv.Close()

	a := newTestProvider(srv.URL)

	if _, err := a.Complete(context.Background(), provider.Request{Prompt: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := gotBody["max_tokens"]; got != float64(4096) {
		t.Errorf("request max_tokens = %v, want config default 4096", got)
	}
}

func newTestProvider(baseURL string) *Anthropic {
	client := sdkanthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
	return &Anthropic{
		config: Config{
			Model:     "claude-sonnet-4-5-20250929",
			MaxTokens: 4096,
		},
		client:        &client,
		contextWindow: 200_000,
	}
}
