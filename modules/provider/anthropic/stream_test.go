package anthropic

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quillworks/quill/internal/provider"
)

func sseHandler(t *testing.T, events []string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("expected http.Flusher")
		}
		for _, ev := range events {
			_, _ = w.Write([]byte(ev + "\n\n"))
			flusher.Flush()
		}
	}
}

func TestGenerate_TextStream(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		"event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\",\"type\":\"message\",\"role\":\"assistant\",\"content\":[],\"model\":\"claude-sonnet-4-5-20250929\",\"stop_reason\":null,\"stop_sequence\":null,\"usage\":{\"input_tokens\":10,\"output_tokens\":0}}}",
		"event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}",
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"The door \"}}",
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"creaks open.\"}}",
		"event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}",
		"event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\",\"stop_sequence\":null},\"usage\":{\"output_tokens\":5}}",
		"event: message_stop\ndata: {\"type\":\"message_stop\"}",
	}))
	defer srv.Close()

	a := newTestProvider(srv.URL)

	ch, err := a.Generate(context.Background(), provider.Request{Prompt: "Continue the story."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var text strings.Builder
	var usage *provider.TokenUsage
	var finishReason provider.FinishReason

	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
		text.WriteString(chunk.Text)
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if chunk.FinishReason != "" {
			finishReason = chunk.FinishReason
		}
	}

	if text.String() != "The door creaks open." {
		t.Errorf("streamed text = %q", text.String())
	}
	if finishReason != provider.FinishReasonStop {
		t.Errorf("finish reason = %q, want stop", finishReason)
	}
	if usage == nil {
		t.Fatal("expected usage chunk")
	}
	if usage.PromptTokens != 10 || usage.CompletionTokens != 5 || usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestGenerate_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("expected http.Flusher")
		}

		// Send first event then hang.
		_, _ = w.Write([]byte("event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_3\",\"type\":\"message\",\"role\":\"assistant\",\"content\":[],\"model\":\"claude-sonnet-4-5-20250929\",\"stop_reason\":null,\"stop_sequence\":null,\"usage\":{\"input_tokens\":5,\"output_tokens\":0}}}\n\n"))
		flusher.Flush()

		time.Sleep(5 * time.Second)
	}))
	defer srv.Close()

	a := newTestProvider(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	ch, err := a.Generate(ctx, provider.Request{Prompt: "Continue."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Channel should close shortly after the context deadline.
	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()

	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timer.C:
			t.Fatal("stream channel not closed within timeout")
		}
	}
}

func TestGenerate_InitialAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid api key"}}`))
	}))
	defer srv.Close()

	a := newTestProvider(srv.URL)

	// Initial connection errors are returned directly, not via channel.
	if _, err := a.Generate(context.Background(), provider.Request{Prompt: "hi"}); err == nil {
		t.Fatal("expected initial error from Generate, got nil")
	}
}

func TestGenerate_RateLimitInitial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"rate limited"}}`))
	}))
	defer srv.Close()

	a := newTestProvider(srv.URL)

	_, err := a.Generate(context.Background(), provider.Request{Prompt: "hi"})
	if !errors.Is(err, provider.ErrRateLimit) {
		t.Errorf("expected ErrRateLimit, got %v", err)
	}
}

func TestGenerate_TokenLimitInitial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long: 210000 tokens > 200000 maximum"}}`))
	}))
	defer srv.Close()

	a := newTestProvider(srv.URL)

	_, err := a.Generate(context.Background(), provider.Request{Prompt: "hi"})
	if !errors.Is(err, provider.ErrTokenLimit) {
		t.Errorf("expected ErrTokenLimit, got %v", err)
	}
}

func TestGenerate_OtherBadRequestIsNotTokenLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"temperature must be between 0 and 1"}}`))
	}))
	defer srv.Close()

	a := newTestProvider(srv.URL)

	_, err := a.Generate(context.Background(), provider.Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.Is(err, provider.ErrTokenLimit) {
		t.Errorf("plain bad request misclassified as token limit: %v", err)
	}
}
