package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quillworks/quill/internal/provider"
)

// oaiStreamChunk represents a single SSE chunk from the OpenAI streaming API.
type oaiStreamChunk struct {
	Choices []oaiStreamChoice `json:"choices"`
	Usage   *oaiUsage         `json:"usage,omitempty"`
}

type oaiStreamChoice struct {
	Delta        oaiStreamDelta `json:"delta"`
	FinishReason *string        `json:"finish_reason"`
}

type oaiStreamDelta struct {
	Content string `json:"content,omitempty"`
}

// parseSSEStream reads an SSE response body and emits chunks on the returned
// channel. The channel is closed when the stream ends, either by [DONE] or
// an error. Context cancellation is respected.
func (p *Provider) parseSSEStream(ctx context.Context, scanner *bufio.Scanner) <-chan provider.Chunk {
	ch := make(chan provider.Chunk, 16)

	go func() {
		defer close(ch)

		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				ch <- provider.Chunk{Err: err}
				return
			}

			line := scanner.Text()

			// SSE format: accept both "data: " (with space) and "data:" (without).
			// Some OpenAI-compatible providers omit the space after the colon.
			var data string
			switch {
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimPrefix(line, "data:")
			default:
				continue
			}

			// End of stream.
			if data == "[DONE]" {
				return
			}

			var chunk oaiStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				ch <- provider.Chunk{
					Err: fmt.Errorf("parse SSE chunk: %w", err),
				}
				return
			}

			sc := provider.Chunk{}

			if chunk.Usage != nil {
				sc.Usage = &provider.TokenUsage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}

			if len(chunk.Choices) > 0 {
				choice := chunk.Choices[0]

				if choice.Delta.Content != "" {
					sc.Text = choice.Delta.Content
				}

				if choice.FinishReason != nil {
					sc.FinishReason = mapFinishReason(*choice.FinishReason)
				}
			}

			// Only emit if there is actual content, a finish reason, or usage.
			if sc.Text != "" || sc.FinishReason != "" || sc.Usage != nil {
				ch <- sc
			}
		}

		// Scanner error (connection drop, etc.)
		if err := scanner.Err(); err != nil {
			// Do not classify context cancellation as provider failure.
			if ctx.Err() != nil {
				ch <- provider.Chunk{Err: ctx.Err()}
			} else {
				ch <- provider.Chunk{
					Err: fmt.Errorf("%w: stream read error: %w", provider.ErrProviderDown, err),
				}
			}
		}
	}()

	return ch
}
