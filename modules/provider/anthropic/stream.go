package anthropic

import (
	"context"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/quillworks/quill/internal/provider"
)

// streamBufferSize matches the worker's consumption pattern; a small
// buffer smooths SSE bursts without hiding backpressure.
const streamBufferSize = 16

// Generate sends a streaming request and returns a channel of chunks.
// The channel is closed when the stream ends or an error occurs. Initial
// connection errors are returned directly; mid-stream errors arrive via
// Chunk.Err.
func (a *Anthropic) Generate(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	params := convertRequest(req, &a.config)

	stream := a.client.Messages.NewStreaming(ctx, params)

	// Consume the first event synchronously to surface initial connection
	// errors (auth, network, 4xx) directly to the caller, as the Provider
	// contract requires.
	if !stream.Next() {
		err := stream.Err()
		_ = stream.Close()
		if err != nil {
			return nil, mapError(err)
		}
		// Stream ended without error or events.
		ch := make(chan provider.Chunk)
		close(ch)
		return ch, nil
	}

	firstEvent := stream.Current()

	ch := make(chan provider.Chunk, streamBufferSize)

	go func() {
		defer close(ch)
		defer func() { _ = stream.Close() }()

		a.consumeStreamWithFirst(ctx, stream, firstEvent, ch)
	}()

	return ch, nil
}

// consumeStreamWithFirst processes the already-consumed first event, then
// continues consuming the rest of the stream.
func (a *Anthropic) consumeStreamWithFirst(
	ctx context.Context,
	stream *ssestream.Stream[sdkanthropic.MessageStreamEventUnion],
	firstEvent sdkanthropic.MessageStreamEventUnion,
	ch chan<- provider.Chunk,
) {
	var inputTokens int64

	processEvent(ctx, &inputTokens, firstEvent, ch)

	for stream.Next() {
		if ctx.Err() != nil {
			return
		}
		processEvent(ctx, &inputTokens, stream.Current(), ch)
	}

	if err := stream.Err(); err != nil {
		emit(ctx, ch, provider.Chunk{Err: mapError(err)})
	}
}

// processEvent maps a single SSE event to at most one chunk. Text deltas
// are forwarded immediately; the final message delta carries the finish
// reason and usage.
func processEvent(ctx context.Context, inputTokens *int64, event sdkanthropic.MessageStreamEventUnion, ch chan<- provider.Chunk) {
	switch ev := event.AsAny().(type) {
	case sdkanthropic.MessageStartEvent:
		*inputTokens = ev.Message.Usage.InputTokens

	case sdkanthropic.ContentBlockDeltaEvent:
		if delta, ok := ev.Delta.AsAny().(sdkanthropic.TextDelta); ok {
			emit(ctx, ch, provider.Chunk{Text: delta.Text})
		}

	case sdkanthropic.MessageDeltaEvent:
		outputTokens := ev.Usage.OutputTokens
		emit(ctx, ch, provider.Chunk{
			FinishReason: convertStopReason(ev.Delta.StopReason),
			Usage: &provider.TokenUsage{
				PromptTokens:     int(*inputTokens),
				CompletionTokens: int(outputTokens),
				TotalTokens:      int(*inputTokens + outputTokens),
			},
		})
	}
}

// emit sends a chunk to the channel, respecting context cancellation.
func emit(ctx context.Context, ch chan<- provider.Chunk, chunk provider.Chunk) {
	select {
	case ch <- chunk:
	case <-ctx.Done():
	}
}
