// Package provider defines the Provider interface for communicating with
// text-generation services and the Aggregator that selects a provider by
// role and supports interrupting the in-flight generation call.
package provider

import (
	"context"
	"log/slog"
)

// nopHandler is a slog.Handler that discards all log records.
// Enabled returns false so slog skips formatting entirely (zero cost).
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool {
	return false
}

func (nopHandler) Handle(context.Context, slog.Record) error {
	return nil
}

func (nopHandler) WithAttrs([]slog.Attr) slog.Handler {
	return nopHandler{}
}

func (nopHandler) WithGroup(string) slog.Handler {
	return nopHandler{}
}

// Provider is the interface for communicating with a text-generation service.
// Concrete implementations live in separate packages (e.g. provider.anthropic)
// and typically also implement core.Module for lifecycle management.
type Provider interface {
	// Generate sends a generation request and returns a channel of chunks.
	// Initial connection errors are returned directly. Mid-stream errors
	// are delivered via Chunk.Err. The channel is closed when the stream
	// ends or the context is cancelled.
	Generate(ctx context.Context, req Request) (<-chan Chunk, error)

	// Complete sends a generation request and returns the full response text.
	Complete(ctx context.Context, req Request) (string, error)

	// ContextWindowSize returns the maximum context window in tokens.
	ContextWindowSize() int

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}
