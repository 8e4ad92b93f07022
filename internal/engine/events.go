package engine

import "github.com/quillworks/quill/internal/prompt"

// EventType identifies a notification from the generation engine.
type EventType string

// Event types delivered to subscribers. For one task, chunk events arrive
// in generation order and exactly one terminal event (finished, error,
// token_limit, or cancelled) follows them.
const (
	// EventChunk carries one increment of streamed prose in Text.
	EventChunk EventType = "chunk"

	// EventFinished signals the stream ended normally.
	EventFinished EventType = "finished"

	// EventError carries a failure message in Error. Never used for
	// token-limit overflows or cancellation.
	EventError EventType = "error"

	// EventTokenLimit signals a context-window overflow that automatic
	// recovery could not resolve; TokenLimit carries the retry state the
	// UI needs for the manual path.
	EventTokenLimit EventType = "token_limit"

	// EventCancelled signals the task was stopped deliberately.
	EventCancelled EventType = "cancelled"

	// EventRecovering signals a token-limit failure that the engine is
	// handling automatically; a fresh task will follow.
	EventRecovering EventType = "recovering"

	// EventSummaryPending signals the auto-summary deadline passed before
	// a summary arrived. The user writes one and resends via the manual
	// retry endpoints.
	EventSummaryPending EventType = "summary_pending"
)

// Event is one notification from the engine to its subscribers.
type Event struct {
	Type       EventType        `json:"type"`
	TaskID     string           `json:"task_id,omitempty"`
	Text       string           `json:"text,omitempty"`
	Error      string           `json:"error,omitempty"`
	TokenLimit *TokenLimitError `json:"token_limit,omitempty"`
}

// TokenLimitError carries everything needed to retry after a
// context-window overflow.
type TokenLimitError struct {
	// Message is the provider's raw error text.
	Message string `json:"message"`

	// Prompt is the prompt that was rejected.
	Prompt string `json:"prompt"`

	// Config is the prompt configuration of the failed task.
	Config prompt.Config `json:"config"`

	// Partial is the prose streamed before the failure, if any.
	Partial string `json:"partial,omitempty"`

	// MaxTokens is the reply budget the truncation window derives from.
	MaxTokens int `json:"max_tokens"`
}

// Task is one generation dispatch. A Task is immutable once its worker
// starts; recovery re-dispatches create fresh tasks.
type Task struct {
	// ID is unique per dispatch.
	ID string

	// Prompt is the fully assembled prompt text.
	Prompt string

	// Config is the prompt configuration the task was dispatched with.
	Config prompt.Config

	// Recovered marks tasks created by the token-limit recovery flow.
	// A second overflow on a recovered task goes straight to the manual
	// path instead of looping through automatic recovery again.
	Recovered bool
}

// Sink receives worker events. Implementations must be fast and must not
// block: the worker emits while holding its state lock so that delivery
// order matches generation order and stops the instant the task stops.
type Sink interface {
	Emit(ev Event)
}
