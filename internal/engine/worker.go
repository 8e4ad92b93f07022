package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/quillworks/quill/internal/provider"
)

// State is the lifecycle position of a Worker.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// ErrNotIdle indicates Start was called on a worker that already ran.
// Workers are single-use.
var ErrNotIdle = errors.New("engine: worker is not idle")

// stopGrace bounds how long Stop waits for the stream goroutine to wind
// down after cancellation. A stuck provider call must not wedge the
// caller.
const stopGrace = 5 * time.Second

// Generator is the slice of the provider aggregator the worker needs.
type Generator interface {
	Generate(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error)
	Interrupt()
}

// Worker runs a single generation task and forwards its stream to a Sink.
// Single-use: Start transitions Idle to Running exactly once, and exactly
// one terminal event is emitted no matter how the task ends. All emission
// happens under the worker's lock, so once a terminal state is set no
// further events reach the sink.
type Worker struct {
	task   Task
	gen    Generator
	sink   Sink
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	partial strings.Builder

	terminalOnce sync.Once
	done         chan struct{}
}

// NewWorker creates an idle worker for the task. A nil logger discards
// output.
func NewWorker(task Task, gen Generator, sink Sink, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(nopHandler{})
	}
	return &Worker{
		task:   task,
		gen:    gen,
		sink:   sink,
		logger: logger.With("task", task.ID),
		done:   make(chan struct{}),
	}
}

// Task returns the worker's task.
func (w *Worker) Task() Task {
	return w.task
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Partial returns the prose streamed so far.
func (w *Worker) Partial() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.partial.String()
}

// Done is closed when the stream goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Start begins the generation. It fails with ErrNotIdle on reuse.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateIdle {
		w.mu.Unlock()
		return ErrNotIdle
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.state = StateRunning
	w.cancel = cancel
	w.mu.Unlock()

	w.logger.Debug("worker started")
	go w.run(runCtx)
	return nil
}

// Stop requests cancellation. It moves the worker to StateCancelled unless
// a terminal state was already reached, emits the cancelled event if this
// call wins the terminal race, and returns immediately; once it returns
// the sink observes no further events from this worker. Idempotent, and a
// no-op on a worker that never started. Use Wait to block for goroutine
// wind-down.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.state == StateIdle {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.gen.Interrupt()
	w.terminal(StateCancelled, Event{Type: EventCancelled, TaskID: w.task.ID})
}

// Wait blocks until the stream goroutine exits or the grace period
// elapses. Reports false on timeout.
func (w *Worker) Wait(grace time.Duration) bool {
	select {
	case <-w.done:
		return true
	case <-time.After(grace):
		w.logger.Warn("worker did not wind down within grace period",
			"grace", grace.String())
		return false
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	ch, err := w.gen.Generate(ctx, provider.Request{
		Prompt: w.task.Prompt,
		Params: w.task.Config.Params(),
	})
	if err != nil {
		w.fail(ctx, err)
		return
	}

	for chunk := range ch {
		if chunk.Err != nil {
			w.fail(ctx, chunk.Err)
			for range ch {
				// drain so the producer can exit
			}
			return
		}
		if chunk.Text != "" {
			w.emitChunk(chunk.Text)
		}
	}

	if ctx.Err() != nil {
		w.terminal(StateCancelled, Event{Type: EventCancelled, TaskID: w.task.ID})
		return
	}
	w.terminal(StateCompleted, Event{Type: EventFinished, TaskID: w.task.ID})
}

// emitChunk forwards one text increment. Chunks arriving after a terminal
// state are dropped.
func (w *Worker) emitChunk(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateRunning {
		return
	}
	w.partial.WriteString(text)
	w.sink.Emit(Event{Type: EventChunk, TaskID: w.task.ID, Text: text})
}

// fail maps a stream error to its terminal event. Cancellation is not a
// failure, and token-limit errors carry the retry state.
func (w *Worker) fail(ctx context.Context, err error) {
	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		w.terminal(StateCancelled, Event{Type: EventCancelled, TaskID: w.task.ID})
	case errors.Is(err, provider.ErrTokenLimit):
		w.logger.Warn("token limit exceeded", "error", err)
		w.terminal(StateFailed, Event{
			Type:   EventTokenLimit,
			TaskID: w.task.ID,
			TokenLimit: &TokenLimitError{
				Message:   err.Error(),
				Prompt:    w.task.Prompt,
				Config:    w.task.Config,
				Partial:   w.partial.String(),
				MaxTokens: w.task.Config.MaxTokensOrDefault(),
			},
		})
	default:
		w.logger.Error("generation failed", "error", err)
		w.terminal(StateFailed, Event{Type: EventError, TaskID: w.task.ID, Error: err.Error()})
	}
}

// terminal sets the final state and emits the terminal event, exactly
// once across all callers.
func (w *Worker) terminal(state State, ev Event) {
	w.terminalOnce.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.state = state
		w.sink.Emit(ev)
		w.logger.Debug("worker finished", "state", state.String())
	})
}
