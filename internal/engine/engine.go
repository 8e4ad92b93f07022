// Package engine dispatches prose-generation tasks, streams their output
// to subscribers, and recovers from provider token-limit failures.
//
// At most one task is active at a time. Dispatching while a task runs
// stops the old task first, so subscribers never interleave chunks from
// two tasks.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quillworks/quill/internal/metrics"
	"github.com/quillworks/quill/internal/prompt"
	"github.com/quillworks/quill/internal/store"
	"github.com/quillworks/quill/internal/token"
)

// Dispatch errors.
var (
	// ErrNoActionBeats indicates a dispatch without action-beat text.
	ErrNoActionBeats = errors.New("engine: no action beats provided")

	// ErrNothingToRetry indicates a retry with no prior dispatch to
	// rebuild from.
	ErrNothingToRetry = errors.New("engine: nothing to retry")

	// ErrEmptySummary indicates a manual summary retry with blank text.
	ErrEmptySummary = errors.New("engine: empty summary")
)

// defaultSummaryTimeout bounds the automatic summarize call during
// recovery. When it fires, the user gets the manual path instead of an
// engine stuck waiting on a slow model.
const defaultSummaryTimeout = 30 * time.Second

// defaultSubscriberBuffer is the per-subscriber event queue depth.
const defaultSubscriberBuffer = 64

// DispatchRequest is one generation request from the UI.
type DispatchRequest struct {
	// ActionBeats is the user's instruction text. Required.
	ActionBeats string `json:"action_beats"`

	// Config selects the prompt template and provider overrides.
	Config prompt.Config `json:"config"`

	// Vars fills the template's additional placeholders.
	Vars prompt.Vars `json:"vars,omitempty"`

	// DocumentText is the prior story text included as context.
	DocumentText string `json:"document_text,omitempty"`

	// ExtraContext is reference material appended after the story text.
	ExtraContext string `json:"extra_context,omitempty"`

	// UnitID identifies the structural unit the document text belongs
	// to; it keys the summary cache. Optional.
	UnitID string `json:"unit_id,omitempty"`
}

// dispatchState is the retained input of the most recent dispatch.
// Retries during recovery rebuild their prompt from it.
type dispatchState struct {
	ActionBeats  string
	Config       prompt.Config
	Vars         prompt.Vars
	DocumentText string
	ExtraContext string
	UnitID       string
}

// Options configures an Engine.
type Options struct {
	// Generator produces the prose stream. Required.
	Generator Generator

	// Tokenizer drives truncation during recovery. Defaults to the
	// built-in piece tokenizer.
	Tokenizer *token.Tokenizer

	// Summaries caches per-unit summaries. Optional; without it every
	// recovery summarizes from scratch.
	Summaries store.SummaryStore

	// Summarizer condenses document text during recovery. Optional;
	// without it token-limit failures go straight to the manual path.
	Summarizer Summarizer

	// Logger for engine activity. A nil logger discards output.
	Logger *slog.Logger

	// SummaryTimeout overrides the automatic summarize deadline.
	SummaryTimeout time.Duration
}

// Engine owns the single active generation task and its recovery flow.
type Engine struct {
	gen        Generator
	tok        *token.Tokenizer
	summaries  store.SummaryStore
	summarizer Summarizer
	logger     *slog.Logger

	summaryTimeout time.Duration

	mu         sync.Mutex
	active     *Worker
	last       *dispatchState
	recovering bool

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New creates an Engine from opts.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(nopHandler{})
	}
	tok := opts.Tokenizer
	if tok == nil {
		tok = token.NewTokenizer()
	}
	timeout := opts.SummaryTimeout
	if timeout <= 0 {
		timeout = defaultSummaryTimeout
	}
	return &Engine{
		gen:            opts.Generator,
		tok:            tok,
		summaries:      opts.Summaries,
		summarizer:     opts.Summarizer,
		logger:         logger,
		summaryTimeout: timeout,
		subs:           make(map[int]chan Event),
	}
}

// Dispatch starts a new generation task from the request, stopping any
// task already running. Returns the new task's ID.
func (e *Engine) Dispatch(req DispatchRequest) (string, error) {
	if strings.TrimSpace(req.ActionBeats) == "" {
		return "", ErrNoActionBeats
	}

	promptText, err := prompt.Assemble(
		req.Config, req.ActionBeats, req.Vars, req.DocumentText, req.ExtraContext,
	)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	e.last = &dispatchState{
		ActionBeats:  req.ActionBeats,
		Config:       req.Config,
		Vars:         req.Vars,
		DocumentText: req.DocumentText,
		ExtraContext: req.ExtraContext,
		UnitID:       req.UnitID,
	}
	e.mu.Unlock()

	id, _ := e.startTask(promptText, req.Config, false, "")
	return id, nil
}

// Cancel stops the active task, if any, and waits up to the stop grace
// period for it to wind down. Releasing the recovery slot here abandons
// any in-flight recovery: a summary arriving later will not re-dispatch.
// Safe to call when nothing is running.
func (e *Engine) Cancel() {
	e.mu.Lock()
	w := e.active
	e.recovering = false
	e.mu.Unlock()

	if w == nil {
		return
	}
	w.Stop()
	w.Wait(stopGrace)
}

// RetryWithSummary re-dispatches the last request with summary standing
// in for the document text. This is the manual recovery path; the summary
// is cached for the unit when a store is configured.
func (e *Engine) RetryWithSummary(summary string) (string, error) {
	if strings.TrimSpace(summary) == "" {
		return "", ErrEmptySummary
	}

	e.mu.Lock()
	last := e.last
	e.mu.Unlock()
	if last == nil {
		return "", ErrNothingToRetry
	}

	if cache := e.summaryStore(); cache != nil && last.UnitID != "" {
		if err := cache.SaveSummary(context.Background(), last.UnitID, summary); err != nil {
			e.logger.Warn("caching manual summary failed", "unit", last.UnitID, "error", err)
		}
	}

	promptText, err := prompt.Assemble(last.Config, last.ActionBeats, last.Vars, summary, "")
	if err != nil {
		return "", err
	}

	metrics.RecoveriesTotal.WithLabelValues("manual_summary").Inc()
	id, _ := e.startTask(promptText, last.Config, true, "")
	return id, nil
}

// RetryWithTruncatedContext re-dispatches the last request with the
// document cut down to a trailing window of half the reply budget in
// tokens. The end of the document carries the immediate context the
// continuation needs, so the tail is what survives.
func (e *Engine) RetryWithTruncatedContext() (string, error) {
	e.mu.Lock()
	last := e.last
	e.mu.Unlock()
	if last == nil {
		return "", ErrNothingToRetry
	}

	window := last.Config.MaxTokensOrDefault() / 2
	doc := e.tok.TruncateTail(last.DocumentText, window)

	promptText, err := prompt.Assemble(last.Config, last.ActionBeats, last.Vars, doc, "")
	if err != nil {
		return "", err
	}

	metrics.RecoveriesTotal.WithLabelValues("manual_truncate").Inc()
	id, _ := e.startTask(promptText, last.Config, true, "")
	return id, nil
}

// Status describes the engine's current task for the status endpoint.
type Status struct {
	TaskID     string `json:"task_id,omitempty"`
	State      string `json:"state"`
	Recovering bool   `json:"recovering,omitempty"`
}

// Status reports the active task's lifecycle state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return Status{State: StateIdle.String()}
	}
	return Status{
		TaskID:     e.active.Task().ID,
		State:      e.active.State().String(),
		Recovering: e.recovering,
	}
}

// SetSummaryStore attaches the summary cache. Called during module
// wiring, before the first dispatch.
func (e *Engine) SetSummaryStore(s store.SummaryStore) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.summaries = s
}

func (e *Engine) summaryStore() store.SummaryStore {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summaries
}

// Close stops the active task. The engine must not be used afterwards.
func (e *Engine) Close() {
	e.Cancel()
}

// ---------------------------------------------------------------------------
// Subscriptions
// ---------------------------------------------------------------------------

// Subscribe registers an event listener. Events are delivered in order;
// a listener that falls behind its buffer loses events rather than
// stalling the stream. The returned func unsubscribes and closes the
// channel.
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	cancel := func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (e *Engine) broadcast(ev Event) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for id, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			e.logger.Warn("subscriber lagging, dropping event",
				"subscriber", id, "type", string(ev.Type))
		}
	}
}

// ---------------------------------------------------------------------------
// Task management
// ---------------------------------------------------------------------------

// startTask swaps in a new worker. When onlyIf is non-empty the swap is
// skipped unless the recovery slot is still claimed and the active task
// still carries that ID. Cancel and Dispatch both release the slot, so a
// recovery retry that loses the race to either becomes a no-op.
func (e *Engine) startTask(promptText string, cfg prompt.Config, recovered bool, onlyIf string) (string, bool) {
	task := Task{
		ID:        uuid.NewString(),
		Prompt:    promptText,
		Config:    cfg,
		Recovered: recovered,
	}
	w := NewWorker(task, e.gen, &workerSink{
		engine:    e,
		recovered: recovered,
		startedAt: time.Now(),
	}, e.logger)

	e.mu.Lock()
	if onlyIf != "" && (!e.recovering || e.active == nil || e.active.Task().ID != onlyIf) {
		e.mu.Unlock()
		return "", false
	}
	old := e.active
	e.active = w
	e.recovering = false
	e.mu.Unlock()

	if old != nil {
		old.Stop()
		go old.Wait(stopGrace)
	}

	if err := w.Start(context.Background()); err != nil {
		// Unreachable: the worker is fresh.
		e.logger.Error("worker start failed", "task", task.ID, "error", err)
		return "", false
	}
	metrics.GenerationsStarted.Inc()
	e.logger.Info("task dispatched", "task", task.ID, "recovered", recovered,
		"template", cfg.TemplateID)
	return task.ID, true
}

// workerSink routes one worker's events into the engine: broadcast to
// subscribers, metrics, and the token-limit recovery hook.
type workerSink struct {
	engine    *Engine
	recovered bool
	startedAt time.Time
}

func (s *workerSink) Emit(ev Event) {
	e := s.engine

	switch ev.Type {
	case EventChunk:
		metrics.ChunksTotal.Inc()
		metrics.ChunkBytes.Add(float64(len(ev.Text)))
	case EventFinished, EventError, EventCancelled:
		metrics.GenerationsFinished.WithLabelValues(string(ev.Type)).Inc()
		metrics.GenerationDuration.Observe(time.Since(s.startedAt).Seconds())
	case EventTokenLimit:
		metrics.GenerationsFinished.WithLabelValues(string(ev.Type)).Inc()
		metrics.GenerationDuration.Observe(time.Since(s.startedAt).Seconds())
		if !s.recovered {
			last, ok := e.beginRecovery(ev.TaskID)
			if !ok {
				// Superseded or already recovering: nothing to report.
				return
			}
			e.broadcast(Event{Type: EventRecovering, TaskID: ev.TaskID})
			go e.recoverFromOverflow(ev.TaskID, *ev.TokenLimit, last)
			return
		}
		// A recovered task overflowed again: hand the user the manual
		// path instead of looping.
		metrics.RecoveriesTotal.WithLabelValues("manual").Inc()
	}

	e.broadcast(ev)
}
