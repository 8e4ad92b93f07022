package engine

import (
	"context"
	"strings"
	"time"

	"github.com/quillworks/quill/internal/metrics"
	"github.com/quillworks/quill/internal/prompt"
)

// Token-limit recovery resolves a context-window overflow through the
// first applicable path:
//
//  1. A cached summary for the unit, when one exists: retry immediately.
//  2. An automatic summarize call under a hard deadline: retry with the
//     fresh summary, which is also cached for next time.
//  3. The manual path: the failure is surfaced to subscribers and the
//     user chooses between sending an edited summary and truncating the
//     context.
//
// Every recovery action is keyed to the ID of the task that overflowed.
// If the user dispatches something new while recovery is in flight, the
// late action becomes a no-op.

// beginRecovery claims the recovery slot for the failed task. It fails
// when recovery is already running, when the task is no longer current,
// or when there is no dispatch to rebuild from.
func (e *Engine) beginRecovery(taskID string) (dispatchState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recovering || e.last == nil {
		return dispatchState{}, false
	}
	if e.active == nil || e.active.Task().ID != taskID {
		return dispatchState{}, false
	}
	e.recovering = true
	return *e.last, true
}

// endRecovery releases the recovery slot. It fails when the slot was
// already released or the task was superseded, in which case the caller
// must drop its action.
func (e *Engine) endRecovery(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.recovering || e.active == nil || e.active.Task().ID != taskID {
		return false
	}
	e.recovering = false
	return true
}

func (e *Engine) recoverFromOverflow(taskID string, tle TokenLimitError, last dispatchState) {
	log := e.logger.With("task", taskID)

	cache := e.summaryStore()
	if cache != nil && last.UnitID != "" {
		text, ok, err := cache.Summary(context.Background(), last.UnitID)
		if err != nil {
			log.Warn("summary cache lookup failed", "unit", last.UnitID, "error", err)
		}
		if ok && strings.TrimSpace(text) != "" {
			log.Info("retrying with cached summary", "unit", last.UnitID)
			metrics.RecoveriesTotal.WithLabelValues("cached_summary").Inc()
			e.retryWithDocument(taskID, last, text)
			return
		}
	}

	if e.summarizer == nil || strings.TrimSpace(last.DocumentText) == "" {
		log.Info("no automatic recovery available, surfacing manual path")
		metrics.RecoveriesTotal.WithLabelValues("manual").Inc()
		e.manualFallback(taskID, tle)
		return
	}

	log.Info("generating summary to fit token limit",
		"timeout", e.summaryTimeout.String())

	type result struct {
		text string
		err  error
	}
	resCh := make(chan result, 1)
	sumCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		text, err := e.summarizer.Summarize(sumCtx, last.DocumentText)
		resCh <- result{text: text, err: err}
	}()

	timer := time.NewTimer(e.summaryTimeout)
	defer timer.Stop()

	select {
	case res := <-resCh:
		if res.err != nil {
			log.Warn("automatic summary failed", "error", res.err)
			metrics.RecoveriesTotal.WithLabelValues("manual").Inc()
			e.manualFallback(taskID, tle)
			return
		}
		if res.text == "" {
			log.Warn("automatic summary came back empty")
			metrics.RecoveriesTotal.WithLabelValues("manual").Inc()
			e.manualFallback(taskID, tle)
			return
		}
		if cache != nil && last.UnitID != "" {
			if err := cache.SaveSummary(context.Background(), last.UnitID, res.text); err != nil {
				log.Warn("caching summary failed", "unit", last.UnitID, "error", err)
			}
		}
		metrics.RecoveriesTotal.WithLabelValues("auto_summary").Inc()
		e.retryWithDocument(taskID, last, res.text)

	case <-timer.C:
		// The summary never arrives in time; the user decides instead of
		// the engine waiting indefinitely. The summarize call is
		// cancelled on return.
		log.Warn("summary deadline passed", "timeout", e.summaryTimeout.String())
		metrics.RecoveriesTotal.WithLabelValues("summary_timeout").Inc()
		e.summaryPending(taskID)
	}
}

// retryWithDocument re-dispatches the retained request with doc standing
// in for the original document text. No-op when superseded.
func (e *Engine) retryWithDocument(taskID string, last dispatchState, doc string) {
	promptText, err := prompt.Assemble(last.Config, last.ActionBeats, last.Vars, doc, "")
	if err != nil {
		e.recoveryFailed(taskID, err)
		return
	}
	if _, ok := e.startTask(promptText, last.Config, true, taskID); !ok {
		e.logger.Debug("recovery retry superseded", "task", taskID)
	}
}

// recoveryFailed surfaces a recovery-side failure that is not itself a
// token-limit overflow, such as the retry prompt failing to assemble.
// No-op when superseded.
func (e *Engine) recoveryFailed(taskID string, err error) {
	if !e.endRecovery(taskID) {
		return
	}
	e.logger.Error("recovery failed", "task", taskID, "error", err)
	e.broadcast(Event{Type: EventError, TaskID: taskID, Error: err.Error()})
}

// manualFallback surfaces the original failure so the UI can offer the
// summary and truncation choices. No-op when superseded.
func (e *Engine) manualFallback(taskID string, tle TokenLimitError) {
	if !e.endRecovery(taskID) {
		return
	}
	e.broadcast(Event{Type: EventTokenLimit, TaskID: taskID, TokenLimit: &tle})
}

// summaryPending tells subscribers the automatic summary is late and the
// user has to supply one instead. No-op when superseded.
func (e *Engine) summaryPending(taskID string) {
	if !e.endRecovery(taskID) {
		return
	}
	e.broadcast(Event{Type: EventSummaryPending, TaskID: taskID})
}
