// Package store defines the persistence contracts the engine and gateway
// depend on. Implementations live under modules/store.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// SummaryStore caches per-unit document summaries produced during
// token-limit recovery so later overflows can skip the summarize call.
type SummaryStore interface {
	// Summary returns the cached summary for a structural unit.
	// ok is false when no summary is cached.
	Summary(ctx context.Context, unitID string) (text string, ok bool, err error)

	// SaveSummary stores or replaces the summary for a unit.
	SaveSummary(ctx context.Context, unitID, text string) error

	// PruneSummaries deletes summaries not touched since the cutoff and
	// returns how many were removed.
	PruneSummaries(ctx context.Context, cutoff time.Time) (int, error)
}

// DraftStore persists per-project action-beat drafts so an interrupted
// session can restore what the user was typing.
type DraftStore interface {
	// Draft returns the saved draft for a project, or ErrNotFound.
	Draft(ctx context.Context, project string) (string, error)

	// SaveDraft stores or replaces the draft for a project.
	SaveDraft(ctx context.Context, project, text string) error
}
