package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quillworks/quill/internal/metrics"
	"github.com/quillworks/quill/internal/store"
)

// SummaryPruneJob removes cached summaries that have not been touched for
// longer than MaxAge. Stale summaries describe document text the user has
// since rewritten, so keeping them around only wastes space and risks a
// retry with an outdated synopsis.
type SummaryPruneJob struct {
	Store        store.SummaryStore
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"
}

// Compile-time interface check.
var _ Job = (*SummaryPruneJob)(nil)

// Name implements Job.
func (j *SummaryPruneJob) Name() string {
	return "summary_prune"
}

// Schedule implements Job.
func (j *SummaryPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run prunes summaries older than MaxAge.
func (j *SummaryPruneJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-j.MaxAge)
	pruned, err := j.Store.PruneSummaries(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cron: prune summaries: %w", err)
	}
	if pruned > 0 {
		metrics.SummariesPruned.Add(float64(pruned))
		j.Logger.Info("cron: pruned stale summaries", "count", pruned, "max_age", j.MaxAge.String())
	}
	return nil
}
