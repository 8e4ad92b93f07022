package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quillworks/quill/internal/store"
)

// summaryStore implements store.SummaryStore backed by SQLite.
type summaryStore struct {
	db *sql.DB
}

// Summary returns the cached summary for a unit.
func (s *summaryStore) Summary(ctx context.Context, unitID string) (string, bool, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		"SELECT summary FROM summaries WHERE unit_id = ?", unitID,
	).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: read summary: %w", err)
	}
	return text, true, nil
}

// SaveSummary stores or replaces the summary for a unit and refreshes
// its timestamp.
func (s *summaryStore) SaveSummary(ctx context.Context, unitID, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (unit_id, summary, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(unit_id) DO UPDATE SET
			summary = excluded.summary,
			updated_at = excluded.updated_at`,
		unitID, text, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save summary: %w", err)
	}
	return nil
}

// PruneSummaries deletes summaries not touched since the cutoff.
func (s *summaryStore) PruneSummaries(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM summaries WHERE updated_at < ?", cutoff.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune summaries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return int(n), nil
}

// draftStore implements store.DraftStore backed by SQLite.
type draftStore struct {
	db *sql.DB
}

// Draft returns the saved draft for a project.
func (s *draftStore) Draft(ctx context.Context, project string) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		"SELECT text FROM drafts WHERE project = ?", project,
	).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: read draft: %w", err)
	}
	return text, nil
}

// SaveDraft stores or replaces the draft for a project.
func (s *draftStore) SaveDraft(ctx context.Context, project, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (project, text, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(project) DO UPDATE SET
			text = excluded.text,
			updated_at = excluded.updated_at`,
		project, text, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save draft: %w", err)
	}
	return nil
}
