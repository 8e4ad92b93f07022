package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quillworks/quill/internal/engine"
	"github.com/quillworks/quill/internal/store"
)

// maxBodySize caps API request bodies. Prompts carry whole chapters, so
// the limit is generous.
const maxBodySize = 4 << 20

// defaultProject is used when a draft request names no project.
const defaultProject = "default"

// taskResponse is the JSON response for endpoints that start a task.
type taskResponse struct {
	TaskID string `json:"task_id"`
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// handleGenerate returns the handler for POST /api/generate. It dispatches
// a new generation task, replacing any task already running.
func (g *Gateway) handleGenerate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req engine.DispatchRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		taskID, err := g.engine.Dispatch(req)
		if err != nil {
			if errors.Is(err, engine.ErrNoActionBeats) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			g.metrics.RecordError()
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		g.metrics.RecordGeneration()
		writeJSON(w, http.StatusAccepted, taskResponse{TaskID: taskID})
	}
}

// handleCancel returns the handler for POST /api/cancel.
func (g *Gateway) handleCancel() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		g.engine.Cancel()
		w.WriteHeader(http.StatusNoContent)
	}
}

// retrySummaryRequest is the JSON body for POST /api/retry/summary.
type retrySummaryRequest struct {
	Summary string `json:"summary"`
}

// handleRetrySummary returns the handler for POST /api/retry/summary. The
// caller supplies (or confirms) a summary to substitute for the document
// text of the last dispatch.
func (g *Gateway) handleRetrySummary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req retrySummaryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		taskID, err := g.engine.RetryWithSummary(req.Summary)
		if err != nil {
			writeRetryError(w, err)
			return
		}

		g.metrics.RecordRetry()
		writeJSON(w, http.StatusAccepted, taskResponse{TaskID: taskID})
	}
}

// handleRetryTruncate returns the handler for POST /api/retry/truncate.
// The last dispatch is retried with its document text cut down to a tail
// sized from the reply budget.
func (g *Gateway) handleRetryTruncate() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		taskID, err := g.engine.RetryWithTruncatedContext()
		if err != nil {
			writeRetryError(w, err)
			return
		}

		g.metrics.RecordRetry()
		writeJSON(w, http.StatusAccepted, taskResponse{TaskID: taskID})
	}
}

// writeRetryError maps engine retry errors to HTTP status codes.
func writeRetryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrEmptySummary):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrNothingToRetry):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// draftPayload is the JSON shape for the draft endpoints.
type draftPayload struct {
	Project     string `json:"project"`
	ActionBeats string `json:"action_beats"`
}

// handleGetDraft returns the handler for GET /api/draft.
func (g *Gateway) handleGetDraft() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.drafts == nil {
			writeError(w, http.StatusServiceUnavailable, "draft store not configured")
			return
		}

		project := r.URL.Query().Get("project")
		if project == "" {
			project = defaultProject
		}

		text, err := g.drafts.Draft(r.Context(), project)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "no draft saved")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, draftPayload{Project: project, ActionBeats: text})
	}
}

// handlePutDraft returns the handler for PUT /api/draft.
func (g *Gateway) handlePutDraft() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.drafts == nil {
			writeError(w, http.StatusServiceUnavailable, "draft store not configured")
			return
		}

		var req draftPayload
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Project == "" {
			req.Project = defaultProject
		}

		if err := g.drafts.SaveDraft(r.Context(), req.Project, req.ActionBeats); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeJSON decodes a size-limited JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
