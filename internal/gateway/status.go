package gateway

import (
	"net/http"
	"time"

	"github.com/quillworks/quill/internal/engine"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime  float64         `json:"uptime_seconds"`
	Engine  engine.Status   `json:"engine"`
	Metrics MetricsSnapshot `json:"metrics"`
}

// handleStatus returns the handler for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, StatusResponse{
			Uptime:  time.Since(g.startedAt).Truncate(time.Second).Seconds(),
			Engine:  g.engine.Status(),
			Metrics: g.metrics.Snapshot(),
		})
	}
}
