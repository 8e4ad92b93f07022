package gateway

import "net/http"

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	State  string `json:"state,omitempty"`
}

// handleHealth returns the handler for GET /health. Returns 200 when the
// engine is reachable, 503 before Start resolved it.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.engine == nil {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded"})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{
			Status: "ok",
			State:  g.engine.Status().State,
		})
	}
}
