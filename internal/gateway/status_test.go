package gateway

import (
	"net/http"
	"testing"
)

func TestHealth_OK(t *testing.T) {
	g := newTestGateway()
	defer g.engine.Close()
	srv := newTestServer(g)
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[HealthResponse](t, resp)
	if body.Status != "ok" {
		t.Errorf("health status = %q, want ok", body.Status)
	}
	if body.State != "idle" {
		t.Errorf("engine state = %q, want idle", body.State)
	}
}

func TestHealth_DegradedWithoutEngine(t *testing.T) {
	g := newTestGateway()
	g.engine.Close()
	g.engine = nil
	srv := newTestServer(g)
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestStatus_ReportsMetrics(t *testing.T) {
	g := newTestGateway()
	defer g.engine.Close()
	srv := newTestServer(g)
	defer srv.Close()

	gen := doJSON(t, http.MethodPost, srv.URL+"/api/generate", map[string]any{
		"action_beats": "He opens the door.",
		"config":       map[string]any{"template": "Continue. {action_beats}"},
	})
	gen.Body.Close()
	if gen.StatusCode != http.StatusAccepted {
		t.Fatalf("generate status = %d", gen.StatusCode)
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[StatusResponse](t, resp)
	if body.Metrics.Generations != 1 {
		t.Errorf("generations = %d, want 1", body.Metrics.Generations)
	}
	if body.Engine.State == "" {
		t.Error("engine state missing from status")
	}
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	g := newTestGateway()
	defer g.engine.Close()
	g.config.Auth = AuthConfig{BearerToken: "secret"}
	srv := newTestServer(g)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
