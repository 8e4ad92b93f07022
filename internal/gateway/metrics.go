package gateway

import "sync/atomic"

// Metrics tracks gateway-level counters using atomic operations for
// lock-free concurrency. Cumulative generation metrics live in the
// Prometheus registry; these cover the HTTP surface for /status.
type Metrics struct {
	generations   atomic.Int64
	retries       atomic.Int64
	errors        atomic.Int64
	streamClients atomic.Int64
}

// RecordGeneration records an accepted generation dispatch.
func (m *Metrics) RecordGeneration() {
	m.generations.Add(1)
}

// RecordRetry records an accepted recovery retry.
func (m *Metrics) RecordRetry() {
	m.retries.Add(1)
}

// RecordError records a request that failed server-side.
func (m *Metrics) RecordError() {
	m.errors.Add(1)
}

// StreamConnected records a WebSocket client attaching.
func (m *Metrics) StreamConnected() {
	m.streamClients.Add(1)
}

// StreamDisconnected records a WebSocket client detaching.
func (m *Metrics) StreamDisconnected() {
	m.streamClients.Add(-1)
}

// Snapshot returns a consistent point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Generations:   m.generations.Load(),
		Retries:       m.retries.Load(),
		Errors:        m.errors.Load(),
		StreamClients: m.streamClients.Load(),
	}
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Generations   int64 `json:"generations"`
	Retries       int64 `json:"retries"`
	Errors        int64 `json:"errors"`
	StreamClients int64 `json:"stream_clients"`
}
