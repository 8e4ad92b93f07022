// Package metrics exposes Prometheus collectors for the generation
// engine. Collectors register themselves on the default registry; the
// gateway serves them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationsStarted counts dispatched generation tasks, retries
	// included.
	GenerationsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quill",
		Subsystem: "engine",
		Name:      "generations_started_total",
		Help:      "Number of generation tasks dispatched.",
	})

	// GenerationsFinished counts terminal task outcomes.
	GenerationsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quill",
		Subsystem: "engine",
		Name:      "generations_finished_total",
		Help:      "Number of generation tasks reaching a terminal state.",
	}, []string{"outcome"})

	// GenerationDuration observes wall time from dispatch to terminal
	// event.
	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quill",
		Subsystem: "engine",
		Name:      "generation_duration_seconds",
		Help:      "Wall time of generation tasks.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	// ChunksTotal counts streamed text increments.
	ChunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quill",
		Subsystem: "engine",
		Name:      "chunks_total",
		Help:      "Number of streamed text chunks.",
	})

	// ChunkBytes counts streamed prose volume.
	ChunkBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quill",
		Subsystem: "engine",
		Name:      "chunk_bytes_total",
		Help:      "Bytes of streamed prose.",
	})

	// RecoveriesTotal counts token-limit recovery resolutions by path.
	RecoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quill",
		Subsystem: "engine",
		Name:      "recoveries_total",
		Help:      "Token-limit recoveries by resolution path.",
	}, []string{"path"})

	// SummariesPruned counts cache entries removed by the prune job.
	SummariesPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quill",
		Subsystem: "store",
		Name:      "summaries_pruned_total",
		Help:      "Cached summaries removed by the prune job.",
	})
)
