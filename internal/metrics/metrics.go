// Package metrics defines the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmbeddingRequestsTotal counts embedding API calls by outcome
	// (success, error).
	EmbeddingRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pandaqa_embedding_requests_total",
			Help: "Embedding API requests by outcome.",
		},
		[]string{"outcome"},
	)

	// QueriesTotal counts answered queries by outcome (answered, empty,
	// degraded).
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pandaqa_queries_total",
			Help: "Knowledge-base queries by outcome.",
		},
		[]string{"outcome"},
	)

	// UploadsTotal counts document uploads by outcome (accepted, rejected,
	// failed).
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pandaqa_uploads_total",
			Help: "Document uploads by outcome.",
		},
		[]string{"outcome"},
	)

	// IndexedChunks tracks the number of chunks currently held by the
	// vector index.
	IndexedChunks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pandaqa_indexed_chunks",
			Help: "Chunks currently stored in the vector index.",
		},
	)
)
