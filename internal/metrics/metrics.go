// Package metrics holds the Prometheus collectors for conceptmap.
//
// Every recording method is nil-safe so components can run without a
// collector in tests and one-shot CLI commands.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "conceptmap"

// Collector owns a private registry and the application's metrics.
type Collector struct {
	registry *prometheus.Registry

	LLMRequests     *prometheus.CounterVec
	LLMDuration     prometheus.Histogram
	EmbeddingBatch  *prometheus.CounterVec
	EmbeddingCache  *prometheus.CounterVec
	Mutations       *prometheus.CounterVec
	SnapshotWrites  *prometheus.CounterVec
	SimilarityFalls prometheus.Counter
}

// NewCollector creates and registers all collectors on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM gateway calls by outcome.",
		}, []string{"outcome"}),
		LLMDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM gateway call latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		EmbeddingBatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_batches_total",
			Help:      "Embedding requests by result quality.",
		}, []string{"quality"}),
		EmbeddingCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups by result.",
		}, []string{"result"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Graph mutations by operation and result.",
		}, []string{"op", "result"}),
		SnapshotWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_writes_total",
			Help:      "Snapshot persistence attempts by result.",
		}, []string{"result"}),
		SimilarityFalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "similarity_fallbacks_total",
			Help:      "Similarity computations that fell back to the neutral score.",
		}),
	}

	c.registry.MustRegister(
		c.LLMRequests,
		c.LLMDuration,
		c.EmbeddingBatch,
		c.EmbeddingCache,
		c.Mutations,
		c.SnapshotWrites,
		c.SimilarityFalls,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordLLM(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.LLMRequests.WithLabelValues(outcome).Inc()
	c.LLMDuration.Observe(elapsed.Seconds())
}

func (c *Collector) RecordEmbedding(quality string) {
	if c == nil {
		return
	}
	c.EmbeddingBatch.WithLabelValues(quality).Inc()
}

func (c *Collector) RecordCache(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.EmbeddingCache.WithLabelValues(result).Inc()
}

func (c *Collector) RecordMutation(op string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Mutations.WithLabelValues(op, result).Inc()
}

func (c *Collector) RecordSnapshotWrite(err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.SnapshotWrites.WithLabelValues(result).Inc()
}

func (c *Collector) RecordSimilarityFallback() {
	if c == nil {
		return
	}
	c.SimilarityFalls.Inc()
}
