// Package metrics provides Prometheus instrumentation for the Meridian core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the policy engine. A nil
// *Metrics is valid and records nothing, so components can run
// uninstrumented (tests, one-shot CLI commands).
//
// Exposed series:
//   - meridian_cache_hits_total / meridian_cache_misses_total (by cache)
//   - meridian_evaluations_total (by claim_type, outcome)
//   - meridian_rules_matched (histogram)
//   - meridian_reviews_queued_total (by review_type, priority)
//   - meridian_corrections_total (by correction_type, applied)
//   - meridian_schema_changes_total (by api_name, change_type)
type Metrics struct {
	registry *prometheus.Registry

	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	evaluations   *prometheus.CounterVec
	rulesMatched  prometheus.Histogram
	reviewsQueued *prometheus.CounterVec
	corrections   *prometheus.CounterVec
	schemaChanges *prometheus.CounterVec
}

// New creates and registers all collectors with the provided registry.
// If registry is nil a fresh one is created.
func New(namespace, subsystem string, registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "meridian"
	}

	m := &Metrics{
		registry: registry,

		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of rule/evidence cache hits",
			},
			[]string{"cache"},
		),

		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of rule/evidence cache misses",
			},
			[]string{"cache"},
		),

		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of claim evaluations by outcome",
			},
			[]string{"claim_type", "outcome"},
		),

		rulesMatched: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rules_matched",
				Help:      "Number of rules matched per evaluation",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
			},
		),

		reviewsQueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reviews_queued_total",
				Help:      "Total number of items added to the manual review queue",
			},
			[]string{"review_type", "priority"},
		),

		corrections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "corrections_total",
				Help:      "Total number of analyst corrections processed",
			},
			[]string{"correction_type", "applied"},
		),

		schemaChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "schema_changes_total",
				Help:      "Total number of schema drift changes detected",
			},
			[]string{"api_name", "change_type"},
		),
	}

	registry.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.evaluations,
		m.rulesMatched,
		m.reviewsQueued,
		m.corrections,
		m.schemaChanges,
	)

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// CacheHit records a cache hit for the named cache.
func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(cache).Inc()
}

// CacheMiss records a cache miss for the named cache.
func (m *Metrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// EvaluationRun records one claim evaluation and how many rules matched.
func (m *Metrics) EvaluationRun(claimType, outcome string, matched int) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(claimType, outcome).Inc()
	m.rulesMatched.Observe(float64(matched))
}

// ReviewQueued records one item entering the review queue.
func (m *Metrics) ReviewQueued(reviewType, priority string) {
	if m == nil {
		return
	}
	m.reviewsQueued.WithLabelValues(reviewType, priority).Inc()
}

// CorrectionProcessed records one analyst correction.
func (m *Metrics) CorrectionProcessed(correctionType string, applied bool) {
	if m == nil {
		return
	}
	appliedLabel := "false"
	if applied {
		appliedLabel = "true"
	}
	m.corrections.WithLabelValues(correctionType, appliedLabel).Inc()
}

// SchemaChangeDetected records one detected drift change.
func (m *Metrics) SchemaChangeDetected(apiName, changeType string) {
	if m == nil {
		return
	}
	m.schemaChanges.WithLabelValues(apiName, changeType).Inc()
}
