package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "entitylist"
)

var (
	fetchDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

	// Loader Metrics
	LoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loads_total",
		Help:      "Count of entity loads by outcome.",
	}, []string{"entity_type", "status"})

	LoadRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "load_retries_total",
		Help:      "Count of loads retried with a halved batch after an oversized response.",
	}, []string{"entity_type"})

	LoadStaleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "load_stale_total",
		Help:      "Count of load results discarded because a newer load started.",
	}, []string{"entity_type"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Time taken by a single collection fetch.",
		Buckets:   fetchDurationBuckets,
	}, []string{"entity_type"})

	// Controller Metrics
	BulkActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bulk_actions_total",
		Help:      "Count of bulk actions handed to the collaborator.",
	}, []string{"action", "status"})

	// Catalogue Metrics
	ContentTypeReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "content_type_reloads_total",
		Help:      "Count of content type catalogue reloads.",
	}, []string{"status"})
)

// Recorder receives loader observations.
type Recorder interface {
	Load(entityType, status string)
	Retry(entityType string)
	Stale(entityType string)
	Fetch(entityType string, d time.Duration)
}

// Prometheus records loader observations in the package collectors.
type Prometheus struct{}

func (Prometheus) Load(entityType, status string) {
	LoadsTotal.WithLabelValues(entityType, status).Inc()
}

func (Prometheus) Retry(entityType string) {
	LoadRetriesTotal.WithLabelValues(entityType).Inc()
}

func (Prometheus) Stale(entityType string) {
	LoadStaleTotal.WithLabelValues(entityType).Inc()
}

func (Prometheus) Fetch(entityType string, d time.Duration) {
	FetchDuration.WithLabelValues(entityType).Observe(d.Seconds())
}

// Discard drops every observation.
type Discard struct{}

func (Discard) Load(string, string)         {}
func (Discard) Retry(string)                {}
func (Discard) Stale(string)                {}
func (Discard) Fetch(string, time.Duration) {}
