// Package metrics holds the Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Ingest outcomes, used as the "outcome" label.
const (
	OutcomeSuccess          = "success"
	OutcomeValidationError  = "validation_error"
	OutcomeStorageError     = "storage_error"
	OutcomePersistenceError = "persistence_error"
)

// Notification results, used as the "result" label.
const (
	NotifyDelivered = "delivered"
	NotifyFailed    = "failed"
	NotifyRejected  = "rejected"
	NotifyDisabled  = "disabled"
)

// Metrics groups the domain collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ingestTotal    *prometheus.CounterVec
	ingestDuration prometheus.Histogram
	notifications  *prometheus.CounterVec
	orphanedBlobs  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ingestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docflow",
				Name:      "ingest_total",
				Help:      "Ingestion attempts by outcome.",
			},
			[]string{"outcome"},
		),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docflow",
			Name:      "ingest_duration_seconds",
			Help:      "Time spent on the critical path of a single ingestion.",
			Buckets:   prometheus.DefBuckets,
		}),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docflow",
				Name:      "notifications_total",
				Help:      "Downstream webhook dispatches by result.",
			},
			[]string{"result"},
		),
		orphanedBlobs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docflow",
			Name:      "orphaned_blobs_total",
			Help:      "Blobs left in storage after their metadata insert failed.",
		}),
	}

	for _, c := range []prometheus.Collector{m.ingestTotal, m.ingestDuration, m.notifications, m.orphanedBlobs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveIngest records one ingestion outcome and its duration in seconds.
func (m *Metrics) ObserveIngest(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(outcome).Inc()
	m.ingestDuration.Observe(seconds)
}

// Notification records one webhook dispatch result.
func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

// OrphanedBlob records a blob whose metadata row was never created.
func (m *Metrics) OrphanedBlob() {
	if m == nil {
		return
	}
	m.orphanedBlobs.Inc()
}
