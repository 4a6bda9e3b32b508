package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the referral workflow.
type Metrics struct {
	// Referrals created, labelled by care type
	ReferralsCreated *prometheus.CounterVec

	// Status transitions by target status
	Transitions *prometheus.CounterVec

	// Enrichment call outcomes by collaborator and result
	Enrichment *prometheus.CounterVec

	// Recommender round-trip latency
	RecommendLatency prometheus.Histogram
}

// New creates a Metrics instance with all referral metrics registered.
func New() *Metrics {
	return &Metrics{
		ReferralsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carelink_referrals_created_total",
			Help: "Total referrals created, by care type",
		}, []string{"care_type"}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carelink_referral_transitions_total",
			Help: "Total referral status transitions, by target status",
		}, []string{"status"}),

		Enrichment: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carelink_referral_enrichment_total",
			Help: "Enrichment collaborator calls, by collaborator and result",
		}, []string{"collaborator", "result"}),

		RecommendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "carelink_recommender_duration_seconds",
			Help:    "Duration of AI recommender round trips",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementCreated records a created referral.
func (m *Metrics) IncrementCreated(careType string) {
	if m != nil {
		m.ReferralsCreated.WithLabelValues(careType).Inc()
	}
}

// IncrementTransition records a successful status transition.
func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

// IncrementEnrichment records an enrichment call outcome.
func (m *Metrics) IncrementEnrichment(collaborator, result string) {
	if m != nil {
		m.Enrichment.WithLabelValues(collaborator, result).Inc()
	}
}

// ObserveRecommendLatency records one recommender round trip.
func (m *Metrics) ObserveRecommendLatency(d time.Duration) {
	if m != nil {
		m.RecommendLatency.Observe(d.Seconds())
	}
}
