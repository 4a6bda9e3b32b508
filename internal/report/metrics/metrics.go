package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the session-report workflow.
type Metrics struct {
	// Reports created
	ReportsCreated prometheus.Counter

	// Report status transitions by target status
	Transitions *prometheus.CounterVec

	// Authorization denials on review/approve
	AuthDenials prometheus.Counter
}

// New creates a Metrics instance with all report metrics registered.
func New() *Metrics {
	return &Metrics{
		ReportsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carelink_reports_created_total",
			Help: "Total session reports created",
		}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carelink_report_transitions_total",
			Help: "Total report status transitions, by target status",
		}, []string{"status"}),

		AuthDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carelink_report_authorization_denials_total",
			Help: "Review/approve attempts rejected by the guardian authorization check",
		}),
	}
}

// IncrementCreated records a created report.
func (m *Metrics) IncrementCreated() {
	if m != nil {
		m.ReportsCreated.Inc()
	}
}

// IncrementTransition records a successful status transition.
func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

// IncrementAuthDenial records a rejected review/approve attempt.
func (m *Metrics) IncrementAuthDenial() {
	if m != nil {
		m.AuthDenials.Inc()
	}
}
