package authsvc

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	outcomeSuccess       = "success"
	outcomeRejected      = "rejected"
	outcomeError         = "error"
	outcomeAlreadyActive = "already_authenticated"
)

// AuthMetrics counts signup and signin outcomes. A nil *AuthMetrics records nothing.
type AuthMetrics struct {
	signups *prometheus.CounterVec
	signins *prometheus.CounterVec
}

// NewAuthMetrics registers the auth counters with registry.
func NewAuthMetrics(registry prometheus.Registerer) *AuthMetrics {
	metrics := &AuthMetrics{
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "accountsvc",
			Name:      "signups_total",
			Help:      "Signup attempts by outcome.",
		}, []string{"outcome"}),
		signins: prometheus.NewCounterVec(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "accountsvc",
			Name:      "signins_total",
			Help:      "Signin attempts by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(metrics.signups, metrics.signins)

	return metrics
}

func (m *AuthMetrics) signup(outcome string) {
	if m != nil {
		m.signups.WithLabelValues(outcome).Inc()
	}
}

func (m *AuthMetrics) signin(outcome string) {
	if m != nil {
		m.signins.WithLabelValues(outcome).Inc()
	}
}
