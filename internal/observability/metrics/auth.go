package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AuthMetrics contains Prometheus metrics for authentication operations.
type AuthMetrics struct {
	loginAttempts *prometheus.CounterVec
	registrations prometheus.Counter
	rateLimited   prometheus.Counter
	csrfRejected  prometheus.Counter
}

// NewAuthMetrics creates and registers authentication metrics.
func NewAuthMetrics(registry *prometheus.Registry) (*AuthMetrics, error) {
	m := &AuthMetrics{
		loginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_attempts_total",
				Help: "Total number of login attempts by result",
			},
			[]string{"result"},
		),
		registrations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_registrations_total",
				Help: "Total number of successful account registrations",
			},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_rate_limited_total",
				Help: "Total number of requests rejected by the login rate limiter",
			},
		),
		csrfRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_csrf_rejected_total",
				Help: "Total number of requests rejected by CSRF validation",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.loginAttempts, m.registrations, m.rateLimited, m.csrfRejected} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordLogin records one login attempt.
func (m *AuthMetrics) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.loginAttempts.WithLabelValues(result).Inc()
}

// RecordRegistration records one successful registration.
func (m *AuthMetrics) RecordRegistration() {
	m.registrations.Inc()
}

// RecordRateLimited records one rate-limited request.
func (m *AuthMetrics) RecordRateLimited() {
	m.rateLimited.Inc()
}

// RecordCSRFRejected records one CSRF rejection.
func (m *AuthMetrics) RecordCSRFRejected() {
	m.csrfRejected.Inc()
}
