package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentVerifyChecks,
		paymentVerifyDuration,
		verificationTasksActive,
		notificationsTotal,
	)
}

var (
	// result: confirmed|unconfirmed|transient|error
	paymentVerifyChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_checks_total",
			Help: "Settlement verifier calls by currency and result.",
		},
		[]string{"currency", "result"},
	)

	paymentVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of settlement verifier calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"currency"},
	)

	verificationTasksActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_verification_tasks_active",
			Help: "Verification tasks currently scheduled in this process.",
		},
	)

	// status: sent|error|dropped
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Outcome notifications by kind and delivery status.",
		},
		[]string{"kind", "status"},
	)
)

func ObserveVerifyCheck(currency, result string, d time.Duration) {
	paymentVerifyChecks.WithLabelValues(norm(currency), norm(result)).Inc()
	paymentVerifyDuration.WithLabelValues(norm(currency)).Observe(d.Seconds())
}

func SetVerificationTasks(n int) {
	verificationTasksActive.Set(float64(n))
}

func IncNotification(kind, status string) {
	notificationsTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}
