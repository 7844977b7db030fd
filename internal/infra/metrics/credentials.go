package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		credentialsIssuedTotal,
		credentialsExpiredTotal,
		trialsCleanedTotal,
		credentialsGauge,
	)
}

var (
	credentialsIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentials_issued_total",
			Help: "Credentials issued, by kind.",
		},
		[]string{"kind"}, // paid|trial
	)

	credentialsExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credentials_expired_total",
			Help: "Credentials deactivated after expiry, by path.",
		},
		[]string{"source"}, // sweep|read
	)

	trialsCleanedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credentials_trial_cleanup_deleted_total",
			Help: "Stale trial credentials removed by retention cleanup.",
		},
	)

	credentialsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "credentials_current",
			Help: "Current credential counts as computed by the last stats pass.",
		},
		[]string{"state"}, // total|active|expired_active|trial|active_trial
	)
)

func IncCredentialIssued(kind string) {
	credentialsIssuedTotal.WithLabelValues(norm(kind)).Inc()
}

func AddCredentialsExpired(source string, n int64) {
	credentialsExpiredTotal.WithLabelValues(norm(source)).Add(float64(n))
}

func AddTrialsCleaned(n int64) {
	trialsCleanedTotal.Add(float64(n))
}

func SetCredentialCounts(total, active, expiredActive, trial, activeTrial int) {
	credentialsGauge.WithLabelValues("total").Set(float64(total))
	credentialsGauge.WithLabelValues("active").Set(float64(active))
	credentialsGauge.WithLabelValues("expired_active").Set(float64(expiredActive))
	credentialsGauge.WithLabelValues("trial").Set(float64(trial))
	credentialsGauge.WithLabelValues("active_trial").Set(float64(activeTrial))
}
