package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		paymentsExpiredTotal,
		paymentsByStatus,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment state changes by resulting status.",
		},
		[]string{"status"}, // pending|waiting_confirmation|completed|expired|rejected
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Fiat value of completed payments, labeled by fiat currency.",
		},
		[]string{"currency"},
	)

	paymentsExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_expired_total",
			Help: "Pending payments moved to expired, by path.",
		},
		[]string{"source"}, // tick|sweep|read
	)

	paymentsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payments_by_status",
			Help: "Current number of payments by status.",
		},
		[]string{"status"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func AddPaymentsExpired(source string, n int64) {
	paymentsExpiredTotal.WithLabelValues(norm(source)).Add(float64(n))
}

func SetPaymentsByStatus(counts map[string]int) {
	for status, n := range counts {
		paymentsByStatus.WithLabelValues(norm(status)).Set(float64(n))
	}
}
