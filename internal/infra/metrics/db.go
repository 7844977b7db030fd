package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ledgerConnections) }

var ledgerConnections = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "ledger_connections",
		Help: "Connections held by the ledger store, by driver and state.",
	},
	[]string{"driver", "state"}, // state: open | idle | in_use
)

func SetLedgerConnections(driver string, open, idle, inUse int) {
	d := norm(driver)
	ledgerConnections.WithLabelValues(d, "open").Set(float64(open))
	ledgerConnections.WithLabelValues(d, "idle").Set(float64(idle))
	ledgerConnections.WithLabelValues(d, "in_use").Set(float64(inUse))
}
