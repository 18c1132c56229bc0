package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(recipientStoreConns, recipientStoreWaits) }

var (
	recipientStoreConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recipient_store_connections",
			Help: "Connections held by the recipient store pool.",
		},
		[]string{"driver", "state"}, // driver: 'sqlite', 'postgres'; state: 'open', 'idle', 'in_use'
	)

	recipientStoreWaits = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recipient_store_connection_waits",
			Help: "Times a caller found no free connection since the pool opened.",
		},
		[]string{"driver"},
	)
)

// SetRecipientStorePool publishes one pool sample. The stats worker calls it
// through Backend.PoolStats.
func SetRecipientStorePool(driver string, open, idle, inUse int, waits int64) {
	d := norm(driver)
	recipientStoreConns.WithLabelValues(d, "open").Set(float64(open))
	recipientStoreConns.WithLabelValues(d, "idle").Set(float64(idle))
	recipientStoreConns.WithLabelValues(d, "in_use").Set(float64(inUse))
	recipientStoreWaits.WithLabelValues(d).Set(float64(waits))
}
