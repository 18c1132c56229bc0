package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(recipientCacheLookups, recipientCacheErrors) }

var (
	recipientCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipient_cache_lookups_total",
			Help: "Recipient reads seen by the redis cache, by outcome.",
		},
		[]string{"op", "result"}, // op: 'find', 'list'; result: 'hit', 'miss', 'bypass'
	)

	recipientCacheErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipient_cache_errors_total",
			Help: "Redis failures in the recipient cache. The store answers instead.",
		},
		[]string{"op"}, // 'get', 'set', 'del', 'decode'
	)
)

func IncRecipientCacheLookup(op, result string) {
	recipientCacheLookups.WithLabelValues(norm(op), norm(result)).Inc()
}

func IncRecipientCacheError(op string) {
	recipientCacheErrors.WithLabelValues(norm(op)).Inc()
}
