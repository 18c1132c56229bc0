package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		broadcastDeliveriesTotal,
		recallDeletesTotal,
		broadcastJobsTotal,
		broadcastDurationSeconds,
		broadcastSuspendsTotal,
		recallableGauge,
	)
}

var (
	broadcastDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_deliveries_total",
			Help: "Per-recipient broadcast outcomes.",
		},
		[]string{"outcome"}, // 'sent', 'blocked', 'failed'
	)

	recallDeletesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_recall_deletes_total",
			Help: "Per-message recall outcomes.",
		},
		[]string{"outcome"}, // 'ok', 'err'
	)

	broadcastJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_jobs_total",
			Help: "Broadcast and recall jobs by result.",
		},
		[]string{"op", "result"}, // op: 'broadcast', 'recall'; result: 'done', 'rejected', 'empty', 'error'
	)

	broadcastDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "broadcast_job_duration_seconds",
			Help:    "Wall time of broadcast and recall jobs.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"op"},
	)

	broadcastSuspendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_rate_limit_suspends_total",
			Help: "Times a job loop was suspended because Telegram asked to retry later.",
		},
		[]string{"op"},
	)

	recallableGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_recallable_messages",
			Help: "Messages of the last broadcast that a recall would delete.",
		},
	)
)

func IncBroadcastDelivery(outcome string) {
	broadcastDeliveriesTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncRecallDelete(outcome string) {
	recallDeletesTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncBroadcastJob(op, result string) {
	broadcastJobsTotal.WithLabelValues(norm(op), norm(result)).Inc()
}

func ObserveBroadcastDuration(op string, d time.Duration) {
	broadcastDurationSeconds.WithLabelValues(norm(op)).Observe(d.Seconds())
}

func IncBroadcastSuspend(op string) {
	broadcastSuspendsTotal.WithLabelValues(norm(op)).Inc()
}

func SetRecallable(n int) {
	recallableGauge.Set(float64(n))
}
