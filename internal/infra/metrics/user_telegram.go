package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		usersRegisteredTotal,
		telegramCommandsReceivedTotal,
		telegramRateLimitTriggeredTotal,
		recipientsGauge,
	)
}

var (
	usersRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "users_registered_total",
			Help: "Total number of new users registered.",
		},
	)

	telegramCommandsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_commands_received_total",
			Help: "Counts incoming messages and commands from users.",
		},
		[]string{"command"},
	)

	telegramRateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_triggered_total",
			Help: "Total number of times users have been rate-limited.",
		},
	)

	recipientsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recipients_total",
			Help: "Known recipients, refreshed by the stats worker.",
		},
		[]string{"window"}, // 'all', '7d'
	)
)

func IncUsersRegistered() {
	usersRegisteredTotal.Inc()
}

func IncTelegramCommand(command string) {
	telegramCommandsReceivedTotal.WithLabelValues(norm(command)).Inc()
}

func IncRateLimitTriggered() {
	telegramRateLimitTriggeredTotal.Inc()
}

func SetRecipients(all, activeWeek int) {
	recipientsGauge.WithLabelValues("all").Set(float64(all))
	recipientsGauge.WithLabelValues("7d").Set(float64(activeWeek))
}
