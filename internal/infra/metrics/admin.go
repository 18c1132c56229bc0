package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(adminCommandTotal, adminLoginTotal) }

var (
	adminCommandTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_command_total",
			Help: "Tracks attempts to use admin commands.",
		},
		[]string{"command", "status"}, // status: 'authorized', 'unauthorized'
	)

	adminLoginTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_api_login_total",
			Help: "Admin HTTP API login attempts by result.",
		},
		[]string{"result"}, // 'ok', 'denied', 'throttled'
	)
)

func IncAdminCommand(command, status string) {
	adminCommandTotal.WithLabelValues(norm(command), norm(status)).Inc()
}

func IncAdminLogin(result string) {
	adminLoginTotal.WithLabelValues(norm(result)).Inc()
}
