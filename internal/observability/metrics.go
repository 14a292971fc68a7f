package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the auth and command paths. Registered on the
// default registry and served by promhttp on /metrics.
var (
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voicecontrol",
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Login attempts by outcome (success, failure, locked).",
	}, []string{"outcome"})

	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voicecontrol",
		Subsystem: "auth",
		Name:      "token_refreshes_total",
		Help:      "Refresh token rotations by outcome (success, rejected).",
	}, []string{"outcome"})

	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voicecontrol",
		Subsystem: "http",
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by a rate limiter, by limiter scope.",
	}, []string{"scope"})

	CommandsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voicecontrol",
		Subsystem: "command",
		Name:      "commands_processed_total",
		Help:      "Voice/text commands processed by outcome (executed, unrecognized, no_device, failed).",
	}, []string{"outcome"})
)
