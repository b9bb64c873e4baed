// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Auth attempt results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultLocked  = "locked"
)

// Password reset stages.
const (
	StageRequested  = "requested"
	StageDelivered  = "delivered"
	StageRolledBack = "rolled_back"
	StageCompleted  = "completed"
	StageRejected   = "rejected"
)

var (
	// AuthAttempts records login attempts by result (success|failure|locked).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natours_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// AccountLockouts counts lockout rounds entered.
	AccountLockouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "natours_account_lockouts_total",
			Help: "Total number of account lockouts",
		},
	)

	// PasswordResets tracks the password reset flow by stage.
	PasswordResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natours_password_resets_total",
			Help: "Password reset events by stage",
		},
		[]string{"stage"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "natours_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
