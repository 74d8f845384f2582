// Package metrics exposes the Prometheus instruments for the API.
// Counters are package level so any layer can record without plumbing
// a registry through every constructor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoginAttempts counts password-step outcomes. Outcome is one of
	// success, invalid_credentials, locked, permanent_block, unverified.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bowling_login_attempts_total",
		Help: "Login password-step attempts by outcome.",
	}, []string{"outcome"})

	// TwoFactorCodes counts verification codes pushed out by email.
	TwoFactorCodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bowling_twofactor_codes_total",
		Help: "Two-factor codes sent, by trigger (initial or resend).",
	}, []string{"trigger"})

	// AccountLocks counts lockout escalations.
	AccountLocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bowling_account_locks_total",
		Help: "Account locks applied, by kind (temporary or permanent).",
	}, []string{"kind"})

	// RefreshReuse counts refresh-token reuse detections. Each one
	// revoked every live token for the account.
	RefreshReuse = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bowling_refresh_reuse_detected_total",
		Help: "Refresh tokens presented whose hash was unknown.",
	})

	// SessionsDisplaced counts logins that revoked an older session.
	SessionsDisplaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bowling_sessions_displaced_total",
		Help: "Completed logins that displaced an existing session.",
	})

	// ReservationsCreated counts successful checkouts.
	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bowling_reservations_created_total",
		Help: "Reservations committed through checkout.",
	})

	// LaneConflicts counts checkouts rejected by the in-transaction
	// overlap re-check.
	LaneConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bowling_lane_conflicts_total",
		Help: "Checkouts rejected because a lane was booked concurrently.",
	})
)

// Handler serves the scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
