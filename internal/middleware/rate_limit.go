package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// LoginRateLimit returns the rate limit config for credential endpoints
// (login, code verification, password reset).
func LoginRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 5,
	}
}

// ResendRateLimit returns the rate limit config for code resend and
// verification-link endpoints, stricter than the login limit.
func ResendRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 3,
	}
}

// APIRateLimit returns the general per-IP rate limit applied to the
// whole router.
func APIRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 120,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"Too many requests, slow down"}`))
		}),
	)
}
