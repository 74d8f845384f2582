package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/pittsbowling/api/internal/models"
	pkghttp "github.com/pittsbowling/api/pkg/http"
)

type contextKey string

const claimsContextKey contextKey = "auth_claims"

// SessionChecker reports the session id currently recorded as active for
// a user. Implemented by the user repository.
type SessionChecker interface {
	CurrentSessionID(ctx context.Context, userID string) (*string, error)
}

// RoleChecker resolves a user's role for admin-gated routes.
type RoleChecker interface {
	RoleByID(ctx context.Context, userID string) (string, error)
}

// AuthRequired validates the access-token cookie and enforces the
// single-active-session rule: the token's sid must match the user's
// current_session or the request is rejected with a session_replaced
// discriminator so clients can tell displacement apart from expiry.
func AuthRequired(tm *TokenManager, sessions SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := CookieValue(r, AccessTokenCookie)
			if tokenString == "" {
				// Fallback for non-browser clients.
				if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
					tokenString = strings.TrimPrefix(h, "Bearer ")
				}
			}
			if tokenString == "" {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			claims, err := tm.ValidateAccessToken(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Invalid or expired token")
				return
			}

			current, err := sessions.CurrentSessionID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteUnauthorized(w, "Invalid or expired token")
					return
				}
				pkghttp.WriteInternalError(w, "Unable to verify session")
				return
			}
			if current == nil || *current != claims.SessionID {
				pkghttp.WriteError(w, http.StatusUnauthorized, "session_replaced", "Session was opened on another device")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a route on the caller's stored role. It must run
// after AuthRequired.
func RequireRole(roles RoleChecker, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			got, err := roles.RoleByID(r.Context(), claims.UserID)
			if err != nil {
				pkghttp.WriteInternalError(w, "Unable to verify role")
				return
			}
			if got != role {
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the authenticated claims set by AuthRequired.
func ClaimsFromContext(ctx context.Context) (*models.TokenClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*models.TokenClaims)
	return claims, ok
}

// ContextWithClaims is a test helper for handler tests that bypass the
// middleware chain.
func ContextWithClaims(ctx context.Context, claims *models.TokenClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
