package auth

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
	CSRFTokenCookie    = "csrfToken"
)

// CookieConfig controls the attributes shared by every auth cookie.
type CookieConfig struct {
	Secure bool
	Domain string
}

// SetSessionCookies writes the full cookie triple for a freshly issued
// session. Access and refresh cookies are HttpOnly; the CSRF cookie is
// intentionally readable so the client can echo it in a header.
func SetSessionCookies(w http.ResponseWriter, cfg CookieConfig, accessToken string, accessTTL time.Duration, refreshToken string, refreshTTL time.Duration, csrfToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   int(accessTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    refreshToken,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   int(refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	SetCSRFCookie(w, cfg, csrfToken, refreshTTL)
}

// SetCSRFCookie writes the script-readable half of the double-submit
// pair. A fresh value is minted at login and again on every successful
// refresh.
func SetCSRFCookie(w http.ResponseWriter, cfg CookieConfig, csrfToken string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFTokenCookie,
		Value:    csrfToken,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: false,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// RefreshAccessCookie rewrites only the access-token cookie after a
// successful renewal. The refresh cookie stays as issued.
func RefreshAccessCookie(w http.ResponseWriter, cfg CookieConfig, accessToken string, accessTTL time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   int(accessTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookies expires all three auth cookies.
func ClearSessionCookies(w http.ResponseWriter, cfg CookieConfig) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie, CSRFTokenCookie} {
		httpOnly := name != CSRFTokenCookie
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   cfg.Domain,
			MaxAge:   -1,
			HttpOnly: httpOnly,
			Secure:   cfg.Secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// CookieValue reads a named cookie, returning "" when absent.
func CookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
