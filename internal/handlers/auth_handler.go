package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pittsbowling/api/internal/auth"
	"github.com/pittsbowling/api/internal/models"
	"github.com/pittsbowling/api/internal/services"
	pkgauth "github.com/pittsbowling/api/pkg/auth"
	pkghttp "github.com/pittsbowling/api/pkg/http"
)

// AuthServiceInterface defines the auth business logic the handler needs
type AuthServiceInterface interface {
	Register(ctx context.Context, input services.RegisterInput) (*models.User, error)
	ConfirmEmail(ctx context.Context, token string) error
	Login(ctx context.Context, email, password string, meta services.ClientMeta) error
	ResendTwoFactor(ctx context.Context, email string) error
	VerifyTwoFactor(ctx context.Context, email, code string, meta services.ClientMeta) (*services.SessionTokens, error)
	Refresh(ctx context.Context, rawRefreshToken string) (*services.RenewedSession, error)
	SessionStatus(ctx context.Context, userID string) (*models.User, error)
	Logout(ctx context.Context, rawRefreshToken string, meta services.ClientMeta) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// CaptchaVerifier gates the password step behind a bot challenge.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service   AuthServiceInterface
	captcha   CaptchaVerifier
	cookieCfg auth.CookieConfig
	ipConfig  *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, captcha CaptchaVerifier, cookieCfg auth.CookieConfig, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:   service,
		captcha:   captcha,
		cookieCfg: cookieCfg,
		ipConfig:  ipConfig,
	}
}

// Request DTOs

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	LastName string `json:"last_name" validate:"max=100"`
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ConfirmEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type LoginRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	CaptchaToken string `json:"captcha_token"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6"`
}

type ResendCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserResponse is the public shape of an account.
type UserResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	LastName      string `json:"last_name,omitempty"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Role          string `json:"role"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		LastName:      u.LastName,
		Username:      u.Username,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Role:          u.Role,
	}
}

func (h *AuthHandler) clientMeta(r *http.Request) services.ClientMeta {
	return services.ClientMeta{
		IP:        pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// Register creates a new unverified account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	user, err := h.service.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		LastName: req.LastName,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with that email or username already exists")
		case isPasswordError(err):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Failed to create account")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, map[string]any{
		"user":    toUserResponse(user),
		"message": "Check your inbox to confirm your email address",
	})
}

// ConfirmEmail redeems the emailed confirmation link.
func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req ConfirmEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ConfirmEmail(r.Context(), req.Token); err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Confirmation link is invalid or expired")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Failed to confirm email")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Email confirmed. You can log in now."})
}

// Login runs the password step and, on success, triggers the email code.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.captcha.Verify(r.Context(), req.CaptchaToken); err != nil {
		if errors.Is(err, models.ErrCaptchaFailed) {
			pkghttp.WriteError(w, http.StatusBadRequest, "captcha_failed", "Bot check failed, try again")
			return
		}
		pkghttp.WriteInternalError(w, "Could not verify the bot check")
		return
	}

	err := h.service.Login(r.Context(), req.Email, req.Password, h.clientMeta(r))
	if err != nil {
		writeLoginError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"two_factor_required": true,
		"message":             "A verification code was sent to your email",
	})
}

// VerifyCode completes the login by consuming the emailed code. The
// session cookies land here, not at the password step.
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	session, err := h.service.VerifyTwoFactor(r.Context(), req.Email, req.Code, h.clientMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrTwoFactorInvalid):
			pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_code", "The verification code is incorrect")
		case errors.Is(err, models.ErrTwoFactorExpired):
			pkghttp.WriteError(w, http.StatusUnauthorized, "code_expired", "The verification code expired. Log in again to get a new one.")
		default:
			pkghttp.WriteInternalError(w, "Failed to verify code")
		}
		return
	}

	auth.SetSessionCookies(w, h.cookieCfg,
		session.AccessToken, session.AccessTTL,
		session.RefreshToken, session.RefreshTTL,
		session.CSRFToken)

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"user":       toUserResponse(session.User),
		"csrf_token": session.CSRFToken,
	})
}

// ResendCode re-sends the pending login code.
func (h *AuthHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req ResendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.service.ResendTwoFactor(r.Context(), req.Email); err != nil {
		var throttled *models.ResendThrottledError
		switch {
		case errors.As(err, &throttled):
			pkghttp.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":     "resend_throttled",
				"message":   "Please wait before requesting another code",
				"remaining": int((throttled.Remaining + time.Second - 1) / time.Second),
			})
		case errors.Is(err, models.ErrResendThrottled):
			pkghttp.WriteTooManyRequests(w, "Please wait before requesting another code")
		case errors.Is(err, models.ErrTwoFactorExpired):
			pkghttp.WriteError(w, http.StatusUnauthorized, "code_expired", "No login is pending. Start over from the login form.")
		default:
			pkghttp.WriteInternalError(w, "Failed to resend code")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "A new code was sent to your email"})
}

// Refresh exchanges the refresh cookie for a fresh access cookie. The
// double-submit CSRF check runs before the token is even parsed.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := auth.VerifyDoubleSubmit(r); err != nil {
		pkghttp.WriteError(w, http.StatusForbidden, "csrf_mismatch", "CSRF token missing or invalid")
		return
	}

	rawRefresh := auth.CookieValue(r, auth.RefreshTokenCookie)
	if rawRefresh == "" {
		pkghttp.WriteUnauthorized(w, "No refresh token")
		return
	}

	renewed, err := h.service.Refresh(r.Context(), rawRefresh)
	if err != nil {
		auth.ClearSessionCookies(w, h.cookieCfg)
		switch {
		case errors.Is(err, models.ErrSessionReplaced):
			pkghttp.WriteError(w, http.StatusUnauthorized, "session_replaced", "Session was opened on another device")
		case errors.Is(err, models.ErrRefreshReuseDetected),
			errors.Is(err, models.ErrRefreshRevoked),
			errors.Is(err, models.ErrRefreshExpired),
			errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Refresh token is no longer valid")
		default:
			pkghttp.WriteInternalError(w, "Failed to refresh session")
		}
		return
	}

	auth.RefreshAccessCookie(w, h.cookieCfg, renewed.AccessToken, renewed.AccessTTL)
	auth.SetCSRFCookie(w, h.cookieCfg, renewed.CSRFToken, renewed.CSRFTTL)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message":    "Session renewed",
		"csrf_token": renewed.CSRFToken,
	})
}

// Session reports the authenticated account. AuthRequired already
// verified the sid, so reaching here means the session is live.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.service.SessionStatus(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteUnauthorized(w, "Account no longer exists")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to load session")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

// AdminCheck tells the frontend whether to render the admin dashboard.
func (h *AuthHandler) AdminCheck(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.service.SessionStatus(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteUnauthorized(w, "Account no longer exists")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to check role")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"admin": user.Role == "admin"})
}

// Logout revokes the refresh-token row behind the cookie and clears
// the cookies. It authenticates from the refresh cookie rather than the
// access token so a client whose access token already expired can still
// log out; only the double-submit check gates it.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := auth.VerifyDoubleSubmit(r); err != nil {
		pkghttp.WriteError(w, http.StatusForbidden, "csrf_mismatch", "CSRF token missing or invalid")
		return
	}

	if rawRefresh := auth.CookieValue(r, auth.RefreshTokenCookie); rawRefresh != "" {
		if err := h.service.Logout(r.Context(), rawRefresh, h.clientMeta(r)); err != nil {
			auth.ClearSessionCookies(w, h.cookieCfg)
			pkghttp.WriteInternalError(w, "Failed to log out")
			return
		}
	}

	auth.ClearSessionCookies(w, h.cookieCfg)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// ForgotPassword emails a reset link. Always answers 200 so the endpoint
// cannot confirm whether an address has an account.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		pkghttp.WriteInternalError(w, "Failed to process request")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "If that address has an account, a reset link is on its way",
	})
}

// ResetPassword redeems the reset link and sets a new password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Reset link is invalid or expired")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		case isPasswordError(err):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Failed to reset password")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password updated. Log in with your new password.",
	})
}

func isPasswordError(err error) bool {
	var pwErr *pkgauth.PasswordValidationError
	return errors.As(err, &pwErr)
}

// writeLoginError maps password-step failures onto distinguishable
// client errors without leaking which gate rejected the attempt beyond
// what the product requires.
func writeLoginError(w http.ResponseWriter, err error) {
	var locked *models.AccountLockedError
	switch {
	case errors.Is(err, models.ErrEmailNotVerified):
		pkghttp.WriteError(w, http.StatusForbidden, "email_not_verified", "Confirm your email first. We just sent you a new link.")
	case errors.As(err, &locked):
		pkghttp.WriteJSON(w, http.StatusForbidden, map[string]any{
			"error":        "account_locked",
			"message":      fmt.Sprintf("Too many failed attempts. Try again after %s.", locked.Until.UTC().Format(time.RFC3339)),
			"locked_until": locked.Until.UTC(),
		})
	case errors.Is(err, models.ErrAccountLockedTemporary):
		pkghttp.WriteError(w, http.StatusForbidden, "account_locked", "Too many failed attempts. Try again in a few minutes.")
	case errors.Is(err, models.ErrAccountLockedPermanent):
		pkghttp.WriteError(w, http.StatusForbidden, "account_blocked", "This account is blocked. Reset your password to regain access.")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Invalid email or password")
	default:
		pkghttp.WriteInternalError(w, "Login failed")
	}
}
