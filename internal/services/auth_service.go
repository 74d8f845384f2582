package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pittsbowling/api/internal/auth"
	"github.com/pittsbowling/api/internal/metrics"
	"github.com/pittsbowling/api/internal/models"
	pkgauth "github.com/pittsbowling/api/pkg/auth"
	"github.com/pittsbowling/api/pkg/logger"
)

// dummyPasswordHash is a syntactically valid bcrypt hash compared
// against when the account does not exist.
const dummyPasswordHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

type authUserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	MarkEmailVerified(ctx context.Context, userID string) error
	SetCurrentSession(ctx context.Context, userID string, sessionID *string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type refreshTokenStore interface {
	Insert(ctx context.Context, token *models.RefreshToken) error
	FindByUserAndHash(ctx context.Context, userID, tokenHash string) (*models.RefreshToken, error)
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	RevokeByUserAndHash(ctx context.Context, userID, tokenHash string) (bool, error)
}

// ClientMeta is the per-request audit context threaded into session
// issuance.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// RegisterInput is the validated payload for account creation.
type RegisterInput struct {
	Name     string
	LastName string
	Username string
	Email    string
	Password string
}

// SessionTokens is everything a completed login hands back to the
// cookie layer.
type SessionTokens struct {
	User         *models.User
	SessionID    string
	AccessToken  string
	RefreshToken string
	CSRFToken    string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// RenewedSession is what a successful silent refresh hands back: a new
// access token plus a fresh anti-CSRF token for the double-submit pair.
type RenewedSession struct {
	AccessToken string
	AccessTTL   time.Duration
	CSRFToken   string
	CSRFTTL     time.Duration
}

// AuthService owns the account lifecycle: registration, the two-step
// login, session issuance and renewal, logout, and password recovery.
type AuthService struct {
	users     authUserStore
	tokens    refreshTokenStore
	lockout   *LockoutService
	twoFactor *TwoFactorService
	notifier  Notifier
	tm        *auth.TokenManager
	audit     *logger.AuditLogger
	logger    *slog.Logger

	frontendOrigin      string
	emailVerifyExpiry   time.Duration
	passwordResetExpiry time.Duration
}

func NewAuthService(
	users authUserStore,
	tokens refreshTokenStore,
	lockout *LockoutService,
	twoFactor *TwoFactorService,
	notifier Notifier,
	tm *auth.TokenManager,
	audit *logger.AuditLogger,
	log *slog.Logger,
	frontendOrigin string,
	emailVerifyExpiry, passwordResetExpiry time.Duration,
) *AuthService {
	return &AuthService{
		users:               users,
		tokens:              tokens,
		lockout:             lockout,
		twoFactor:           twoFactor,
		notifier:            notifier,
		tm:                  tm,
		audit:               audit,
		logger:              log,
		frontendOrigin:      frontendOrigin,
		emailVerifyExpiry:   emailVerifyExpiry,
		passwordResetExpiry: passwordResetExpiry,
	}
}

// Register creates an unverified account and emails the confirmation
// link. The account cannot log in until the link is followed.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if err := pkgauth.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if _, err := s.users.GetByUsername(ctx, input.Username); err == nil {
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	hash, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         input.Name,
		LastName:     input.LastName,
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         "user",
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.sendVerificationLink(ctx, user); err != nil {
		// The account exists; the user can request another link.
		s.logger.Error("failed to send verification email",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	s.audit.LogAccountAction("account_registered", user.ID, "", map[string]string{
		"email": logger.SanitizedEmail(user.Email),
	})
	return user, nil
}

func (s *AuthService) sendVerificationLink(ctx context.Context, user *models.User) error {
	token, err := s.tm.SignEmailToken("verify", user.ID, user.Email, s.emailVerifyExpiry)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/confirm-email?token=%s", s.frontendOrigin, token)
	return s.notifier.SendVerificationLink(ctx, user.Email, user.Name, link)
}

// ConfirmEmail redeems a verification link.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) error {
	claims, err := s.tm.ValidateEmailToken(token, "verify")
	if err != nil {
		return models.ErrUnauthorized
	}
	if err := s.users.MarkEmailVerified(ctx, claims.UserID); err != nil {
		return err
	}
	s.audit.LogAccountAction("email_verified", claims.UserID, "", nil)
	return nil
}

// Login runs the password step. On success nothing is issued yet; a
// two-factor code goes out and the caller waits for VerifyTwoFactor.
// The gate order is deliberate: verification, then lock state, then the
// password itself, so a locked account never leaks whether the password
// was right.
func (s *AuthService) Login(ctx context.Context, email, password string, meta ClientMeta) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Burn comparable time so absent accounts are not
			// distinguishable by response latency.
			_ = pkgauth.ComparePassword(dummyPasswordHash, password)
			metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
			return models.ErrUnauthorized
		}
		return err
	}

	if !user.EmailVerified {
		if err := s.sendVerificationLink(ctx, user); err != nil {
			s.logger.Error("failed to resend verification email",
				slog.String("user_id", user.ID),
				slog.Any("error", err))
		}
		metrics.LoginAttempts.WithLabelValues("unverified").Inc()
		return models.ErrEmailNotVerified
	}

	now := time.Now()
	if err := s.lockout.Gate(ctx, user, now); err != nil {
		s.auditLoginFailure(user.ID, meta, "account_locked")
		if errors.Is(err, models.ErrAccountLockedPermanent) {
			metrics.LoginAttempts.WithLabelValues("permanent_block").Inc()
		} else {
			metrics.LoginAttempts.WithLabelValues("locked").Inc()
		}
		return err
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.auditLoginFailure(user.ID, meta, "invalid_password")
		metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()

		if lockErr := s.lockout.RegisterFailure(ctx, user.ID, now); lockErr != nil {
			return lockErr
		}
		return models.ErrUnauthorized
	}

	if err := s.twoFactor.Initiate(ctx, user); err != nil {
		return err
	}

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "login_password_accepted",
		UserID:    user.ID,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return nil
}

// ResendTwoFactor re-sends the pending login code, subject to throttling.
func (s *AuthService) ResendTwoFactor(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrTwoFactorExpired
		}
		return err
	}
	return s.twoFactor.Resend(ctx, user)
}

// VerifyTwoFactor consumes the emailed code and, on success, issues the
// session. Issuance displaces any existing session: every live refresh
// token is revoked before the new one is written, and current_session
// moves to the new sid.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, email, code string, meta ClientMeta) (*SessionTokens, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrTwoFactorExpired
		}
		return nil, err
	}

	if err := s.twoFactor.Verify(ctx, user.ID, code); err != nil {
		s.auditLoginFailure(user.ID, meta, "twofactor_failed")
		return nil, err
	}

	session, err := s.issueSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	if err := s.lockout.RegisterSuccess(ctx, user.ID); err != nil {
		return nil, err
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "login_completed",
		UserID:    user.ID,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return session, nil
}

// issueSession mints the token triple and makes the new sid the
// account's only live session. Revocation runs before insertion so a
// crash between the two steps fails closed (no session at all) rather
// than open (two sessions).
func (s *AuthService) issueSession(ctx context.Context, user *models.User, meta ClientMeta) (*SessionTokens, error) {
	sessionID, err := auth.GenerateSessionID()
	if err != nil {
		return nil, err
	}

	revoked, err := s.tokens.RevokeAllForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if revoked > 0 {
		metrics.SessionsDisplaced.Inc()
		s.audit.LogSecurityEvent("session_displaced", user.ID, map[string]string{
			"revoked_tokens": strconv.FormatInt(revoked, 10),
		})
	}

	accessToken, err := s.tm.SignAccessToken(user.ID, user.Username, sessionID)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExpiry, err := s.tm.SignRefreshToken(user.ID, sessionID)
	if err != nil {
		return nil, err
	}

	row := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: auth.HashToken(refreshToken),
		SessionID: sessionID,
		ExpiresAt: refreshExpiry,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := s.tokens.Insert(ctx, row); err != nil {
		return nil, err
	}

	if err := s.users.SetCurrentSession(ctx, user.ID, &sessionID); err != nil {
		return nil, err
	}

	csrfToken, err := auth.GenerateCSRFToken()
	if err != nil {
		return nil, err
	}

	return &SessionTokens{
		User:         user,
		SessionID:    sessionID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CSRFToken:    csrfToken,
		AccessTTL:    s.tm.AccessExpiry(),
		RefreshTTL:   s.tm.RefreshExpiry(),
	}, nil
}

// Refresh trades a valid refresh token for a new access token and a
// fresh CSRF token. The refresh token itself is not rotated; it lives
// out its original expiry. A presented token whose hash is unknown is
// treated as reuse of a revoked token and kills every session for the
// account.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (*RenewedSession, error) {
	claims, err := s.tm.ValidateRefreshToken(rawRefreshToken)
	if err != nil {
		return nil, models.ErrUnauthorized
	}

	row, err := s.tokens.FindByUserAndHash(ctx, claims.UserID, auth.HashToken(rawRefreshToken))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			if _, revokeErr := s.tokens.RevokeAllForUser(ctx, claims.UserID); revokeErr != nil {
				return nil, revokeErr
			}
			metrics.RefreshReuse.Inc()
			s.audit.LogSecurityEvent("refresh_reuse_detected", claims.UserID, map[string]string{
				"sid": claims.SessionID,
			})
			return nil, models.ErrRefreshReuseDetected
		}
		return nil, err
	}

	if row.Revoked {
		return nil, models.ErrRefreshRevoked
	}
	if row.Expired(time.Now()) {
		return nil, models.ErrRefreshExpired
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user.CurrentSession == nil || *user.CurrentSession != row.SessionID {
		return nil, models.ErrSessionReplaced
	}

	accessToken, err := s.tm.SignAccessToken(user.ID, user.Username, row.SessionID)
	if err != nil {
		return nil, err
	}

	csrfToken, err := auth.GenerateCSRFToken()
	if err != nil {
		return nil, err
	}

	return &RenewedSession{
		AccessToken: accessToken,
		AccessTTL:   s.tm.AccessExpiry(),
		CSRFToken:   csrfToken,
		CSRFTTL:     s.tm.RefreshExpiry(),
	}, nil
}

// SessionStatus returns the account behind an authenticated session.
func (s *AuthService) SessionStatus(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// Logout revokes the refresh-token row the client presented and clears
// current_session when that row is the live session. A token that does
// not parse or match any row revokes nothing; the caller clears its
// cookies either way.
func (s *AuthService) Logout(ctx context.Context, rawRefreshToken string, meta ClientMeta) error {
	claims, err := s.tm.ValidateRefreshToken(rawRefreshToken)
	if err != nil {
		return nil
	}

	revoked, err := s.tokens.RevokeByUserAndHash(ctx, claims.UserID, auth.HashToken(rawRefreshToken))
	if err != nil {
		return err
	}
	if !revoked {
		return nil
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.CurrentSession != nil && *user.CurrentSession == claims.SessionID {
		if err := s.users.SetCurrentSession(ctx, claims.UserID, nil); err != nil {
			return err
		}
	}

	s.audit.LogAccountAction("logout", claims.UserID, meta.IP, nil)
	return nil
}

// ForgotPassword emails a reset link. Unknown addresses are silently
// accepted so the endpoint cannot reveal whether an address has an account.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := s.tm.SignEmailToken("reset", user.ID, user.Email, s.passwordResetExpiry)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/reset-password?token=%s", s.frontendOrigin, token)
	if err := s.notifier.SendPasswordResetLink(ctx, user.Email, user.Name, link); err != nil {
		return err
	}

	s.audit.LogAccountAction("password_reset_requested", user.ID, "", nil)
	return nil
}

// ResetPassword redeems a reset link. Setting a new password lifts any
// block, permanent included, and kills every live session.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.tm.ValidateEmailToken(token, "reset")
	if err != nil {
		return models.ErrUnauthorized
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, claims.UserID, hash); err != nil {
		return err
	}
	if _, err := s.tokens.RevokeAllForUser(ctx, claims.UserID); err != nil {
		return err
	}
	if err := s.users.SetCurrentSession(ctx, claims.UserID, nil); err != nil {
		return err
	}

	s.audit.LogAccountAction("password_reset_completed", claims.UserID, "", nil)
	return nil
}

// OAuthProfile is the identity asserted by a completed Google exchange.
type OAuthProfile struct {
	Email    string
	Name     string
	LastName string
	Subject  string
}

// OAuthLogin signs in (or first creates) an account from a verified
// Google identity. The provider already proved control of the mailbox,
// so the account is created verified and the email-code step is skipped.
// Session issuance still displaces any existing session.
func (s *AuthService) OAuthLogin(ctx context.Context, profile OAuthProfile, meta ClientMeta) (*SessionTokens, error) {
	user, err := s.users.GetByEmail(ctx, profile.Email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		user, err = s.createOAuthUser(ctx, profile)
		if err != nil {
			return nil, err
		}
	}

	if user.PermanentlyBlocked {
		return nil, models.ErrAccountLockedPermanent
	}
	if user.Locked(time.Now()) {
		return nil, &models.AccountLockedError{Until: *user.LockedUntil}
	}

	session, err := s.issueSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	if err := s.lockout.RegisterSuccess(ctx, user.ID); err != nil {
		return nil, err
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "oauth_login_completed",
		UserID:    user.ID,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return session, nil
}

func (s *AuthService) createOAuthUser(ctx context.Context, profile OAuthProfile) (*models.User, error) {
	// The account has no usable password; the stored hash is random so
	// the password login path always fails cleanly.
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate placeholder password: %w", err)
	}
	hash, err := pkgauth.HashPassword(hex.EncodeToString(buf)[:32] + "Aa1")
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:          profile.Name,
		LastName:      profile.LastName,
		Username:      "google_" + profile.Subject,
		Email:         profile.Email,
		PasswordHash:  hash,
		EmailVerified: true,
		Role:          "user",
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.audit.LogAccountAction("account_registered_oauth", user.ID, "", map[string]string{
		"email": logger.SanitizedEmail(user.Email),
	})
	return user, nil
}

func (s *AuthService) auditLoginFailure(userID string, meta ClientMeta, reason string) {
	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType:     "login_failed",
		UserID:        userID,
		IPAddress:     meta.IP,
		UserAgent:     meta.UserAgent,
		Success:       false,
		FailureReason: reason,
	})
}
