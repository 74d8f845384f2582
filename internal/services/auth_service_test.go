package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pittsbowling/api/internal/auth"
	"github.com/pittsbowling/api/internal/models"
	"github.com/pittsbowling/api/internal/twofactor"
	pkgauth "github.com/pittsbowling/api/pkg/auth"
)

type mockUserStore struct {
	createFunc        func(ctx context.Context, user *models.User) error
	getByIDFunc       func(ctx context.Context, id string) (*models.User, error)
	getByEmailFunc    func(ctx context.Context, email string) (*models.User, error)
	getByUsernameFunc func(ctx context.Context, username string) (*models.User, error)
	markVerifiedFunc  func(ctx context.Context, userID string) error
	setSessionFunc    func(ctx context.Context, userID string, sessionID *string) error
	updatePassFunc    func(ctx context.Context, userID, passwordHash string) error
}

func (m *mockUserStore) Create(ctx context.Context, user *models.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

func (m *mockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.getByEmailFunc(ctx, email)
}

func (m *mockUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.getByUsernameFunc != nil {
		return m.getByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *mockUserStore) MarkEmailVerified(ctx context.Context, userID string) error {
	if m.markVerifiedFunc != nil {
		return m.markVerifiedFunc(ctx, userID)
	}
	return nil
}

func (m *mockUserStore) SetCurrentSession(ctx context.Context, userID string, sessionID *string) error {
	if m.setSessionFunc != nil {
		return m.setSessionFunc(ctx, userID, sessionID)
	}
	return nil
}

func (m *mockUserStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	if m.updatePassFunc != nil {
		return m.updatePassFunc(ctx, userID, passwordHash)
	}
	return nil
}

type mockRefreshStore struct {
	insertFunc     func(ctx context.Context, token *models.RefreshToken) error
	findFunc       func(ctx context.Context, userID, tokenHash string) (*models.RefreshToken, error)
	revokeAllFunc  func(ctx context.Context, userID string) (int64, error)
	revokeHashFunc func(ctx context.Context, userID, tokenHash string) (bool, error)
}

func (m *mockRefreshStore) Insert(ctx context.Context, token *models.RefreshToken) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, token)
	}
	return nil
}

func (m *mockRefreshStore) FindByUserAndHash(ctx context.Context, userID, tokenHash string) (*models.RefreshToken, error) {
	return m.findFunc(ctx, userID, tokenHash)
}

func (m *mockRefreshStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	if m.revokeAllFunc != nil {
		return m.revokeAllFunc(ctx, userID)
	}
	return 0, nil
}

func (m *mockRefreshStore) RevokeByUserAndHash(ctx context.Context, userID, tokenHash string) (bool, error) {
	if m.revokeHashFunc != nil {
		return m.revokeHashFunc(ctx, userID, tokenHash)
	}
	return true, nil
}

type authFixture struct {
	svc      *AuthService
	users    *mockUserStore
	tokens   *mockRefreshStore
	notifier *mockNotifier
	codes    *twofactor.MemoryStore
	tm       *auth.TokenManager
	lockout  *mockLockoutStore
}

func newAuthFixture(t *testing.T, users *mockUserStore, tokens *mockRefreshStore) *authFixture {
	t.Helper()

	notifier := &mockNotifier{}
	codes := twofactor.NewMemoryStore()
	audit := testAudit()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tm := auth.NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", "email-secret-for-tests", 15*time.Minute, 7*24*time.Hour)

	lockStore := &mockLockoutStore{
		recordFailedFunc:   func(ctx context.Context, userID string) (int, error) { return 1, nil },
		clearExpiredFunc:   func(ctx context.Context, userID string) error { return nil },
		clearOnSuccessFunc: func(ctx context.Context, userID string) error { return nil },
	}
	lockout := NewLockoutService(lockStore, audit, 4, 5*time.Minute, 3)
	twoFactorSvc := NewTwoFactorService(codes, notifier, audit, 5*time.Minute, time.Minute, 5)

	svc := NewAuthService(users, tokens, lockout, twoFactorSvc, notifier, tm, audit, log,
		"https://bowling.example.com", 24*time.Hour, 15*time.Minute)

	return &authFixture{
		svc:      svc,
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		codes:    codes,
		tm:       tm,
		lockout:  lockStore,
	}
}

func hashedPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := pkgauth.HashPassword(password)
	require.NoError(t, err)
	return hash
}

func verifiedUser(t *testing.T, password string) *models.User {
	t.Helper()
	return &models.User{
		ID:            "u1",
		Name:          "Alice",
		Username:      "alice",
		Email:         "alice@example.com",
		PasswordHash:  hashedPassword(t, password),
		EmailVerified: true,
		Role:          "user",
	}
}

func TestLoginHappyPathSendsCode(t *testing.T) {
	user := verifiedUser(t, "Sup3rSecret")
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	fx := newAuthFixture(t, users, &mockRefreshStore{})

	err := fx.svc.Login(context.Background(), "alice@example.com", "Sup3rSecret", ClientMeta{})
	require.NoError(t, err)
	assert.Len(t, fx.notifier.sentCodes, 1)
}

func TestLoginUnknownEmail(t *testing.T) {
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
	}
	fx := newAuthFixture(t, users, &mockRefreshStore{})

	err := fx.svc.Login(context.Background(), "nobody@example.com", "whatever", ClientMeta{})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Empty(t, fx.notifier.sentCodes)
}

func TestLoginUnverifiedAccountResendsLink(t *testing.T) {
	user := verifiedUser(t, "Sup3rSecret")
	user.EmailVerified = false
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	fx := newAuthFixture(t, users, &mockRefreshStore{})

	err := fx.svc.Login(context.Background(), "alice@example.com", "Sup3rSecret", ClientMeta{})
	assert.ErrorIs(t, err, models.ErrEmailNotVerified)
	assert.Len(t, fx.notifier.sentLinks, 1)
	assert.Equal(t, "verify", fx.notifier.lastLinkKind)
	assert.Empty(t, fx.notifier.sentCodes)
}

func TestLoginPermanentlyBlockedAccount(t *testing.T) {
	user := verifiedUser(t, "Sup3rSecret")
	user.PermanentlyBlocked = true
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	fx := newAuthFixture(t, users, &mockRefreshStore{})

	// Even the correct password is rejected.
	err := fx.svc.Login(context.Background(), "alice@example.com", "Sup3rSecret", ClientMeta{})
	assert.ErrorIs(t, err, models.ErrAccountLockedPermanent)
	assert.Empty(t, fx.notifier.sentCodes)
}

func TestLoginTemporarilyLockedAccount(t *testing.T) {
	user := verifiedUser(t, "Sup3rSecret")
	user.LockedUntil = timePtr(time.Now().Add(3 * time.Minute))
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	fx := newAuthFixture(t, users, &mockRefreshStore{})

	err := fx.svc.Login(context.Background(), "alice@example.com", "Sup3rSecret", ClientMeta{})
	assert.ErrorIs(t, err, models.ErrAccountLockedTemporary)
}

func TestLoginWrongPasswordRegistersFailure(t *testing.T) {
	user := verifiedUser(t, "Sup3rSecret")
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	fx := newAuthFixture(t, users, &mockRefreshStore{})

	recorded := false
	fx.lockout.recordFailedFunc = func(ctx context.Context, userID string) (int, error) {
		recorded = true
		return 1, nil
	}

	err := fx.svc.Login(context.Background(), "alice@example.com", "WrongPass1", ClientMeta{})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.True(t, recorded)
}

func TestLoginFourthFailureLocksAccount(t *testing.T) {
	user := verifiedUser(t, "Sup3rSecret")
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	fx := newAuthFixture(t, users, &mockRefreshStore{})

	fx.lockout.recordFailedFunc = func(ctx context.Context, userID string) (int, error) {
		return 4, nil
	}
	fx.lockout.applyTempLockFunc = func(ctx context.Context, userID string, until time.Time) (int, error) {
		return 1, nil
	}

	err := fx.svc.Login(context.Background(), "alice@example.com", "WrongPass1", ClientMeta{})
	assert.ErrorIs(t, err, models.ErrAccountLockedTemporary)
}

func TestVerifyTwoFactorIssuesSessionAndDisplacesOld(t *testing.T) {
	user := verifiedUser(t, "Sup3rSecret")
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}

	var revokedUser string
	var inserted *models.RefreshToken
	var setSID *string
	tokens := &mockRefreshStore{
		revokeAllFunc: func(ctx context.Context, userID string) (int64, error) {
			revokedUser = userID
			return 1, nil
		},
		insertFunc: func(ctx context.Context, token *models.RefreshToken) error {
			inserted = token
			return nil
		},
	}
	users.setSessionFunc = func(ctx context.Context, userID string, sessionID *string) error {
		setSID = sessionID
		return nil
	}

	fx := newAuthFixture(t, users, tokens)
	ctx := context.Background()

	require.NoError(t, fx.svc.Login(ctx, "alice@example.com", "Sup3rSecret", ClientMeta{IP: "203.0.113.9"}))
	code := fx.notifier.sentCodes[0]

	session, err := fx.svc.VerifyTwoFactor(ctx, "alice@example.com", code, ClientMeta{IP: "203.0.113.9", UserAgent: "go-test"})
	require.NoError(t, err)

	// Old sessions were revoked before the new token row went in.
	assert.Equal(t, "u1", revokedUser)
	require.NotNil(t, inserted)
	assert.Equal(t, session.SessionID, inserted.SessionID)
	assert.Equal(t, auth.HashToken(session.RefreshToken), inserted.TokenHash)
	assert.Equal(t, "203.0.113.9", inserted.IP)

	// current_session moved to the new sid.
	require.NotNil(t, setSID)
	assert.Equal(t, session.SessionID, *setSID)

	// Access and refresh tokens carry the same sid.
	accessClaims, err := fx.tm.ValidateAccessToken(session.AccessToken)
	require.NoError(t, err)
	refreshClaims, err := fx.tm.ValidateRefreshToken(session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, session.SessionID, accessClaims.SessionID)
	assert.Equal(t, session.SessionID, refreshClaims.SessionID)

	assert.NotEmpty(t, session.CSRFToken)
}

func TestVerifyTwoFactorWrongCode(t *testing.T) {
	user := verifiedUser(t, "Sup3rSecret")
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	fx := newAuthFixture(t, users, &mockRefreshStore{})
	ctx := context.Background()

	require.NoError(t, fx.svc.Login(ctx, "alice@example.com", "Sup3rSecret", ClientMeta{}))

	_, err := fx.svc.VerifyTwoFactor(ctx, "alice@example.com", "not-the-code", ClientMeta{})
	assert.ErrorIs(t, err, models.ErrTwoFactorInvalid)
}

func TestRefreshIssuesNewAccessTokenSameSession(t *testing.T) {
	user := verifiedUser(t, "Sup3rSecret")
	user.CurrentSession = strPtrAuth("sess-live")

	raw, expiry, err := auth.NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", "email-secret-for-tests", 15*time.Minute, 7*24*time.Hour).
		SignRefreshToken("u1", "sess-live")
	require.NoError(t, err)

	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) { return user, nil },
		getByIDFunc:    func(ctx context.Context, id string) (*models.User, error) { return user, nil },
	}
	tokens := &mockRefreshStore{
		findFunc: func(ctx context.Context, userID, tokenHash string) (*models.RefreshToken, error) {
			assert.Equal(t, auth.HashToken(raw), tokenHash)
			return &models.RefreshToken{
				UserID:    "u1",
				TokenHash: tokenHash,
				SessionID: "sess-live",
				ExpiresAt: expiry,
			}, nil
		},
	}
	fx := newAuthFixture(t, users, tokens)

	renewed, err := fx.svc.Refresh(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, renewed.AccessTTL)
	assert.NotEmpty(t, renewed.CSRFToken)

	claims, err := fx.tm.ValidateAccessToken(renewed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "sess-live", claims.SessionID)
}

func TestRefreshUnknownHashRevokesEverything(t *testing.T) {
	raw, _, err := auth.NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", "email-secret-for-tests", 15*time.Minute, 7*24*time.Hour).
		SignRefreshToken("u1", "sess-live")
	require.NoError(t, err)

	revoked := false
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) { return nil, models.ErrNotFound },
		getByIDFunc:    func(ctx context.Context, id string) (*models.User, error) { return nil, models.ErrNotFound },
	}
	tokens := &mockRefreshStore{
		findFunc: func(ctx context.Context, userID, tokenHash string) (*models.RefreshToken, error) {
			return nil, models.ErrNotFound
		},
		revokeAllFunc: func(ctx context.Context, userID string) (int64, error) {
			revoked = true
			assert.Equal(t, "u1", userID)
			return 2, nil
		},
	}
	fx := newAuthFixture(t, users, tokens)

	_, err = fx.svc.Refresh(context.Background(), raw)
	assert.ErrorIs(t, err, models.ErrRefreshReuseDetected)
	assert.True(t, revoked)
}

func TestRefreshRevokedToken(t *testing.T) {
	raw, expiry, err := auth.NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", "email-secret-for-tests", 15*time.Minute, 7*24*time.Hour).
		SignRefreshToken("u1", "sess-live")
	require.NoError(t, err)

	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) { return nil, models.ErrNotFound },
		getByIDFunc:    func(ctx context.Context, id string) (*models.User, error) { return nil, models.ErrNotFound },
	}
	tokens := &mockRefreshStore{
		findFunc: func(ctx context.Context, userID, tokenHash string) (*models.RefreshToken, error) {
			return &models.RefreshToken{UserID: "u1", SessionID: "sess-live", ExpiresAt: expiry, Revoked: true}, nil
		},
	}
	fx := newAuthFixture(t, users, tokens)

	_, err = fx.svc.Refresh(context.Background(), raw)
	assert.ErrorIs(t, err, models.ErrRefreshRevoked)
}

func TestRefreshAfterSessionDisplacement(t *testing.T) {
	user := verifiedUser(t, "Sup3rSecret")
	user.CurrentSession = strPtrAuth("sess-newer")

	raw, expiry, err := auth.NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", "email-secret-for-tests", 15*time.Minute, 7*24*time.Hour).
		SignRefreshToken("u1", "sess-old")
	require.NoError(t, err)

	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) { return user, nil },
		getByIDFunc:    func(ctx context.Context, id string) (*models.User, error) { return user, nil },
	}
	tokens := &mockRefreshStore{
		findFunc: func(ctx context.Context, userID, tokenHash string) (*models.RefreshToken, error) {
			return &models.RefreshToken{UserID: "u1", SessionID: "sess-old", ExpiresAt: expiry}, nil
		},
	}
	fx := newAuthFixture(t, users, tokens)

	_, err = fx.svc.Refresh(context.Background(), raw)
	assert.ErrorIs(t, err, models.ErrSessionReplaced)
}

func TestLogoutRevokesPresentedTokenAndClearsSession(t *testing.T) {
	raw, _, err := auth.NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", "email-secret-for-tests", 15*time.Minute, 7*24*time.Hour).
		SignRefreshToken("u1", "sess-live")
	require.NoError(t, err)

	user := verifiedUser(t, "Sup3rSecret")
	user.CurrentSession = strPtrAuth("sess-live")

	revoked := false
	var cleared bool
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) { return user, nil },
		getByIDFunc:    func(ctx context.Context, id string) (*models.User, error) { return user, nil },
		setSessionFunc: func(ctx context.Context, userID string, sessionID *string) error {
			cleared = sessionID == nil
			return nil
		},
	}
	tokens := &mockRefreshStore{
		revokeHashFunc: func(ctx context.Context, userID, tokenHash string) (bool, error) {
			revoked = true
			assert.Equal(t, "u1", userID)
			assert.Equal(t, auth.HashToken(raw), tokenHash)
			return true, nil
		},
	}
	fx := newAuthFixture(t, users, tokens)

	require.NoError(t, fx.svc.Logout(context.Background(), raw, ClientMeta{}))
	assert.True(t, revoked)
	assert.True(t, cleared)
}

func TestLogoutWithDisplacedTokenKeepsNewerSession(t *testing.T) {
	raw, _, err := auth.NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", "email-secret-for-tests", 15*time.Minute, 7*24*time.Hour).
		SignRefreshToken("u1", "sess-old")
	require.NoError(t, err)

	user := verifiedUser(t, "Sup3rSecret")
	user.CurrentSession = strPtrAuth("sess-newer")

	sessionTouched := false
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) { return user, nil },
		getByIDFunc:    func(ctx context.Context, id string) (*models.User, error) { return user, nil },
		setSessionFunc: func(ctx context.Context, userID string, sessionID *string) error {
			sessionTouched = true
			return nil
		},
	}
	tokens := &mockRefreshStore{
		revokeHashFunc: func(ctx context.Context, userID, tokenHash string) (bool, error) {
			return true, nil
		},
	}
	fx := newAuthFixture(t, users, tokens)

	require.NoError(t, fx.svc.Logout(context.Background(), raw, ClientMeta{}))
	assert.False(t, sessionTouched)
}

func TestLogoutWithGarbageTokenIsNoop(t *testing.T) {
	revokeCalled := false
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) { return nil, models.ErrNotFound },
	}
	tokens := &mockRefreshStore{
		revokeHashFunc: func(ctx context.Context, userID, tokenHash string) (bool, error) {
			revokeCalled = true
			return false, nil
		},
	}
	fx := newAuthFixture(t, users, tokens)

	require.NoError(t, fx.svc.Logout(context.Background(), "not-a-jwt", ClientMeta{}))
	assert.False(t, revokeCalled)
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
	}
	fx := newAuthFixture(t, users, &mockRefreshStore{})

	err := fx.svc.ForgotPassword(context.Background(), "nobody@example.com")
	assert.NoError(t, err)
	assert.Empty(t, fx.notifier.sentLinks)
}

func TestResetPasswordLiftsBlocksAndKillsSessions(t *testing.T) {
	fxTM := auth.NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", "email-secret-for-tests", 15*time.Minute, 7*24*time.Hour)
	token, err := fxTM.SignEmailToken("reset", "u1", "alice@example.com", 15*time.Minute)
	require.NoError(t, err)

	var newHash string
	revoked := false
	sessionCleared := false
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) { return nil, models.ErrNotFound },
		updatePassFunc: func(ctx context.Context, userID, passwordHash string) error {
			assert.Equal(t, "u1", userID)
			newHash = passwordHash
			return nil
		},
		setSessionFunc: func(ctx context.Context, userID string, sessionID *string) error {
			sessionCleared = sessionID == nil
			return nil
		},
	}
	tokens := &mockRefreshStore{
		revokeAllFunc: func(ctx context.Context, userID string) (int64, error) {
			revoked = true
			return 1, nil
		},
	}
	fx := newAuthFixture(t, users, tokens)

	require.NoError(t, fx.svc.ResetPassword(context.Background(), token, "Fresh1Password"))
	assert.NoError(t, pkgauth.ComparePassword(newHash, "Fresh1Password"))
	assert.True(t, revoked)
	assert.True(t, sessionCleared)
}

func TestResetPasswordRejectsVerifyToken(t *testing.T) {
	fxTM := auth.NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", "email-secret-for-tests", 15*time.Minute, 7*24*time.Hour)
	token, err := fxTM.SignEmailToken("verify", "u1", "alice@example.com", time.Hour)
	require.NoError(t, err)

	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) { return nil, models.ErrNotFound },
	}
	fx := newAuthFixture(t, users, &mockRefreshStore{})

	err = fx.svc.ResetPassword(context.Background(), token, "Fresh1Password")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestOAuthLoginCreatesVerifiedAccount(t *testing.T) {
	var created *models.User
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			if created != nil {
				return created, nil
			}
			return nil, models.ErrNotFound
		},
		createFunc: func(ctx context.Context, user *models.User) error {
			user.ID = "u-new"
			created = user
			return nil
		},
	}
	fx := newAuthFixture(t, users, &mockRefreshStore{})

	session, err := fx.svc.OAuthLogin(context.Background(), OAuthProfile{
		Email:   "bob@example.com",
		Name:    "Bob",
		Subject: "google-sub-1",
	}, ClientMeta{})
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.True(t, created.EmailVerified)
	assert.Equal(t, "google_google-sub-1", created.Username)
	assert.NotEmpty(t, session.AccessToken)
	// No email-code step for provider-verified identities.
	assert.Empty(t, fx.notifier.sentCodes)
}

func TestOAuthLoginBlockedAccount(t *testing.T) {
	user := verifiedUser(t, "Sup3rSecret")
	user.PermanentlyBlocked = true
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) { return user, nil },
	}
	fx := newAuthFixture(t, users, &mockRefreshStore{})

	_, err := fx.svc.OAuthLogin(context.Background(), OAuthProfile{Email: "alice@example.com"}, ClientMeta{})
	assert.ErrorIs(t, err, models.ErrAccountLockedPermanent)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return &models.User{ID: "existing"}, nil
		},
	}
	fx := newAuthFixture(t, users, &mockRefreshStore{})

	_, err := fx.svc.Register(context.Background(), RegisterInput{
		Name: "Alice", Username: "alice", Email: "alice@example.com", Password: "Sup3rSecret",
	})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestRegisterSendsVerificationLink(t *testing.T) {
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
		createFunc: func(ctx context.Context, user *models.User) error {
			user.ID = "u-new"
			return nil
		},
	}
	fx := newAuthFixture(t, users, &mockRefreshStore{})

	user, err := fx.svc.Register(context.Background(), RegisterInput{
		Name: "Alice", Username: "alice", Email: "alice@example.com", Password: "Sup3rSecret",
	})
	require.NoError(t, err)
	assert.False(t, user.EmailVerified)
	assert.Len(t, fx.notifier.sentLinks, 1)
	assert.Contains(t, fx.notifier.sentLinks[0], "https://bowling.example.com/confirm-email?token=")
}

func TestConfirmEmailMarksVerified(t *testing.T) {
	fxTM := auth.NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", "email-secret-for-tests", 15*time.Minute, 7*24*time.Hour)
	token, err := fxTM.SignEmailToken("verify", "u1", "alice@example.com", time.Hour)
	require.NoError(t, err)

	marked := false
	users := &mockUserStore{
		getByEmailFunc: func(ctx context.Context, email string) (*models.User, error) { return nil, models.ErrNotFound },
		markVerifiedFunc: func(ctx context.Context, userID string) error {
			marked = userID == "u1"
			return nil
		},
	}
	fx := newAuthFixture(t, users, &mockRefreshStore{})

	require.NoError(t, fx.svc.ConfirmEmail(context.Background(), token))
	assert.True(t, marked)
}

func strPtrAuth(s string) *string { return &s }
