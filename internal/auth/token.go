package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pittsbowling/api/internal/models"
)

// TokenManager issues and verifies the three token families: short-lived
// access tokens, long-lived refresh tokens, and email-link tokens. Each
// family is signed with its own secret, so knowledge of an access token
// can never mint a refresh token.
type TokenManager struct {
	accessSecret  string
	refreshSecret string
	emailSecret   string

	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(accessSecret, refreshSecret, emailSecret string, accessExpiry, refreshExpiry time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		emailSecret:   emailSecret,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

func (tm *TokenManager) AccessExpiry() time.Duration  { return tm.accessExpiry }
func (tm *TokenManager) RefreshExpiry() time.Duration { return tm.refreshExpiry }

// SignAccessToken creates a short-lived access token bound to a session id.
func (tm *TokenManager) SignAccessToken(userID, username, sessionID string) (string, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		Type:      models.TokenTypeAccess,
		UserID:    userID,
		Username:  username,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.accessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tm.accessSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// SignRefreshToken creates a long-lived refresh token carrying the same
// session id as its paired access token. The returned expiry is what the
// stored refresh-token row must carry.
func (tm *TokenManager) SignRefreshToken(userID, sessionID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.refreshExpiry)
	claims := &models.TokenClaims{
		Type:      models.TokenTypeRefresh,
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tm.refreshSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateAccessToken verifies an access token and returns its claims.
func (tm *TokenManager) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	return tm.validate(tokenString, tm.accessSecret, models.TokenTypeAccess)
}

// ValidateRefreshToken verifies a refresh token and returns its claims.
func (tm *TokenManager) ValidateRefreshToken(tokenString string) (*models.TokenClaims, error) {
	return tm.validate(tokenString, tm.refreshSecret, models.TokenTypeRefresh)
}

func (tm *TokenManager) validate(tokenString, secret, wantType string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type != wantType {
		return nil, fmt.Errorf("invalid token: expected %s token", wantType)
	}

	return claims, nil
}

// SignEmailToken creates a token for an email-delivered link. Purpose is
// "verify" or "reset"; TTLs differ per purpose so the caller supplies one.
func (tm *TokenManager) SignEmailToken(purpose, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &models.EmailTokenClaims{
		Purpose: purpose,
		UserID:  userID,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tm.emailSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign email token: %w", err)
	}

	return tokenString, nil
}

// ValidateEmailToken verifies an email-link token for the given purpose.
func (tm *TokenManager) ValidateEmailToken(tokenString, purpose string) (*models.EmailTokenClaims, error) {
	claims := &models.EmailTokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.emailSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse email token: %w", err)
	}

	if !token.Valid || claims.Purpose != purpose {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}

// HashToken returns the SHA-256 hex digest used when storing refresh
// tokens. Raw refresh tokens are never persisted.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateSessionID returns a high-entropy opaque session correlator.
func GenerateSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
