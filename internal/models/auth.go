package models

import (
	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypeEmail   = "email"
)

// TokenClaims is the claim set carried by access and refresh tokens.
// SessionID binds both token types to the account's single live session.
type TokenClaims struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	Username  string `json:"username,omitempty"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// EmailTokenClaims is the claim set for email-delivered links
// (account confirmation and password reset).
type EmailTokenClaims struct {
	Purpose string `json:"purpose"` // "verify" or "reset"
	UserID  string `json:"user_id"`
	Email   string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
