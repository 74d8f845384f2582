package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/pittsbowling/api/internal/models"
)

const CSRFHeader = "X-CSRF-Token"

// GenerateCSRFToken returns a random hex token for the double-submit
// cookie pattern. The value is not stored server side; the check is
// header-equals-cookie.
func GenerateCSRFToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// VerifyDoubleSubmit checks that the CSRF header matches the CSRF cookie.
// Both must be present and equal; any other combination rejects.
func VerifyDoubleSubmit(r *http.Request) error {
	header := r.Header.Get(CSRFHeader)
	cookie := CookieValue(r, CSRFTokenCookie)

	if header == "" || cookie == "" {
		return models.ErrCSRFMismatch
	}
	if subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) != 1 {
		return models.ErrCSRFMismatch
	}
	return nil
}
