package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pittsbowling/api/internal/models"
)

const recaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// RecaptchaVerifier checks login bot-challenge tokens against Google's
// siteverify endpoint. With no secret configured the check is disabled,
// which is the local development default.
type RecaptchaVerifier struct {
	secret    string
	verifyURL string
	client    *http.Client
	logger    *slog.Logger
}

func NewRecaptchaVerifier(secret string, log *slog.Logger) *RecaptchaVerifier {
	return &RecaptchaVerifier{
		secret:    secret,
		verifyURL: recaptchaVerifyURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    log,
	}
}

func (v *RecaptchaVerifier) Enabled() bool {
	return v.secret != ""
}

// Verify returns models.ErrCaptchaFailed when the token is absent or
// rejected. Transport failures are reported as errors, not as a pass.
func (v *RecaptchaVerifier) Verify(ctx context.Context, token string) error {
	if !v.Enabled() {
		return nil
	}
	if token == "" {
		return models.ErrCaptchaFailed
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("captcha verification request failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode captcha response: %w", err)
	}

	if !result.Success {
		v.logger.Warn("captcha rejected", slog.Any("error_codes", result.ErrorCodes))
		return models.ErrCaptchaFailed
	}

	return nil
}
