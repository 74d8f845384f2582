package handlers

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pittsbowling/api/internal/auth"
	"github.com/pittsbowling/api/internal/config"
	"github.com/pittsbowling/api/internal/services"
	pkghttp "github.com/pittsbowling/api/pkg/http"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	oauthStateCookie = "oauthState"
)

// OAuthLoginService is the slice of AuthService the OAuth flow needs.
type OAuthLoginService interface {
	OAuthLogin(ctx context.Context, profile services.OAuthProfile, meta services.ClientMeta) (*services.SessionTokens, error)
}

// OAuthHandler drives the Google authorization-code flow. State is a
// random value pinned in a short-lived cookie and echoed back by Google.
type OAuthHandler struct {
	service        OAuthLoginService
	cfg            config.OAuthConfig
	cookieCfg      auth.CookieConfig
	ipConfig       *pkghttp.IPConfig
	frontendOrigin string
	httpClient     *http.Client
	logger         *slog.Logger
}

func NewOAuthHandler(service OAuthLoginService, cfg config.OAuthConfig, cookieCfg auth.CookieConfig, ipConfig *pkghttp.IPConfig, frontendOrigin string, log *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		service:        service,
		cfg:            cfg,
		cookieCfg:      cookieCfg,
		ipConfig:       ipConfig,
		frontendOrigin: frontendOrigin,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		logger:         log,
	}
}

// GoogleRedirect sends the browser to Google's consent screen.
func (h *OAuthHandler) GoogleRedirect(w http.ResponseWriter, r *http.Request) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		pkghttp.WriteInternalError(w, "Failed to start login")
		return
	}
	state := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((5 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.cookieCfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	params := url.Values{
		"client_id":     {h.cfg.GoogleClientID},
		"redirect_uri":  {h.cfg.GoogleCallbackURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
	}
	http.Redirect(w, r, googleAuthURL+"?"+params.Encode(), http.StatusFound)
}

// GoogleCallback finishes the flow: state check, code exchange, profile
// fetch, then the shared session issuance. On success the browser is
// sent back to the frontend with the cookies already set.
func (h *OAuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" ||
		subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		pkghttp.WriteError(w, http.StatusForbidden, "oauth_state_mismatch", "Login attempt could not be verified. Try again.")
		return
	}

	// The state cookie is single use.
	http.SetCookie(w, &http.Cookie{
		Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1,
		HttpOnly: true, Secure: h.cookieCfg.Secure, SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		pkghttp.WriteBadRequest(w, "Missing authorization code")
		return
	}

	profile, err := h.exchangeAndFetchProfile(r.Context(), code)
	if err != nil {
		h.logger.Error("google oauth exchange failed", slog.Any("error", err))
		pkghttp.WriteError(w, http.StatusBadGateway, "oauth_exchange_failed", "Could not verify your Google account")
		return
	}

	meta := services.ClientMeta{
		IP:        pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}

	session, err := h.service.OAuthLogin(r.Context(), *profile, meta)
	if err != nil {
		writeLoginError(w, err)
		return
	}

	auth.SetSessionCookies(w, h.cookieCfg,
		session.AccessToken, session.AccessTTL,
		session.RefreshToken, session.RefreshTTL,
		session.CSRFToken)

	http.Redirect(w, r, h.frontendOrigin+"/login/success", http.StatusFound)
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Name          string `json:"name"`
}

func (h *OAuthHandler) exchangeAndFetchProfile(ctx context.Context, code string) (*services.OAuthProfile, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {h.cfg.GoogleClientID},
		"client_secret": {h.cfg.GoogleClientSecret},
		"redirect_uri":  {h.cfg.GoogleCallbackURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange returned %d", resp.StatusCode)
	}

	var token googleTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	infoReq, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	infoReq.Header.Set("Authorization", "Bearer "+token.AccessToken)

	infoResp, err := h.httpClient.Do(infoReq)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer infoResp.Body.Close()

	if infoResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d", infoResp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(infoResp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}

	if info.Email == "" || !info.VerifiedEmail {
		return nil, fmt.Errorf("google account has no verified email")
	}

	name := info.GivenName
	if name == "" {
		name = info.Name
	}

	return &services.OAuthProfile{
		Email:    strings.ToLower(info.Email),
		Name:     name,
		LastName: info.FamilyName,
		Subject:  info.ID,
	}, nil
}
