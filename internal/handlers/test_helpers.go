package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/pittsbowling/api/internal/auth"
	"github.com/pittsbowling/api/internal/models"
	"github.com/pittsbowling/api/internal/services"
	pkghttp "github.com/pittsbowling/api/pkg/http"
)

// NewTestRequest creates an HTTP request with a JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext injects claims as if AuthRequired had run
func WithAuthContext(req *http.Request, userID, username string) *http.Request {
	claims := &models.TokenClaims{
		Type:      "access",
		UserID:    userID,
		Username:  username,
		SessionID: "sess-test",
	}
	return req.WithContext(auth.ContextWithClaims(req.Context(), claims))
}

// WithURLParam injects a chi route parameter without a full router
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks status and decodes the JSON body into target
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks status and the machine-readable error code
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc        func(ctx context.Context, input services.RegisterInput) (*models.User, error)
	ConfirmEmailFunc    func(ctx context.Context, token string) error
	LoginFunc           func(ctx context.Context, email, password string, meta services.ClientMeta) error
	ResendTwoFactorFunc func(ctx context.Context, email string) error
	VerifyTwoFactorFunc func(ctx context.Context, email, code string, meta services.ClientMeta) (*services.SessionTokens, error)
	RefreshFunc         func(ctx context.Context, raw string) (*services.RenewedSession, error)
	SessionStatusFunc   func(ctx context.Context, userID string) (*models.User, error)
	LogoutFunc          func(ctx context.Context, raw string, meta services.ClientMeta) error
	ForgotPasswordFunc  func(ctx context.Context, email string) error
	ResetPasswordFunc   func(ctx context.Context, token, newPassword string) error
}

func (m *MockAuthService) Register(ctx context.Context, input services.RegisterInput) (*models.User, error) {
	return m.RegisterFunc(ctx, input)
}

func (m *MockAuthService) ConfirmEmail(ctx context.Context, token string) error {
	return m.ConfirmEmailFunc(ctx, token)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, meta services.ClientMeta) error {
	return m.LoginFunc(ctx, email, password, meta)
}

func (m *MockAuthService) ResendTwoFactor(ctx context.Context, email string) error {
	return m.ResendTwoFactorFunc(ctx, email)
}

func (m *MockAuthService) VerifyTwoFactor(ctx context.Context, email, code string, meta services.ClientMeta) (*services.SessionTokens, error) {
	return m.VerifyTwoFactorFunc(ctx, email, code, meta)
}

func (m *MockAuthService) Refresh(ctx context.Context, raw string) (*services.RenewedSession, error) {
	return m.RefreshFunc(ctx, raw)
}

func (m *MockAuthService) SessionStatus(ctx context.Context, userID string) (*models.User, error) {
	return m.SessionStatusFunc(ctx, userID)
}

func (m *MockAuthService) Logout(ctx context.Context, raw string, meta services.ClientMeta) error {
	return m.LogoutFunc(ctx, raw, meta)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	return m.ForgotPasswordFunc(ctx, email)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return m.ResetPasswordFunc(ctx, token, newPassword)
}

// MockReservationService implements ReservationServiceInterface for testing
type MockReservationService struct {
	CheckoutFunc     func(ctx context.Context, input services.CheckoutInput) (*models.Reservation, error)
	GetFunc          func(ctx context.Context, id, callerID string, isAdmin bool) (*models.Reservation, error)
	ListFunc         func(ctx context.Context, status string) ([]*models.Reservation, error)
	ListForUserFunc  func(ctx context.Context, userID string) ([]*models.Reservation, error)
	UpdateStatusFunc func(ctx context.Context, id, status string) (*models.Reservation, error)
	DeleteFunc       func(ctx context.Context, id string) error
	PendingCountFunc func(ctx context.Context) (int, error)
}

func (m *MockReservationService) Checkout(ctx context.Context, input services.CheckoutInput) (*models.Reservation, error) {
	return m.CheckoutFunc(ctx, input)
}

func (m *MockReservationService) Get(ctx context.Context, id, callerID string, isAdmin bool) (*models.Reservation, error) {
	return m.GetFunc(ctx, id, callerID, isAdmin)
}

func (m *MockReservationService) List(ctx context.Context, status string) ([]*models.Reservation, error) {
	return m.ListFunc(ctx, status)
}

func (m *MockReservationService) ListForUser(ctx context.Context, userID string) ([]*models.Reservation, error) {
	return m.ListForUserFunc(ctx, userID)
}

func (m *MockReservationService) UpdateStatus(ctx context.Context, id, status string) (*models.Reservation, error) {
	return m.UpdateStatusFunc(ctx, id, status)
}

func (m *MockReservationService) Delete(ctx context.Context, id string) error {
	return m.DeleteFunc(ctx, id)
}

func (m *MockReservationService) PendingCount(ctx context.Context) (int, error) {
	return m.PendingCountFunc(ctx)
}
