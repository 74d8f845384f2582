package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csrfRequest(header, cookie string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	if header != "" {
		r.Header.Set(CSRFHeader, header)
	}
	if cookie != "" {
		r.AddCookie(&http.Cookie{Name: CSRFTokenCookie, Value: cookie})
	}
	return r
}

func TestVerifyDoubleSubmit(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		cookie  string
		wantErr bool
	}{
		{"matching pair", "tok-1", "tok-1", false},
		{"mismatched pair", "tok-1", "tok-2", true},
		{"missing header", "", "tok-1", true},
		{"missing cookie", "tok-1", "", true},
		{"both missing", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyDoubleSubmit(csrfRequest(tt.header, tt.cookie))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateCSRFToken(t *testing.T) {
	a, err := GenerateCSRFToken()
	require.NoError(t, err)
	b, err := GenerateCSRFToken()
	require.NoError(t, err)

	assert.Len(t, a, 48)
	assert.NotEqual(t, a, b)
}
