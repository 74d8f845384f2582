package http

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_RemoteAddrFallback(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"

	ip := ExtractClientIP(req, nil)
	assert.Equal(t, "203.0.113.10", ip)
}

func TestExtractClientIP_IgnoresHeadersFromUntrustedSource(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")

	config := &IPConfig{TrustedProxies: []string{"192.168.0.0/16"}}
	ip := ExtractClientIP(req, config)
	assert.Equal(t, "203.0.113.10", ip)
}

func TestExtractClientIP_HonorsForwardedForFromTrustedProxy(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.5:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 192.168.1.5")

	config := &IPConfig{TrustedProxies: []string{"192.168.0.0/16"}}
	ip := ExtractClientIP(req, config)
	assert.Equal(t, "198.51.100.7", ip)
}

func TestExtractClientIP_RealIPHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.5:443"
	req.Header.Set("X-Real-IP", "198.51.100.9")

	config := &IPConfig{TrustedProxies: []string{"192.168.0.0/16"}}
	ip := ExtractClientIP(req, config)
	assert.Equal(t, "198.51.100.9", ip)
}

func TestExtractClientIP_InvalidForwardedValue(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.5:443"
	req.Header.Set("X-Forwarded-For", "not-an-ip")

	config := &IPConfig{TrustedProxies: []string{"192.168.0.0/16"}}
	ip := ExtractClientIP(req, config)
	assert.Equal(t, "192.168.1.5", ip)
}
