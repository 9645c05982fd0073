package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIPFromRequestPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "10.0.0.1:52000"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	assert.Equal(t, "203.0.113.7", IPFromRequest(r))
}

func TestIPFromRequestFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "10.0.0.1:52000"

	assert.Equal(t, "10.0.0.1", IPFromRequest(r))
}

func TestIPFromRequestWithoutPort(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "10.0.0.1"

	assert.Equal(t, "10.0.0.1", IPFromRequest(r))
}

func TestCorrelationHeaders(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("X-Device-Id", "dev-7")
	r.Header.Set("X-Request-Id", "req-42")

	assert.Equal(t, "dev-7", DeviceIDFromRequest(r))
	assert.Equal(t, "req-42", RequestIDFromRequest(r))
}
