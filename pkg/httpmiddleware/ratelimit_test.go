package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limited(max int) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RateLimit(RateLimitConfig{Max: max, Window: time.Minute})(next)
}

// hit sends one request from addr and returns the recorder.
func hit(h http.Handler, addr string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	h := limited(5)

	for i := range 5 {
		w := hit(h, "192.168.1.1:12345", nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	h := limited(2)

	for range 2 {
		require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:9999", nil).Code)
	}

	w := hit(h, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_PerClientIsolation(t *testing.T) {
	h := limited(1)

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1234", nil).Code)

	// Same client again, different ephemeral port: still the same key.
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:5678", nil).Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-API-Key")
		},
	})(next)

	assert.Equal(t, http.StatusOK, hit(h, "1.1.1.1:1", map[string]string{"X-API-Key": "key-a"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "2.2.2.2:2", map[string]string{"X-API-Key": "key-a"}).Code)
	assert.Equal(t, http.StatusOK, hit(h, "1.1.1.1:1", map[string]string{"X-API-Key": "key-b"}).Code)
}

func TestRateLimit_ForwardedFor(t *testing.T) {
	h := limited(1)

	fwd := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}
	assert.Equal(t, http.StatusOK, hit(h, "192.168.1.1:4444", fwd).Code)

	// Different socket peer, same forwarded client: limited.
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.168.1.2:5555", fwd).Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	assert.Equal(t, "192.0.2.7", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.3")
	assert.Equal(t, "198.51.100.3", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
	assert.Equal(t, "203.0.113.50", clientIP(req))
}

func TestLimiter_EvictStale(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 10, Window: time.Minute})

	now := time.Now()
	_, _, ok := l.take("a", now)
	require.True(t, ok)
	_, _, ok = l.take("b", now)
	require.True(t, ok)

	l.evictStale(now.Add(time.Minute))
	assert.Len(t, l.clients, 2)

	l.evictStale(now.Add(3 * time.Minute))
	assert.Empty(t, l.clients)
}
