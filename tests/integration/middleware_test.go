//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
)

// getWithHeaders issues a request with extra headers through the shared client.
func getWithHeaders(t *testing.T, method, path string, headers map[string]string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, baseURL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestRequestID(t *testing.T) {
	t.Run("generated when absent", func(t *testing.T) {
		resp := doGet(t, "/livez")
		defer resp.Body.Close()

		if resp.Header.Get("X-Request-ID") == "" {
			t.Fatal("X-Request-ID missing from response")
		}
	})

	t.Run("caller's id echoed back", func(t *testing.T) {
		const id = "field-agent-sync-42"
		resp := getWithHeaders(t, http.MethodGet, "/livez", map[string]string{"X-Request-ID": id})
		defer resp.Body.Close()

		if got := resp.Header.Get("X-Request-ID"); got != id {
			t.Errorf("X-Request-ID: got %q, want %q", got, id)
		}
	})
}

func TestCORS_Preflight(t *testing.T) {
	resp := getWithHeaders(t, http.MethodOptions, "/api/products", map[string]string{
		"Origin":                        "http://dashboard.example.com",
		"Access-Control-Request-Method": http.MethodGet,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status: got %d, want 204", resp.StatusCode)
	}
	for _, h := range []string{"Access-Control-Allow-Origin", "Access-Control-Allow-Methods"} {
		if resp.Header.Get(h) == "" {
			t.Errorf("%s missing from preflight response", h)
		}
	}
}

func TestRateLimit_Headers(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	for _, h := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"} {
		if resp.Header.Get(h) == "" {
			t.Errorf("%s missing from response", h)
		}
	}
}
