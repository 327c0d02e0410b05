package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(_ context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(_ context.Context) error { return errors.New(msg) }
}

// drive executes a probe n times, standing in for the ticker goroutine.
func drive(p *probe, n int) {
	for range n {
		p.execute(context.Background())
	}
}

func getStatus(t *testing.T, handler http.HandlerFunc) (int, statusResponse) {
	t.Helper()

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func TestLiveEndpoint_AllPassing(t *testing.T) {
	h := New()
	h.AddLivenessCheck("a", time.Second, pass)
	h.AddLivenessCheck("b", time.Second, pass)

	code, body := getStatus(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.Checks)
}

func TestLiveEndpoint_FailureThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, fail("connection refused"))
	p := h.liveness[0]

	// Two failures are below the threshold; still healthy.
	drive(p, 2)
	code, _ := getStatus(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)

	// The third consecutive failure flips it.
	drive(p, 1)
	code, body := getStatus(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["db"])
}

func TestProbe_RecoversAfterSuccess(t *testing.T) {
	broken := true
	h := New()
	h.AddReadinessCheck("flaky", time.Second, func(_ context.Context) error {
		if broken {
			return errors.New("down")
		}
		return nil
	})
	h.SetReady(true)
	p := h.readiness[0]

	drive(p, 3)
	assert.False(t, h.IsReady())

	broken = false
	drive(p, 1)
	assert.True(t, h.IsReady())
}

func TestReadyEndpoint_ManualGate(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, pass)

	// Not ready until SetReady(true), regardless of probe state.
	code, body := getStatus(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")

	h.SetReady(true)
	code, body = getStatus(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)

	// Draining flips it back.
	h.SetReady(false)
	code, _ = getStatus(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestIsReady_ProbeFailure(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, fail("no route to host"))
	h.SetReady(true)

	assert.True(t, h.IsReady(), "probes start healthy")

	drive(h.readiness[0], 3)
	assert.False(t, h.IsReady())
}

func TestStart_RunsProbes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ran := make(chan struct{}, 1)
	h := New()
	h.AddLivenessCheck("tick", time.Second, func(_ context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	h.Start(ctx, 10*time.Millisecond)
	defer h.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("probe never executed")
	}
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
