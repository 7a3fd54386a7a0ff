package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveReady(t *testing.T, h *Handler) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler().LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestReadiness_AllUp(t *testing.T) {
	h := NewHandler()
	h.Register("redis", func(context.Context) error { return nil })
	h.Register("postgres", func(context.Context) error { return nil })

	code, resp := serveReady(t, h)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Len(t, resp.Checks, 2)
	assert.True(t, resp.Checks["redis"].Critical)
}

func TestReadiness_CriticalDown(t *testing.T) {
	h := NewHandler()
	h.Register("redis", func(context.Context) error { return errors.New("connection refused") })
	h.RegisterOptional("kafka", func(context.Context) error { return nil })

	code, resp := serveReady(t, h)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusDown, resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["redis"].Error)
}

func TestReadiness_OptionalDownDegrades(t *testing.T) {
	h := NewHandler()
	h.Register("postgres", func(context.Context) error { return nil })
	h.RegisterOptional("kafka", func(context.Context) error { return errors.New("no brokers") })

	code, resp := serveReady(t, h)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.False(t, resp.Checks["kafka"].Critical)
}

func TestCheck_RespectsTimeout(t *testing.T) {
	h := NewHandler()
	h.timeout = 20 * time.Millisecond
	h.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	resp := h.Check(context.Background())

	assert.Equal(t, StatusDown, resp.Status)
	assert.Contains(t, resp.Checks["slow"].Error, "deadline exceeded")
}

func TestReadiness_NoCheckers(t *testing.T) {
	code, resp := serveReady(t, NewHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
}
