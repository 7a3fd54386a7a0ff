package httpclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func testConfig() Config {
	return Config{
		Timeout:      time.Second,
		MaxRetries:   2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// Client
// ============================================================================

func TestClient_RetriesGetOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := New(testConfig()).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryPlainPost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL, strings.NewReader("{}"))
	require.NoError(t, err)
	resp, err := New(testConfig()).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetriesPostWithIdempotencyKey(t *testing.T) {
	var calls atomic.Int32
	var lastBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		lastBody = string(b)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL, strings.NewReader(`{"code":"SAVE10"}`))
	require.NoError(t, err)
	req.Header.Set("Idempotency-Key", "order-1")
	resp, err := New(testConfig()).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, `{"code":"SAVE10"}`, lastBody, "body is rewound between attempts")
}

func TestClient_NotImplementedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotImplemented)
	}))
	defer srv.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	resp, err := New(testConfig()).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://127.0.0.1:1", nil)
	_, err := New(testConfig()).Do(req)
	assert.ErrorIs(t, err, context.Canceled)
}

// ============================================================================
// Circuit breaker
// ============================================================================

type stubDoer struct {
	status int
	err    error
	calls  int
}

func (s *stubDoer) Do(*http.Request) (*http.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{StatusCode: s.status, Body: io.NopCloser(strings.NewReader("oops"))}, nil
}

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://catalog/products/1", nil)
	require.NoError(t, err)
	return req
}

func TestCircuitBreaker_TripsOnServerErrors(t *testing.T) {
	stub := &stubDoer{status: http.StatusInternalServerError}
	cfg := DefaultCircuitBreakerConfig("catalog-test")
	cfg.MinRequests = 3
	cb := NewCircuitBreakerClient(stub, cfg, discardLogger())

	for i := 0; i < 3; i++ {
		_, err := cb.Do(newRequest(t))
		assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Do(newRequest(t))
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Equal(t, 3, stub.calls, "open breaker short-circuits")
}

func TestCircuitBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	stub := &stubDoer{status: http.StatusNotFound}
	cfg := DefaultCircuitBreakerConfig("catalog-test-4xx")
	cfg.MinRequests = 2
	cb := NewCircuitBreakerClient(stub, cfg, discardLogger())

	for i := 0; i < 5; i++ {
		resp, err := cb.Do(newRequest(t))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		_ = resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_TransportErrorPassesThrough(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	cb := NewCircuitBreakerClient(&stubDoer{err: boom}, DefaultCircuitBreakerConfig("catalog-test-err"), discardLogger())

	_, err := cb.Do(newRequest(t))
	assert.ErrorIs(t, err, boom)
}

// ============================================================================
// Response errors
// ============================================================================

func TestParseResponseError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		code     string
	}{
		{"structured not found", http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"product p1 not found"}}`, apperrors.ErrNotFound, "NOT_FOUND"},
		{"coupon expired", http.StatusGone, `{"error":{"code":"COUPON_EXPIRED","message":"expired"}}`, apperrors.ErrGone, "COUPON_EXPIRED"},
		{"validation", http.StatusUnprocessableEntity, `{"error":{"code":"COUPON_NOT_APPLICABLE","message":"minimum not met"}}`, apperrors.ErrInvalidInput, "COUPON_NOT_APPLICABLE"},
		{"plain text 503", http.StatusServiceUnavailable, "down for maintenance", apperrors.ErrServiceUnavail, "SERVICE_UNAVAILABLE"},
		{"conflict", http.StatusConflict, `{"error":{"code":"CONFLICT","message":"already redeemed"}}`, apperrors.ErrConflict, "CONFLICT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.status, Body: io.NopCloser(strings.NewReader(tt.body))}
			err := ParseResponseError(resp, "coupons")

			assert.ErrorIs(t, err, tt.sentinel)
			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.code, appErr.Code)
			assert.True(t, strings.HasPrefix(appErr.Message, "coupons: "))
		})
	}
}
