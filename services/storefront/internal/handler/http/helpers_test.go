package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/pkg/health"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/services/storefront/internal/cart"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/event"
	"github.com/utafrali/storefront/services/storefront/internal/repository"
	"github.com/utafrali/storefront/services/storefront/internal/service"
)

// ============================================================================
// Mocks and fakes
// ============================================================================

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalog) GetDeliveryOption(ctx context.Context, id string) (*domain.DeliveryOption, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryOption), args.Error(1)
}

type mockCoupons struct {
	mock.Mock
}

func (m *mockCoupons) Validate(ctx context.Context, code string) (*domain.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

func (m *mockCoupons) Redeem(ctx context.Context, code, orderID string) error {
	return m.Called(ctx, code, orderID).Error(0)
}

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id, from, to string, at time.Time) error {
	return m.Called(ctx, id, from, to, at).Error(0)
}

type memStateStore struct {
	values map[string]string
}

func (s *memStateStore) Get(_ context.Context, sessionID string) (string, bool, error) {
	v, ok := s.values[sessionID]
	return v, ok, nil
}

func (s *memStateStore) Set(_ context.Context, sessionID, value string) error {
	s.values[sessionID] = value
	return nil
}

func (s *memStateStore) Delete(_ context.Context, sessionID string) error {
	delete(s.values, sessionID)
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, *pkgkafka.Event) error { return nil }

// ============================================================================
// Test server
// ============================================================================

var testSecret = []byte("handler-test-secret")

type testServer struct {
	handler http.Handler
	adapter *cart.Adapter
	catalog *mockCatalog
	coupons *mockCoupons
	orders  *mockOrderRepository
}

func newTestServer(t *testing.T, opts ...func(*RouterConfig)) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	adapter := cart.NewAdapter(&memStateStore{values: make(map[string]string)}, logger)
	catalog := new(mockCatalog)
	coupons := new(mockCoupons)
	orders := new(mockOrderRepository)
	producer := event.NewProducer(nopPublisher{}, logger)
	metrics := service.NewMetrics(prometheus.NewRegistry())

	cfg := RouterConfig{
		CartService:     service.NewCartService(adapter, catalog, coupons, producer, metrics, logger),
		CheckoutService: service.NewCheckoutService(adapter, catalog, coupons, orders, producer, metrics, logger),
		OrderService:    service.NewOrderService(orders, producer, logger),
		Health:          health.NewHandler(),
		Logger:          logger,
		TokenValidator:  middleware.HMACValidator(testSecret),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	handler := NewRouter(t.Context(), cfg)

	return &testServer{handler: handler, adapter: adapter, catalog: catalog, coupons: coupons, orders: orders}
}

type requestOption func(*http.Request)

func withSession(id string) requestOption {
	return func(r *http.Request) { r.Header.Set(middleware.HeaderSessionID, id) }
}

// withUser authenticates as customer id with a signed token.
func withUser(t *testing.T, id string) requestOption {
	t.Helper()
	return signedToken(t, id, "customer")
}

// withUserHeader sends only the gateway header, without a token.
func withUserHeader(id string) requestOption {
	return func(r *http.Request) { r.Header.Set(middleware.HeaderUserID, id) }
}

func withToken(t *testing.T, role string) requestOption {
	t.Helper()
	return signedToken(t, "admin-1", role)
}

func signedToken(t *testing.T, sub, role string) requestOption {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func (s *testServer) do(t *testing.T, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// envelope mirrors httputil.Response with a typed data field.
type envelope[T any] struct {
	Data  T `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func shirt() *domain.Product {
	return &domain.Product{
		ID:    "shirt",
		Name:  "Camisa Oxford",
		Price: 50000,
		Variants: []domain.Variant{{Name: "Size", Options: []domain.Option{
			{Name: "M"},
			{Name: "L", PriceModifier: 5000},
		}}},
	}
}

func jsonUnmarshal(rec *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(rec.Body.Bytes(), v)
}
