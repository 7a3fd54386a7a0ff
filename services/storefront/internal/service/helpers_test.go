package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/services/storefront/internal/cart"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/event"
	"github.com/utafrali/storefront/services/storefront/internal/repository"
)

// --- Mocks ---

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
	args := m.Called(ctx, code, orderID)
	return args.Error(0)
}

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
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
	args := m.Called(ctx, id, from, to, at)
	return args.Error(0)
}

// --- Fakes ---

// memStateStore is an in-memory repository.CartStateStore.
type memStateStore struct {
	values    map[string]string
	getErr    error
	deleteErr error
	deleted   []string
}

func newMemStateStore() *memStateStore {
	return &memStateStore{values: make(map[string]string)}
}

func (s *memStateStore) Get(_ context.Context, sessionID string) (string, bool, error) {
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.values[sessionID]
	return v, ok, nil
}

func (s *memStateStore) Set(_ context.Context, sessionID, value string) error {
	s.values[sessionID] = value
	return nil
}

func (s *memStateStore) Delete(_ context.Context, sessionID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.values, sessionID)
	s.deleted = append(s.deleted, sessionID)
	return nil
}

// recordingPublisher captures published events by topic.
type recordingPublisher struct {
	events []*pkgkafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, e *pkgkafka.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) topics() []string {
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

// --- Test Helpers ---

var errBoom = errors.New("boom")

type testDeps struct {
	state     *memStateStore
	adapter   *cart.Adapter
	catalog   *mockCatalog
	coupons   *mockCoupons
	orders    *mockOrderRepository
	publisher *recordingPublisher
	producer  *event.Producer
	metrics   *Metrics
	logger    *slog.Logger
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	state := newMemStateStore()
	pub := &recordingPublisher{}
	return &testDeps{
		state:     state,
		adapter:   cart.NewAdapter(state, logger),
		catalog:   new(mockCatalog),
		coupons:   new(mockCoupons),
		orders:    new(mockOrderRepository),
		publisher: pub,
		producer:  event.NewProducer(pub, logger),
		metrics:   NewMetrics(prometheus.NewRegistry()),
		logger:    logger,
	}
}

func (d *testDeps) cartService() *CartService {
	return NewCartService(d.adapter, d.catalog, d.coupons, d.producer, d.metrics, d.logger)
}

func (d *testDeps) checkoutService() *CheckoutService {
	return NewCheckoutService(d.adapter, d.catalog, d.coupons, d.orders, d.producer, d.metrics, d.logger)
}

func (d *testDeps) orderService() *OrderService {
	return NewOrderService(d.orders, d.producer, d.logger)
}

// seedCart persists a cart for the session.
func (d *testDeps) seedCart(t *testing.T, sessionID string, c domain.Cart) {
	t.Helper()
	if err := d.adapter.Save(context.Background(), sessionID, c); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
}

func shirt() *domain.Product {
	return &domain.Product{
		ID:    "shirt",
		Name:  "Camisa Oxford",
		Price: 50000,
		Variants: []domain.Variant{
			{Name: "Size", Options: []domain.Option{
				{Name: "M", PriceModifier: 0},
				{Name: "XL", PriceModifier: 5000},
			}},
			{Name: "Color", Options: []domain.Option{{Name: "Blue"}}},
		},
	}
}

// twoXLShirts is a cart with a subtotal of 110000.
func twoXLShirts() domain.Cart {
	return domain.Cart{Items: []domain.LineItem{{
		Product:          *shirt(),
		Quantity:         2,
		SelectedVariants: domain.SelectedVariants{"Size": "XL"},
	}}}
}

func percentCoupon(code string, pct int64) *domain.Coupon {
	return &domain.Coupon{
		Code:         code,
		DiscountType: domain.DiscountPercentage,
		Value:        decimal.NewFromInt(pct),
		AppliesTo:    domain.AppliesToSubtotal,
	}
}

func fixedCoupon(code string, amount int64) *domain.Coupon {
	return &domain.Coupon{
		Code:         code,
		DiscountType: domain.DiscountFixedAmount,
		Value:        decimal.NewFromInt(amount),
		AppliesTo:    domain.AppliesToShipping,
	}
}
