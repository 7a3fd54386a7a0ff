package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/tracing"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/event"
	"github.com/utafrali/storefront/services/storefront/internal/repository"
)

// CheckoutInput holds the customer data needed to place an order.
type CheckoutInput struct {
	Customer         CustomerInput `json:"customer"`
	ShippingAddress  AddressInput  `json:"shipping_address"`
	DeliveryOptionID string        `json:"delivery_option_id" validate:"required,opaque_id"`
	CouponCode       string        `json:"coupon_code" validate:"omitempty,opaque_id"`
}

// CustomerInput is the contact data captured at checkout.
type CustomerInput struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email,max=254"`
	Phone string `json:"phone" validate:"omitempty,max=30"`
}

// AddressInput is the shipping address captured at checkout.
type AddressInput struct {
	FullName    string `json:"full_name" validate:"required,max=200"`
	AddressLine string `json:"address_line" validate:"required,max=500"`
	City        string `json:"city" validate:"required,max=100"`
	State       string `json:"state" validate:"required,max=100"`
	PostalCode  string `json:"postal_code" validate:"omitempty,max=20"`
	Country     string `json:"country" validate:"required,len=2"`
	Phone       string `json:"phone" validate:"omitempty,max=30"`
}

// CheckoutService turns a session cart into a persisted order.
type CheckoutService struct {
	carts    CartPersistence
	catalog  Catalog
	coupons  Coupons
	orders   repository.OrderRepository
	producer *event.Producer
	metrics  *Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	carts CartPersistence,
	catalog Catalog,
	coupons Coupons,
	orders repository.OrderRepository,
	producer *event.Producer,
	metrics *Metrics,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		carts:    carts,
		catalog:  catalog,
		coupons:  coupons,
		orders:   orders,
		producer: producer,
		metrics:  metrics,
		logger:   logger,
		tracer:   tracing.Tracer("github.com/utafrali/storefront/services/storefront/internal/service"),
		now:      time.Now,
	}
}

// PlaceOrder prices the session's cart, persists it as an order and clears
// the cart. customerID is empty for guest checkouts.
//
// A coupon the coupon API rejects is dropped and the order is placed without
// discount. A coupon that cannot be verified at all fails the checkout, since
// the customer asked for a discount we cannot confirm.
func (s *CheckoutService) PlaceOrder(ctx context.Context, sessionID, customerID string, input CheckoutInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.place_order",
		trace.WithAttributes(attribute.String("storefront.session_id", sessionID)),
	)
	defer span.End()

	order, err := s.placeOrder(ctx, sessionID, customerID, input)
	if err != nil {
		return nil, tracing.RecordError(span, err)
	}
	span.SetAttributes(
		attribute.String("storefront.order_id", order.ID),
		attribute.Int64("storefront.grand_total", order.GrandTotal),
	)
	return order, nil
}

func (s *CheckoutService) placeOrder(ctx context.Context, sessionID, customerID string, input CheckoutInput) (*domain.Order, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}
	if input.DeliveryOptionID == "" {
		return nil, apperrors.InvalidInput("delivery option is required")
	}

	c, err := s.carts.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if c.IsEmpty() {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	delivery, err := s.catalog.GetDeliveryOption(ctx, input.DeliveryOptionID)
	if err != nil {
		return nil, fmt.Errorf("get delivery option %s: %w", input.DeliveryOptionID, err)
	}

	lookup := resolveCoupon(ctx, s.coupons, s.metrics, s.logger, strings.TrimSpace(input.CouponCode))
	if lookup.err != nil {
		return nil, apperrors.ServiceUnavailable(msgCouponUnavailable)
	}

	quote := domain.NewQuote(c, delivery.Cost, lookup.coupon)
	order := domain.NewOrderFromCart(
		customerID,
		domain.CustomerInfo(input.Customer),
		domain.Address(input.ShippingAddress),
		*delivery,
		c,
		quote,
		s.now().UTC(),
	)

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.metrics.OrdersPlaced.Inc()
	s.metrics.OrderGrandTotal.Observe(float64(order.GrandTotal))

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.String("session_id", sessionID),
		slog.Int64("grand_total", order.GrandTotal),
		slog.Int("item_count", c.TotalItemCount()),
	)

	s.clearAfterCheckout(ctx, sessionID, order.ID)

	if lookup.coupon != nil {
		if err := s.coupons.Redeem(ctx, lookup.coupon.Code, order.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to redeem coupon",
				slog.String("order_id", order.ID),
				slog.String("coupon_code", lookup.coupon.Code),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.producer.PublishOrderPlaced(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.placed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	return order, nil
}

// clearAfterCheckout removes the session cart once its order exists. The
// order stands even if the cart cannot be removed.
func (s *CheckoutService) clearAfterCheckout(ctx context.Context, sessionID, orderID string) {
	if err := s.carts.Delete(ctx, sessionID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after checkout",
			slog.String("session_id", sessionID),
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.producer.PublishCartCleared(ctx, sessionID, event.ClearReasonCheckout); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}
