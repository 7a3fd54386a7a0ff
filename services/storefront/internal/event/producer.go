package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
)

// Kafka topics for storefront domain events.
const (
	TopicCartUpdated        = "storefront.cart.updated"
	TopicCartCleared        = "storefront.cart.cleared"
	TopicOrderPlaced        = "storefront.order.placed"
	TopicOrderStatusChanged = "storefront.order.status_changed"
)

// Aggregate types.
const (
	AggregateTypeCart  = "cart"
	AggregateTypeOrder = "order"
)

// SourceStorefront identifies events originating from this service.
const SourceStorefront = "storefront-service"

// Reasons carried by cart.cleared events.
const (
	ClearReasonCustomer = "customer"
	ClearReasonCheckout = "checkout"
)

// Publisher is satisfied by *pkgkafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	LineItemID       string            `json:"line_item_id"`
	ProductID        string            `json:"product_id"`
	SelectedVariants map[string]string `json:"selected_variants,omitempty"`
	UnitPrice        int64             `json:"unit_price"`
	Quantity         int               `json:"quantity"`
}

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	SessionID string         `json:"session_id"`
	Items     []CartItemData `json:"items"`
	ItemCount int            `json:"item_count"`
	Subtotal  int64          `json:"subtotal"`
	Currency  string         `json:"currency"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// OrderPlacedData is the payload for an order.placed event.
type OrderPlacedData struct {
	OrderID        string             `json:"order_id"`
	CustomerID     string             `json:"customer_id,omitempty"`
	Email          string             `json:"email"`
	Items          []domain.OrderItem `json:"items"`
	CouponCode     string             `json:"coupon_code,omitempty"`
	Subtotal       int64              `json:"subtotal"`
	DiscountAmount int64              `json:"discount_amount"`
	ShippingCost   int64              `json:"shipping_cost"`
	GrandTotal     int64              `json:"grand_total"`
	Currency       string             `json:"currency"`
}

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id,omitempty"`
	From       string `json:"from"`
	To         string `json:"to"`
	Actor      string `json:"actor"`
}

// Producer publishes storefront domain events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

// PublishCartUpdated publishes the full cart snapshot after a mutation.
func (p *Producer) PublishCartUpdated(ctx context.Context, sessionID string, cart domain.Cart) error {
	items := make([]CartItemData, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = CartItemData{
			LineItemID:       item.ID,
			ProductID:        item.Product.ID,
			SelectedVariants: item.SelectedVariants.Clone(),
			UnitPrice:        domain.EffectiveUnitPrice(item),
			Quantity:         item.Quantity,
		}
	}

	return p.publish(ctx, TopicCartUpdated, sessionID, AggregateTypeCart, CartUpdatedData{
		SessionID: sessionID,
		Items:     items,
		ItemCount: cart.TotalItemCount(),
		Subtotal:  cart.Subtotal(),
		Currency:  domain.CurrencyCOP,
	})
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID, reason string) error {
	return p.publish(ctx, TopicCartCleared, sessionID, AggregateTypeCart, CartClearedData{
		SessionID: sessionID,
		Reason:    reason,
	})
}

// PublishOrderPlaced publishes an order.placed event.
func (p *Producer) PublishOrderPlaced(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderPlaced, o.ID, AggregateTypeOrder, OrderPlacedData{
		OrderID:        o.ID,
		CustomerID:     o.CustomerID,
		Email:          o.Customer.Email,
		Items:          o.Items,
		CouponCode:     o.CouponCode,
		Subtotal:       o.Subtotal,
		DiscountAmount: o.DiscountAmount,
		ShippingCost:   o.ShippingCost,
		GrandTotal:     o.GrandTotal,
		Currency:       o.Currency,
	})
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, o *domain.Order, from, actor string) error {
	return p.publish(ctx, TopicOrderStatusChanged, o.ID, AggregateTypeOrder, OrderStatusChangedData{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		From:       from,
		To:         o.Status,
		Actor:      actor,
	})
}
