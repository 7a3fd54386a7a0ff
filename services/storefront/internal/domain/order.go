package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order status constants.
const (
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Actor constants identify who requests a status transition.
const (
	ActorCustomer = "customer"
	ActorAdmin    = "admin"
)

// CurrencyCOP is the only currency the storefront sells in.
const CurrencyCOP = "COP"

// CustomerInfo is the contact data captured at checkout.
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Address represents a shipping address.
type Address struct {
	FullName    string `json:"full_name"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	Phone       string `json:"phone,omitempty"`
}

// OrderItem is a line item frozen at purchase time.
type OrderItem struct {
	LineItemID       string           `json:"line_item_id"`
	ProductID        string           `json:"product_id"`
	Name             string           `json:"name"`
	SelectedVariants SelectedVariants `json:"selected_variants,omitempty"`
	UnitPrice        int64            `json:"unit_price"`
	Quantity         int              `json:"quantity"`
	LineTotal        int64            `json:"line_total"`
}

// Order is an immutable snapshot of a checkout. Only Status and UpdatedAt
// change after creation.
type Order struct {
	ID              string         `json:"id"`
	CustomerID      string         `json:"customer_id,omitempty"`
	Customer        CustomerInfo   `json:"customer"`
	ShippingAddress Address        `json:"shipping_address"`
	Items           []OrderItem    `json:"items"`
	CouponCode      string         `json:"coupon_code,omitempty"`
	DeliveryOption  DeliveryOption `json:"delivery_option"`
	Subtotal        int64          `json:"subtotal"`
	DiscountAmount  int64          `json:"discount_amount"`
	ShippingCost    int64          `json:"shipping_cost"`
	GrandTotal      int64          `json:"grand_total"`
	Currency        string         `json:"currency"`
	Status          string         `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ValidStatuses returns all valid order statuses.
func ValidStatuses() []string {
	return []string{
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// transition is a single allowed edge of the order state machine together with
// the actors permitted to take it.
type transition struct {
	to     string
	actors []string
}

// allowedTransitions defines the forward-only state machine. Delivered and
// cancelled are terminal.
var allowedTransitions = map[string][]transition{
	OrderStatusProcessing: {
		{to: OrderStatusShipped, actors: []string{ActorAdmin}},
		{to: OrderStatusCancelled, actors: []string{ActorCustomer, ActorAdmin}},
	},
	OrderStatusShipped: {
		{to: OrderStatusDelivered, actors: []string{ActorAdmin}},
	},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// AllowedTransitions returns the target statuses reachable from each status
// regardless of actor.
func AllowedTransitions() map[string][]string {
	out := make(map[string][]string, len(allowedTransitions))
	for from, edges := range allowedTransitions {
		targets := make([]string, 0, len(edges))
		for _, e := range edges {
			targets = append(targets, e.to)
		}
		out[from] = targets
	}
	return out
}

// CanTransitionTo checks if the given actor may move the order to the target
// status.
func (o *Order) CanTransitionTo(target, actor string) bool {
	for _, e := range allowedTransitions[o.Status] {
		if e.to != target {
			continue
		}
		for _, a := range e.actors {
			if a == actor {
				return true
			}
		}
	}
	return false
}

// IsOwnedBy reports whether the order belongs to the given customer account.
func (o *Order) IsOwnedBy(customerID string) bool {
	return customerID != "" && o.CustomerID == customerID
}

// NewOrderFromCart freezes a cart and its quote into a new processing order.
// Item prices are locked at their current effective unit price, and the
// returned order shares no mutable state with the cart.
func NewOrderFromCart(
	customerID string,
	customer CustomerInfo,
	address Address,
	delivery DeliveryOption,
	cart Cart,
	quote Quote,
	now time.Time,
) *Order {
	items := make([]OrderItem, 0, len(cart.Items))
	for _, li := range cart.Items {
		unit := EffectiveUnitPrice(li)
		items = append(items, OrderItem{
			LineItemID:       li.ID,
			ProductID:        li.Product.ID,
			Name:             li.Product.Name,
			SelectedVariants: li.SelectedVariants.Clone(),
			UnitPrice:        unit,
			Quantity:         li.Quantity,
			LineTotal:        unit * int64(li.Quantity),
		})
	}

	return &Order{
		ID:              uuid.New().String(),
		CustomerID:      customerID,
		Customer:        customer,
		ShippingAddress: address,
		Items:           items,
		CouponCode:      quote.CouponCode,
		DeliveryOption:  delivery,
		Subtotal:        quote.Subtotal,
		DiscountAmount:  quote.DiscountAmount,
		ShippingCost:    quote.ShippingCost,
		GrandTotal:      quote.GrandTotal,
		Currency:        CurrencyCOP,
		Status:          OrderStatusProcessing,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
