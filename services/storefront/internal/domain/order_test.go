package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Order Status Validation Tests
// ============================================================================

func TestValidStatuses_ContainsAllStatuses(t *testing.T) {
	assert.ElementsMatch(t, []string{
		OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled,
	}, ValidStatuses())
}

func TestIsValidStatus(t *testing.T) {
	assert.True(t, IsValidStatus(OrderStatusShipped))
	assert.False(t, IsValidStatus("canceled"))
	assert.False(t, IsValidStatus("PROCESSING"))
	assert.False(t, IsValidStatus(""))
}

// ============================================================================
// Order State Transitions Tests
// ============================================================================

func TestCanTransitionTo_CustomerMayCancelProcessing(t *testing.T) {
	o := &Order{Status: OrderStatusProcessing}
	assert.True(t, o.CanTransitionTo(OrderStatusCancelled, ActorCustomer))
	assert.True(t, o.CanTransitionTo(OrderStatusCancelled, ActorAdmin))
}

func TestCanTransitionTo_CustomerCannotShip(t *testing.T) {
	o := &Order{Status: OrderStatusProcessing}
	assert.False(t, o.CanTransitionTo(OrderStatusShipped, ActorCustomer))
	assert.True(t, o.CanTransitionTo(OrderStatusShipped, ActorAdmin))
}

func TestCanTransitionTo_ShippedCannotBeCancelled(t *testing.T) {
	o := &Order{Status: OrderStatusShipped}
	assert.False(t, o.CanTransitionTo(OrderStatusCancelled, ActorCustomer))
	assert.False(t, o.CanTransitionTo(OrderStatusCancelled, ActorAdmin))
	assert.True(t, o.CanTransitionTo(OrderStatusDelivered, ActorAdmin))
}

func TestCanTransitionTo_NoBackwardMoves(t *testing.T) {
	o := &Order{Status: OrderStatusDelivered}
	for _, s := range ValidStatuses() {
		assert.False(t, o.CanTransitionTo(s, ActorAdmin), "delivered -> %s", s)
	}

	o.Status = OrderStatusShipped
	assert.False(t, o.CanTransitionTo(OrderStatusProcessing, ActorAdmin))
}

func TestCanTransitionTo_CancelledIsTerminal(t *testing.T) {
	o := &Order{Status: OrderStatusCancelled}
	for _, s := range ValidStatuses() {
		assert.False(t, o.CanTransitionTo(s, ActorAdmin))
	}
	assert.Empty(t, AllowedTransitions()[OrderStatusCancelled])
}

func TestCanTransitionTo_UnknownActor(t *testing.T) {
	o := &Order{Status: OrderStatusProcessing}
	assert.False(t, o.CanTransitionTo(OrderStatusCancelled, "courier"))
}

// ============================================================================
// NewOrderFromCart Tests
// ============================================================================

func TestNewOrderFromCart_FreezesPrices(t *testing.T) {
	p := shirt()
	sel := SelectedVariants{"Size": "L"}
	cart := Cart{Items: []LineItem{
		{ID: LineItemIdentity(p.ID, sel), Product: p, Quantity: 2, SelectedVariants: sel},
	}}
	coupon := Coupon{Code: "VERANO", DiscountType: DiscountPercentage, Value: decimal.NewFromInt(10), AppliesTo: AppliesToSubtotal}
	quote := NewQuote(cart, 12000, &coupon)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	order := NewOrderFromCart(
		"user-1",
		CustomerInfo{Name: "Ana", Email: "ana@example.com"},
		Address{FullName: "Ana", AddressLine: "Cra 7 # 12-30", City: "Bogota", Country: "CO"},
		DeliveryOption{ID: "std", Name: "Standard", Cost: 12000},
		cart, quote, now,
	)

	require.Len(t, order.Items, 1)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, OrderStatusProcessing, order.Status)
	assert.Equal(t, CurrencyCOP, order.Currency)
	assert.Equal(t, int64(55000), order.Items[0].UnitPrice)
	assert.Equal(t, int64(110000), order.Items[0].LineTotal)
	assert.Equal(t, int64(110000), order.Subtotal)
	assert.Equal(t, int64(11000), order.DiscountAmount)
	assert.Equal(t, int64(111000), order.GrandTotal)
	assert.Equal(t, "VERANO", order.CouponCode)
	assert.Equal(t, now, order.CreatedAt)
	assert.True(t, order.IsOwnedBy("user-1"))
	assert.False(t, order.IsOwnedBy(""))

	// Later cart mutations do not leak into the order.
	sel["Size"] = "M"
	cart.Items[0].Quantity = 9
	assert.Equal(t, "L", order.Items[0].SelectedVariants["Size"])
	assert.Equal(t, 2, order.Items[0].Quantity)
}

// ============================================================================
// Coupon.Validate Tests
// ============================================================================

func TestCouponValidate(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	limit := 3

	assert.NoError(t, (&Coupon{}).Validate(now))
	assert.NoError(t, (&Coupon{ExpirationDate: &future, UsageLimit: &limit, TimesUsed: 2}).Validate(now))
	assert.ErrorIs(t, (&Coupon{ExpirationDate: &past}).Validate(now), ErrCouponExpired)
	assert.ErrorIs(t, (&Coupon{UsageLimit: &limit, TimesUsed: 3}).Validate(now), ErrCouponExhausted)
}

func TestIsValidDiscountTypeAndScope(t *testing.T) {
	assert.True(t, IsValidDiscountType(DiscountFixedAmount))
	assert.False(t, IsValidDiscountType("free_shipping"))
	assert.True(t, IsValidAppliesTo(AppliesToEverything))
	assert.False(t, IsValidAppliesTo(""))
}
