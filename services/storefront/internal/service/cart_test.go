package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/services/storefront/internal/client"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/event"
)

// ============================================================================
// GetCart
// ============================================================================

func TestGetCart_EmptyForNewSession(t *testing.T) {
	d := newTestDeps(t)

	c, err := d.cartService().GetCart(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestGetCart_RequiresSession(t *testing.T) {
	d := newTestDeps(t)

	_, err := d.cartService().GetCart(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestGetCart_StoreError(t *testing.T) {
	d := newTestDeps(t)
	d.state.getErr = errBoom

	_, err := d.cartService().GetCart(context.Background(), "sess-1")
	assert.ErrorIs(t, err, errBoom)
}

// ============================================================================
// AddItem
// ============================================================================

func TestAddItem_PersistsAndPublishes(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()
	d.catalog.On("GetProduct", ctx, "shirt").Return(shirt(), nil)

	svc := d.cartService()
	c, err := svc.AddItem(ctx, "sess-1", AddItemInput{
		ProductID:        "shirt",
		SelectedVariants: domain.SelectedVariants{"Size": "XL"},
		Quantity:         2,
	})
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, "shirt-Size-XL", c.Items[0].ID)
	assert.Equal(t, int64(110000), c.Subtotal())

	stored, err := svc.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, c, stored)

	assert.Equal(t, []string{event.TopicCartUpdated}, d.publisher.topics())
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.CartMutations.WithLabelValues(opAdd)))
	d.catalog.AssertExpectations(t)
}

func TestAddItem_MergesSameSelection(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()
	d.catalog.On("GetProduct", ctx, "shirt").Return(shirt(), nil)

	svc := d.cartService()
	_, err := svc.AddItem(ctx, "sess-1", AddItemInput{ProductID: "shirt", SelectedVariants: domain.SelectedVariants{"Size": "M", "Color": "Blue"}, Quantity: 1})
	require.NoError(t, err)
	c, err := svc.AddItem(ctx, "sess-1", AddItemInput{ProductID: "shirt", SelectedVariants: domain.SelectedVariants{"Color": "Blue", "Size": "M"}, Quantity: 3})
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 4, c.TotalItemCount())
}

func TestAddItem_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input AddItemInput
	}{
		{"missing product", AddItemInput{Quantity: 1}},
		{"zero quantity", AddItemInput{ProductID: "shirt"}},
		{"quantity over limit", AddItemInput{ProductID: "shirt", Quantity: MaxQuantityPerItem + 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps(t)
			_, err := d.cartService().AddItem(context.Background(), "sess-1", tt.input)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			d.catalog.AssertNotCalled(t, "GetProduct")
		})
	}
}

func TestAddItem_UnknownVariantOrOption(t *testing.T) {
	tests := []struct {
		name     string
		selected domain.SelectedVariants
	}{
		{"unknown variant", domain.SelectedVariants{"Fit": "Slim"}},
		{"unknown option", domain.SelectedVariants{"Size": "XXL"}},
		{"case mismatch", domain.SelectedVariants{"size": "M"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps(t)
			ctx := context.Background()
			d.catalog.On("GetProduct", ctx, "shirt").Return(shirt(), nil)

			_, err := d.cartService().AddItem(ctx, "sess-1", AddItemInput{ProductID: "shirt", SelectedVariants: tt.selected, Quantity: 1})
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Empty(t, d.state.values)
		})
	}
}

func TestAddItem_ProductNotFound(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()
	d.catalog.On("GetProduct", ctx, "ghost").Return(nil, apperrors.NotFound("product", "ghost"))

	_, err := d.cartService().AddItem(ctx, "sess-1", AddItemInput{ProductID: "ghost", Quantity: 1})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAddItem_CombinedQuantityLimit(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()
	d.catalog.On("GetProduct", ctx, "shirt").Return(shirt(), nil)
	d.seedCart(t, "sess-1", twoXLShirts())

	_, err := d.cartService().AddItem(ctx, "sess-1", AddItemInput{
		ProductID:        "shirt",
		SelectedVariants: domain.SelectedVariants{"Size": "XL"},
		Quantity:         MaxQuantityPerItem - 1,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, d.publisher.events)
}

func TestAddItem_LineLimit(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	full := domain.Cart{}
	for i := range MaxItemsPerCart {
		full.Items = append(full.Items, domain.LineItem{Product: domain.Product{ID: fmt.Sprintf("p%d", i), Price: 1}, Quantity: 1})
	}
	d.seedCart(t, "sess-1", full)
	d.catalog.On("GetProduct", ctx, "shirt").Return(shirt(), nil)

	_, err := d.cartService().AddItem(ctx, "sess-1", AddItemInput{ProductID: "shirt", Quantity: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAddItem_IdentityHeldByOtherProduct(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()
	mug := domain.Product{ID: "mug", Price: 30000, Variants: []domain.Variant{
		{Name: "Color", Options: []domain.Option{{Name: "Red"}}},
	}}
	d.seedCart(t, "sess-1", domain.Cart{Items: []domain.LineItem{
		{Product: mug, Quantity: 1, SelectedVariants: domain.SelectedVariants{"Color": "Red"}},
	}})
	d.catalog.On("GetProduct", ctx, "mug-Color-Red").Return(&domain.Product{ID: "mug-Color-Red", Price: 90000}, nil)

	_, err := d.cartService().AddItem(ctx, "sess-1", AddItemInput{ProductID: "mug-Color-Red", Quantity: 1})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	c, err := d.adapter.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "mug", c.Items[0].Product.ID)
	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.Empty(t, d.publisher.events)
}

// ============================================================================
// UpdateQuantity / RemoveItem / ClearCart
// ============================================================================

func TestUpdateQuantity_SetsVerbatim(t *testing.T) {
	d := newTestDeps(t)
	d.seedCart(t, "sess-1", twoXLShirts())

	c, err := d.cartService().UpdateQuantity(context.Background(), "sess-1", "shirt-Size-XL", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, c.TotalItemCount())
	assert.Equal(t, int64(275000), c.Subtotal())
}

func TestUpdateQuantity_ZeroRemoves(t *testing.T) {
	d := newTestDeps(t)
	d.seedCart(t, "sess-1", twoXLShirts())

	c, err := d.cartService().UpdateQuantity(context.Background(), "sess-1", "shirt-Size-XL", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, c.TotalItemCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.CartMutations.WithLabelValues(opRemove)))
}

func TestUpdateQuantity_UnknownItem(t *testing.T) {
	d := newTestDeps(t)

	_, err := d.cartService().UpdateQuantity(context.Background(), "sess-1", "nope", 2)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateQuantity_OverLimit(t *testing.T) {
	d := newTestDeps(t)
	d.seedCart(t, "sess-1", twoXLShirts())

	_, err := d.cartService().UpdateQuantity(context.Background(), "sess-1", "shirt-Size-XL", MaxQuantityPerItem+1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRemoveItem_OnlyItemLeavesZeroCount(t *testing.T) {
	d := newTestDeps(t)
	d.seedCart(t, "sess-1", twoXLShirts())

	c, err := d.cartService().RemoveItem(context.Background(), "sess-1", "shirt-Size-XL")
	require.NoError(t, err)
	assert.Equal(t, 0, c.TotalItemCount())
	assert.Equal(t, []string{event.TopicCartUpdated}, d.publisher.topics())
}

func TestRemoveItem_AbsentIsNoop(t *testing.T) {
	d := newTestDeps(t)
	d.seedCart(t, "sess-1", twoXLShirts())

	c, err := d.cartService().RemoveItem(context.Background(), "sess-1", "missing")
	require.NoError(t, err)
	assert.Equal(t, 2, c.TotalItemCount())
	assert.Empty(t, d.publisher.events)
}

func TestClearCart(t *testing.T) {
	d := newTestDeps(t)
	d.seedCart(t, "sess-1", twoXLShirts())
	svc := d.cartService()

	require.NoError(t, svc.ClearCart(context.Background(), "sess-1"))

	c, err := svc.GetCart(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, []string{event.TopicCartUpdated, event.TopicCartCleared}, d.publisher.topics())
}

func TestClearCart_EmptyPublishesNothing(t *testing.T) {
	d := newTestDeps(t)

	require.NoError(t, d.cartService().ClearCart(context.Background(), "sess-1"))
	assert.Empty(t, d.publisher.events)
}

func TestMutation_PublishFailureDoesNotFailRequest(t *testing.T) {
	d := newTestDeps(t)
	d.publisher.err = errBoom
	d.seedCart(t, "sess-1", twoXLShirts())

	c, err := d.cartService().UpdateQuantity(context.Background(), "sess-1", "shirt-Size-XL", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, c.TotalItemCount())
}

// ============================================================================
// Quote
// ============================================================================

func TestQuote_PercentageCoupon(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()
	d.seedCart(t, "sess-1", twoXLShirts())
	d.catalog.On("GetDeliveryOption", ctx, "std").Return(&domain.DeliveryOption{ID: "std", Cost: 10000}, nil)
	d.coupons.On("Validate", ctx, "VEINTE").Return(percentCoupon("VEINTE", 20), nil)

	q, err := d.cartService().Quote(ctx, "sess-1", QuoteInput{CouponCode: "VEINTE", DeliveryOptionID: "std"})
	require.NoError(t, err)

	assert.Equal(t, int64(110000), q.Subtotal)
	assert.Equal(t, int64(10000), q.ShippingCost)
	assert.Equal(t, int64(22000), q.DiscountAmount)
	assert.Equal(t, int64(98000), q.GrandTotal)
	assert.True(t, q.CouponApplied)
	assert.Empty(t, q.CouponMessage)
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.CouponLookups.WithLabelValues(couponApplied)))
}

func TestQuote_FixedCouponCappedAtShipping(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()
	d.seedCart(t, "sess-1", twoXLShirts())
	d.catalog.On("GetDeliveryOption", ctx, "std").Return(&domain.DeliveryOption{ID: "std", Cost: 10000}, nil)
	d.coupons.On("Validate", ctx, "ENVIOGRATIS").Return(fixedCoupon("ENVIOGRATIS", 999999), nil)

	q, err := d.cartService().Quote(ctx, "sess-1", QuoteInput{CouponCode: "ENVIOGRATIS", DeliveryOptionID: "std"})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), q.DiscountAmount)
	assert.Equal(t, int64(110000), q.GrandTotal)
}

func TestQuote_CouponNotApplicable(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()
	d.seedCart(t, "sess-1", twoXLShirts())
	d.coupons.On("Validate", ctx, "VENCIDO").Return(nil, fmt.Errorf("%w: expired", client.ErrCouponNotApplicable))

	q, err := d.cartService().Quote(ctx, "sess-1", QuoteInput{CouponCode: "VENCIDO"})
	require.NoError(t, err)
	assert.False(t, q.CouponApplied)
	assert.Equal(t, msgCouponNotApplicable, q.CouponMessage)
	assert.Zero(t, q.DiscountAmount)
	assert.Equal(t, int64(110000), q.GrandTotal)
}

func TestQuote_CouponServiceDownDegrades(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()
	d.seedCart(t, "sess-1", twoXLShirts())
	d.coupons.On("Validate", ctx, "VEINTE").Return(nil, apperrors.ServiceUnavailable("coupon: down"))

	q, err := d.cartService().Quote(ctx, "sess-1", QuoteInput{CouponCode: "VEINTE"})
	require.NoError(t, err)
	assert.False(t, q.CouponApplied)
	assert.Equal(t, msgCouponUnavailable, q.CouponMessage)
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.CouponLookups.WithLabelValues(couponUnavailable)))
}

func TestQuote_NoCouponNoDelivery(t *testing.T) {
	d := newTestDeps(t)
	d.seedCart(t, "sess-1", twoXLShirts())

	q, err := d.cartService().Quote(context.Background(), "sess-1", QuoteInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(110000), q.GrandTotal)
	assert.Nil(t, q.DeliveryOption)
	d.coupons.AssertNotCalled(t, "Validate")
}

func TestQuote_UnknownDeliveryOption(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()
	d.catalog.On("GetDeliveryOption", ctx, "nope").Return(nil, apperrors.NotFound("delivery option", "nope"))

	_, err := d.cartService().Quote(ctx, "sess-1", QuoteInput{DeliveryOptionID: "nope"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
