package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// EffectiveUnitPrice computes the unit price of a line item: the product's base
// price plus the price modifier of every selected option. A selection that no
// longer matches a variant or option on the product snapshot contributes zero.
//
// The sale price is not applied here. Catalog listings show DisplayPrice, but
// the cart charges the base price plus modifiers.
func EffectiveUnitPrice(item LineItem) int64 {
	price := item.Product.Price
	for variantName, optionName := range item.SelectedVariants {
		if opt, ok := item.Product.FindOption(variantName, optionName); ok {
			price += opt.PriceModifier
		}
	}
	return price
}

// CartSubtotal sums effective unit price times quantity over all line items.
func CartSubtotal(items []LineItem) int64 {
	var subtotal int64
	for _, item := range items {
		subtotal += EffectiveUnitPrice(item) * int64(item.Quantity)
	}
	return subtotal
}

// DiscountableBase returns the amount a coupon's discount is computed against.
// Unknown scopes yield zero.
func DiscountableBase(appliesTo string, subtotal, shippingCost int64) int64 {
	switch appliesTo {
	case AppliesToSubtotal:
		return subtotal
	case AppliesToShipping:
		return shippingCost
	case AppliesToEverything:
		return subtotal + shippingCost
	default:
		return 0
	}
}

// ApplyCoupon computes the discount an already-validated coupon grants. The
// result is never negative and never exceeds the discountable base.
// Percentage discounts are truncated to whole pesos.
func ApplyCoupon(coupon Coupon, subtotal, shippingCost int64) int64 {
	base := DiscountableBase(coupon.AppliesTo, subtotal, shippingCost)
	if base <= 0 {
		return 0
	}

	var raw int64
	switch coupon.DiscountType {
	case DiscountPercentage:
		raw = decimal.NewFromInt(base).Mul(coupon.Value).Div(hundred).IntPart()
	case DiscountFixedAmount:
		raw = coupon.Value.IntPart()
	}

	if raw < 0 {
		return 0
	}
	if raw > base {
		return base
	}
	return raw
}

// GrandTotal returns subtotal + shipping - discount, floored at zero.
func GrandTotal(subtotal, shippingCost, discountAmount int64) int64 {
	total := subtotal + shippingCost - discountAmount
	if total < 0 {
		return 0
	}
	return total
}

// Quote is the priced summary of a prospective order.
type Quote struct {
	Subtotal       int64  `json:"subtotal"`
	ShippingCost   int64  `json:"shipping_cost"`
	CouponCode     string `json:"coupon_code,omitempty"`
	DiscountAmount int64  `json:"discount_amount"`
	GrandTotal     int64  `json:"grand_total"`
}

// NewQuote prices a cart with the given shipping cost and optional coupon.
func NewQuote(cart Cart, shippingCost int64, coupon *Coupon) Quote {
	q := Quote{
		Subtotal:     cart.Subtotal(),
		ShippingCost: shippingCost,
	}
	if coupon != nil {
		q.CouponCode = coupon.Code
		q.DiscountAmount = ApplyCoupon(*coupon, q.Subtotal, shippingCost)
	}
	q.GrandTotal = GrandTotal(q.Subtotal, q.ShippingCost, q.DiscountAmount)
	return q
}
