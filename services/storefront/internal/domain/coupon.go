package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Discount type constants.
const (
	DiscountPercentage  = "percentage"
	DiscountFixedAmount = "fixed_amount"
)

// Coupon scope constants: which amount the discount is computed against.
const (
	AppliesToSubtotal   = "subtotal"
	AppliesToShipping   = "shipping"
	AppliesToEverything = "everything"
)

// Coupon validity errors.
var (
	ErrCouponExpired   = errors.New("coupon has expired")
	ErrCouponExhausted = errors.New("coupon usage limit reached")
)

// Coupon is a discount code as returned by the coupon-validation API.
//
// Value is a percentage (0-100, fractions allowed) for DiscountPercentage and
// an amount in pesos for DiscountFixedAmount.
type Coupon struct {
	Code           string          `json:"code"`
	DiscountType   string          `json:"discount_type"`
	Value          decimal.Decimal `json:"value"`
	AppliesTo      string          `json:"applies_to"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
	UsageLimit     *int            `json:"usage_limit,omitempty"`
	TimesUsed      int             `json:"times_used"`
}

// Validate reports whether the coupon can still be used at the given time.
func (c *Coupon) Validate(now time.Time) error {
	if c.ExpirationDate != nil && now.After(*c.ExpirationDate) {
		return ErrCouponExpired
	}
	if c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit {
		return ErrCouponExhausted
	}
	return nil
}

// IsValidDiscountType checks whether the given discount type is known.
func IsValidDiscountType(t string) bool {
	return t == DiscountPercentage || t == DiscountFixedAmount
}

// IsValidAppliesTo checks whether the given coupon scope is known.
func IsValidAppliesTo(scope string) bool {
	switch scope {
	case AppliesToSubtotal, AppliesToShipping, AppliesToEverything:
		return true
	default:
		return false
	}
}
