package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
)

// ErrCouponNotApplicable means the code cannot be applied: unknown, expired,
// exhausted or otherwise rejected. Callers treat it as "no coupon".
var ErrCouponNotApplicable = errors.New("coupon not applicable")

// CouponClient validates and redeems coupon codes against the coupon API.
type CouponClient struct {
	base
	now func() time.Time
}

// NewCouponClient creates a coupon client rooted at baseURL.
func NewCouponClient(doer httpclient.Doer, baseURL string) *CouponClient {
	return &CouponClient{base: newBase(doer, baseURL, "coupon"), now: time.Now}
}

// Validate returns the coupon for code. Any client-side rejection by the API,
// an unknown discount type or scope, and a coupon that is expired or used up
// all yield an error wrapping ErrCouponNotApplicable. Other errors mean the
// coupon API could not answer.
func (c *CouponClient) Validate(ctx context.Context, code string) (*domain.Coupon, error) {
	var resp envelope[domain.Coupon]
	err := c.do(ctx, http.MethodGet, "/api/v1/coupons/"+url.PathEscape(code)+"/validate", nil, &resp, nil)
	if err != nil {
		if isClientRejection(err) {
			return nil, fmt.Errorf("%w: %v", ErrCouponNotApplicable, err)
		}
		return nil, err
	}

	coupon := &resp.Data
	if coupon.Code == "" {
		coupon.Code = code
	}
	if !domain.IsValidDiscountType(coupon.DiscountType) || !domain.IsValidAppliesTo(coupon.AppliesTo) {
		return nil, fmt.Errorf("%w: unsupported discount %q on %q", ErrCouponNotApplicable, coupon.DiscountType, coupon.AppliesTo)
	}
	if coupon.Value.IsNegative() {
		return nil, fmt.Errorf("%w: negative value", ErrCouponNotApplicable)
	}
	if err := coupon.Validate(c.now()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCouponNotApplicable, err)
	}
	return coupon, nil
}

// Redeem records one use of code for orderID. The order ID doubles as the
// idempotency key so retries never double count.
func (c *CouponClient) Redeem(ctx context.Context, code, orderID string) error {
	body := struct {
		OrderID string `json:"order_id"`
	}{OrderID: orderID}
	return c.do(ctx, http.MethodPost, "/api/v1/coupons/"+url.PathEscape(code)+"/redeem", body, nil,
		map[string]string{"Idempotency-Key": orderID})
}

func isClientRejection(err error) bool {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Status >= 400 && appErr.Status < 500 && appErr.Status != http.StatusTooManyRequests
}
