package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/utafrali/storefront/services/storefront/internal/client"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
)

// Messages returned alongside a quote when a coupon code was not applied.
const (
	msgCouponNotApplicable = "coupon is not valid or has expired"
	msgCouponUnavailable   = "coupon could not be verified right now"
)

// couponLookup is the outcome of resolving a coupon code.
type couponLookup struct {
	coupon  *domain.Coupon
	message string
	err     error // set only when the coupon API could not answer
}

// resolveCoupon validates code and records the result. An empty code resolves
// to no coupon.
func resolveCoupon(ctx context.Context, coupons Coupons, metrics *Metrics, logger *slog.Logger, code string) couponLookup {
	if code == "" {
		return couponLookup{}
	}

	coupon, err := coupons.Validate(ctx, code)
	switch {
	case err == nil:
		metrics.CouponLookups.WithLabelValues(couponApplied).Inc()
		return couponLookup{coupon: coupon}
	case errors.Is(err, client.ErrCouponNotApplicable):
		metrics.CouponLookups.WithLabelValues(couponNotApplicable).Inc()
		logger.InfoContext(ctx, "coupon not applied",
			slog.String("coupon_code", code),
			slog.String("reason", err.Error()),
		)
		return couponLookup{message: msgCouponNotApplicable}
	default:
		metrics.CouponLookups.WithLabelValues(couponUnavailable).Inc()
		logger.ErrorContext(ctx, "coupon validation failed",
			slog.String("coupon_code", code),
			slog.String("error", err.Error()),
		)
		return couponLookup{message: msgCouponUnavailable, err: err}
	}
}
