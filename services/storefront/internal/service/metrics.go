package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Coupon lookup results.
const (
	couponApplied       = "applied"
	couponNotApplicable = "not_applicable"
	couponUnavailable   = "unavailable"
)

// Metrics holds the storefront business metrics.
type Metrics struct {
	CartMutations      *prometheus.CounterVec
	OrdersPlaced       prometheus.Counter
	OrderGrandTotal    prometheus.Histogram
	CouponLookups      *prometheus.CounterVec
	CartStateRecovered prometheus.Counter
}

// NewMetrics creates the business metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CartMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Cart mutations that changed state, by operation",
		}, []string{"operation"}),
		OrdersPlaced: factory.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Orders successfully placed",
		}),
		OrderGrandTotal: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_order_grand_total_pesos",
			Help:    "Grand total of placed orders in COP",
			Buckets: prometheus.ExponentialBuckets(10_000, 2.5, 10),
		}),
		CouponLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_coupon_lookups_total",
			Help: "Coupon validations by result",
		}, []string{"result"}),
		CartStateRecovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "storefront_cart_state_recovered_total",
			Help: "Persisted carts discarded as malformed and replaced by an empty cart",
		}),
	}
}
