package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/services/storefront/internal/service"
)

const serviceName = "storefront"

// RoleAdmin is the token role allowed on /api/v1/admin.
const RoleAdmin = "admin"

// RouterConfig carries everything the router needs.
type RouterConfig struct {
	CartService     *service.CartService
	CheckoutService *service.CheckoutService
	OrderService    *service.OrderService
	Health          *health.Handler
	Logger          *slog.Logger

	// TokenValidator verifies customer and admin bearer tokens.
	TokenValidator middleware.TokenValidator
	// TrustGatewayHeaders accepts X-User-ID from an authenticating gateway.
	TrustGatewayHeaders bool
	RateLimit      middleware.RateLimitConfig
	CORS           middleware.CORSConfig
	PprofCIDRs     []string
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all storefront routes registered. ctx
// bounds the lifetime of background work such as rate limiter cleanup.
func NewRouter(ctx context.Context, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	logger := cfg.Logger

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.OptionalAuth(cfg.TokenValidator))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	cartHandler := NewCartHandler(cfg.CartService, logger)
	checkoutHandler := NewCheckoutHandler(cfg.CheckoutService, logger)
	orderHandler := NewOrderHandler(cfg.OrderService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		if cfg.RateLimit.RPS > 0 {
			r.Use(middleware.RateLimit(ctx, cfg.RateLimit, logger))
		}
		r.Use(IdentifyCustomer(cfg.TrustGatewayHeaders))

		r.Route("/cart", func(r chi.Router) {
			r.Use(RequireSession)

			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{itemId}", cartHandler.UpdateItem)
			r.Delete("/items/{itemId}", cartHandler.RemoveItem)
			r.Post("/quote", cartHandler.Quote)
		})

		r.With(RequireSession).Post("/checkout", checkoutHandler.PlaceOrder)

		r.Route("/orders", func(r chi.Router) {
			r.Use(RequireCustomer)

			r.Get("/", orderHandler.ListMyOrders)
			r.Get("/{id}", orderHandler.GetMyOrder)
			r.Post("/{id}/cancel", orderHandler.CancelMyOrder)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.TokenValidator))
			r.Use(middleware.RequireRole(RoleAdmin))

			r.Get("/orders", orderHandler.ListOrders)
			r.Get("/orders/{id}", orderHandler.GetOrder)
			r.Patch("/orders/{id}/status", orderHandler.UpdateStatus)
		})
	})

	return r
}
