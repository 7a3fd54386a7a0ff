package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
	"github.com/utafrali/storefront/services/storefront/internal/cart"
	"github.com/utafrali/storefront/services/storefront/internal/client"
	"github.com/utafrali/storefront/services/storefront/internal/config"
	"github.com/utafrali/storefront/services/storefront/internal/event"
	handler "github.com/utafrali/storefront/services/storefront/internal/handler/http"
	pgrepo "github.com/utafrali/storefront/services/storefront/internal/repository/postgres"
	redisrepo "github.com/utafrali/storefront/services/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/services/storefront/internal/service"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	shutdownTracer tracing.ShutdownFunc
	httpServer     *http.Server
	cancelRouter   context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownTracer, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelEndpoint,
		Insecure:       cfg.OTelInsecure,
		SampleRate:     cfg.OTelSampleRate,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// Initialize Redis client.
	rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	}, logger)
	if err != nil {
		_ = shutdownTracer(context.Background())
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// Initialize PostgreSQL pool.
	pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
		URL:      cfg.PostgresDSN(),
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
	if err != nil {
		_ = rdb.Close()
		_ = shutdownTracer(context.Background())
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Initialize Kafka producer.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Outbound clients, one breaker per downstream service.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.HTTPClientTimeout
	httpCfg.MaxRetries = cfg.HTTPClientRetries
	base := httpclient.New(httpCfg)
	catalogClient := client.NewCatalogClient(
		httpclient.NewCircuitBreakerClient(base, breakerConfig(cfg, "catalog"), logger),
		cfg.CatalogServiceURL,
	)
	couponClient := client.NewCouponClient(
		httpclient.NewCircuitBreakerClient(base, breakerConfig(cfg, "coupon"), logger),
		cfg.CouponServiceURL,
	)

	// Build the dependency graph.
	metrics := service.NewMetrics(prometheus.DefaultRegisterer)
	cartState := redisrepo.NewCartStateStore(rdb, cfg.CartTTLDuration())
	adapter := cart.NewAdapter(cartState, logger, cart.WithRecoveredCounter(metrics.CartStateRecovered))
	orderRepo := pgrepo.NewOrderRepository(pool, database.NewQueryTracer("postgresql", cfg.SlowQueryThreshold(), logger))
	eventProducer := event.NewProducer(producer, logger)

	cartService := service.NewCartService(adapter, catalogClient, couponClient, eventProducer, metrics, logger)
	checkoutService := service.NewCheckoutService(adapter, catalogClient, couponClient, orderRepo, eventProducer, metrics, logger)
	orderService := service.NewOrderService(orderRepo, eventProducer, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.Register("postgres", pool.Ping)
	healthHandler.RegisterOptional("kafka", producer.Ping)

	// HTTP router.
	routerCtx, cancelRouter := context.WithCancel(context.Background())
	router := handler.NewRouter(routerCtx, handler.RouterConfig{
		CartService:         cartService,
		CheckoutService:     checkoutService,
		OrderService:        orderService,
		Health:              healthHandler,
		Logger:              logger,
		TokenValidator:      middleware.HMACValidator([]byte(cfg.JWTSecret)),
		TrustGatewayHeaders: cfg.TrustGatewayHeaders,
		RateLimit: middleware.RateLimitConfig{
			RPS:               cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
			TrustProxyHeaders: cfg.TrustGatewayHeaders,
		},
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		RequestTimeout: cfg.RequestTimeout,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		pool:           pool,
		producer:       producer,
		shutdownTracer: shutdownTracer,
		httpServer:     httpServer,
		cancelRouter:   cancelRouter,
	}, nil
}

func breakerConfig(cfg *config.Config, name string) httpclient.CircuitBreakerConfig {
	cb := httpclient.DefaultCircuitBreakerConfig(name)
	cb.MaxRequests = cfg.CBMaxRequests
	cb.Interval = cfg.CBInterval
	cb.Timeout = cfg.CBTimeout
	cb.FailureRatio = cfg.CBFailureRatio
	cb.MinRequests = cfg.CBMinRequests
	return cb
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.Shutdown()
		return err
	}

	a.Shutdown()
	return nil
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	a.cancelRouter()

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	a.pool.Close()

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	if err := a.shutdownTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
}
