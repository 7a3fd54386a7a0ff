package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`

	// HTTP server
	HTTPPort       int           `env:"STOREFRONT_HTTP_PORT" envDefault:"8010"`
	RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`

	// Redis
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass     string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`

	// Cart TTL in hours (default: 30 days)
	CartTTL int `env:"CART_TTL_HOURS" envDefault:"720"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresDB   string `env:"STOREFRONT_DB_NAME" envDefault:"storefront_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns   int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns   int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	DBSlowQuery  int    `env:"DB_SLOW_QUERY_MS" envDefault:"200"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Downstream services
	CatalogServiceURL string        `env:"CATALOG_SERVICE_URL" envDefault:"http://localhost:8001"`
	CouponServiceURL  string        `env:"COUPON_SERVICE_URL" envDefault:"http://localhost:8008"`
	HTTPClientTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"5s"`
	HTTPClientRetries int           `env:"HTTP_CLIENT_MAX_RETRIES" envDefault:"2"`

	// Circuit breaker
	CBMaxRequests  uint32        `env:"CB_MAX_REQUESTS" envDefault:"3"`
	CBInterval     time.Duration `env:"CB_INTERVAL" envDefault:"60s"`
	CBTimeout      time.Duration `env:"CB_TIMEOUT" envDefault:"30s"`
	CBFailureRatio float64       `env:"CB_FAILURE_RATIO" envDefault:"0.6"`
	CBMinRequests  uint32        `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Customer and admin token verification
	JWTSecret string `env:"JWT_SECRET"`
	// TrustGatewayHeaders accepts X-User-ID and X-Forwarded-For from an
	// authenticating gateway. Leave off when the service faces clients directly.
	TrustGatewayHeaders bool `env:"TRUST_GATEWAY_HEADERS" envDefault:"false"`

	// Rate limiting, per client IP. RPS 0 disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`

	// Tracing
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelInsecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromMap is Load over an explicit set of variables.
func LoadFromMap(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFromMap(cfg, vars); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if c.CartTTL < 1 {
		errs = append(errs, fmt.Errorf("CART_TTL_HOURS must be positive, got %d", c.CartTTL))
	}
	if c.DBMinConns < 0 || c.DBMaxConns < 1 || c.DBMinConns > c.DBMaxConns {
		errs = append(errs, fmt.Errorf("invalid DB pool bounds: min=%d max=%d", c.DBMinConns, c.DBMaxConns))
	}
	for name, raw := range map[string]string{
		"CATALOG_SERVICE_URL": c.CatalogServiceURL,
		"COUPON_SERVICE_URL":  c.CouponServiceURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if c.IsProduction() && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes in production"))
	}
	if c.RateLimitRPS < 0 || (c.RateLimitRPS > 0 && c.RateLimitBurst < 1) {
		errs = append(errs, fmt.Errorf("invalid rate limit: rps=%v burst=%d", c.RateLimitRPS, c.RateLimitBurst))
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1 {
		errs = append(errs, fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %v", c.CBFailureRatio))
	}
	if c.OTelSampleRate < 0 || c.OTelSampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be in [0, 1], got %v", c.OTelSampleRate))
	}
	for _, cidr := range c.PprofAllowedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errs = append(errs, fmt.Errorf("invalid PPROF_ALLOWED_CIDRS entry %q", cidr))
		}
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPass),
		Host:     net.JoinHostPort(c.PostgresHost, fmt.Sprint(c.PostgresPort)),
		Path:     c.PostgresDB,
		RawQuery: "sslmode=" + url.QueryEscape(c.PostgresSSL),
	}
	return u.String()
}

// CartTTLDuration returns the cart TTL as a duration.
func (c *Config) CartTTLDuration() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}

// SlowQueryThreshold returns the duration above which queries are logged.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.DBSlowQuery) * time.Millisecond
}
