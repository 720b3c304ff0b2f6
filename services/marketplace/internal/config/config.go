package config

import (
	"errors"
	"fmt"
	"time"

	pkgconfig "github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/config"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/database"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/tracing"
)

// ServiceName tags logs, metrics and spans.
const ServiceName = "marketplace"

// Config holds all configuration for the marketplace service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	HTTPPort int `env:"MARKETPLACE_HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"marketplace"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"marketplace_secret"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	DBName           string `env:"MARKETPLACE_DB_NAME" envDefault:"marketplace"`

	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	LogSlowQueryMS    int           `env:"LOG_SLOW_QUERY_MS" envDefault:"200"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	CartTTLHours  int    `env:"CART_TTL_HOURS" envDefault:"168"`

	// Kafka
	KafkaBrokers          []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup    string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"marketplace"`
	EventPublishTimeoutMS int      `env:"EVENT_PUBLISH_TIMEOUT_MS" envDefault:"2000"`

	CheckoutMaxAttempts int `env:"CHECKOUT_MAX_ATTEMPTS" envDefault:"3"`
	// Per client IP; 0 disables.
	CheckoutRateLimitRPS   float64 `env:"CHECKOUT_RATE_LIMIT_RPS" envDefault:"2"`
	CheckoutRateLimitBurst int     `env:"CHECKOUT_RATE_LIMIT_BURST" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
	AdminAllowedCIDRs  []string `env:"ADMIN_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128,10.0.0.0/8" envSeparator:","`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load marketplace config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants. pkgconfig.Load calls it.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if c.CartTTLHours < 1 {
		errs = append(errs, fmt.Errorf("CART_TTL_HOURS must be positive, got %d", c.CartTTLHours))
	}
	if c.CheckoutMaxAttempts < 1 || c.CheckoutMaxAttempts > 10 {
		errs = append(errs, fmt.Errorf("CHECKOUT_MAX_ATTEMPTS must be between 1 and 10, got %d", c.CheckoutMaxAttempts))
	}
	if c.CheckoutRateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("CHECKOUT_RATE_LIMIT_RPS must not be negative, got %v", c.CheckoutRateLimitRPS))
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.OTELSampleRate))
	}
	if c.DBMinConns > c.DBMaxConns {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns))
	}
	if c.EventPublishTimeoutMS < 1 {
		errs = append(errs, fmt.Errorf("EVENT_PUBLISH_TIMEOUT_MS must be positive, got %d", c.EventPublishTimeoutMS))
	}
	return errors.Join(errs...)
}

// Postgres returns the pool configuration.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPassword,
		DBName:          c.DBName,
		SSLMode:         c.PostgresSSLMode,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: c.DBMaxConnLifetime,
		MaxConnIdleTime: c.DBMaxConnIdleTime,
	}
}

// Redis returns the client configuration.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// Tracing returns the tracer configuration.
func (c *Config) Tracing() tracing.Config {
	tc := tracing.DefaultConfig(ServiceName)
	tc.Environment = c.Environment
	tc.Enabled = c.OTELEnabled
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	return tc
}

func (c *Config) CartTTL() time.Duration {
	return time.Duration(c.CartTTLHours) * time.Hour
}

func (c *Config) EventPublishTimeout() time.Duration {
	return time.Duration(c.EventPublishTimeoutMS) * time.Millisecond
}

func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.LogSlowQueryMS) * time.Millisecond
}
