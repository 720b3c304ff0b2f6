package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/database"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/health"
	pkgkafka "github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/kafka"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/tracing"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/config"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/event"
	handler "github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/handler/http"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/repository/postgres"
	redisrepo "github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/repository/redis"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/service"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/migrations"
)

// processedEventTTL bounds how long payment event ids are remembered.
const processedEventTTL = 7 * 24 * time.Hour

var _ service.OrderEvents = (*event.Producer)(nil)

// App wires together all dependencies and runs the marketplace service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	payments       *pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.DBName),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, config.ServiceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.LogSlowQueryMS > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// Kafka is optional at startup: events are fire-and-forget and the
	// producer's circuit breaker sheds load while the broker is away.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
		logger.Warn("kafka unreachable, continuing in degraded mode", slog.String("error", err.Error()))
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	catalog := postgres.NewCatalogRepository(pool)
	orders := postgres.NewOrderRepository(pool)
	checkoutStore := postgres.NewCheckoutRepository(pool)
	carts := redisrepo.NewCartRepository(redisClient, cfg.CartTTL())
	events := event.NewProducer(producer, cfg.EventPublishTimeout(), logger)
	locks := service.NewKeyedMutex()

	svcs := handler.Services{
		Carts:    service.NewCartService(carts, catalog, locks, logger),
		Checkout: service.NewCheckoutService(carts, catalog, checkoutStore, events, locks, cfg.CheckoutMaxAttempts, logger),
		Orders:   service.NewOrderService(orders, events, logger),
		Catalog:  service.NewCatalogService(catalog),
	}

	consumer := event.NewConsumer(svcs.Orders, logger)
	payments := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:   cfg.KafkaBrokers,
		GroupID:   cfg.KafkaConsumerGroup + "-payment-succeeded",
		Topic:     event.TopicPaymentSucceeded,
		MinBytes:  1,
		MaxBytes:  10e6,
		EnableDLQ: true,
	}, consumer.Handler(redisrepo.NewIdempotencyStore(redisClient, processedEventTTL)), logger)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", carts.Ping)
	healthHandler.RegisterNonCritical("kafka", producer.Ping)

	router := handler.NewRouter(svcs, healthHandler, logger, handler.RouterConfig{
		PprofCIDRs:    cfg.PprofAllowedCIDRs,
		AdminCIDRs:    cfg.AdminAllowedCIDRs,
		CORSOrigins:   cfg.CORSAllowedOrigins,
		CheckoutRPS:   cfg.CheckoutRateLimitRPS,
		CheckoutBurst: cfg.CheckoutRateLimitBurst,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		payments:       payments,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and the payment consumer, then blocks until
// the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := a.payments.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("payment consumer: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("component failed, shutting down", slog.String("error", err.Error()))
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown stops components in dependency order: HTTP first so no new
// checkouts start, then tracing, Kafka, Redis and finally PostgreSQL.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.payments.Close(); err != nil {
		a.logger.Error("payment consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// pingKafkaWithRetry pings the brokers up to three times with jittered
// exponential backoff starting at 1s.
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	const attempts = 3
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if lastErr = producer.Ping(ctx); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		base := time.Duration(1<<attempt) * time.Second
		wait := base + time.Duration(float64(base)*0.25*(2*rand.Float64()-1)) // #nosec G404 -- jitter only
		logger.Warn("kafka ping failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", wait),
			slog.String("error", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("kafka ping: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("kafka ping failed after %d attempts: %w", attempts, lastErr)
}
