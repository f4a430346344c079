// Package app assembles the service from a Config: storage driver, optional
// redis cache and rate limiter, metrics registry, services and HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"invoice-payment-service/config"
	httpHandler "invoice-payment-service/internal/adapter/http/handler"
	boltStorage "invoice-payment-service/internal/adapter/storage/bolt"
	memStorage "invoice-payment-service/internal/adapter/storage/memory"
	pgStorage "invoice-payment-service/internal/adapter/storage/postgres"
	redisStorage "invoice-payment-service/internal/adapter/storage/redis"
	"invoice-payment-service/internal/core/ports"
	"invoice-payment-service/internal/service"
	"invoice-payment-service/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// App is a fully wired service instance.
type App struct {
	Router   *gin.Engine
	Registry *prometheus.Registry

	closers []func() error
}

// stores is what a storage driver contributes to the wiring.
type stores struct {
	invoices   ports.InvoiceRepository
	attempts   ports.PaymentAttemptRepository
	transactor ports.Transactor
	health     []ports.HealthChecker
}

// New builds the App. On error every resource opened so far is released.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Registry: prometheus.NewRegistry()}

	st, err := a.openStorage(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := httpHandler.RouterDeps{
		HealthCheckers: st.health,
		Logger:         log,
	}

	var idempCache ports.IdempotencyCache
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)

		idempCache = redisStorage.NewIdempotencyCache(rdb)
		deps.HealthCheckers = append(deps.HealthCheckers, redisStorage.NewHealthCheck(rdb))
		if cfg.RateLimit.Enabled {
			deps.RateLimitStore = redisStorage.NewRateLimitStore(rdb)
		}
	} else if cfg.RateLimit.Enabled {
		log.Warn().Msg("rate limiting requires redis, running without it")
	}

	paymentMetrics := metrics.NewPaymentMetrics(a.Registry)
	if cfg.Metrics.Enabled {
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		deps.MetricsHandler = promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
		deps.MetricsPath = cfg.Metrics.Path
	}

	deps.InvoiceSvc = service.NewInvoiceService(st.invoices, paymentMetrics, log)
	deps.PaymentSvc = service.NewPaymentService(
		st.invoices,
		st.attempts,
		idempCache,
		st.transactor,
		paymentMetrics,
		service.PaymentOptions{
			AllowForcedOutcome: cfg.Payments.AllowForcedOutcome,
			IdempotencyTTL:     cfg.Idempotency.CacheTTL,
		},
		log,
	)

	a.Router = httpHandler.SetupRouter(deps)

	log.Info().
		Str("storage", cfg.Storage.Driver).
		Bool("redis", cfg.Redis.Enabled).
		Bool("rate_limit", deps.RateLimitStore != nil).
		Bool("metrics", cfg.Metrics.Enabled).
		Msg("application wired")

	return a, nil
}

func (a *App) openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return &stores{
			invoices:   memStorage.NewInvoiceRepo(),
			attempts:   memStorage.NewPaymentAttemptRepo(),
			transactor: ports.NoopTransactor{},
		}, nil

	case config.DriverPostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		if cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(ctx, pool, "up"); err != nil {
				return nil, fmt.Errorf("auto migrate: %w", err)
			}
			log.Info().Msg("database migrations applied")
		}

		return &stores{
			invoices:   pgStorage.NewInvoiceRepo(pool),
			attempts:   pgStorage.NewPaymentAttemptRepo(pool),
			transactor: pgStorage.NewTransactor(pool),
			health:     []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
		}, nil

	case config.DriverBolt:
		db, err := boltStorage.Open(cfg.Bolt.Path, cfg.Bolt.Timeout)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		log.Info().Str("path", cfg.Bolt.Path).Msg("bolt database opened")

		return &stores{
			invoices:   boltStorage.NewInvoiceRepo(db),
			attempts:   boltStorage.NewPaymentAttemptRepo(db),
			transactor: db,
			health:     []ports.HealthChecker{db},
		}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.Router
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
