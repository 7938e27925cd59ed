package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/homeledger/internal/adapter/http"
	"github.com/iho/homeledger/internal/adapter/http/handler"
	"github.com/iho/homeledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/homeledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/homeledger/internal/adapter/repository/redis"
	"github.com/iho/homeledger/internal/infrastructure/auth"
	"github.com/iho/homeledger/internal/infrastructure/config"
	"github.com/iho/homeledger/internal/infrastructure/eventpublisher"
	"github.com/iho/homeledger/internal/infrastructure/invoicecloser"
	"github.com/iho/homeledger/internal/infrastructure/logger"
	"github.com/iho/homeledger/internal/infrastructure/metrics"
	"github.com/iho/homeledger/internal/infrastructure/postgres"
	"github.com/iho/homeledger/internal/infrastructure/redis"
	"github.com/iho/homeledger/internal/usecase"
)

// limiterIdle is how long a client's rate limiter survives without traffic.
const limiterIdle = 10 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	zl := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal().Err(err).Msg("server failed")
	}

	zl.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to postgres")

	if cfg.RunMigrations {
		if err := postgres.NewMigrator(cfg.DatabaseURL, logger).Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	app := newApp(cfg, pool, logger, m)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:     handler.NewAccountHandler(app.accounts),
		CreditCardHandler:  handler.NewCreditCardHandler(app.cards),
		TransactionHandler: handler.NewTransactionHandler(app.transactions),
		InstallmentHandler: handler.NewInstallmentHandler(app.installments),
		InvoiceHandler:     handler.NewInvoiceHandler(app.invoices),
		PaymentHandler:     handler.NewPaymentHandler(app.payments),
		LedgerHandler:      handler.NewLedgerHandler(app.ledger),
		HealthHandler: handler.NewHealthHandler(
			handler.PingFunc(pool.Ping),
			handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		),
		TenantVerifier:   tenantVerifier(cfg),
		IdempotencyStore: redisRepo.NewIdempotencyStore(redisClient),
		IdempotencyTTL:   cfg.IdempotencyTTL,
		RateLimiter:      rateLimiter,
		Metrics:          m,
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:           logger,
	})

	server := newHTTPServer(cfg, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: postgresRepo.NewOutboxRepository(pool),
			Publisher:  eventSink(cfg, redisClient, logger),
			Logger:     logger,
			Metrics:    m,
			BatchSize:  cfg.OutboxBatchSize,
			Interval:   cfg.OutboxPollInterval,
			Retention:  cfg.OutboxRetention,
		}).Start(ctx)
	})

	g.Go(func() error {
		return invoicecloser.NewWorker(invoicecloser.Config{
			Families: app.invoiceRepo,
			Invoices: app.invoices,
			Locker:   redisRepo.NewLocker(redisClient),
			Logger:   logger,
			Interval: cfg.InvoiceCloserInterval,
		}).Start(ctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(limiterIdle)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := rateLimiter.CleanupLimiters(limiterIdle); n > 0 {
					logger.Debug().Int("removed", n).Msg("idle rate limiters removed")
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// app holds the wired use cases.
type app struct {
	invoiceRepo  *postgresRepo.InvoiceRepository
	accounts     *usecase.AccountUseCase
	cards        *usecase.CreditCardUseCase
	transactions *usecase.TransactionUseCase
	installments *usecase.InstallmentUseCase
	invoices     *usecase.InvoiceUseCase
	payments     *usecase.PaymentUseCase
	ledger       *usecase.LedgerUseCase
}

func newApp(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger, m *metrics.Metrics) *app {
	// Initialize repositories
	accountRepo := postgresRepo.NewAccountRepository(pool)
	cardRepo := postgresRepo.NewCreditCardRepository(pool)
	txnRepo := postgresRepo.NewTransactionRepository(pool)
	installmentRepo := postgresRepo.NewInstallmentRepository(pool)
	invoiceRepo := postgresRepo.NewInvoiceRepository(pool)
	paymentRepo := postgresRepo.NewPaymentRepository(pool)

	infra := usecase.Infra{
		TxManager: postgresRepo.NewTxManager(pool),
		Retrier:   postgresRepo.NewRetrier(cfg.RetryMaxAttempts, logger),
		IDGen:     postgresRepo.NewULIDGenerator(),
		Outbox:    postgresRepo.NewOutboxRepository(pool),
		Audit:     postgresRepo.NewAuditRepository(pool),
		Logger:    logger,
		Metrics:   m,
	}

	// Initialize use cases
	balance := usecase.NewBalanceUseCase(infra, accountRepo, cardRepo)
	invoices := usecase.NewInvoiceUseCase(infra, invoiceRepo, cardRepo, accountRepo, installmentRepo, txnRepo, paymentRepo, balance)
	installments := usecase.NewInstallmentUseCase(infra, txnRepo, installmentRepo, invoiceRepo, invoices, balance)

	return &app{
		invoiceRepo:  invoiceRepo,
		accounts:     usecase.NewAccountUseCase(infra, accountRepo),
		cards:        usecase.NewCreditCardUseCase(infra, cardRepo, accountRepo),
		transactions: usecase.NewTransactionUseCase(infra, txnRepo, installmentRepo, accountRepo, cardRepo, paymentRepo, installments, invoices, balance),
		installments: installments,
		invoices:     invoices,
		payments:     usecase.NewPaymentUseCase(infra, paymentRepo, invoiceRepo, accountRepo, txnRepo, installmentRepo, invoices, balance),
		ledger:       usecase.NewLedgerUseCase(postgresRepo.NewLedgerRepository(pool), logger, m),
	}
}

// tenantVerifier returns the bearer token verifier, or nil when requests
// carry their family in headers.
func tenantVerifier(cfg *config.Config) middleware.TenantVerifier {
	if !cfg.AuthEnabled {
		return nil
	}
	return auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           h,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}
}

// eventSink picks where drained outbox events go.
func eventSink(cfg *config.Config, client *goredis.Client, l zerolog.Logger) eventpublisher.Publisher {
	if cfg.EventSink == "log" {
		return eventpublisher.NewLogPublisher(l)
	}
	return redisRepo.NewEventPublisher(client, cfg.EventChannel)
}
