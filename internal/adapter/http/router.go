package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/homeledger/internal/adapter/http/handler"
	"github.com/iho/homeledger/internal/adapter/http/middleware"
	"github.com/iho/homeledger/internal/infrastructure/metrics"
	"github.com/iho/homeledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler     *handler.AccountHandler
	CreditCardHandler  *handler.CreditCardHandler
	TransactionHandler *handler.TransactionHandler
	InstallmentHandler *handler.InstallmentHandler
	InvoiceHandler     *handler.InvoiceHandler
	PaymentHandler     *handler.PaymentHandler
	LedgerHandler      *handler.LedgerHandler
	HealthHandler      *handler.HealthHandler

	// TenantVerifier authenticates bearer tokens. Nil trusts the tenant headers.
	TenantVerifier   middleware.TenantVerifier
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Metrics          *metrics.Metrics
	MetricsHandler   http.Handler
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Tenant(cfg.TenantVerifier, cfg.Metrics))

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			ttl := cfg.IdempotencyTTL
			if ttl <= 0 {
				ttl = usecase.IdempotencyKeyTTL
			}
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, ttl, cfg.Logger).Wrap)
		}

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Create)
			r.Get("/", cfg.AccountHandler.List)
			r.Get("/{id}", cfg.AccountHandler.Get)
		})

		r.Route("/credit-cards", func(r chi.Router) {
			r.Post("/", cfg.CreditCardHandler.Create)
			r.Get("/", cfg.CreditCardHandler.List)
			r.Get("/{id}", cfg.CreditCardHandler.Get)
			r.Get("/{id}/invoices", cfg.InvoiceHandler.ListByCard)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", cfg.TransactionHandler.Create)
			r.Get("/", cfg.TransactionHandler.List)
			r.Get("/{id}", cfg.TransactionHandler.Get)
			r.Put("/{id}", cfg.TransactionHandler.Update)
			r.Delete("/{id}", cfg.TransactionHandler.Delete)
			r.Post("/{id}/settle", cfg.TransactionHandler.Settle)
		})

		r.Route("/installments", func(r chi.Router) {
			r.Patch("/{id}", cfg.InstallmentHandler.Update)
			r.Post("/delete", cfg.InstallmentHandler.Delete)
			r.Post("/status", cfg.InstallmentHandler.SyncStatus)
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/close-expired", cfg.InvoiceHandler.CloseExpired)
			r.Get("/{id}", cfg.InvoiceHandler.Get)
			r.Post("/{id}/close", cfg.InvoiceHandler.Close)
			r.Post("/{id}/confirm-payment", cfg.InvoiceHandler.ConfirmPayment)
			r.Post("/{id}/cancel-payments", cfg.InvoiceHandler.CancelPayments)
			r.Get("/{id}/payments", cfg.PaymentHandler.List)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", cfg.PaymentHandler.List)
			r.Post("/invoice", cfg.PaymentHandler.PayInvoice)
			r.Post("/transaction", cfg.PaymentHandler.PayTransaction)
			r.Post("/{id}/cancel", cfg.PaymentHandler.Cancel)
		})

		r.Get("/ledger/consistency", cfg.LedgerHandler.CheckConsistency)
	})

	return r
}
