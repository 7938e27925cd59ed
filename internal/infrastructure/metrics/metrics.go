package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transaction metrics
	TransactionsCreated *prometheus.CounterVec
	TransactionsUpdated prometheus.Counter
	TransactionsDeleted prometheus.Counter
	TransactionsSettled prometheus.Counter
	TransactionAmount   prometheus.Histogram

	// Installment metrics
	InstallmentsCreated prometheus.Counter
	InstallmentsDeleted prometheus.Counter

	// Invoice metrics
	InvoicesClosed   prometheus.Counter
	InvoicePayments  *prometheus.CounterVec
	RolloverAmount   prometheus.Histogram
	PaymentsReversed *prometheus.CounterVec
	PaymentAmount    prometheus.Histogram

	// Ledger metrics
	OperationDuration *prometheus.HistogramVec
	LedgerErrors      *prometheus.CounterVec
	Inconsistencies   *prometheus.CounterVec

	// API metrics
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	HTTPRequestsBusy prometheus.Gauge

	// Outbox metrics
	EventsPublished *prometheus.CounterVec
	PublishErrors   prometheus.Counter

	// Authentication metrics
	AuthFailures *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits prometheus.Counter
}

// New creates all Prometheus metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Transaction metrics
		TransactionsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homeledger_transactions_created_total",
				Help: "Total number of transactions created by impact",
			},
			[]string{"impact"},
		),
		TransactionsUpdated: f.NewCounter(prometheus.CounterOpts{
			Name: "homeledger_transactions_updated_total",
			Help: "Total number of transactions updated",
		}),
		TransactionsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "homeledger_transactions_deleted_total",
			Help: "Total number of transactions deleted",
		}),
		TransactionsSettled: f.NewCounter(prometheus.CounterOpts{
			Name: "homeledger_transactions_settled_total",
			Help: "Total number of pending transactions settled",
		}),
		TransactionAmount: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "homeledger_transaction_amount_minor",
			Help:    "Transaction magnitudes in minor units",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		}),

		// Installment metrics
		InstallmentsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "homeledger_installments_created_total",
			Help: "Total number of installments created",
		}),
		InstallmentsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "homeledger_installments_deleted_total",
			Help: "Total number of installments deleted",
		}),

		// Invoice metrics
		InvoicesClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "homeledger_invoices_closed_total",
			Help: "Total number of invoices closed",
		}),
		InvoicePayments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homeledger_invoice_payments_total",
				Help: "Total invoice payments by outcome",
			},
			[]string{"outcome"},
		),
		RolloverAmount: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "homeledger_rollover_amount_minor",
			Help:    "Unpaid invoice balance rolled into the next period",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		}),
		PaymentsReversed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homeledger_payments_reversed_total",
				Help: "Total payments cancelled by target",
			},
			[]string{"target"},
		),
		PaymentAmount: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "homeledger_payment_amount_minor",
			Help:    "Payment amounts in minor units",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		}),

		// Ledger metrics
		OperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "homeledger_operation_duration_seconds",
				Help:    "Duration of ledger operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		LedgerErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homeledger_errors_total",
				Help: "Total ledger errors by operation and kind",
			},
			[]string{"operation", "kind"},
		),
		Inconsistencies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homeledger_inconsistencies_total",
				Help: "Inconsistencies found by the consistency check",
			},
			[]string{"check"},
		),

		// API metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homeledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "homeledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsBusy: f.NewGauge(prometheus.GaugeOpts{
			Name: "homeledger_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),

		// Outbox metrics
		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homeledger_events_published_total",
				Help: "Total outbox events published by type",
			},
			[]string{"event_type"},
		),
		PublishErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "homeledger_event_publish_errors_total",
			Help: "Total outbox publish failures",
		}),

		// Authentication metrics
		AuthFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homeledger_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),

		// Rate limiting metrics
		RateLimitHits: f.NewCounter(prometheus.CounterOpts{
			Name: "homeledger_rate_limit_hits_total",
			Help: "Total rate limit hits",
		}),
	}
}
