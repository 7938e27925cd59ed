package invoicecloser

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

// FamilySource lists the families that still have open invoices.
type FamilySource interface {
	ListFamiliesWithOpenInvoices(ctx context.Context) ([]string, error)
}

// InvoiceCloser closes the expired invoices of one family.
type InvoiceCloser interface {
	CloseAllExpiredInvoices(ctx context.Context, tenant domain.Tenant, now time.Time) (int, error)
}

// Config for Worker.
type Config struct {
	Families FamilySource
	Invoices InvoiceCloser
	Locker   usecase.Locker // optional; without it every instance sweeps
	LockKey  string
	Logger   zerolog.Logger
	Interval time.Duration
}

// Worker periodically closes every invoice whose closing date has passed.
type Worker struct {
	families FamilySource
	invoices InvoiceCloser
	locker   usecase.Locker
	lockKey  string
	logger   zerolog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewWorker creates a new Worker.
func NewWorker(cfg Config) *Worker {
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	if cfg.LockKey == "" {
		cfg.LockKey = usecase.InvoiceSweepLockKey
	}

	return &Worker{
		families: cfg.Families,
		invoices: cfg.Invoices,
		locker:   cfg.Locker,
		lockKey:  cfg.LockKey,
		logger:   cfg.Logger.With().Str("component", "invoice_closer").Logger(),
		interval: cfg.Interval,
		now:      time.Now,
	}
}

// Start sweeps once and then every interval until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().Dur("interval", w.interval).Msg("invoice closer started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.run(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("invoice closer shutting down")
			return ctx.Err()
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *Worker) run(ctx context.Context) {
	if _, err := w.Sweep(ctx); err != nil {
		w.logger.Error().Err(err).Msg("invoice sweep failed")
	}
}

// Sweep closes expired invoices of every family and returns how many were
// closed. It does nothing when another instance holds the sweep lock.
// A failing family is logged and skipped.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	if w.locker != nil {
		ok, err := w.locker.TryLock(ctx, w.lockKey, w.interval)
		if err != nil {
			return 0, err
		}
		if !ok {
			w.logger.Debug().Msg("invoice sweep already running elsewhere")
			return 0, nil
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), w.lockKey); err != nil {
				w.logger.Warn().Err(err).Msg("failed to release sweep lock")
			}
		}()
	}

	families, err := w.families.ListFamiliesWithOpenInvoices(ctx)
	if err != nil {
		return 0, err
	}

	now := w.now().UTC()
	total := 0
	for _, familyID := range families {
		closed, err := w.invoices.CloseAllExpiredInvoices(ctx, domain.Tenant{FamilyID: familyID}, now)
		if err != nil {
			w.logger.Error().Err(err).Str("family_id", familyID).Msg("failed to close expired invoices")
			continue
		}
		total += closed
	}

	if total > 0 {
		w.logger.Info().Int("closed", total).Int("families", len(families)).Msg("expired invoices closed")
	}

	return total, nil
}
