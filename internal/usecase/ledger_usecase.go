package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/infrastructure/metrics"
)

// ConsistencyReport lists every record that breaks a ledger invariant.
type ConsistencyReport struct {
	FamilyID     string
	Invoices     []InvoiceMismatch
	Transactions []TransactionMismatch
	Cards        []CardMismatch
}

// Consistent reports whether no mismatch was found.
func (r *ConsistencyReport) Consistent() bool {
	return len(r.Invoices) == 0 && len(r.Transactions) == 0 && len(r.Cards) == 0
}

// LedgerUseCase handles ledger-wide operations.
type LedgerUseCase struct {
	ledgerRepo LedgerRepository
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// NewLedgerUseCase creates a new LedgerUseCase. m may be nil.
func NewLedgerUseCase(ledgerRepo LedgerRepository, logger zerolog.Logger, m *metrics.Metrics) *LedgerUseCase {
	return &LedgerUseCase{
		ledgerRepo: ledgerRepo,
		logger:     logger,
		metrics:    m,
	}
}

// CheckConsistency verifies that every invoice total equals its carried over
// amount plus what its installments owe, that every transaction equals the
// sum of its installments, and that every card's used limit equals the
// outstanding balance of its invoices. The report is returned together with
// domain.ErrInconsistentLedger when anything is off.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context, tenant domain.Tenant) (*ConsistencyReport, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	invoices, err := uc.ledgerRepo.InvoiceTotalMismatches(ctx, tenant.FamilyID)
	if err != nil {
		return nil, err
	}

	transactions, err := uc.ledgerRepo.TransactionSumMismatches(ctx, tenant.FamilyID)
	if err != nil {
		return nil, err
	}

	cards, err := uc.ledgerRepo.CardUsedMismatches(ctx, tenant.FamilyID)
	if err != nil {
		return nil, err
	}

	report := &ConsistencyReport{
		FamilyID:     tenant.FamilyID,
		Invoices:     invoices,
		Transactions: transactions,
		Cards:        cards,
	}

	if report.Consistent() {
		return report, nil
	}

	if uc.metrics != nil {
		uc.metrics.Inconsistencies.WithLabelValues("invoice_total").Add(float64(len(invoices)))
		uc.metrics.Inconsistencies.WithLabelValues("transaction_sum").Add(float64(len(transactions)))
		uc.metrics.Inconsistencies.WithLabelValues("card_used").Add(float64(len(cards)))
	}

	uc.logger.Warn().
		Str("family_id", tenant.FamilyID).
		Int("invoices", len(invoices)).
		Int("transactions", len(transactions)).
		Int("cards", len(cards)).
		Msg("ledger inconsistency detected")

	return report, domain.ErrInconsistentLedger
}
