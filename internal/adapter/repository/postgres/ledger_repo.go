package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/iho/homeledger/internal/usecase"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	db DBTX
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// InvoiceTotalMismatches returns invoices whose total differs from the
// carried-over amount plus what their installments owe.
func (r *LedgerRepository) InvoiceTotalMismatches(ctx context.Context, familyID string) ([]usecase.InvoiceMismatch, error) {
	rows, err := r.db.Query(ctx, `
		SELECT inv.id, inv.total_amount,
		       inv.carried_over_amount + COALESCE(SUM(ABS(i.amount)), 0) AS expected
		FROM invoices inv
		LEFT JOIN installments i ON i.invoice_id = inv.id
		WHERE inv.family_id = $1
		GROUP BY inv.id, inv.total_amount, inv.carried_over_amount
		HAVING inv.total_amount <> inv.carried_over_amount + COALESCE(SUM(ABS(i.amount)), 0)
		ORDER BY inv.id`,
		familyID,
	)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (usecase.InvoiceMismatch, error) {
		var m usecase.InvoiceMismatch
		err := row.Scan(&m.InvoiceID, &m.Recorded, &m.Expected)
		return m, err
	})
}

// TransactionSumMismatches returns live transactions whose installments do
// not add up to the transaction amount. Transfer legs cancel out to zero.
func (r *LedgerRepository) TransactionSumMismatches(ctx context.Context, familyID string) ([]usecase.TransactionMismatch, error) {
	rows, err := r.db.Query(ctx, `
		SELECT t.id, t.amount, COALESCE(SUM(i.amount), 0) AS installments
		FROM transactions t
		LEFT JOIN installments i ON i.transaction_id = t.id
		WHERE t.family_id = $1 AND t.deleted_at IS NULL
		GROUP BY t.id, t.amount, t.type
		HAVING COALESCE(SUM(i.amount), 0) <> CASE WHEN t.type = 'TRANSFER' THEN 0 ELSE t.amount END
		ORDER BY t.id`,
		familyID,
	)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (usecase.TransactionMismatch, error) {
		var m usecase.TransactionMismatch
		err := row.Scan(&m.TransactionID, &m.Recorded, &m.Installments)
		return m, err
	})
}

// CardUsedMismatches returns cards whose used limit differs from the sum of
// what their invoices still have outstanding.
func (r *LedgerRepository) CardUsedMismatches(ctx context.Context, familyID string) ([]usecase.CardMismatch, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.used,
		       COALESCE(SUM(inv.total_amount - inv.paid_amount - inv.rolled_over_amount), 0) AS expected
		FROM credit_cards c
		LEFT JOIN invoices inv ON inv.credit_card_id = c.id
		WHERE c.family_id = $1
		GROUP BY c.id, c.used
		HAVING c.used <> COALESCE(SUM(inv.total_amount - inv.paid_amount - inv.rolled_over_amount), 0)
		ORDER BY c.id`,
		familyID,
	)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (usecase.CardMismatch, error) {
		var m usecase.CardMismatch
		err := row.Scan(&m.CreditCardID, &m.Recorded, &m.Expected)
		return m, err
	})
}
