package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

const paymentColumns = `id, family_id, amount, paid_at, invoice_id, transaction_id, account_id,
	status, rollover_invoice_id, rolled_over_amount, created_at, updated_at`

// PaymentRepository implements usecase.PaymentRepository.
type PaymentRepository struct {
	db DBTX
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a payment.
func (r *PaymentRepository) Create(ctx context.Context, tx usecase.Transaction, p *domain.Payment) error {
	_, err := txConn(tx).Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.FamilyID, p.Amount, p.PaidAt, p.InvoiceID, p.TransactionID, p.AccountID,
		string(p.Status), p.RolloverInvoiceID, p.RolledOverAmount, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetByIDForUpdate retrieves a payment with a FOR UPDATE lock.
func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, familyID, id string) (*domain.Payment, error) {
	row := txConn(tx).QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE family_id = $1 AND id = $2 FOR UPDATE`, familyID, id)
	p, err := scanPayment(row)
	if err != nil {
		return nil, notFound(err, domain.ErrPaymentNotFound)
	}
	return p, nil
}

// ListPostedByInvoiceForUpdate locks the posted payments of an invoice.
func (r *PaymentRepository) ListPostedByInvoiceForUpdate(ctx context.Context, tx usecase.Transaction, invoiceID string) ([]*domain.Payment, error) {
	return queryPayments(ctx, txConn(tx), `
		SELECT `+paymentColumns+` FROM payments
		WHERE invoice_id = $1 AND status = 'POSTED'
		ORDER BY created_at, id
		FOR UPDATE`,
		invoiceID,
	)
}

// CountPostedByTransaction counts the posted payments of a transaction.
func (r *PaymentRepository) CountPostedByTransaction(ctx context.Context, tx usecase.Transaction, transactionID string) (int, error) {
	var count int
	err := txConn(tx).QueryRow(ctx, `
		SELECT COUNT(*) FROM payments WHERE transaction_id = $1 AND status = 'POSTED'`,
		transactionID,
	).Scan(&count)
	return count, err
}

// UpdateStatus moves a payment to status.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.PaymentStatus, updatedAt time.Time) error {
	tag, err := txConn(tx).Exec(ctx, `UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), updatedAt)
	return expectOne(tag, err, domain.ErrPaymentNotFound)
}

// List lists payments of the family.
func (r *PaymentRepository) List(ctx context.Context, familyID string, filter usecase.PaymentFilter) ([]*domain.Payment, error) {
	return queryPayments(ctx, r.db, `
		SELECT `+paymentColumns+` FROM payments
		WHERE family_id = $1
		  AND ($2 = '' OR invoice_id = $2)
		  AND ($3 = '' OR transaction_id = $3)
		ORDER BY id
		LIMIT $4 OFFSET $5`,
		familyID, filter.InvoiceID, filter.TransactionID, filter.Limit, filter.Offset,
	)
}

func queryPayments(ctx context.Context, db DBTX, sql string, args ...any) ([]*domain.Payment, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p      domain.Payment
		status string
	)
	err := row.Scan(
		&p.ID, &p.FamilyID, &p.Amount, &p.PaidAt, &p.InvoiceID, &p.TransactionID, &p.AccountID,
		&status, &p.RolloverInvoiceID, &p.RolledOverAmount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}
