package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

const installmentColumns = `i.id, i.transaction_id, i.number, i.amount, i.due_date, i.status,
	i.account_id, i.invoice_id, i.category_id, i.created_at, i.updated_at`

// InstallmentRepository implements usecase.InstallmentRepository.
type InstallmentRepository struct {
	db DBTX
}

// NewInstallmentRepository creates a new InstallmentRepository.
func NewInstallmentRepository(db DBTX) *InstallmentRepository {
	return &InstallmentRepository{db: db}
}

// Create inserts an installment.
func (r *InstallmentRepository) Create(ctx context.Context, tx usecase.Transaction, inst *domain.Installment) error {
	_, err := txConn(tx).Exec(ctx, `
		INSERT INTO installments (id, transaction_id, number, amount, due_date, status,
			account_id, invoice_id, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		inst.ID, inst.TransactionID, inst.Number, inst.Amount, dateOnly(inst.DueDate), string(inst.Status),
		inst.AccountID, inst.InvoiceID, inst.CategoryID, inst.CreatedAt, inst.UpdatedAt,
	)
	return err
}

// GetByIDsForUpdate locks the installments of the family with the given ids.
// Missing ids are silently skipped.
func (r *InstallmentRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, familyID string, ids []string) ([]*domain.Installment, error) {
	return queryInstallments(ctx, txConn(tx), `
		SELECT `+installmentColumns+`
		FROM installments i
		JOIN transactions t ON t.id = i.transaction_id
		WHERE t.family_id = $1 AND t.deleted_at IS NULL AND i.id = ANY($2)
		ORDER BY i.transaction_id, i.number
		FOR UPDATE OF i`,
		familyID, ids,
	)
}

// ListByTransaction lists the installments of a transaction in number order.
func (r *InstallmentRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*domain.Installment, error) {
	return queryInstallments(ctx, r.db, `
		SELECT `+installmentColumns+` FROM installments i
		WHERE i.transaction_id = $1
		ORDER BY i.number`,
		transactionID,
	)
}

// ListByTransactionForUpdate locks and lists the installments of a transaction.
func (r *InstallmentRepository) ListByTransactionForUpdate(ctx context.Context, tx usecase.Transaction, transactionID string) ([]*domain.Installment, error) {
	return queryInstallments(ctx, txConn(tx), `
		SELECT `+installmentColumns+` FROM installments i
		WHERE i.transaction_id = $1
		ORDER BY i.number
		FOR UPDATE`,
		transactionID,
	)
}

// ListByInvoiceForUpdate locks and lists the installments billed on an invoice.
func (r *InstallmentRepository) ListByInvoiceForUpdate(ctx context.Context, tx usecase.Transaction, invoiceID string) ([]*domain.Installment, error) {
	return queryInstallments(ctx, txConn(tx), `
		SELECT `+installmentColumns+` FROM installments i
		WHERE i.invoice_id = $1
		ORDER BY i.transaction_id, i.number
		FOR UPDATE`,
		invoiceID,
	)
}

// Update overwrites the mutable columns of an installment.
func (r *InstallmentRepository) Update(ctx context.Context, tx usecase.Transaction, inst *domain.Installment) error {
	tag, err := txConn(tx).Exec(ctx, `
		UPDATE installments SET
			amount = $2, due_date = $3, status = $4, account_id = $5,
			invoice_id = $6, category_id = $7, updated_at = $8
		WHERE id = $1`,
		inst.ID, inst.Amount, dateOnly(inst.DueDate), string(inst.Status), inst.AccountID,
		inst.InvoiceID, inst.CategoryID, inst.UpdatedAt,
	)
	return expectOne(tag, err, domain.ErrInstallmentNotFound)
}

// Delete removes installments by id.
func (r *InstallmentRepository) Delete(ctx context.Context, tx usecase.Transaction, ids []string) error {
	_, err := txConn(tx).Exec(ctx, `DELETE FROM installments WHERE id = ANY($1)`, ids)
	return err
}

// DeleteByTransaction removes every installment of a transaction.
func (r *InstallmentRepository) DeleteByTransaction(ctx context.Context, tx usecase.Transaction, transactionID string) error {
	_, err := txConn(tx).Exec(ctx, `DELETE FROM installments WHERE transaction_id = $1`, transactionID)
	return err
}

func queryInstallments(ctx context.Context, db DBTX, sql string, args ...any) ([]*domain.Installment, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	installments := make([]*domain.Installment, 0)
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		installments = append(installments, inst)
	}

	return installments, rows.Err()
}

func scanInstallment(row pgx.Row) (*domain.Installment, error) {
	var (
		inst   domain.Installment
		status string
	)
	err := row.Scan(
		&inst.ID, &inst.TransactionID, &inst.Number, &inst.Amount, &inst.DueDate, &status,
		&inst.AccountID, &inst.InvoiceID, &inst.CategoryID, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inst.Status = domain.InstallmentStatus(status)
	return &inst, nil
}
