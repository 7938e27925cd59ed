package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

const transactionColumns = `id, family_id, type, source, status, amount, installment_number,
	account_id, credit_card_id, destination_account_id, category_id, description, date,
	created_at, updated_at, deleted_at`

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	db DBTX
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a transaction.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	_, err := txConn(tx).Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		txn.ID, txn.FamilyID, string(txn.Type), string(txn.Source), string(txn.Status), txn.Amount, txn.InstallmentNumber,
		txn.AccountID, txn.CreditCardID, txn.DestinationAccountID, txn.CategoryID, txn.Description, dateOnly(txn.Date),
		txn.CreatedAt, txn.UpdatedAt, nullableTime(txn.DeletedAt),
	)
	return err
}

// GetByID retrieves a live transaction of the family.
func (r *TransactionRepository) GetByID(ctx context.Context, familyID, id string) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE family_id = $1 AND id = $2 AND deleted_at IS NULL`,
		familyID, id,
	)
	txn, err := scanTransaction(row)
	if err != nil {
		return nil, notFound(err, domain.ErrTransactionNotFound)
	}
	return txn, nil
}

// GetByIDForUpdate retrieves a live transaction with a FOR UPDATE lock.
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, familyID, id string) (*domain.Transaction, error) {
	row := txConn(tx).QueryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE family_id = $1 AND id = $2 AND deleted_at IS NULL
		FOR UPDATE`,
		familyID, id,
	)
	txn, err := scanTransaction(row)
	if err != nil {
		return nil, notFound(err, domain.ErrTransactionNotFound)
	}
	return txn, nil
}

// Update overwrites the mutable columns of a live transaction.
func (r *TransactionRepository) Update(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	tag, err := txConn(tx).Exec(ctx, `
		UPDATE transactions SET
			type = $3, source = $4, status = $5, amount = $6, installment_number = $7,
			account_id = $8, credit_card_id = $9, destination_account_id = $10,
			category_id = $11, description = $12, date = $13, updated_at = $14
		WHERE family_id = $1 AND id = $2 AND deleted_at IS NULL`,
		txn.FamilyID, txn.ID,
		string(txn.Type), string(txn.Source), string(txn.Status), txn.Amount, txn.InstallmentNumber,
		txn.AccountID, txn.CreditCardID, txn.DestinationAccountID,
		txn.CategoryID, txn.Description, dateOnly(txn.Date), txn.UpdatedAt,
	)
	return expectOne(tag, err, domain.ErrTransactionNotFound)
}

// SoftDelete hides a transaction from every read.
func (r *TransactionRepository) SoftDelete(ctx context.Context, tx usecase.Transaction, familyID, id string, deletedAt time.Time) error {
	tag, err := txConn(tx).Exec(ctx, `
		UPDATE transactions SET deleted_at = $3, updated_at = $3
		WHERE family_id = $1 AND id = $2 AND deleted_at IS NULL`,
		familyID, id, deletedAt,
	)
	return expectOne(tag, err, domain.ErrTransactionNotFound)
}

// List lists live transactions of the family. An account filter matches
// both the source and the destination account.
func (r *TransactionRepository) List(ctx context.Context, familyID string, filter usecase.TransactionFilter) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE family_id = $1 AND deleted_at IS NULL
		  AND ($2 = '' OR account_id = $2 OR destination_account_id = $2)
		  AND ($3 = '' OR credit_card_id = $3)
		ORDER BY id
		LIMIT $4 OFFSET $5`,
		familyID, filter.AccountID, filter.CreditCardID, filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := make([]*domain.Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t                    domain.Transaction
		txnType, src, status string
	)
	err := row.Scan(
		&t.ID, &t.FamilyID, &txnType, &src, &status, &t.Amount, &t.InstallmentNumber,
		&t.AccountID, &t.CreditCardID, &t.DestinationAccountID, &t.CategoryID, &t.Description, &t.Date,
		&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Type = domain.TransactionType(txnType)
	t.Source = domain.TransactionSource(src)
	t.Status = domain.TransactionStatus(status)
	return &t, nil
}
