package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

const accountColumns = `id, family_id, name, balance, created_at, updated_at`

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	db DBTX
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	_, err := txConn(tx).Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		account.ID, account.FamilyID, account.Name, account.Balance, account.CreatedAt, account.UpdatedAt,
	)
	return err
}

// GetByID retrieves an account of the family.
func (r *AccountRepository) GetByID(ctx context.Context, familyID, id string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE family_id = $1 AND id = $2`, familyID, id)
	account, err := scanAccount(row)
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound)
	}
	return account, nil
}

// GetByIDForUpdate retrieves an account with a FOR UPDATE lock.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, familyID, id string) (*domain.Account, error) {
	row := txConn(tx).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE family_id = $1 AND id = $2 FOR UPDATE`, familyID, id)
	account, err := scanAccount(row)
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound)
	}
	return account, nil
}

// ApplyDelta adds delta to the stored balance.
func (r *AccountRepository) ApplyDelta(ctx context.Context, tx usecase.Transaction, familyID, id string, delta int64, updatedAt time.Time) error {
	tag, err := txConn(tx).Exec(ctx, `
		UPDATE accounts SET balance = balance + $3, updated_at = $4
		WHERE family_id = $1 AND id = $2`,
		familyID, id, delta, updatedAt,
	)
	return expectOne(tag, err, domain.ErrAccountNotFound)
}

// List lists accounts of the family with pagination.
func (r *AccountRepository) List(ctx context.Context, familyID string, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE family_id = $1
		ORDER BY id
		LIMIT $2 OFFSET $3`,
		familyID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.FamilyID, &a.Name, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
