package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

const creditCardColumns = `id, family_id, name, last_four_digits, credit_limit, used,
	closing_day, due_day, payment_account_id, created_at, updated_at`

// CreditCardRepository implements usecase.CreditCardRepository.
type CreditCardRepository struct {
	db DBTX
}

// NewCreditCardRepository creates a new CreditCardRepository.
func NewCreditCardRepository(db DBTX) *CreditCardRepository {
	return &CreditCardRepository{db: db}
}

// Create creates a new card.
func (r *CreditCardRepository) Create(ctx context.Context, tx usecase.Transaction, card *domain.CreditCard) error {
	_, err := txConn(tx).Exec(ctx, `
		INSERT INTO credit_cards (`+creditCardColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		card.ID, card.FamilyID, card.Name, card.LastFourDigits, card.Limit, card.Used,
		card.ClosingDay, card.DueDay, card.PaymentAccountID, card.CreatedAt, card.UpdatedAt,
	)
	return err
}

// GetByID retrieves a card of the family.
func (r *CreditCardRepository) GetByID(ctx context.Context, familyID, id string) (*domain.CreditCard, error) {
	row := r.db.QueryRow(ctx, `SELECT `+creditCardColumns+` FROM credit_cards WHERE family_id = $1 AND id = $2`, familyID, id)
	card, err := scanCreditCard(row)
	if err != nil {
		return nil, notFound(err, domain.ErrCreditCardNotFound)
	}
	return card, nil
}

// GetByIDForUpdate retrieves a card with a FOR UPDATE lock.
func (r *CreditCardRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, familyID, id string) (*domain.CreditCard, error) {
	row := txConn(tx).QueryRow(ctx, `SELECT `+creditCardColumns+` FROM credit_cards WHERE family_id = $1 AND id = $2 FOR UPDATE`, familyID, id)
	card, err := scanCreditCard(row)
	if err != nil {
		return nil, notFound(err, domain.ErrCreditCardNotFound)
	}
	return card, nil
}

// ApplyUsedDelta adds delta to the used limit.
func (r *CreditCardRepository) ApplyUsedDelta(ctx context.Context, tx usecase.Transaction, familyID, id string, delta int64, updatedAt time.Time) error {
	tag, err := txConn(tx).Exec(ctx, `
		UPDATE credit_cards SET used = used + $3, updated_at = $4
		WHERE family_id = $1 AND id = $2`,
		familyID, id, delta, updatedAt,
	)
	return expectOne(tag, err, domain.ErrCreditCardNotFound)
}

// List lists cards of the family with pagination.
func (r *CreditCardRepository) List(ctx context.Context, familyID string, limit, offset int) ([]*domain.CreditCard, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+creditCardColumns+` FROM credit_cards
		WHERE family_id = $1
		ORDER BY id
		LIMIT $2 OFFSET $3`,
		familyID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := make([]*domain.CreditCard, 0)
	for rows.Next() {
		card, err := scanCreditCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}

	return cards, rows.Err()
}

func scanCreditCard(row pgx.Row) (*domain.CreditCard, error) {
	var c domain.CreditCard
	err := row.Scan(
		&c.ID, &c.FamilyID, &c.Name, &c.LastFourDigits, &c.Limit, &c.Used,
		&c.ClosingDay, &c.DueDay, &c.PaymentAccountID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
