package usecase

import (
	"context"
	"time"

	"github.com/iho/homeledger/internal/domain"
)

// CreditCardUseCase manages card configuration. The used limit itself only
// moves through BalanceUseCase.
type CreditCardUseCase struct {
	Infra

	cardRepo    CreditCardRepository
	accountRepo AccountRepository
}

// NewCreditCardUseCase creates a new CreditCardUseCase.
func NewCreditCardUseCase(infra Infra, cardRepo CreditCardRepository, accountRepo AccountRepository) *CreditCardUseCase {
	return &CreditCardUseCase{
		Infra:       infra,
		cardRepo:    cardRepo,
		accountRepo: accountRepo,
	}
}

// CreateCreditCardInput represents input for creating a card.
type CreateCreditCardInput struct {
	Name             string
	LastFourDigits   string
	Limit            int64
	ClosingDay       int
	DueDay           int
	PaymentAccountID string
}

// CreateCreditCard creates a card with nothing used.
func (uc *CreditCardUseCase) CreateCreditCard(ctx context.Context, tenant domain.Tenant, input CreateCreditCardInput) (_ *domain.CreditCard, err error) {
	start := time.Now()
	defer func() { uc.observe("credit_card.create", start, err, map[string]any{"name": input.Name}) }()

	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	var card *domain.CreditCard

	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		now := uc.now()
		card = &domain.CreditCard{
			ID:               uc.IDGen.Generate(),
			FamilyID:         tenant.FamilyID,
			Name:             input.Name,
			LastFourDigits:   input.LastFourDigits,
			Limit:            input.Limit,
			ClosingDay:       input.ClosingDay,
			DueDay:           input.DueDay,
			PaymentAccountID: domain.StringPtr(input.PaymentAccountID),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := card.Validate(); err != nil {
			return err
		}

		if card.PaymentAccountID != nil {
			if _, err := uc.accountRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, *card.PaymentAccountID); err != nil {
				return err
			}
		}

		if err := uc.cardRepo.Create(ctx, tx, card); err != nil {
			return err
		}

		return uc.audit(ctx, tx, tenant, domain.AuditActionCreditCardCreate, "credit_card", card.ID, nil, card)
	})
	if err != nil {
		return nil, err
	}

	return card, nil
}

// GetCreditCard retrieves a card by ID.
func (uc *CreditCardUseCase) GetCreditCard(ctx context.Context, tenant domain.Tenant, id string) (*domain.CreditCard, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	return uc.cardRepo.GetByID(ctx, tenant.FamilyID, id)
}

// ListCreditCards lists cards with pagination.
func (uc *CreditCardUseCase) ListCreditCards(ctx context.Context, tenant domain.Tenant, limit, offset int) ([]*domain.CreditCard, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.cardRepo.List(ctx, tenant.FamilyID, limit, offset)
}
