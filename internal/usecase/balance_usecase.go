package usecase

import (
	"context"
	"fmt"

	"github.com/iho/homeledger/internal/domain"
)

// BalanceUseCase is the only writer of account balances and card used limits.
// Every mutation is an in-place column increment inside the caller's transaction.
type BalanceUseCase struct {
	Infra

	accountRepo AccountRepository
	cardRepo    CreditCardRepository
}

// NewBalanceUseCase creates a new BalanceUseCase. Row timestamps come from
// infra's clock.
func NewBalanceUseCase(infra Infra, accountRepo AccountRepository, cardRepo CreditCardRepository) *BalanceUseCase {
	return &BalanceUseCase{
		Infra:       infra,
		accountRepo: accountRepo,
		cardRepo:    cardRepo,
	}
}

// ApplyAccountDelta adds delta to the account balance. A zero delta issues no query.
func (uc *BalanceUseCase) ApplyAccountDelta(ctx context.Context, tx Transaction, tenant domain.Tenant, accountID string, delta int64) error {
	if delta == 0 {
		return nil
	}

	if err := uc.accountRepo.ApplyDelta(ctx, tx, tenant.FamilyID, accountID, delta, uc.now()); err != nil {
		uc.Logger.Error().
			Err(err).
			Str("family_id", tenant.FamilyID).
			Str("account_id", accountID).
			Int64("delta", delta).
			Msg("failed to apply account delta")

		return fmt.Errorf("apply account delta: %w", err)
	}

	uc.Logger.Debug().Str("account_id", accountID).Int64("delta", delta).Msg("account balance moved")

	return nil
}

// ApplyCreditCardUsedDelta adds delta to the card's used limit. A zero delta issues no query.
func (uc *BalanceUseCase) ApplyCreditCardUsedDelta(ctx context.Context, tx Transaction, tenant domain.Tenant, cardID string, delta int64) error {
	if delta == 0 {
		return nil
	}

	if err := uc.cardRepo.ApplyUsedDelta(ctx, tx, tenant.FamilyID, cardID, delta, uc.now()); err != nil {
		uc.Logger.Error().
			Err(err).
			Str("family_id", tenant.FamilyID).
			Str("credit_card_id", cardID).
			Int64("delta", delta).
			Msg("failed to apply card used delta")

		return fmt.Errorf("apply card used delta: %w", err)
	}

	uc.Logger.Debug().Str("credit_card_id", cardID).Int64("delta", delta).Msg("card used limit moved")

	return nil
}
