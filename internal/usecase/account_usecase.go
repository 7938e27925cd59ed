package usecase

import (
	"context"
	"time"

	"github.com/iho/homeledger/internal/domain"
)

// AccountUseCase handles account business logic.
type AccountUseCase struct {
	Infra

	accountRepo AccountRepository
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(infra Infra, accountRepo AccountRepository) *AccountUseCase {
	return &AccountUseCase{
		Infra:       infra,
		accountRepo: accountRepo,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	Name           string
	OpeningBalance int64
}

// CreateAccount creates a new account.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, tenant domain.Tenant, input CreateAccountInput) (_ *domain.Account, err error) {
	start := time.Now()
	defer func() { uc.observe("account.create", start, err, map[string]any{"name": input.Name}) }()

	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateAccountName(input.Name); err != nil {
		return nil, err
	}

	var account *domain.Account

	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		now := uc.now()
		account = &domain.Account{
			ID:        uc.IDGen.Generate(),
			FamilyID:  tenant.FamilyID,
			Name:      input.Name,
			Balance:   input.OpeningBalance,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := uc.accountRepo.Create(ctx, tx, account); err != nil {
			return err
		}

		return uc.audit(ctx, tx, tenant, domain.AuditActionAccountCreate, "account", account.ID, nil, account)
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, tenant domain.Tenant, id string) (*domain.Account, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	return uc.accountRepo.GetByID(ctx, tenant.FamilyID, id)
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, tenant domain.Tenant, input ListAccountsInput) ([]*domain.Account, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)
	return uc.accountRepo.List(ctx, tenant.FamilyID, limit, offset)
}
