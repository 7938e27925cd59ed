package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
	"github.com/iho/homeledger/internal/usecase/mocks"
)

func TestAccountUseCase_CreateAccount(t *testing.T) {
	tests := []struct {
		name    string
		tenant  domain.Tenant
		input   usecase.CreateAccountInput
		wantErr error
	}{
		{
			name:   "with opening balance",
			tenant: family,
			input:  usecase.CreateAccountInput{Name: "Wallet", OpeningBalance: 2500},
		},
		{
			name:    "empty name",
			tenant:  family,
			input:   usecase.CreateAccountInput{Name: ""},
			wantErr: domain.ErrInvalidAccountName,
		},
		{
			name:    "missing family",
			tenant:  domain.Tenant{},
			input:   usecase.CreateAccountInput{Name: "Wallet"},
			wantErr: domain.ErrMissingTenant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)

			account, err := l.accounts.CreateAccount(context.Background(), tt.tenant, tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, l.store.AuditActions())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, family.FamilyID, account.FamilyID)
			assert.Equal(t, tt.input.OpeningBalance, l.balanceOf(t, account.ID))
			assert.Equal(t, []string{string(domain.AuditActionAccountCreate)}, l.store.AuditActions())
		})
	}
}

func TestAccountUseCase_GetAccountIsFamilyScoped(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	account, err := l.accounts.GetAccount(ctx, family, checkingID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), account.Balance)

	_, err = l.accounts.GetAccount(ctx, domain.Tenant{FamilyID: "fam-2", UserID: "user-2"}, checkingID)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountUseCase_ListAccounts(t *testing.T) {
	l := newLedger(t)

	accounts, err := l.accounts.ListAccounts(context.Background(), family, usecase.ListAccountsInput{})
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	accounts, err = l.accounts.ListAccounts(context.Background(), family, usecase.ListAccountsInput{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestAccountUseCase_TransactionManagerFailures(t *testing.T) {
	errBegin := errors.New("connection refused")
	errCommit := errors.New("commit failed")

	tests := []struct {
		name    string
		setup   func(tm *mocks.MockTransactionManager, tx *mocks.MockTransaction, ids *mocks.MockIDGenerator)
		wantErr error
	}{
		{
			name: "begin fails",
			setup: func(tm *mocks.MockTransactionManager, tx *mocks.MockTransaction, ids *mocks.MockIDGenerator) {
				tm.EXPECT().Begin(gomock.Any()).Return(nil, errBegin)
			},
			wantErr: errBegin,
		},
		{
			name: "commit fails",
			setup: func(tm *mocks.MockTransactionManager, tx *mocks.MockTransaction, ids *mocks.MockIDGenerator) {
				tm.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				ids.EXPECT().Generate().Return("acc-new")
				tx.EXPECT().Commit(gomock.Any()).Return(errCommit)
				tx.EXPECT().Rollback(gomock.Any()).Return(nil)
			},
			wantErr: errCommit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			tm := mocks.NewMockTransactionManager(ctrl)
			tx := mocks.NewMockTransaction(ctrl)
			ids := mocks.NewMockIDGenerator(ctrl)
			tt.setup(tm, tx, ids)

			store := mocks.NewStore()
			uc := usecase.NewAccountUseCase(usecase.Infra{
				TxManager: tm,
				IDGen:     ids,
				Logger:    zerolog.Nop(),
			}, store.Accounts)

			_, err := uc.CreateAccount(context.Background(), family, usecase.CreateAccountInput{Name: "Wallet"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAccountUseCase_RetriesWholeUnit(t *testing.T) {
	ctrl := gomock.NewController(t)
	retrier := mocks.NewMockRetrier(ctrl)

	// A retried unit regenerates its ids.
	retrier.EXPECT().Retry(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, op func() error) error {
		_ = op()
		return op()
	})

	store := mocks.NewStore()
	uc := usecase.NewAccountUseCase(usecase.Infra{
		TxManager: store,
		Retrier:   retrier,
		IDGen:     mocks.NewSequentialIDGenerator(),
		Logger:    zerolog.Nop(),
	}, store.Accounts)

	account, err := uc.CreateAccount(context.Background(), family, usecase.CreateAccountInput{Name: "Wallet"})
	require.NoError(t, err)
	assert.Equal(t, "id-00002", account.ID)
}
