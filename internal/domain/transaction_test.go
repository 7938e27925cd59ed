package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestImpactOf(t *testing.T) {
	tests := []struct {
		typ     TransactionType
		source  TransactionSource
		want    Impact
		wantErr error
	}{
		{TransactionTypeExpense, TransactionSourceAccount, ImpactAccount, nil},
		{TransactionTypeIncome, TransactionSourceAccount, ImpactAccount, nil},
		{TransactionTypeExpense, TransactionSourceCreditCard, ImpactCreditCard, nil},
		{TransactionTypeIncome, TransactionSourceCreditCard, ImpactCreditCard, nil},
		{TransactionTypeTransfer, TransactionSourceAccount, ImpactTransfer, nil},
		{TransactionTypeTransfer, TransactionSourceCreditCard, 0, ErrInvalidSourceForType},
		{"REFUND", TransactionSourceAccount, 0, ErrInvalidTransactionType},
		{TransactionTypeExpense, "CASH", 0, ErrInvalidTransactionSource},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.typ, tt.source), func(t *testing.T) {
			got, err := ImpactOf(tt.typ, tt.source)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Fatalf("expected impact %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		amount int64
		typ    TransactionType
		want   int64
	}{
		{1200, TransactionTypeExpense, -1200},
		{-1200, TransactionTypeExpense, -1200},
		{-500, TransactionTypeIncome, 500},
		{500, TransactionTypeIncome, 500},
		{-1000, TransactionTypeTransfer, 1000},
	}

	for _, tt := range tests {
		if got := NormalizeAmount(tt.amount, tt.typ); got != tt.want {
			t.Errorf("NormalizeAmount(%d, %s) = %d, want %d", tt.amount, tt.typ, got, tt.want)
		}
	}
}

func TestTransaction_Validate(t *testing.T) {
	base := func() Transaction {
		return Transaction{
			Type:              TransactionTypeExpense,
			Source:            TransactionSourceAccount,
			Status:            TransactionStatusPaid,
			Amount:            -100,
			InstallmentNumber: 1,
			AccountID:         StringPtr("acc-1"),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{name: "valid account expense", mutate: func(*Transaction) {}},
		{name: "zero amount", mutate: func(tx *Transaction) { tx.Amount = 0 }, wantErr: ErrZeroAmount},
		{name: "missing account", mutate: func(tx *Transaction) { tx.AccountID = nil }, wantErr: ErrAccountRequired},
		{name: "bad count", mutate: func(tx *Transaction) { tx.InstallmentNumber = 0 }, wantErr: ErrInvalidInstallmentCount},
		{name: "bad status", mutate: func(tx *Transaction) { tx.Status = "VOID" }, wantErr: ErrInvalidTransactionStatus},
		{
			name: "card without card",
			mutate: func(tx *Transaction) {
				tx.Source = TransactionSourceCreditCard
			},
			wantErr: ErrCreditCardRequired,
		},
		{
			name: "transfer without destination",
			mutate: func(tx *Transaction) {
				tx.Type = TransactionTypeTransfer
			},
			wantErr: ErrTransferAccountsRequired,
		},
		{
			name: "transfer to same account",
			mutate: func(tx *Transaction) {
				tx.Type = TransactionTypeTransfer
				tx.DestinationAccountID = StringPtr("acc-1")
			},
			wantErr: ErrSameAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := base()
			tt.mutate(&tx)

			err := tx.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUpdateMode_Selects(t *testing.T) {
	current := &Installment{ID: "i2", Number: 2}
	series := []*Installment{{ID: "i1", Number: 1}, current, {ID: "i3", Number: 3}}

	count := func(m UpdateMode) int {
		n := 0
		for _, inst := range series {
			if m.Selects(current, inst) {
				n++
			}
		}
		return n
	}

	if got := count(UpdateOnlyThis); got != 1 {
		t.Errorf("only this: expected 1, got %d", got)
	}
	if got := count(UpdateFuture); got != 2 {
		t.Errorf("future: expected 2, got %d", got)
	}
	if got := count(UpdateAll); got != 3 {
		t.Errorf("all: expected 3, got %d", got)
	}
}
