package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{ErrZeroAmount, KindValidation},
		{fmt.Errorf("create: %w", ErrTransferAccountsRequired), KindValidation},
		{ErrOverpayment, KindState},
		{&PaidInstallmentsError{Numbers: []int{2}}, KindState},
		{fmt.Errorf("sync: %w", ErrCardInstallmentSettle), KindState},
		{ErrInconsistentLedger, KindInternal},
		{fmt.Errorf("pay: %w", ErrInsufficientBalance), KindResource},
		{ErrInvoiceNotFound, KindNotFound},
		{errors.New("connection refused"), KindInternal},
		{nil, KindInternal},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestPaidInstallmentsError(t *testing.T) {
	err := error(&PaidInstallmentsError{Numbers: []int{3, 1}})

	if !errors.Is(err, ErrInstallmentPaid) {
		t.Fatal("expected PaidInstallmentsError to match ErrInstallmentPaid")
	}
	if got := err.Error(); got != "cannot delete paid installments: 1, 3" {
		t.Fatalf("unexpected message %q", got)
	}
}
