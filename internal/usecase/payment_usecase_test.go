package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

func TestPaymentUseCase_PayInvoiceWithoutRollover(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	created := l.cardPurchase(t, 1000, 1, day(2026, time.January, 15))
	inv := l.invoiceFor(t, day(2026, time.January, 1))

	first, err := l.payments.PayInvoice(ctx, family, usecase.PayInvoiceInput{InvoiceID: inv.ID, AccountID: checkingID, Amount: 400})
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.RolledOverAmount)

	partial := l.store.Invoice(inv.ID)
	assert.Equal(t, domain.InvoiceStatusPartial, partial.Status)
	assert.Equal(t, int64(600), partial.Outstanding())
	assert.Nil(t, l.store.InvoiceFor(cardID, day(2026, time.February, 1)), "direct payments never roll over")
	assert.Equal(t, int64(600), l.used(t))
	assert.Equal(t, int64(99600), l.balanceOf(t, checkingID))

	_, err = l.payments.PayInvoice(ctx, family, usecase.PayInvoiceInput{InvoiceID: inv.ID, AccountID: checkingID, Amount: 600})
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusPaid, l.store.Invoice(inv.ID).Status)
	assert.Equal(t, domain.TransactionStatusPaid, l.store.Transaction(created.Transaction.ID).Status)
	assert.Equal(t, int64(0), l.used(t))
	assert.Equal(t, int64(99000), l.balanceOf(t, checkingID))
	assert.Equal(t, float64(1), testutil.ToFloat64(l.metrics.InvoicePayments.WithLabelValues("partial")))
	assert.Equal(t, float64(1), testutil.ToFloat64(l.metrics.InvoicePayments.WithLabelValues("full")))
	l.requireConsistent(t)

	listed, err := l.payments.ListPayments(ctx, family, usecase.PaymentFilter{InvoiceID: inv.ID})
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestPaymentUseCase_PayInvoiceValidation(t *testing.T) {
	tests := []struct {
		name      string
		accountID string
		amount    int64
		wantErr   error
	}{
		{name: "zero", accountID: checkingID, amount: 0, wantErr: domain.ErrInvalidAmount},
		{name: "overpayment", accountID: checkingID, amount: 1500, wantErr: domain.ErrOverpayment},
		{name: "insufficient balance", accountID: savingsID, amount: 100, wantErr: domain.ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)

			l.cardPurchase(t, 1000, 1, day(2026, time.January, 15))
			inv := l.invoiceFor(t, day(2026, time.January, 1))

			_, err := l.payments.PayInvoice(context.Background(), family, usecase.PayInvoiceInput{
				InvoiceID: inv.ID,
				AccountID: tt.accountID,
				Amount:    tt.amount,
			})
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, domain.InvoiceStatusOpen, l.store.Invoice(inv.ID).Status)
			assert.Equal(t, int64(1000), l.used(t))
		})
	}
}

func TestPaymentUseCase_PayTransactionRelinksToPayer(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	l.store.AddAccount(&domain.Account{ID: "acc-joint", FamilyID: family.FamilyID, Name: "Joint", Balance: 5000})
	created := l.accountExpense(t, 1000, 3, domain.TransactionStatusPending)

	payment, err := l.payments.PayTransaction(ctx, family, usecase.PayTransactionInput{
		TransactionID: created.Transaction.ID,
		AccountID:     "acc-joint",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1000), payment.Amount)
	assert.Equal(t, created.Transaction.ID, domain.Deref(payment.TransactionID))
	assert.Equal(t, int64(4000), l.balanceOf(t, "acc-joint"))
	assert.Equal(t, int64(100000), l.balanceOf(t, checkingID))

	txn := l.store.Transaction(created.Transaction.ID)
	assert.Equal(t, domain.TransactionStatusPaid, txn.Status)
	assert.Equal(t, checkingID, domain.Deref(txn.AccountID))
	for _, inst := range l.store.InstallmentsOf(created.Transaction.ID) {
		assert.Equal(t, domain.InstallmentStatusPaid, inst.Status)
		assert.Equal(t, "acc-joint", domain.Deref(inst.AccountID))
	}
	l.requireConsistent(t)
}

func TestPaymentUseCase_PayTransactionValidation(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, l *ledger) string
		amount  *int64
		account string
		wantErr error
	}{
		{
			name: "partial amount",
			setup: func(t *testing.T, l *ledger) string {
				return l.accountExpense(t, 1000, 1, domain.TransactionStatusPending).Transaction.ID
			},
			amount:  int64Ptr(500),
			account: checkingID,
			wantErr: domain.ErrPartialPaymentNotSupported,
		},
		{
			name: "card transaction",
			setup: func(t *testing.T, l *ledger) string {
				return l.cardPurchase(t, 1000, 1, day(2026, time.January, 15)).Transaction.ID
			},
			account: checkingID,
			wantErr: domain.ErrInvalidPaymentTarget,
		},
		{
			name: "already paid",
			setup: func(t *testing.T, l *ledger) string {
				return l.accountExpense(t, 1000, 1, domain.TransactionStatusPaid).Transaction.ID
			},
			account: checkingID,
			wantErr: domain.ErrTransactionAlreadyPaid,
		},
		{
			name: "insufficient balance",
			setup: func(t *testing.T, l *ledger) string {
				return l.accountExpense(t, 1000, 1, domain.TransactionStatusPending).Transaction.ID
			},
			account: savingsID,
			wantErr: domain.ErrInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)
			txnID := tt.setup(t, l)

			_, err := l.payments.PayTransaction(context.Background(), family, usecase.PayTransactionInput{
				TransactionID: txnID,
				AccountID:     tt.account,
				Amount:        tt.amount,
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPaymentUseCase_CancelTransactionPayment(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	created := l.accountExpense(t, 1000, 2, domain.TransactionStatusPending)
	payment, err := l.payments.PayTransaction(ctx, family, usecase.PayTransactionInput{
		TransactionID: created.Transaction.ID,
		AccountID:     checkingID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(99000), l.balanceOf(t, checkingID))

	cancelled, err := l.payments.CancelPayment(ctx, family, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCancelled, cancelled.Status)

	assert.Equal(t, int64(100000), l.balanceOf(t, checkingID))
	assert.Equal(t, domain.TransactionStatusPending, l.store.Transaction(created.Transaction.ID).Status)
	assert.Equal(t, []domain.InstallmentStatus{domain.InstallmentStatusPending, domain.InstallmentStatusPending},
		statuses(l.store.InstallmentsOf(created.Transaction.ID)))

	_, err = l.payments.CancelPayment(ctx, family, payment.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentAlreadyCancelled)

	// The transaction is editable again once its payment is gone.
	require.NoError(t, l.transactions.Delete(ctx, family, created.Transaction.ID))
	assert.Equal(t, float64(1), testutil.ToFloat64(l.metrics.PaymentsReversed.WithLabelValues("transaction")))
}

func TestPaymentUseCase_CancelReturnsInstallmentsToOwnAccount(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	l.store.AddAccount(&domain.Account{ID: "acc-joint", FamilyID: family.FamilyID, Name: "Joint", Balance: 5000})
	created := l.accountExpense(t, 1000, 2, domain.TransactionStatusPending)

	payment, err := l.payments.PayTransaction(ctx, family, usecase.PayTransactionInput{
		TransactionID: created.Transaction.ID,
		AccountID:     "acc-joint",
	})
	require.NoError(t, err)

	_, err = l.payments.CancelPayment(ctx, family, payment.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(5000), l.balanceOf(t, "acc-joint"))
	for _, inst := range l.store.InstallmentsOf(created.Transaction.ID) {
		assert.Equal(t, domain.InstallmentStatusPending, inst.Status)
		assert.Equal(t, checkingID, domain.Deref(inst.AccountID))
	}

	// Settling afterwards charges the account the expense was recorded on.
	_, err = l.transactions.Settle(ctx, family, created.Transaction.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(5000), l.balanceOf(t, "acc-joint"))
	assert.Equal(t, int64(99000), l.balanceOf(t, checkingID))
	assert.Equal(t, checkingID, domain.Deref(l.store.Transaction(created.Transaction.ID).AccountID))
	l.requireConsistent(t)
}

func TestPaymentUseCase_CancelInvoicePaymentUndoesRollover(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	l.cardPurchase(t, 1000, 1, day(2026, time.January, 15))
	jan := l.invoiceFor(t, day(2026, time.January, 1))

	payment, err := l.invoices.ConfirmPayment(ctx, family, usecase.ConfirmPaymentInput{
		InvoiceID: jan.ID,
		AccountID: checkingID,
		Amount:    int64Ptr(250),
	})
	require.NoError(t, err)

	_, err = l.payments.CancelPayment(ctx, family, payment.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusClosed, l.store.Invoice(jan.ID).Status)
	assert.Equal(t, int64(0), l.invoiceFor(t, day(2026, time.February, 1)).TotalAmount)
	assert.Equal(t, int64(100000), l.balanceOf(t, checkingID))
	assert.Equal(t, int64(1000), l.used(t))
	l.requireConsistent(t)
}

func TestPaymentUseCase_CancelUnknownPayment(t *testing.T) {
	l := newLedger(t)

	_, err := l.payments.CancelPayment(context.Background(), family, "missing")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}
