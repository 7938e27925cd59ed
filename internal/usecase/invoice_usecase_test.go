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

func int64Ptr(v int64) *int64 { return &v }

func TestInvoiceUseCase_FullPayment(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	created := l.cardPurchase(t, 1000, 1, day(2026, time.January, 15))
	inv := l.invoiceFor(t, day(2026, time.January, 1))

	payment, err := l.invoices.ConfirmPayment(ctx, family, usecase.ConfirmPaymentInput{
		InvoiceID: inv.ID,
		AccountID: checkingID,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1000), payment.Amount)
	assert.Equal(t, int64(0), payment.RolledOverAmount)
	assert.Nil(t, payment.RolloverInvoiceID)

	paid := l.store.Invoice(inv.ID)
	assert.Equal(t, domain.InvoiceStatusPaid, paid.Status)
	assert.Equal(t, int64(1000), paid.PaidAmount)
	assert.Equal(t, int64(0), paid.Outstanding())

	assert.Equal(t, int64(99000), l.balanceOf(t, checkingID))
	assert.Equal(t, int64(0), l.used(t))
	assert.Equal(t, []domain.InstallmentStatus{domain.InstallmentStatusPaid}, statuses(l.store.InstallmentsOf(created.Transaction.ID)))
	assert.Equal(t, domain.TransactionStatusPaid, l.store.Transaction(created.Transaction.ID).Status)

	events := l.store.EventTypes()
	assert.Contains(t, events, domain.EventTypeInvoiceClosed)
	assert.Contains(t, events, domain.EventTypeInvoicePaid)
	assert.Contains(t, events, domain.EventTypePaymentPosted)
	assert.Contains(t, events, domain.EventTypeTransactionSettled)
	assert.Equal(t, float64(1), testutil.ToFloat64(l.metrics.InvoicePayments.WithLabelValues("full")))
	l.requireConsistent(t)
}

func TestInvoiceUseCase_PartialPaymentRollsOver(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	l.cardPurchase(t, 1000, 1, day(2026, time.January, 15))
	jan := l.invoiceFor(t, day(2026, time.January, 1))

	payment, err := l.invoices.ConfirmPayment(ctx, family, usecase.ConfirmPaymentInput{
		InvoiceID: jan.ID,
		AccountID: checkingID,
		Amount:    int64Ptr(400),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(600), payment.RolledOverAmount)

	jan = l.store.Invoice(jan.ID)
	assert.Equal(t, domain.InvoiceStatusPartial, jan.Status)
	assert.Equal(t, int64(400), jan.PaidAmount)
	assert.Equal(t, int64(600), jan.RolledOverAmount)
	assert.Equal(t, int64(0), jan.Outstanding())

	feb := l.invoiceFor(t, day(2026, time.February, 1))
	require.NotNil(t, payment.RolloverInvoiceID)
	assert.Equal(t, feb.ID, *payment.RolloverInvoiceID)
	assert.Equal(t, int64(600), feb.TotalAmount)
	assert.Equal(t, int64(600), feb.CarriedOverAmount)
	assert.Equal(t, domain.InvoiceStatusOpen, feb.Status)

	assert.Equal(t, int64(99600), l.balanceOf(t, checkingID))
	assert.Equal(t, int64(600), l.used(t))
	l.requireConsistent(t)

	// Nothing is left to pay on a fully rolled invoice.
	_, err = l.invoices.ConfirmPayment(ctx, family, usecase.ConfirmPaymentInput{InvoiceID: jan.ID, AccountID: checkingID})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestInvoiceUseCase_ConfirmPaymentValidation(t *testing.T) {
	tests := []struct {
		name      string
		accountID string
		amount    *int64
		payFirst  bool
		wantErr   error
	}{
		{name: "overpayment", accountID: checkingID, amount: int64Ptr(1001), wantErr: domain.ErrOverpayment},
		{name: "zero amount", accountID: checkingID, amount: int64Ptr(0), wantErr: domain.ErrInvalidAmount},
		{name: "negative amount", accountID: checkingID, amount: int64Ptr(-5), wantErr: domain.ErrInvalidAmount},
		{name: "insufficient balance", accountID: savingsID, wantErr: domain.ErrInsufficientBalance},
		{name: "unknown account", accountID: "nope", wantErr: domain.ErrAccountNotFound},
		{name: "already paid", accountID: checkingID, payFirst: true, wantErr: domain.ErrInvoiceAlreadyPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)
			ctx := context.Background()

			l.cardPurchase(t, 1000, 1, day(2026, time.January, 15))
			inv := l.invoiceFor(t, day(2026, time.January, 1))

			if tt.payFirst {
				_, err := l.invoices.ConfirmPayment(ctx, family, usecase.ConfirmPaymentInput{InvoiceID: inv.ID, AccountID: checkingID})
				require.NoError(t, err)
			}
			before := l.balanceOf(t, checkingID)
			status := l.store.Invoice(inv.ID).Status

			_, err := l.invoices.ConfirmPayment(ctx, family, usecase.ConfirmPaymentInput{
				InvoiceID: inv.ID,
				AccountID: tt.accountID,
				Amount:    tt.amount,
			})
			require.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, before, l.balanceOf(t, checkingID))
			assert.Equal(t, status, l.store.Invoice(inv.ID).Status, "a failed payment must not close the invoice")
		})
	}
}

func TestInvoiceUseCase_CancelPartialPayment(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	l.cardPurchase(t, 1000, 1, day(2026, time.January, 15))
	jan := l.invoiceFor(t, day(2026, time.January, 1))

	payment, err := l.invoices.ConfirmPayment(ctx, family, usecase.ConfirmPaymentInput{
		InvoiceID: jan.ID,
		AccountID: checkingID,
		Amount:    int64Ptr(400),
	})
	require.NoError(t, err)

	cancelled, err := l.invoices.CancelPayments(ctx, family, jan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	jan = l.store.Invoice(jan.ID)
	assert.Equal(t, domain.InvoiceStatusClosed, jan.Status)
	assert.Equal(t, int64(0), jan.PaidAmount)
	assert.Equal(t, int64(0), jan.RolledOverAmount)
	assert.Equal(t, int64(1000), jan.Outstanding())

	feb := l.invoiceFor(t, day(2026, time.February, 1))
	assert.Equal(t, int64(0), feb.TotalAmount)
	assert.Equal(t, int64(0), feb.CarriedOverAmount)

	assert.Equal(t, domain.PaymentStatusCancelled, l.store.Payment(payment.ID).Status)
	assert.Equal(t, int64(100000), l.balanceOf(t, checkingID))
	assert.Equal(t, int64(1000), l.used(t))
	l.requireConsistent(t)

	again, err := l.invoices.CancelPayments(ctx, family, jan.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again)
}

func TestInvoiceUseCase_CancelFullPaymentReopensInstallments(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	created := l.cardPurchase(t, 1000, 1, day(2026, time.January, 15))
	inv := l.invoiceFor(t, day(2026, time.January, 1))

	_, err := l.invoices.ConfirmPayment(ctx, family, usecase.ConfirmPaymentInput{InvoiceID: inv.ID, AccountID: checkingID})
	require.NoError(t, err)

	_, err = l.invoices.CancelPayments(ctx, family, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusClosed, l.store.Invoice(inv.ID).Status)
	assert.Equal(t, []domain.InstallmentStatus{domain.InstallmentStatusPosted}, statuses(l.store.InstallmentsOf(created.Transaction.ID)))
	assert.Equal(t, domain.TransactionStatusPending, l.store.Transaction(created.Transaction.ID).Status)
	assert.Equal(t, int64(100000), l.balanceOf(t, checkingID))
	assert.Equal(t, int64(1000), l.used(t))
	assert.Equal(t, float64(1), testutil.ToFloat64(l.metrics.PaymentsReversed.WithLabelValues("invoice")))
}

func TestInvoiceUseCase_CancelRefusedWhenRolloverSettled(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	l.cardPurchase(t, 1000, 1, day(2026, time.January, 15))
	jan := l.invoiceFor(t, day(2026, time.January, 1))

	_, err := l.invoices.ConfirmPayment(ctx, family, usecase.ConfirmPaymentInput{InvoiceID: jan.ID, AccountID: checkingID, Amount: int64Ptr(400)})
	require.NoError(t, err)

	feb := l.invoiceFor(t, day(2026, time.February, 1))
	_, err = l.invoices.ConfirmPayment(ctx, family, usecase.ConfirmPaymentInput{InvoiceID: feb.ID, AccountID: checkingID})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, l.store.Invoice(feb.ID).Status)

	_, err = l.invoices.CancelPayments(ctx, family, jan.ID)
	assert.ErrorIs(t, err, domain.ErrRolloverSettled)
	assert.Equal(t, domain.InvoiceStatusPartial, l.store.Invoice(jan.ID).Status)
	assert.Equal(t, int64(99000), l.balanceOf(t, checkingID))
}

func TestInvoiceUseCase_CloseInvoice(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	l.cardPurchase(t, 1000, 1, day(2026, time.January, 15))
	inv := l.invoiceFor(t, day(2026, time.January, 1))

	closed, err := l.invoices.CloseInvoice(ctx, family, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusClosed, closed.Status)

	// Closing twice is a no-op.
	again, err := l.invoices.CloseInvoice(ctx, family, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusClosed, again.Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(l.metrics.InvoicesClosed))

	_, err = l.invoices.CloseInvoice(ctx, family, "missing")
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
}

func TestInvoiceUseCase_CloseAllExpiredInvoices(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	l.cardPurchase(t, 1000, 1, day(2026, time.January, 5))
	l.cardPurchase(t, 500, 1, day(2026, time.March, 5))

	closed, err := l.invoices.CloseAllExpiredInvoices(ctx, family, day(2026, time.January, 9))
	require.NoError(t, err)
	assert.Equal(t, 0, closed, "closing day not reached yet")

	closed, err = l.invoices.CloseAllExpiredInvoices(ctx, family, time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	assert.Equal(t, domain.InvoiceStatusClosed, l.invoiceFor(t, day(2026, time.January, 1)).Status)
	assert.Equal(t, domain.InvoiceStatusOpen, l.invoiceFor(t, day(2026, time.March, 1)).Status)

	closed, err = l.invoices.CloseAllExpiredInvoices(ctx, family, day(2026, time.January, 31))
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
}

func TestInvoiceUseCase_ClosingDayClampedToMonthEnd(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	l.store.AddCard(&domain.CreditCard{
		ID:             "card-31",
		FamilyID:       family.FamilyID,
		Name:           "Amex",
		LastFourDigits: "0005",
		Limit:          100000,
		ClosingDay:     31,
		DueDay:         10,
	})

	_, err := l.transactions.Create(ctx, family, usecase.TransactionInput{
		Type:         domain.TransactionTypeExpense,
		Source:       domain.TransactionSourceCreditCard,
		Amount:       100,
		CreditCardID: "card-31",
		Date:         day(2026, time.February, 3),
	})
	require.NoError(t, err)

	closed, err := l.invoices.CloseAllExpiredInvoices(ctx, family, day(2026, time.February, 28))
	require.NoError(t, err)
	assert.Equal(t, 1, closed)
}

func TestInvoiceUseCase_ListInvoicesByCard(t *testing.T) {
	l := newLedger(t)

	l.cardPurchase(t, 900, 3, day(2026, time.January, 15))

	invoices, err := l.invoices.ListInvoicesByCard(context.Background(), family, cardID, 0, 0)
	require.NoError(t, err)
	require.Len(t, invoices, 3)
	assert.Equal(t, day(2026, time.March, 1), invoices[0].PeriodDate)
	assert.Equal(t, day(2026, time.January, 1), invoices[2].PeriodDate)
}

func TestInvoiceUseCase_CardExposureMatchesOutstanding(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	l.cardPurchase(t, 1000, 2, day(2026, time.January, 15))
	jan := l.invoiceFor(t, day(2026, time.January, 1))

	payment, err := l.invoices.ConfirmPayment(ctx, family, usecase.ConfirmPaymentInput{
		InvoiceID: jan.ID,
		AccountID: checkingID,
		Amount:    int64Ptr(200),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(800), l.used(t))
	l.requireConsistent(t)

	_, err = l.payments.CancelPayment(ctx, family, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), l.used(t))
	l.requireConsistent(t)

	card := l.store.Card(cardID)
	card.Used = 400
	l.store.AddCard(card)

	report, err := l.consistency.CheckConsistency(ctx, family)
	require.ErrorIs(t, err, domain.ErrInconsistentLedger)
	assert.Empty(t, report.Invoices)
	assert.Empty(t, report.Transactions)
	assert.Equal(t, []usecase.CardMismatch{{CreditCardID: cardID, Recorded: 400, Expected: 1000}}, report.Cards)
	assert.Equal(t, float64(1), testutil.ToFloat64(l.metrics.Inconsistencies.WithLabelValues("card_used")))
}
