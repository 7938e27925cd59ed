package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/infrastructure/metrics"
	"github.com/iho/homeledger/internal/usecase"
	"github.com/iho/homeledger/internal/usecase/mocks"
)

const (
	checkingID = "acc-checking"
	savingsID  = "acc-savings"
	cardID     = "card-1"
)

var family = domain.Tenant{FamilyID: "fam-1", UserID: "user-1"}

// ledger wires every use case over one in-memory store.
type ledger struct {
	store   *mocks.Store
	metrics *metrics.Metrics

	balance      *usecase.BalanceUseCase
	invoices     *usecase.InvoiceUseCase
	installments *usecase.InstallmentUseCase
	transactions *usecase.TransactionUseCase
	payments     *usecase.PaymentUseCase
	accounts     *usecase.AccountUseCase
	cards        *usecase.CreditCardUseCase
	consistency  *usecase.LedgerUseCase
}

func newLedger(t *testing.T) *ledger {
	t.Helper()

	store := mocks.NewStore()
	m := metrics.New(prometheus.NewRegistry())
	now := time.Date(2026, time.January, 20, 12, 0, 0, 0, time.UTC)

	infra := usecase.Infra{
		TxManager: store,
		IDGen:     mocks.NewSequentialIDGenerator(),
		Outbox:    store.Outbox,
		Audit:     store.Audit,
		Logger:    zerolog.Nop(),
		Metrics:   m,
		Clock:     func() time.Time { return now },
	}

	balance := usecase.NewBalanceUseCase(infra, store.Accounts, store.Cards)
	invoices := usecase.NewInvoiceUseCase(infra, store.Invoices, store.Cards, store.Accounts, store.Installments, store.Transactions, store.Payments, balance)
	installments := usecase.NewInstallmentUseCase(infra, store.Transactions, store.Installments, store.Invoices, invoices, balance)

	l := &ledger{
		store:        store,
		metrics:      m,
		balance:      balance,
		invoices:     invoices,
		installments: installments,
		transactions: usecase.NewTransactionUseCase(infra, store.Transactions, store.Installments, store.Accounts, store.Cards, store.Payments, installments, invoices, balance),
		payments:     usecase.NewPaymentUseCase(infra, store.Payments, store.Invoices, store.Accounts, store.Transactions, store.Installments, invoices, balance),
		accounts:     usecase.NewAccountUseCase(infra, store.Accounts),
		cards:        usecase.NewCreditCardUseCase(infra, store.Cards, store.Accounts),
		consistency:  usecase.NewLedgerUseCase(store.Ledger, zerolog.Nop(), m),
	}

	store.AddAccount(&domain.Account{ID: checkingID, FamilyID: family.FamilyID, Name: "Checking", Balance: 100000})
	store.AddAccount(&domain.Account{ID: savingsID, FamilyID: family.FamilyID, Name: "Savings"})
	store.AddCard(&domain.CreditCard{
		ID:             cardID,
		FamilyID:       family.FamilyID,
		Name:           "Visa",
		LastFourDigits: "4242",
		Limit:          500000,
		ClosingDay:     10,
		DueDay:         20,
	})

	return l
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (l *ledger) balanceOf(t *testing.T, id string) int64 {
	t.Helper()
	a := l.store.Account(id)
	require.NotNil(t, a, "account %s", id)
	return a.Balance
}

func (l *ledger) used(t *testing.T) int64 {
	t.Helper()
	c := l.store.Card(cardID)
	require.NotNil(t, c)
	return c.Used
}

func (l *ledger) invoiceFor(t *testing.T, date time.Time) *domain.Invoice {
	t.Helper()
	inv := l.store.InvoiceFor(cardID, date)
	require.NotNil(t, inv, "invoice for %s", date.Format("2006-01"))
	return inv
}

func (l *ledger) requireConsistent(t *testing.T) {
	t.Helper()
	report, err := l.consistency.CheckConsistency(context.Background(), family)
	require.NoError(t, err, "report: %+v", report)
}

func (l *ledger) cardPurchase(t *testing.T, amount int64, count int, date time.Time) *usecase.TransactionDetails {
	t.Helper()
	details, err := l.transactions.Create(context.Background(), family, usecase.TransactionInput{
		Type:              domain.TransactionTypeExpense,
		Source:            domain.TransactionSourceCreditCard,
		Amount:            amount,
		InstallmentNumber: count,
		CreditCardID:      cardID,
		Date:              date,
	})
	require.NoError(t, err)
	return details
}

func (l *ledger) accountExpense(t *testing.T, amount int64, count int, status domain.TransactionStatus) *usecase.TransactionDetails {
	t.Helper()
	details, err := l.transactions.Create(context.Background(), family, usecase.TransactionInput{
		Type:              domain.TransactionTypeExpense,
		Source:            domain.TransactionSourceAccount,
		Status:            status,
		Amount:            amount,
		InstallmentNumber: count,
		AccountID:         checkingID,
		Date:              day(2026, time.January, 15),
	})
	require.NoError(t, err)
	return details
}

func amounts(installments []*domain.Installment) []int64 {
	out := make([]int64, len(installments))
	for i, inst := range installments {
		out[i] = inst.Amount
	}
	return out
}

func statuses(installments []*domain.Installment) []domain.InstallmentStatus {
	out := make([]domain.InstallmentStatus, len(installments))
	for i, inst := range installments {
		out[i] = inst.Status
	}
	return out
}
