package usecase

import (
	"context"
	"time"

	"github.com/iho/homeledger/internal/domain"
)

// AccountRepository defines data access for bank accounts.
type AccountRepository interface {
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByID(ctx context.Context, familyID, id string) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, familyID, id string) (*domain.Account, error)
	// ApplyDelta adds delta to the balance column in place.
	ApplyDelta(ctx context.Context, tx Transaction, familyID, id string, delta int64, updatedAt time.Time) error
	List(ctx context.Context, familyID string, limit, offset int) ([]*domain.Account, error)
}

// CreditCardRepository defines data access for credit cards.
type CreditCardRepository interface {
	Create(ctx context.Context, tx Transaction, card *domain.CreditCard) error
	GetByID(ctx context.Context, familyID, id string) (*domain.CreditCard, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, familyID, id string) (*domain.CreditCard, error)
	// ApplyUsedDelta adds delta to the used column in place.
	ApplyUsedDelta(ctx context.Context, tx Transaction, familyID, id string, delta int64, updatedAt time.Time) error
	List(ctx context.Context, familyID string, limit, offset int) ([]*domain.CreditCard, error)
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	AccountID    string
	CreditCardID string
	Limit        int
	Offset       int
}

// TransactionRepository defines data access for ledger transactions.
// Soft-deleted rows are invisible to every read.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, txn *domain.Transaction) error
	GetByID(ctx context.Context, familyID, id string) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, familyID, id string) (*domain.Transaction, error)
	Update(ctx context.Context, tx Transaction, txn *domain.Transaction) error
	SoftDelete(ctx context.Context, tx Transaction, familyID, id string, deletedAt time.Time) error
	List(ctx context.Context, familyID string, filter TransactionFilter) ([]*domain.Transaction, error)
}

// InstallmentRepository defines data access for installments.
type InstallmentRepository interface {
	Create(ctx context.Context, tx Transaction, inst *domain.Installment) error
	GetByIDsForUpdate(ctx context.Context, tx Transaction, familyID string, ids []string) ([]*domain.Installment, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]*domain.Installment, error)
	ListByTransactionForUpdate(ctx context.Context, tx Transaction, transactionID string) ([]*domain.Installment, error)
	ListByInvoiceForUpdate(ctx context.Context, tx Transaction, invoiceID string) ([]*domain.Installment, error)
	Update(ctx context.Context, tx Transaction, inst *domain.Installment) error
	Delete(ctx context.Context, tx Transaction, ids []string) error
	DeleteByTransaction(ctx context.Context, tx Transaction, transactionID string) error
}

// InvoiceRepository defines data access for card invoices.
type InvoiceRepository interface {
	// GetOrCreate inserts inv unless an invoice already exists for its card
	// and period, and returns the stored row either way.
	GetOrCreate(ctx context.Context, tx Transaction, inv *domain.Invoice) (*domain.Invoice, error)
	GetByID(ctx context.Context, familyID, id string) (*domain.Invoice, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, familyID, id string) (*domain.Invoice, error)
	ListByCard(ctx context.Context, familyID, cardID string, limit, offset int) ([]*domain.Invoice, error)
	ListOpenForUpdate(ctx context.Context, tx Transaction, familyID string) ([]*domain.Invoice, error)
	ListFamiliesWithOpenInvoices(ctx context.Context) ([]string, error)
	Update(ctx context.Context, tx Transaction, inv *domain.Invoice) error
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	InvoiceID     string
	TransactionID string
	Limit         int
	Offset        int
}

// PaymentRepository defines data access for payments.
type PaymentRepository interface {
	Create(ctx context.Context, tx Transaction, payment *domain.Payment) error
	GetByIDForUpdate(ctx context.Context, tx Transaction, familyID, id string) (*domain.Payment, error)
	ListPostedByInvoiceForUpdate(ctx context.Context, tx Transaction, invoiceID string) ([]*domain.Payment, error)
	CountPostedByTransaction(ctx context.Context, tx Transaction, transactionID string) (int, error)
	UpdateStatus(ctx context.Context, tx Transaction, id string, status domain.PaymentStatus, updatedAt time.Time) error
	List(ctx context.Context, familyID string, filter PaymentFilter) ([]*domain.Payment, error)
}

// InvoiceMismatch is an invoice whose stored total disagrees with its installments.
type InvoiceMismatch struct {
	InvoiceID string
	Recorded  int64
	Expected  int64
}

// TransactionMismatch is a transaction whose installments do not add up to its amount.
type TransactionMismatch struct {
	TransactionID string
	Recorded      int64
	Installments  int64
}

// CardMismatch is a card whose used limit differs from what its invoices
// still have outstanding.
type CardMismatch struct {
	CreditCardID string
	Recorded     int64
	Expected     int64
}

// LedgerRepository defines data access for ledger-wide checks.
type LedgerRepository interface {
	InvoiceTotalMismatches(ctx context.Context, familyID string) ([]InvoiceMismatch, error)
	TransactionSumMismatches(ctx context.Context, familyID string) ([]TransactionMismatch, error)
	CardUsedMismatches(ctx context.Context, familyID string) ([]CardMismatch, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient database conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Locker provides a best-effort distributed lock.
type Locker interface {
	// TryLock returns false without error when the lock is held elsewhere.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops the key so a failed request can be retried.
	Release(ctx context.Context, key string) error
}
