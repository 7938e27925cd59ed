package domain

import "time"

// PaymentStatus is the state of a payment row.
type PaymentStatus string

const (
	PaymentStatusPosted    PaymentStatus = "POSTED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// Payment is an explicit cash-out from an account towards an invoice or a
// transaction. Rows are never deleted; cancellation flips the status.
type Payment struct {
	ID                string
	FamilyID          string
	Amount            int64
	PaidAt            time.Time
	InvoiceID         *string
	TransactionID     *string
	AccountID         string
	Status            PaymentStatus
	RolloverInvoiceID *string
	RolledOverAmount  int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsPosted reports whether the payment still has its balance effect.
func (p *Payment) IsPosted() bool {
	return p.Status == PaymentStatusPosted
}
