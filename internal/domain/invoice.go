package domain

import "time"

// InvoiceStatus is the billing state of a card period.
type InvoiceStatus string

const (
	InvoiceStatusOpen    InvoiceStatus = "OPEN"
	InvoiceStatusClosed  InvoiceStatus = "CLOSED"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
)

// IsValid reports whether s is a known status.
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusOpen, InvoiceStatusClosed, InvoiceStatusPartial, InvoiceStatusPaid:
		return true
	}
	return false
}

// Invoice aggregates one card's installments for one calendar month.
//
// TotalAmount is the owed amount: CarriedOverAmount plus the magnitudes of
// the linked installments. PaidAmount and RolledOverAmount track how it was
// settled.
type Invoice struct {
	ID                string
	FamilyID          string
	CreditCardID      string
	PeriodDate        time.Time
	TotalAmount       int64
	CarriedOverAmount int64
	RolledOverAmount  int64
	PaidAmount        int64
	Status            InvoiceStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Outstanding is what is still owed on this invoice.
func (i *Invoice) Outstanding() int64 {
	return i.TotalAmount - i.PaidAmount - i.RolledOverAmount
}

// ClosingDate returns the date the invoice closes for the given card closing day.
func (i *Invoice) ClosingDate(closingDay int) time.Time {
	return DayInMonth(i.PeriodDate, closingDay)
}

// IsExpired reports whether the closing date has been reached at now.
func (i *Invoice) IsExpired(closingDay int, now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !today.Before(i.ClosingDate(closingDay))
}

// ExpectedTotal recomputes the owed total from the linked installments.
func (i *Invoice) ExpectedTotal(installments []*Installment) int64 {
	return i.CarriedOverAmount + SumOwed(installments)
}

// HasSettlements reports whether money already moved against the invoice.
// Its lines are frozen from the first payment or rollover on.
func (i *Invoice) HasSettlements() bool {
	return i.PaidAmount > 0 || i.RolledOverAmount > 0 || i.Status == InvoiceStatusPaid
}

// SettlementStatus derives the status after payments or cancellations.
// Invoices without payments fall back to CLOSED.
func (i *Invoice) SettlementStatus() InvoiceStatus {
	switch {
	case i.PaidAmount > 0 && i.RolledOverAmount > 0:
		return InvoiceStatusPartial
	case i.PaidAmount > 0 && i.Outstanding() <= 0:
		return InvoiceStatusPaid
	case i.PaidAmount > 0:
		return InvoiceStatusPartial
	default:
		return InvoiceStatusClosed
	}
}
