package domain

import "time"

// InstallmentStatus is the state of one installment.
type InstallmentStatus string

const (
	InstallmentStatusPending  InstallmentStatus = "PENDING"
	InstallmentStatusPosted   InstallmentStatus = "POSTED"
	InstallmentStatusPaid     InstallmentStatus = "PAID"
	InstallmentStatusOverdue  InstallmentStatus = "OVERDUE"
	InstallmentStatusRefunded InstallmentStatus = "REFUNDED"
)

// IsValid reports whether s is a known status.
func (s InstallmentStatus) IsValid() bool {
	switch s {
	case InstallmentStatusPending, InstallmentStatusPosted, InstallmentStatusPaid,
		InstallmentStatusOverdue, InstallmentStatusRefunded:
		return true
	}
	return false
}

// IsSettled reports whether the installment's cash effect has happened.
func (s InstallmentStatus) IsSettled() bool {
	return s == InstallmentStatusPaid
}

// InstallmentStatusFor maps a transaction status onto its account installments.
func InstallmentStatusFor(s TransactionStatus) InstallmentStatus {
	if s.IsSettled() {
		return InstallmentStatusPaid
	}
	return InstallmentStatusPending
}

// Installment is one dated slice of a transaction. Exactly one of AccountID
// and InvoiceID is set.
type Installment struct {
	ID            string
	TransactionID string
	Number        int
	Amount        int64
	DueDate       time.Time
	Status        InstallmentStatus
	AccountID     *string
	InvoiceID     *string
	CategoryID    *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OnInvoice reports whether the installment is billed through a card invoice.
func (i *Installment) OnInvoice() bool {
	return i.InvoiceID != nil
}

// Owed is the amount the installment adds to its invoice total and card
// exposure. Card lines always count by magnitude, whatever their sign.
func (i *Installment) Owed() int64 {
	return Abs(i.Amount)
}

// SumAmounts adds installment amounts.
func SumAmounts(installments []*Installment) int64 {
	var total int64
	for _, inst := range installments {
		total += inst.Amount
	}
	return total
}

// SumOwed adds what the installments owe on their invoice.
func SumOwed(installments []*Installment) int64 {
	var total int64
	for _, inst := range installments {
		total += inst.Owed()
	}
	return total
}

// UpdateMode selects which installments of a series an edit touches.
type UpdateMode string

const (
	UpdateOnlyThis UpdateMode = "update_only_this"
	UpdateFuture   UpdateMode = "update_future"
	UpdateAll      UpdateMode = "update_all"
)

// IsValid reports whether m is a known mode.
func (m UpdateMode) IsValid() bool {
	switch m {
	case UpdateOnlyThis, UpdateFuture, UpdateAll:
		return true
	}
	return false
}

// Selects reports whether candidate is in scope for an edit of current.
func (m UpdateMode) Selects(current, candidate *Installment) bool {
	switch m {
	case UpdateOnlyThis:
		return candidate.ID == current.ID
	case UpdateFuture:
		return candidate.Number >= current.Number
	case UpdateAll:
		return true
	}
	return false
}
