package domain

import "time"

// Account is a bank account owned by a family. Balance is in minor units and
// only changes through atomic deltas.
type Account struct {
	ID        string
	FamilyID  string
	Name      string
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanDebit reports whether the account holds at least amount.
func (a *Account) CanDebit(amount int64) bool {
	return a.Balance >= amount
}

// ValidateDebit checks the account has enough balance for a payment.
func (a *Account) ValidateDebit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if !a.CanDebit(amount) {
		return ErrInsufficientBalance
	}
	return nil
}
