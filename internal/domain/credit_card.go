package domain

import "time"

// CreditCard tracks card exposure. Used is the owed amount still consuming the limit.
type CreditCard struct {
	ID               string
	FamilyID         string
	Name             string
	LastFourDigits   string
	Limit            int64
	Used             int64
	ClosingDay       int
	DueDay           int
	PaymentAccountID *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Available returns the unused part of the limit.
func (c *CreditCard) Available() int64 {
	return c.Limit - c.Used
}

// Validate checks card configuration.
func (c *CreditCard) Validate() error {
	if err := ValidateAccountName(c.Name); err != nil {
		return err
	}
	if err := ValidateLastFourDigits(c.LastFourDigits); err != nil {
		return err
	}
	if c.Limit < 0 {
		return ErrInvalidLimit
	}
	if err := ValidateDay(c.ClosingDay); err != nil {
		return err
	}
	return ValidateDay(c.DueDay)
}
