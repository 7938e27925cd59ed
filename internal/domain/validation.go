package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors
var (
	ErrInvalidAccountName = errors.New("invalid account name")
	ErrInvalidCardDigits  = errors.New("last four digits must be 4 numeric characters")
	ErrInvalidLimit       = errors.New("credit limit must not be negative")
)

// Validation constants
const (
	MaxAccountNameLength = 255
	MinAccountNameLength = 1
	MaxInstallments      = 420
)

// ValidateAccountName validates account and card names.
func ValidateAccountName(name string) error {
	name = strings.TrimSpace(name)

	if len(name) < MinAccountNameLength {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidAccountName)
	}

	if len(name) > MaxAccountNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidAccountName, MaxAccountNameLength)
	}

	return nil
}

// ValidateDay validates a day of month used for closing and due dates.
func ValidateDay(day int) error {
	if day < 1 || day > 31 {
		return fmt.Errorf("%w: got %d", ErrInvalidDay, day)
	}
	return nil
}

// ValidateLastFourDigits validates the masked card number suffix.
func ValidateLastFourDigits(digits string) error {
	if digits == "" {
		return nil
	}

	if len(digits) != 4 {
		return ErrInvalidCardDigits
	}

	for _, r := range digits {
		if r < '0' || r > '9' {
			return ErrInvalidCardDigits
		}
	}

	return nil
}

// ValidateInstallmentCount validates the number of installments of a transaction.
func ValidateInstallmentCount(count int) error {
	if count < 1 {
		return ErrInvalidInstallmentCount
	}

	if count > MaxInstallments {
		return fmt.Errorf("%w: at most %d installments", ErrInvalidInstallmentCount, MaxInstallments)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 500
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
