package domain

import "github.com/shopspring/decimal"

// MinorUnitExponent is the number of decimal places of the ledger currency.
const MinorUnitExponent = 2

// SplitAmount divides magnitude |total| into count parts whose sum is exactly
// |total|. The remainder goes one unit at a time to the earliest parts. Every
// part carries sign.
func SplitAmount(total int64, count int, sign int64) ([]int64, error) {
	if count < 1 {
		return nil, ErrInvalidInstallmentCount
	}

	magnitude := Abs(total)
	n := int64(count)
	base := magnitude / n
	remainder := magnitude % n

	parts := make([]int64, count)
	for i := range parts {
		part := base
		if int64(i) < remainder {
			part++
		}
		parts[i] = sign * part
	}

	return parts, nil
}

// Abs returns the magnitude of v.
func Abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// ToMinorUnits converts a major-unit decimal such as 12.34 into 1234.
func ToMinorUnits(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(MinorUnitExponent)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrSubMinorAmount
	}
	return shifted.IntPart(), nil
}

// FromMinorUnits converts 1234 into the decimal 12.34.
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -MinorUnitExponent)
}
