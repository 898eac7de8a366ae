package utils

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ValidateAmount checks that an amount string is a valid, strictly positive
// decimal and returns the parsed value.
func ValidateAmount(amount string) (decimal.Decimal, error) {
	if amount == "" {
		return decimal.Decimal{}, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount format: %w", err)
	}

	if !dec.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("amount must be greater than 0")
	}

	return dec, nil
}

// ParseAmountWithDecimals parses a decimal amount string and converts it to
// atomic units with the given token precision.
func ParseAmountWithDecimals(amount string, decimals int) (*big.Int, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return nil, err
	}

	shifted := dec.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}

	return shifted.BigInt(), nil
}

// FormatAmountFromBigInt renders an atomic-unit amount as a decimal string
// with the given token precision.
func FormatAmountFromBigInt(amount *big.Int, decimals int) string {
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}
