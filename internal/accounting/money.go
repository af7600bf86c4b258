package accounting

import "github.com/shopspring/decimal"

// AmountScale is the number of fractional digits carried by stored amounts.
const AmountScale int32 = 2

// percentScale is the precision of ratio division before scaling to percent.
const percentScale int32 = 6

var hundred = decimal.NewFromInt(100)

// RoundAmount rounds to the stored currency precision.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}

// ParseAmount parses a decimal string; an empty string is zero.
func ParseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// PercentOf returns part as a percentage of whole rounded to two digits, or
// zero when whole is zero.
func PercentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.DivRound(whole, percentScale).Mul(hundred).Round(AmountScale)
}

// MaxZero clamps negative values to zero.
func MaxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
