package ledger

import "github.com/shopspring/decimal"

// MoneyPlaces is the currency precision every amount is rounded to.
const MoneyPlaces = 2

// Money rounds d to currency precision.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ExactMoney returns d unchanged when it already has currency precision and
// ErrInvalidInput otherwise. Use it where rounding would alter what was paid.
func ExactMoney(d decimal.Decimal) (decimal.Decimal, error) {
	if !d.Equal(Money(d)) {
		return decimal.Zero, Invalid("amount %s has more than %d decimal places", d.String(), MoneyPlaces)
	}
	return d, nil
}

// SumMoney adds amounts and rounds the result.
func SumMoney(amounts ...decimal.Decimal) decimal.Decimal {
	return Money(decimal.Sum(decimal.Zero, amounts...))
}
