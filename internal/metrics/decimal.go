package metrics

import "github.com/shopspring/decimal"

var (
	zero = decimal.Zero
	one  = decimal.NewFromInt(1)
)

// ratio returns num/den, or zero when den is zero.
func ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return zero
	}
	return num.Div(den)
}

// scale returns amount * part / whole, multiplying first to keep precision.
// A zero whole yields zero.
func scale(amount decimal.Decimal, part, whole int) decimal.Decimal {
	if whole == 0 {
		return zero
	}
	return amount.Mul(decimal.NewFromInt(int64(part))).Div(decimal.NewFromInt(int64(whole)))
}

func qty(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
