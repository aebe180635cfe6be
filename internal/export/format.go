package export

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatVND formats an amount using Vietnamese conventions: dot as the
// thousands separator and comma as the decimal separator. When the
// fractional part is zero after rounding the decimals are omitted.
// Example: 1234.5 (2 decimals) => "1.234,50"; 1000 => "1.000".
func FormatVND(v decimal.Decimal, decimals int32) string {
	if decimals < 0 {
		decimals = 0
	}

	v = v.Round(decimals)
	neg := v.IsNegative()
	if neg {
		v = v.Neg()
	}

	intPart := v.Truncate(0)
	fracPart := v.Sub(intPart)

	s := groupThousands(intPart.String())

	prefix := ""
	if neg {
		prefix = "-"
	}

	if decimals == 0 || fracPart.IsZero() {
		return prefix + s
	}

	frac := fracPart.StringFixed(decimals)
	frac = frac[strings.IndexByte(frac, '.')+1:]
	return prefix + s + "," + frac
}

// FormatPercent renders a ratio as a percentage with at most one decimal:
// 0.125 => "12,5%", 0.55 => "55%".
func FormatPercent(ratio decimal.Decimal) string {
	return FormatVND(ratio.Mul(decimal.NewFromInt(100)).Round(1), 1) + "%"
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var buf []byte
	count := 0
	for i := len(s) - 1; i >= 0; i-- {
		buf = append(buf, s[i])
		count++
		if count == 3 && i != 0 {
			buf = append(buf, '.')
			count = 0
		}
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
