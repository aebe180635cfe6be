package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var currencySanitizer = strings.NewReplacer("₫", "", "VND", "", "vnd", "", "đ", "", " ", "", "\u00a0", "")

// ParseAmount parses a money cell as written by Shopee exports and by
// spreadsheet tools in either locale: "1.234.567", "1,234,567", "1.234,5",
// "₫ 99.000", "(5.000)". A blank cell is zero.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := currencySanitizer.Replace(strings.TrimSpace(raw))
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	}

	s = normalizeSeparators(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// normalizeSeparators rewrites s to use '.' as the only decimal separator.
// With both separators present the rightmost one is the decimal point. A
// single kind repeated is a thousands separator; occurring once it is a
// thousands separator only when exactly three digits follow, VND amounts
// having no minor unit.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || len(s)-lastComma-1 == 3 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 {
			return strings.ReplaceAll(s, ".", "")
		}
		return s
	}
	return s
}

// ParseQuantity parses a unit count, reading thousands separators the way
// money fields do. Spreadsheet tools sometimes save counts as "2.0"; any
// fractional part is an error rather than silently truncated.
func ParseQuantity(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(normalizeSeparators(s))
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", raw)
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("fractional quantity %q", raw)
	}
	return int(d.IntPart()), nil
}

// normalizeDate turns an Excel serial date left unformatted by the sheet
// into the export's "2006-01-02 15:04" layout. Anything else is returned
// trimmed and unchanged; parsing happens in the metrics engine.
func normalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	serial, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	// Serial 20000 is 1954-10-03; smaller numbers are not plausible dates.
	if serial.LessThan(decimal.NewFromInt(20000)) || serial.GreaterThan(decimal.NewFromInt(100000)) {
		return s
	}
	t, err := excelize.ExcelDateToTime(serial.InexactFloat64(), false)
	if err != nil {
		return s
	}
	return t.Round(time.Minute).Format("2006-01-02 15:04")
}
