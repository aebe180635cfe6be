package metrics

import (
	"strings"
	"time"
)

// UnknownKey labels the bucket of records whose date, province, SKU or
// reason is missing so they stay in the totals. Non-date buckets also carry
// an Unknown flag, which tells them apart from a real value of that name.
const UnknownKey = "unknown"

var dateLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	time.RFC3339,
}

// parseDay truncates an export timestamp to its calendar day (YYYY-MM-DD).
func parseDay(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// bucketDay picks the payout date, falling back to the order date, and
// reports any diagnostic raised on the way.
func bucketDay(orderID, payout, ordered string) (string, []Diagnostic) {
	var diags []Diagnostic

	if day, ok := parseDay(payout); ok {
		return day, nil
	}
	if strings.TrimSpace(payout) != "" {
		diags = append(diags, Diagnostic{OrderID: orderID, Code: DiagUnparsableDate, Detail: "payout date " + payout})
	}

	if day, ok := parseDay(ordered); ok {
		return day, diags
	}
	if strings.TrimSpace(ordered) != "" {
		diags = append(diags, Diagnostic{OrderID: orderID, Code: DiagUnparsableDate, Detail: "order date " + ordered})
	} else if strings.TrimSpace(payout) == "" {
		diags = append(diags, Diagnostic{OrderID: orderID, Code: DiagMissingDate, Detail: "no payout or order date"})
	}

	return UnknownKey, diags
}
