package metrics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, d(expected).Equal(actual), append([]interface{}{"expected %s, got %s", expected, actual.String()}, msgAndArgs...)...)
}

// completedLine is a delivered, unreturned line with order level fields
// left zero.
func completedLine(orderID, sku string, quantity int, price string) domain.OrderLine {
	return domain.OrderLine{
		OrderID:       orderID,
		OrderStatus:   "Hoàn thành",
		OrderDate:     "2024-03-10 09:15",
		PayoutDate:    "2024-03-15 10:00",
		SKU:           sku,
		ProductName:   "Product " + sku,
		Quantity:      quantity,
		OriginalPrice: d(price),
		Province:      "Hà Nội",
	}
}

func mustEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}
