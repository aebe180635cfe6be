package metrics

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/domain"
)

// sampleLines is a small report: two realized orders (one multi-line), one
// cancelled, one with an accepted return and one anomalous.
func sampleLines() []domain.OrderLine {
	a := completedLine("ORD-A", "SKU-1", 10, "100000")
	a.ShopVoucher = d("5000")
	a.FixedFee = d("1000")
	a.ServiceFee = d("1500")
	a.PaymentFee = d("500")
	a.OrderTotalAmount = d("1000000")

	b1 := completedLine("ORD-B", "SKU-2", 2, "200000")
	b2 := completedLine("ORD-B", "SKU-1", 2, "100000")
	for _, l := range []*domain.OrderLine{&b1, &b2} {
		l.PayoutDate = ""
		l.OrderDate = "11/03/2024 08:00"
		l.ShopVoucher = d("60000")
		l.FixedFee = d("30000")
		l.ServiceFee = d("60000")
		l.OrderTotalAmount = d("600000")
		l.Province = "TP. Hồ Chí Minh"
	}
	b1.SellerRebate = d("100000")

	c := completedLine("ORD-C", "SKU-3", 1, "500000")
	c.OrderStatus = "Đã hủy"
	c.CancelReason = "Người mua đổi ý"

	dl := completedLine("ORD-D", "SKU-3", 1, "500000")
	dl.ReturnStatus = "Đã Chấp Thuận Yêu Cầu"

	e := completedLine("ORD-E", "SKU-4", -2, "100000")

	return []domain.OrderLine{a, b1, c, b2, dl, e}
}

func TestComputeMetrics_Sample(t *testing.T) {
	res, err := ComputeMetrics(sampleLines(), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 5, res.TotalOrders)
	assert.Equal(t, 2, res.RealizedOrders)
	assert.Equal(t, 1, res.CancelledOrders)
	assert.Equal(t, 1, res.ReturnedOrders)
	assert.Equal(t, 1, res.AnomalousOrders)
	assert.Equal(t, res.TotalOrders, res.RealizedOrders+res.CancelledOrders+res.ReturnedOrders+res.AnomalousOrders)

	assertDecimal(t, "1600000", res.Totals.GrossRevenue)
	assertDecimal(t, "165000", res.Totals.MarketingCost)
	assertDecimal(t, "93000", res.Totals.PlatformFee)
	assertDecimal(t, "1435000", res.Totals.NetProceeds)
	assertDecimal(t, "640000", res.Totals.COGS)
	assertDecimal(t, "702000", res.Totals.NetProfit)
	assert.Equal(t, 14, res.Totals.QuantityKept)

	// (1000000 - 5000 + 600000 - 60000) / 2
	assertDecimal(t, "767500", res.AverageOrderValue)
	assertDecimal(t, "0.2", res.CancelRate)
	assertDecimal(t, "0.2", res.ReturnRate)

	require.Len(t, res.Daily, 2)
	assert.Equal(t, "2024-03-11", res.Daily[0].Date, "falls back to order date")
	assert.Equal(t, "2024-03-15", res.Daily[1].Date)

	require.Len(t, res.Products, 2)
	assert.Equal(t, "SKU-1", res.Products[0].SKU)
	assert.Equal(t, 12, res.Products[0].QuantityKept)
	assert.Equal(t, 2, res.Products[0].Orders)

	require.Len(t, res.Locations, 2)
	assert.Equal(t, "Hà Nội", res.Locations[0].Province)

	assert.Equal(t, []ReasonCount{{Reason: "Người mua đổi ý", Count: 1}}, res.CancelReasons)
	assert.Equal(t, []ReasonCount{{Reason: "Đã Chấp Thuận Yêu Cầu", Count: 1}}, res.ReturnStatuses)

	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, "ORD-E", res.Anomalies[0].OrderID)

	tierTotal := 0
	for _, tc := range res.Tiers {
		tierTotal += tc.Count
	}
	assert.Equal(t, res.RealizedOrders, tierTotal)
	assert.Len(t, res.RootCauses, len(RootCauses))
}

func TestComputeMetrics_Scenarios(t *testing.T) {
	t.Run("cancelled order contributes nothing", func(t *testing.T) {
		l := completedLine("ORD-C", "SKU-1", 2, "300000")
		l.OrderStatus = "Đã hủy"
		l.ShopVoucher = d("20000")
		l.FixedFee = d("5000")

		res, err := ComputeMetrics([]domain.OrderLine{l}, DefaultConfig())
		require.NoError(t, err)
		assert.Equal(t, 1, res.CancelledOrders)
		assertDecimal(t, "0", res.Totals.GrossRevenue)
		assertDecimal(t, "0", res.Totals.MarketingCost)
		assertDecimal(t, "0", res.Totals.PlatformFee)
		assertDecimal(t, "0", res.Totals.NetProfit)
		assert.Empty(t, res.Products)
	})

	t.Run("accepted return with no returned units is excluded", func(t *testing.T) {
		l := completedLine("ORD-D", "SKU-1", 1, "300000")
		l.ReturnStatus = "Đã Chấp Thuận Yêu Cầu"

		res, err := ComputeMetrics([]domain.OrderLine{l}, DefaultConfig())
		require.NoError(t, err)
		assert.Equal(t, 1, res.ReturnedOrders)
		assert.Equal(t, 0, res.RealizedOrders)
		assertDecimal(t, "0", res.Totals.GrossRevenue)
	})

	t.Run("partial return counted when enabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CountPartialReturns = true

		l := completedLine("ORD-B", "SKU-1", 10, "100000")
		l.ReturnQuantity = 4
		l.SellerRebate = d("10000")
		l.ShopVoucher = d("5000")
		l.FixedFee = d("3000")

		res, err := ComputeMetrics([]domain.OrderLine{l}, cfg)
		require.NoError(t, err)
		assert.Equal(t, 1, res.RealizedOrders)
		assertDecimal(t, "600000", res.Totals.GrossRevenue)
		assertDecimal(t, "9000", res.Totals.MarketingCost)
		assertDecimal(t, "1800", res.Totals.PlatformFee)
	})

	t.Run("high control ratio with positive profit is warning", func(t *testing.T) {
		l := completedLine("ORD-E", "SKU-1", 10, "100000")
		l.SellerRebate = d("400000")
		l.FixedFee = d("50000")
		l.ServiceFee = d("100000")

		report, err := Compute([]domain.OrderLine{l}, DefaultConfig())
		require.NoError(t, err)
		require.Len(t, report.Orders, 1)
		risk := report.Orders[0].Risk
		require.NotNil(t, risk)
		assertDecimal(t, "0.55", risk.ControlRatio)
		assert.True(t, report.Orders[0].Financials.NetProfit.IsPositive())
		assert.Equal(t, TierWarning, risk.Tier)
		assert.Equal(t, RootCauseMarketing, risk.RootCause)
	})
}

func TestComputeMetrics_Empty(t *testing.T) {
	res, err := ComputeMetrics(nil, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 0, res.TotalOrders)
	assertDecimal(t, "0", res.AverageOrderValue)
	assertDecimal(t, "0", res.ControlRatio)
	assertDecimal(t, "0", res.CancelRate)
	assert.NotNil(t, res.Diagnostics)
	assert.NotNil(t, res.Anomalies)
}

func TestComputeMetrics_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TaxDivisor = d("0")

	_, err := ComputeMetrics(sampleLines(), cfg)
	assert.Error(t, err)
}

func TestComputeMetrics_Idempotent(t *testing.T) {
	first, err := ComputeMetrics(sampleLines(), DefaultConfig())
	require.NoError(t, err)
	second, err := ComputeMetrics(sampleLines(), DefaultConfig())
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
	assert.Equal(t, a, b)
}

func TestComputeMetrics_PermutationInvariant(t *testing.T) {
	lines := sampleLines()
	expected, err := ComputeMetrics(lines, DefaultConfig())
	require.NoError(t, err)
	want, err := json.Marshal(expected)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]domain.OrderLine(nil), lines...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := ComputeMetrics(shuffled, DefaultConfig())
		require.NoError(t, err)
		gotJSON, err := json.Marshal(got)
		require.NoError(t, err)
		assert.Equal(t, string(want), string(gotJSON), "permutation %d", i)
	}
}

func TestComputeMetrics_LineOrderWithinOrder(t *testing.T) {
	lines := make([]domain.OrderLine, 0, 3)
	for _, sku := range []string{"A", "B", "C"} {
		l := completedLine("ORD-1", sku, 1, "100000")
		l.FixedFee = d("100")
		l.ShopVoucher = d("100")
		lines = append(lines, l)
	}
	reversed := []domain.OrderLine{lines[2], lines[1], lines[0]}

	forward, err := ComputeMetrics(lines, DefaultConfig())
	require.NoError(t, err)
	backward, err := ComputeMetrics(reversed, DefaultConfig())
	require.NoError(t, err)

	want, err := json.Marshal(forward)
	require.NoError(t, err)
	got, err := json.Marshal(backward)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	skus := make([]string, 0, len(forward.Products))
	for _, p := range forward.Products {
		skus = append(skus, p.SKU)
	}
	assert.Equal(t, []string{"B", "C", "A"}, skus, "A takes the rounding remainder of both allocations")
}

func TestComputeMetrics_AnomalyReasonIgnoresLineOrder(t *testing.T) {
	neg := completedLine("ORD-1", "SKU-2", -1, "100")
	cheap := completedLine("ORD-1", "SKU-1", 1, "-5")
	ok := completedLine("ORD-1", "SKU-3", 1, "100")

	first, err := ComputeMetrics([]domain.OrderLine{ok, neg, cheap}, DefaultConfig())
	require.NoError(t, err)
	second, err := ComputeMetrics([]domain.OrderLine{cheap, ok, neg}, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, first.Anomalies, 1)
	assert.Equal(t, first.Anomalies, second.Anomalies)
	assert.Equal(t, `SKU "SKU-1": negative original price -5; SKU "SKU-2": negative quantity (-1 ordered, 0 returned)`, first.Anomalies[0].Reason)
}

func TestComputeMetrics_Diagnostics(t *testing.T) {
	unknown := completedLine("ORD-1", "SKU-1", 1, "100000")
	unknown.OrderStatus = "Trạng thái mới"

	undated := completedLine("ORD-2", "SKU-1", 1, "100000")
	undated.PayoutDate = ""
	undated.OrderDate = ""

	garbled := completedLine("ORD-3", "SKU-1", 1, "100000")
	garbled.PayoutDate = "not a date"
	garbled.OrderDate = "2024-03-12"

	res, err := ComputeMetrics([]domain.OrderLine{unknown, undated, garbled}, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 3, res.RealizedOrders, "unknown status defaults to realized")
	assert.Equal(t, []Diagnostic{
		{OrderID: "ORD-1", Code: DiagUnknownOrderStatus, Detail: "Trạng thái mới"},
		{OrderID: "ORD-2", Code: DiagMissingDate, Detail: "no payout or order date"},
		{OrderID: "ORD-3", Code: DiagUnparsableDate, Detail: "payout date not a date"},
	}, res.Diagnostics)

	dates := make([]string, 0, len(res.Daily))
	for _, b := range res.Daily {
		dates = append(dates, b.Date)
	}
	assert.Equal(t, []string{"2024-03-12", "2024-03-15", UnknownKey}, dates)
}

func TestComputeMetrics_MissingKeysStayApart(t *testing.T) {
	named := completedLine("ORD-1", "unknown", 1, "100000")
	named.Province = "unknown"
	blank := completedLine("ORD-2", " ", 1, "100000")
	blank.Province = ""

	cancelNamed := completedLine("ORD-3", "SKU-1", 1, "100000")
	cancelNamed.OrderStatus = "Đã hủy"
	cancelNamed.CancelReason = "unknown"
	cancelBlank := completedLine("ORD-4", "SKU-1", 1, "100000")
	cancelBlank.OrderStatus = "Đã hủy"

	res, err := ComputeMetrics([]domain.OrderLine{named, blank, cancelNamed, cancelBlank}, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, res.Products, 2)
	assert.Equal(t, UnknownKey, res.Products[0].SKU)
	assert.True(t, res.Products[0].Unknown)
	assert.Equal(t, "unknown", res.Products[1].SKU)
	assert.False(t, res.Products[1].Unknown)
	assert.Equal(t, 1, res.Products[1].Orders)

	require.Len(t, res.Locations, 2)
	assert.True(t, res.Locations[0].Unknown)
	assert.Equal(t, "unknown", res.Locations[1].Province)
	assert.False(t, res.Locations[1].Unknown)

	assert.Equal(t, []ReasonCount{
		{Reason: UnknownKey, Unknown: true, Count: 1},
		{Reason: "unknown", Count: 1},
	}, res.CancelReasons)
}

func TestEngine_EvaluateIsolatesFailures(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	// A nil aggregator panics as soon as a realized group reaches it.
	e.aggregator = nil

	detail := e.Evaluate(OrderGroup{ID: "ORD-1", Lines: []domain.OrderLine{completedLine("ORD-1", "SKU-1", 1, "100")}})
	assert.Equal(t, OutcomeAnomalous, detail.Realization.Outcome)
	assert.Contains(t, detail.Realization.Reason, "evaluation failed")
	assert.Nil(t, detail.Financials)
	assert.Nil(t, detail.Risk)

	res := Rollup([]OrderDetail{detail})
	assert.Equal(t, 1, res.AnomalousOrders)
	assert.Equal(t, 0, res.RealizedOrders)
}

func TestReport_Flagged(t *testing.T) {
	safe := completedLine("ORD-SAFE", "SKU-1", 10, "100000")

	warning := completedLine("ORD-WARN", "SKU-1", 10, "100000")
	warning.SellerRebate = d("400000")
	warning.ServiceFee = d("150000")

	danger := completedLine("ORD-DANGER", "SKU-1", 10, "100000")
	danger.SellerRebate = d("600000")
	danger.ServiceFee = d("150000")

	smallLoss := completedLine("ORD-LOSS", "SKU-1", 10, "100000")
	smallLoss.SellerRebate = d("450000")
	smallLoss.ServiceFee = d("200000")

	report, err := Compute([]domain.OrderLine{safe, warning, danger, smallLoss}, DefaultConfig())
	require.NoError(t, err)

	flagged := report.Flagged(TierWarning)
	ids := make([]string, 0, len(flagged))
	for _, o := range flagged {
		ids = append(ids, o.OrderID)
	}
	assert.Equal(t, []string{"ORD-DANGER", "ORD-LOSS", "ORD-WARN"}, ids)

	assert.Len(t, report.Flagged(TierSafe), 4)
}

func TestBadges(t *testing.T) {
	products := []ProductBucket{
		{SKU: "HERO", QuantityKept: 100, Margin: d("0.3")},
		{SKU: "TRAFFIC", QuantityKept: 80, Margin: d("-0.05")},
		{SKU: "RISK", QuantityKept: 5, Margin: d("0.4")},
		{SKU: "KILL", QuantityKept: 2, Margin: d("0.01")},
	}
	assignBadges(products)

	badges := map[string]Badge{}
	for _, p := range products {
		badges[p.SKU] = p.Badge
	}
	assert.Equal(t, map[string]Badge{
		"HERO":    BadgeHero,
		"TRAFFIC": BadgeTrafficDriver,
		"RISK":    BadgeRisk,
		"KILL":    BadgeKillList,
	}, badges)
}

func TestMetricResult_TopProducts(t *testing.T) {
	res := MetricResult{Products: []ProductBucket{{SKU: "A"}, {SKU: "B"}, {SKU: "C"}}}

	assert.Len(t, res.TopProducts(2), 2)
	assert.Len(t, res.TopProducts(10), 3)
	assert.Len(t, res.TopProducts(-1), 3)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"cogs rate of one", func(c *Config) { c.COGSRate = d("1") }},
		{"negative cogs rate", func(c *Config) { c.COGSRate = d("-0.1") }},
		{"zero tax divisor", func(c *Config) { c.TaxDivisor = d("0") }},
		{"inverted thresholds", func(c *Config) { c.ControlRatio = Thresholds{Monitor: d("0.5"), Warning: d("0.3")} }},
		{"negative loss threshold", func(c *Config) { c.LossThreshold = d("-1") }},
		{"no cancelled statuses", func(c *Config) { c.CancelledStatuses = nil }},
	}

	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigFingerprint(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)

	b.COGSRate = d("0.35")
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
