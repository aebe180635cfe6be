package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func financials(gross, marketing, fixed, variable, cogs string) OrderFinancials {
	f := OrderFinancials{
		OrderID:       "ORD-1",
		GrossRevenue:  d(gross),
		MarketingCost: d(marketing),
		FixedFee:      d(fixed),
		VariableFee:   d(variable),
		COGS:          d(cogs),
		Lines:         []LineFinancials{{SKU: "SKU-1", KeptQuantity: 10, GrossRevenue: d(gross)}},
	}
	f.PlatformFee = f.FixedFee.Add(f.VariableFee)
	f.NetProceeds = f.GrossRevenue.Sub(f.MarketingCost)
	f.NetProfit = f.NetProceeds.Sub(f.PlatformFee).Sub(f.COGS)
	return f
}

func TestRiskClassifier_Tier(t *testing.T) {
	classifier := NewRiskClassifier(DefaultConfig())

	tests := []struct {
		name    string
		f       OrderFinancials
		control string
		tier    Tier
	}{
		{"low control ratio", financials("1000000", "100000", "50000", "50000", "400000"), "0.2", TierSafe},
		{"at monitor threshold", financials("1000000", "200000", "50000", "50000", "400000"), "0.3", TierMonitor},
		{"high control ratio still profitable", financials("1000000", "400000", "50000", "100000", "400000"), "0.55", TierWarning},
		{"small loss", financials("1000000", "450000", "50000", "150000", "400000"), "0.65", TierWarning},
		{"loss beyond threshold", financials("1000000", "550000", "50000", "150000", "400000"), "0.75", TierDanger},
		{"loss on zero revenue", financials("0", "10000", "0", "0", "0"), "0", TierDanger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := classifier.Classify(tt.f)
			assertDecimal(t, tt.control, r.ControlRatio)
			assert.Equal(t, tt.tier, r.Tier)
		})
	}
}

func TestRiskClassifier_RootCause(t *testing.T) {
	classifier := NewRiskClassifier(DefaultConfig())

	tests := []struct {
		name  string
		f     OrderFinancials
		cause RootCause
	}{
		{"marketing dominates", financials("1000000", "300000", "20000", "50000", "400000"), RootCauseMarketing},
		{"variable fee dominates", financials("1000000", "20000", "30000", "90000", "400000"), RootCauseVariableFee},
		{"fixed fee dominates", financials("1000000", "20000", "80000", "30000", "400000"), RootCauseFixedFee},
		{"tie goes to marketing", financials("1000000", "100000", "50000", "100000", "400000"), RootCauseMarketing},
		{"fee tie goes to variable", financials("1000000", "10000", "70000", "70000", "400000"), RootCauseVariableFee},
		{"no dominant driver on a loss", financials("100000", "1000", "1000", "1000", "99000"), RootCauseStructural},
		{"no dominant driver on a profit", financials("1000000", "10000", "10000", "10000", "400000"), RootCauseUnclassified},
		{"zero revenue", financials("0", "0", "0", "0", "0"), RootCauseUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.cause, classifier.Classify(tt.f).RootCause)
		})
	}
}

func TestRiskClassifier_BreakEvenPrice(t *testing.T) {
	classifier := NewRiskClassifier(DefaultConfig())

	f := financials("1000000", "100000", "50000", "50000", "400000")
	r := classifier.Classify(f)
	// avg price 100000, unit cogs 40000, control 0.2
	assertDecimal(t, "50000", r.BreakEvenPrice)

	f.ReturnShippingFee = d("20000")
	r = classifier.Classify(f)
	assertDecimal(t, "52500", r.BreakEvenPrice)

	f = financials("1000000", "700000", "200000", "100000", "400000")
	assertDecimal(t, "0", classifier.Classify(f).BreakEvenPrice, "control ratio of 1 has no break-even")

	f = financials("0", "0", "0", "0", "0")
	f.Lines[0].KeptQuantity = 0
	assertDecimal(t, "0", classifier.Classify(f).BreakEvenPrice)
}

func TestRiskClassifier_CustomThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlRatio = Thresholds{Monitor: d("0.1"), Warning: d("0.15")}
	classifier := NewRiskClassifier(cfg)

	r := classifier.Classify(financials("1000000", "100000", "50000", "50000", "400000"))
	assert.Equal(t, TierWarning, r.Tier)
}

func TestParseTier(t *testing.T) {
	tier, ok := ParseTier(" warning ")
	assert.True(t, ok)
	assert.Equal(t, TierWarning, tier)

	_, ok = ParseTier("critical")
	assert.False(t, ok)

	assert.Less(t, TierSafe.Severity(), TierDanger.Severity())
	assert.Equal(t, "Structural loss", RootCauseStructural.Label())
}
