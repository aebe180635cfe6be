package metrics

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is the warning level of a realized order.
type Tier string

const (
	TierSafe    Tier = "SAFE"
	TierMonitor Tier = "MONITOR"
	TierWarning Tier = "WARNING"
	TierDanger  Tier = "DANGER"
)

// Tiers lists every tier from least to most severe.
var Tiers = []Tier{TierSafe, TierMonitor, TierWarning, TierDanger}

// Severity orders tiers, SAFE being 0.
func (t Tier) Severity() int {
	for i, tier := range Tiers {
		if tier == t {
			return i
		}
	}
	return -1
}

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Severity() >= 0
}

// RootCause is the dominant cost driver behind an order's margin.
type RootCause string

const (
	RootCauseMarketing    RootCause = "A"
	RootCauseVariableFee  RootCause = "B"
	RootCauseFixedFee     RootCause = "C"
	RootCauseStructural   RootCause = "D"
	RootCauseUnclassified RootCause = "E"
)

// RootCauses lists every root cause in tie-break order.
var RootCauses = []RootCause{
	RootCauseMarketing,
	RootCauseVariableFee,
	RootCauseFixedFee,
	RootCauseStructural,
	RootCauseUnclassified,
}

var rootCauseLabels = map[RootCause]string{
	RootCauseMarketing:    "Voucher / marketing",
	RootCauseVariableFee:  "Variable platform fee",
	RootCauseFixedFee:     "Fixed platform fee",
	RootCauseStructural:   "Structural loss",
	RootCauseUnclassified: "Unclassified",
}

// Label returns a human-readable name for the root cause.
func (c RootCause) Label() string {
	if label, ok := rootCauseLabels[c]; ok {
		return label
	}
	return "Unknown"
}

// RiskResult is the risk classification of one realized order.
type RiskResult struct {
	OrderID          string          `json:"order_id"`
	ControlRatio     decimal.Decimal `json:"control_ratio"`
	MarketingShare   decimal.Decimal `json:"marketing_share"`
	VariableFeeShare decimal.Decimal `json:"variable_fee_share"`
	FixedFeeShare    decimal.Decimal `json:"fixed_fee_share"`
	NetMargin        decimal.Decimal `json:"net_margin"`
	Tier             Tier            `json:"tier"`
	RootCause        RootCause       `json:"root_cause"`

	// BreakEvenPrice is advisory only and never feeds other computations.
	BreakEvenPrice decimal.Decimal `json:"break_even_price"`
}

// RiskClassifier assigns tiers and root causes from configured thresholds.
type RiskClassifier struct {
	monitor        decimal.Decimal
	warning        decimal.Decimal
	lossThreshold  decimal.Decimal
	dominanceShare decimal.Decimal
	cogsRate       decimal.Decimal
}

// NewRiskClassifier creates a classifier from cfg.
func NewRiskClassifier(cfg Config) *RiskClassifier {
	return &RiskClassifier{
		monitor:        cfg.ControlRatio.Monitor,
		warning:        cfg.ControlRatio.Warning,
		lossThreshold:  cfg.LossThreshold,
		dominanceShare: cfg.DominanceShare,
		cogsRate:       cfg.COGSRate,
	}
}

// Classify computes the control ratio, tier, root cause and break-even price
// of a realized order.
func (c *RiskClassifier) Classify(f OrderFinancials) RiskResult {
	gross := f.GrossRevenue
	r := RiskResult{
		OrderID:          f.OrderID,
		ControlRatio:     ratio(f.MarketingCost.Add(f.PlatformFee), gross),
		MarketingShare:   ratio(f.MarketingCost, gross),
		VariableFeeShare: ratio(f.VariableFee, gross),
		FixedFeeShare:    ratio(f.FixedFee, gross),
		NetMargin:        ratio(f.NetProfit, gross),
	}

	r.Tier = c.tier(r.ControlRatio, f.NetProfit, gross)
	r.RootCause = c.rootCause(r, f.NetProfit, gross)
	r.BreakEvenPrice = c.breakEvenPrice(f, r.ControlRatio)

	return r
}

func (c *RiskClassifier) tier(control, netProfit, gross decimal.Decimal) Tier {
	if netProfit.IsNegative() {
		if !gross.IsPositive() {
			return TierDanger
		}
		loss := netProfit.Neg().Div(gross)
		if loss.GreaterThan(c.lossThreshold) {
			return TierDanger
		}
		return TierWarning
	}

	switch {
	case control.LessThan(c.monitor):
		return TierSafe
	case control.LessThan(c.warning):
		return TierMonitor
	default:
		return TierWarning
	}
}

// rootCause picks the largest of the marketing, variable fee and fixed fee
// shares, ties resolved A > B > C. A share below the dominance share does not
// count as a driver; the order is then structural (D) when it loses money
// and unclassified (E) otherwise.
func (c *RiskClassifier) rootCause(r RiskResult, netProfit, gross decimal.Decimal) RootCause {
	if !gross.IsPositive() {
		return RootCauseUnclassified
	}

	best, bestShare := RootCauseUnclassified, zero
	candidates := []struct {
		cause RootCause
		share decimal.Decimal
	}{
		{RootCauseMarketing, r.MarketingShare},
		{RootCauseVariableFee, r.VariableFeeShare},
		{RootCauseFixedFee, r.FixedFeeShare},
	}
	for _, cand := range candidates {
		if cand.share.GreaterThan(bestShare) {
			best, bestShare = cand.cause, cand.share
		}
	}

	if best != RootCauseUnclassified && bestShare.GreaterThanOrEqual(c.dominanceShare) {
		return best
	}
	if netProfit.IsNegative() {
		return RootCauseStructural
	}
	return RootCauseUnclassified
}

// breakEvenPrice is the unit list price at which net profit would be zero,
// holding the control ratio constant and COGS anchored at the current
// average price: (COGS per unit + return shipping per unit) / (1 - control).
// Zero when undefined (nothing kept, or control costs eat all revenue).
func (c *RiskClassifier) breakEvenPrice(f OrderFinancials, control decimal.Decimal) decimal.Decimal {
	kept := 0
	for _, l := range f.Lines {
		kept += l.KeptQuantity
	}
	margin := one.Sub(control)
	if kept == 0 || !margin.IsPositive() {
		return zero
	}

	units := qty(kept)
	avgPrice := f.GrossRevenue.Div(units)
	unitCost := avgPrice.Mul(c.cogsRate).Add(f.ReturnShippingFee.Div(units))

	return unitCost.Div(margin)
}
