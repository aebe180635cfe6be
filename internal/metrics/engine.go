package metrics

import (
	"fmt"
	"sort"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/domain"
)

// OrderDetail is the evaluation of one order group. Financials and Risk are
// set for realized orders only.
type OrderDetail struct {
	OrderID     string           `json:"order_id"`
	Group       OrderGroup       `json:"-"`
	Realization Realization      `json:"realization"`
	Financials  *OrderFinancials `json:"financials,omitempty"`
	Risk        *RiskResult      `json:"risk,omitempty"`
	Diagnostics []Diagnostic     `json:"diagnostics,omitempty"`
}

// Report is the decomposed output of a computation: every evaluated order
// plus the folded metrics.
type Report struct {
	Orders []OrderDetail `json:"orders"`
	Result MetricResult  `json:"result"`
}

// Flagged returns realized orders whose tier is at least minTier, most severe
// first, then by net profit ascending and order id.
func (r Report) Flagged(minTier Tier) []OrderDetail {
	threshold := minTier.Severity()
	out := make([]OrderDetail, 0)
	for _, o := range r.Orders {
		if o.Risk != nil && o.Risk.Tier.Severity() >= threshold {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Risk.Tier.Severity(), out[j].Risk.Tier.Severity()
		if si != sj {
			return si > sj
		}
		pi, pj := out[i].Financials.NetProfit, out[j].Financials.NetProfit
		if !pi.Equal(pj) {
			return pi.LessThan(pj)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out
}

// Engine runs the grouping, realization, aggregation, risk and rollup stages.
// It holds no per-report state and may be shared by goroutines computing
// different reports.
type Engine struct {
	cfg        Config
	classifier *RealizationClassifier
	aggregator *FinancialAggregator
	risk       *RiskClassifier
}

// NewEngine validates cfg and builds the stage components.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("metrics config: %w", err)
	}
	return &Engine{
		cfg:        cfg,
		classifier: NewRealizationClassifier(cfg),
		aggregator: NewFinancialAggregator(cfg),
		risk:       NewRiskClassifier(cfg),
	}, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Compute evaluates every order of one report and folds the results.
func (e *Engine) Compute(lines []domain.OrderLine) Report {
	groups := GroupOrders(lines)
	orders := make([]OrderDetail, 0, len(groups))
	for _, g := range groups {
		orders = append(orders, e.Evaluate(g))
	}
	return Report{
		Orders: orders,
		Result: Rollup(orders),
	}
}

// Evaluate classifies one order group and, when realized, computes its
// financials and risk. A failure inside one group marks that group anomalous
// instead of aborting the report.
func (e *Engine) Evaluate(g OrderGroup) (detail OrderDetail) {
	detail = OrderDetail{OrderID: g.ID, Group: g}

	defer func() {
		if rec := recover(); rec != nil {
			detail.Financials = nil
			detail.Risk = nil
			detail.Realization = Realization{
				Outcome: OutcomeAnomalous,
				Reason:  fmt.Sprintf("evaluation failed: %v", rec),
			}
		}
	}()

	detail.Realization, detail.Diagnostics = e.classifier.Classify(g)
	if !detail.Realization.Realized() {
		return detail
	}

	f := e.aggregator.Aggregate(g)
	r := e.risk.Classify(f)
	detail.Financials = &f
	detail.Risk = &r

	return detail
}

// Compute is the decomposed entry point: it validates cfg, evaluates every
// order and returns per-order details along with the metrics.
func Compute(lines []domain.OrderLine, cfg Config) (Report, error) {
	engine, err := NewEngine(cfg)
	if err != nil {
		return Report{}, err
	}
	return engine.Compute(lines), nil
}

// ComputeMetrics returns the report level metrics of lines. The only error
// is an invalid configuration; input anomalies are reported inside the
// result.
func ComputeMetrics(lines []domain.OrderLine, cfg Config) (MetricResult, error) {
	report, err := Compute(lines, cfg)
	if err != nil {
		return MetricResult{}, err
	}
	return report.Result, nil
}
