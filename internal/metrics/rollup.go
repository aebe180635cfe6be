package metrics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Totals are report level sums over realized orders.
type Totals struct {
	GrossRevenue      decimal.Decimal `json:"gross_revenue"`
	SellerRebate      decimal.Decimal `json:"seller_rebate"`
	VoucherCost       decimal.Decimal `json:"voucher_cost"`
	MarketingCost     decimal.Decimal `json:"marketing_cost"`
	FixedFee          decimal.Decimal `json:"fixed_fee"`
	VariableFee       decimal.Decimal `json:"variable_fee"`
	PlatformFee       decimal.Decimal `json:"platform_fee"`
	ReturnShippingFee decimal.Decimal `json:"return_shipping_fee"`
	NetProceeds       decimal.Decimal `json:"net_proceeds"`
	COGS              decimal.Decimal `json:"cogs"`
	NetProfit         decimal.Decimal `json:"net_profit"`
	TaxNormalizedNet  decimal.Decimal `json:"tax_normalized_net"`
	QuantityKept      int             `json:"quantity_kept"`

	// NetOrderValue is Σ(order total − shop voucher), the AOV numerator.
	NetOrderValue decimal.Decimal `json:"net_order_value"`
}

func (t *Totals) add(f OrderFinancials) {
	t.GrossRevenue = t.GrossRevenue.Add(f.GrossRevenue)
	t.SellerRebate = t.SellerRebate.Add(f.SellerRebate)
	t.VoucherCost = t.VoucherCost.Add(f.VoucherCost)
	t.MarketingCost = t.MarketingCost.Add(f.MarketingCost)
	t.FixedFee = t.FixedFee.Add(f.FixedFee)
	t.VariableFee = t.VariableFee.Add(f.VariableFee)
	t.PlatformFee = t.PlatformFee.Add(f.PlatformFee)
	t.ReturnShippingFee = t.ReturnShippingFee.Add(f.ReturnShippingFee)
	t.NetProceeds = t.NetProceeds.Add(f.NetProceeds)
	t.COGS = t.COGS.Add(f.COGS)
	t.NetProfit = t.NetProfit.Add(f.NetProfit)
	t.TaxNormalizedNet = t.TaxNormalizedNet.Add(f.TaxNormalizedNet)
	t.NetOrderValue = t.NetOrderValue.Add(f.OrderTotalAmount.Sub(f.ShopVoucher))
	for _, l := range f.Lines {
		t.QuantityKept += l.KeptQuantity
	}
}

// DailyBucket aggregates realized orders settled on one calendar day.
type DailyBucket struct {
	Date          string          `json:"date"`
	Orders        int             `json:"orders"`
	GrossRevenue  decimal.Decimal `json:"gross_revenue"`
	MarketingCost decimal.Decimal `json:"marketing_cost"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	NetProceeds   decimal.Decimal `json:"net_proceeds"`
	NetProfit     decimal.Decimal `json:"net_profit"`
}

// ProductBucket aggregates the line level figures of one SKU.
type ProductBucket struct {
	SKU               string          `json:"sku"`
	Unknown           bool            `json:"unknown,omitempty"`
	ProductName       string          `json:"product_name"`
	Orders            int             `json:"orders"`
	QuantityKept      int             `json:"quantity_kept"`
	GrossRevenue      decimal.Decimal `json:"gross_revenue"`
	MarketingCost     decimal.Decimal `json:"marketing_cost"`
	PlatformFee       decimal.Decimal `json:"platform_fee"`
	ReturnShippingFee decimal.Decimal `json:"return_shipping_fee"`
	NetProceeds       decimal.Decimal `json:"net_proceeds"`
	COGS              decimal.Decimal `json:"cogs"`
	NetProfit         decimal.Decimal `json:"net_profit"`
	Margin            decimal.Decimal `json:"margin"`
	Badge             Badge           `json:"badge"`
}

// LocationBucket aggregates realized orders shipped to one province.
type LocationBucket struct {
	Province     string          `json:"province"`
	Unknown      bool            `json:"unknown,omitempty"`
	Orders       int             `json:"orders"`
	GrossRevenue decimal.Decimal `json:"gross_revenue"`
	NetProceeds  decimal.Decimal `json:"net_proceeds"`
	NetProfit    decimal.Decimal `json:"net_profit"`
}

// ReasonCount is one row of a cancel-reason or return-status table.
type ReasonCount struct {
	Reason  string `json:"reason"`
	Unknown bool   `json:"unknown,omitempty"`
	Count   int    `json:"count"`
}

// TierCount is one row of the tier histogram.
type TierCount struct {
	Tier  Tier `json:"tier"`
	Count int  `json:"count"`
}

// RootCauseCount is one row of the root-cause histogram.
type RootCauseCount struct {
	RootCause RootCause `json:"root_cause"`
	Label     string    `json:"label"`
	Count     int       `json:"count"`
}

// MetricResult is the full set of report level metrics. It is built fresh
// by every computation and every sequence in it has a stated order, so equal
// inputs always produce equal results.
type MetricResult struct {
	TotalOrders     int `json:"total_orders"`
	RealizedOrders  int `json:"realized_orders"`
	CancelledOrders int `json:"cancelled_orders"`
	ReturnedOrders  int `json:"returned_orders"`
	AnomalousOrders int `json:"anomalous_orders"`

	Totals Totals `json:"totals"`

	// AverageOrderValue is Σ(order total − shop voucher) / realized orders.
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	ControlRatio      decimal.Decimal `json:"control_ratio"`
	NetMargin         decimal.Decimal `json:"net_margin"`
	CancelRate        decimal.Decimal `json:"cancel_rate"`
	ReturnRate        decimal.Decimal `json:"return_rate"`

	Daily          []DailyBucket    `json:"daily"`
	Products       []ProductBucket  `json:"products"`
	Locations      []LocationBucket `json:"locations"`
	CancelReasons  []ReasonCount    `json:"cancel_reasons"`
	ReturnStatuses []ReasonCount    `json:"return_statuses"`
	Tiers          []TierCount      `json:"tiers"`
	RootCauses     []RootCauseCount `json:"root_causes"`
	Diagnostics    []Diagnostic     `json:"diagnostics"`
	Anomalies      []Anomaly        `json:"anomalies"`
}

// TopProducts returns at most n products, already ordered by net revenue.
func (m MetricResult) TopProducts(n int) []ProductBucket {
	if n < 0 || n >= len(m.Products) {
		return m.Products
	}
	return m.Products[:n]
}

// accumulator folds per-order results. Every update is a commutative sum or
// count, so the order in which orders are folded never changes a figure.
type accumulator struct {
	res       MetricResult
	daily     map[string]*DailyBucket
	products  map[string]*ProductBucket
	locations map[string]*LocationBucket
	cancels   map[string]int
	returns   map[string]int
	tiers     map[Tier]int
	causes    map[RootCause]int
}

func newAccumulator() *accumulator {
	return &accumulator{
		daily:     make(map[string]*DailyBucket),
		products:  make(map[string]*ProductBucket),
		locations: make(map[string]*LocationBucket),
		cancels:   make(map[string]int),
		returns:   make(map[string]int),
		tiers:     make(map[Tier]int),
		causes:    make(map[RootCause]int),
	}
}

// Rollup folds every evaluated order of a report into a MetricResult.
func Rollup(orders []OrderDetail) MetricResult {
	acc := newAccumulator()
	for _, o := range orders {
		acc.add(o)
	}
	return acc.result()
}

func (a *accumulator) add(o OrderDetail) {
	a.res.TotalOrders++
	a.res.Diagnostics = append(a.res.Diagnostics, o.Diagnostics...)
	header := o.Group.Header()

	switch o.Realization.Outcome {
	case OutcomeCancelled:
		a.res.CancelledOrders++
		a.cancels[bucketKey(o.Realization.Reason)]++
		return
	case OutcomeReturned:
		a.res.ReturnedOrders++
		a.returns[bucketKey(o.Realization.Reason)]++
		return
	case OutcomeAnomalous:
		a.res.AnomalousOrders++
		a.res.Anomalies = append(a.res.Anomalies, Anomaly{OrderID: o.OrderID, Reason: o.Realization.Reason})
		return
	}

	if o.Financials == nil || o.Risk == nil {
		// Realized orders always carry both; treat a gap as anomalous
		// rather than dropping the order from the count.
		a.res.AnomalousOrders++
		a.res.Anomalies = append(a.res.Anomalies, Anomaly{OrderID: o.OrderID, Reason: "realized order without financials"})
		return
	}

	f := *o.Financials
	a.res.RealizedOrders++
	a.res.Totals.add(f)
	a.tiers[o.Risk.Tier]++
	a.causes[o.Risk.RootCause]++

	day, diags := bucketDay(o.OrderID, header.PayoutDate, header.OrderDate)
	a.res.Diagnostics = append(a.res.Diagnostics, diags...)
	d := a.daily[day]
	if d == nil {
		d = &DailyBucket{Date: day}
		a.daily[day] = d
	}
	d.Orders++
	d.GrossRevenue = d.GrossRevenue.Add(f.GrossRevenue)
	d.MarketingCost = d.MarketingCost.Add(f.MarketingCost)
	d.PlatformFee = d.PlatformFee.Add(f.PlatformFee)
	d.NetProceeds = d.NetProceeds.Add(f.NetProceeds)
	d.NetProfit = d.NetProfit.Add(f.NetProfit)

	province := bucketKey(norm.NFC.String(header.Province))
	loc := a.locations[province]
	if loc == nil {
		loc = &LocationBucket{Province: province}
		a.locations[province] = loc
	}
	loc.Orders++
	loc.GrossRevenue = loc.GrossRevenue.Add(f.GrossRevenue)
	loc.NetProceeds = loc.NetProceeds.Add(f.NetProceeds)
	loc.NetProfit = loc.NetProfit.Add(f.NetProfit)

	seen := make(map[string]bool, len(f.Lines))
	for _, l := range f.Lines {
		sku := bucketKey(l.SKU)
		p := a.products[sku]
		if p == nil {
			p = &ProductBucket{SKU: sku}
			a.products[sku] = p
		}
		if !seen[sku] {
			seen[sku] = true
			p.Orders++
		}
		// The smallest non-empty name keeps the label stable whatever the
		// input order.
		name := strings.TrimSpace(l.ProductName)
		if name != "" && (p.ProductName == "" || name < p.ProductName) {
			p.ProductName = name
		}
		p.QuantityKept += l.KeptQuantity
		p.GrossRevenue = p.GrossRevenue.Add(l.GrossRevenue)
		p.MarketingCost = p.MarketingCost.Add(l.MarketingCost())
		p.PlatformFee = p.PlatformFee.Add(l.PlatformFee)
		p.ReturnShippingFee = p.ReturnShippingFee.Add(l.ReturnFee)
		p.NetProceeds = p.NetProceeds.Add(l.NetProceeds())
		p.COGS = p.COGS.Add(l.COGS)
		p.NetProfit = p.NetProfit.Add(l.NetProfit())
	}
}

func (a *accumulator) result() MetricResult {
	res := a.res
	t := res.Totals

	res.AverageOrderValue = ratio(t.NetOrderValue, qty(res.RealizedOrders))
	res.ControlRatio = ratio(t.MarketingCost.Add(t.PlatformFee), t.GrossRevenue)
	res.NetMargin = ratio(t.NetProfit, t.GrossRevenue)
	res.CancelRate = ratio(qty(res.CancelledOrders), qty(res.TotalOrders))
	res.ReturnRate = ratio(qty(res.ReturnedOrders), qty(res.TotalOrders))

	res.Daily = make([]DailyBucket, 0, len(a.daily))
	for _, d := range a.daily {
		res.Daily = append(res.Daily, *d)
	}
	sort.Slice(res.Daily, func(i, j int) bool {
		di, dj := res.Daily[i].Date, res.Daily[j].Date
		if (di == UnknownKey) != (dj == UnknownKey) {
			return dj == UnknownKey
		}
		return di < dj
	})

	res.Products = make([]ProductBucket, 0, len(a.products))
	for _, p := range a.products {
		p.Margin = ratio(p.NetProfit, p.GrossRevenue)
		res.Products = append(res.Products, *p)
	}
	assignBadges(res.Products)
	sort.Slice(res.Products, func(i, j int) bool {
		pi, pj := res.Products[i], res.Products[j]
		if !pi.NetProceeds.Equal(pj.NetProceeds) {
			return pi.NetProceeds.GreaterThan(pj.NetProceeds)
		}
		return pi.SKU < pj.SKU
	})
	for i := range res.Products {
		res.Products[i].SKU, res.Products[i].Unknown = bucketLabel(res.Products[i].SKU)
	}

	res.Locations = make([]LocationBucket, 0, len(a.locations))
	for _, l := range a.locations {
		res.Locations = append(res.Locations, *l)
	}
	sort.Slice(res.Locations, func(i, j int) bool {
		li, lj := res.Locations[i], res.Locations[j]
		if !li.NetProceeds.Equal(lj.NetProceeds) {
			return li.NetProceeds.GreaterThan(lj.NetProceeds)
		}
		return li.Province < lj.Province
	})
	for i := range res.Locations {
		res.Locations[i].Province, res.Locations[i].Unknown = bucketLabel(res.Locations[i].Province)
	}

	res.CancelReasons = reasonTable(a.cancels)
	res.ReturnStatuses = reasonTable(a.returns)

	res.Tiers = make([]TierCount, 0, len(Tiers))
	for _, tier := range Tiers {
		res.Tiers = append(res.Tiers, TierCount{Tier: tier, Count: a.tiers[tier]})
	}
	res.RootCauses = make([]RootCauseCount, 0, len(RootCauses))
	for _, cause := range RootCauses {
		res.RootCauses = append(res.RootCauses, RootCauseCount{RootCause: cause, Label: cause.Label(), Count: a.causes[cause]})
	}

	if res.Diagnostics == nil {
		res.Diagnostics = []Diagnostic{}
	}
	if res.Anomalies == nil {
		res.Anomalies = []Anomaly{}
	}
	sortDiagnostics(res.Diagnostics)
	sortAnomalies(res.Anomalies)

	return res
}

func reasonTable(counts map[string]int) []ReasonCount {
	rows := make([]ReasonCount, 0, len(counts))
	for reason, n := range counts {
		rows = append(rows, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Reason < rows[j].Reason
	})
	for i := range rows {
		rows[i].Reason, rows[i].Unknown = bucketLabel(rows[i].Reason)
	}
	return rows
}

// bucketKey is the grouping key of a SKU, province or reason. A missing
// value keys as "" so it never merges with a real value spelled "unknown";
// sorting runs on keys, then bucketLabel renames it.
func bucketKey(s string) string {
	return strings.TrimSpace(s)
}

func bucketLabel(key string) (string, bool) {
	if key == "" {
		return UnknownKey, true
	}
	return key, false
}
