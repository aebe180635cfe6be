package metrics

import "github.com/shopspring/decimal"

// LineFinancials is the share of an order's figures attributable to one
// product line. Order level amounts (voucher, platform fee, return shipping)
// are allocated by the line's share of gross revenue so that the lines of an
// order always add up to the order figures.
type LineFinancials struct {
	SKU          string          `json:"sku"`
	ProductName  string          `json:"product_name"`
	Quantity     int             `json:"quantity"`
	KeptQuantity int             `json:"kept_quantity"`
	GrossRevenue decimal.Decimal `json:"gross_revenue"`
	SellerRebate decimal.Decimal `json:"seller_rebate"`
	VoucherCost  decimal.Decimal `json:"voucher_cost"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	ReturnFee    decimal.Decimal `json:"return_shipping_fee"`
	COGS         decimal.Decimal `json:"cogs"`
}

// MarketingCost is the prorated seller rebate plus the allocated voucher.
func (l LineFinancials) MarketingCost() decimal.Decimal {
	return l.SellerRebate.Add(l.VoucherCost)
}

// NetProceeds mirrors OrderFinancials.NetProceeds at line level.
func (l LineFinancials) NetProceeds() decimal.Decimal {
	return l.GrossRevenue.Sub(l.MarketingCost()).Sub(l.ReturnFee)
}

// NetProfit mirrors OrderFinancials.NetProfit at line level.
func (l LineFinancials) NetProfit() decimal.Decimal {
	return l.NetProceeds().Sub(l.PlatformFee).Sub(l.COGS)
}

// OrderFinancials holds the weighted financial components of a realized
// order.
type OrderFinancials struct {
	OrderID string `json:"order_id"`

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

	// Buyer side amounts used by the strict average order value.
	OrderTotalAmount decimal.Decimal `json:"order_total_amount"`
	ShopVoucher      decimal.Decimal `json:"shop_voucher"`

	Lines []LineFinancials `json:"lines"`
}

// FinancialAggregator computes OrderFinancials for realized order groups.
type FinancialAggregator struct {
	cogsRate   decimal.Decimal
	taxDivisor decimal.Decimal
}

// NewFinancialAggregator creates an aggregator using the COGS rate and tax
// divisor of cfg.
func NewFinancialAggregator(cfg Config) *FinancialAggregator {
	return &FinancialAggregator{
		cogsRate:   cfg.COGSRate,
		taxDivisor: cfg.TaxDivisor,
	}
}

// Aggregate computes the financial components of g. It is a total function:
// absent amounts are zero and every ratio with a zero denominator is zero.
// Partial returns are honored through the per-line and order level
// retention ratios; callers only pass groups that were classified realized.
func (a *FinancialAggregator) Aggregate(g OrderGroup) OrderFinancials {
	header := g.Header()
	f := OrderFinancials{
		OrderID:          g.ID,
		OrderTotalAmount: header.OrderTotalAmount,
		ShopVoucher:      header.ShopVoucher,
		Lines:            make([]LineFinancials, len(g.Lines)),
	}

	// 1. Per line: kept quantity, revenue at list price, prorated rebate
	totalQty, returnedQty := 0, 0
	for i, line := range g.Lines {
		kept := max(line.Quantity-line.ReturnQuantity, 0)
		lf := LineFinancials{
			SKU:          line.SKU,
			ProductName:  line.ProductName,
			Quantity:     line.Quantity,
			KeptQuantity: kept,
			GrossRevenue: line.OriginalPrice.Mul(qty(kept)),
			SellerRebate: scale(line.SellerRebate, kept, line.Quantity),
		}
		lf.COGS = lf.GrossRevenue.Mul(a.cogsRate)
		f.Lines[i] = lf

		f.GrossRevenue = f.GrossRevenue.Add(lf.GrossRevenue)
		f.SellerRebate = f.SellerRebate.Add(lf.SellerRebate)
		totalQty += line.Quantity
		returnedQty += line.ReturnQuantity
	}

	// 2. Order level retention ratio, kept = max(total - returned, 0)
	keptQty := max(totalQty-returnedQty, 0)

	// 3. Shop voucher scaled by retention
	f.VoucherCost = scale(header.ShopVoucher, keptQty, totalQty)
	f.MarketingCost = f.SellerRebate.Add(f.VoucherCost)

	// 4. Platform fee scaled by retention
	f.FixedFee = scale(header.FixedFee, keptQty, totalQty)
	f.VariableFee = scale(header.ServiceFee.Add(header.PaymentFee), keptQty, totalQty)
	f.PlatformFee = f.FixedFee.Add(f.VariableFee)

	// 5. Return shipping is incurred at order level, passed through unscaled
	f.ReturnShippingFee = header.ReturnShippingFee

	// 6. Net proceeds
	f.NetProceeds = f.GrossRevenue.Sub(f.MarketingCost).Sub(f.ReturnShippingFee)

	// 7. COGS estimate
	f.COGS = f.GrossRevenue.Mul(a.cogsRate)

	// 8. Net profit
	f.NetProfit = f.NetProceeds.Sub(f.PlatformFee).Sub(f.COGS)

	// 9. After-tax view, reported separately from net profit
	f.TaxNormalizedNet = ratio(f.NetProceeds.Sub(f.PlatformFee).Sub(f.ReturnShippingFee), a.taxDivisor)

	allocate(f.Lines, f.VoucherCost, func(l *LineFinancials, v decimal.Decimal) { l.VoucherCost = v })
	allocate(f.Lines, f.PlatformFee, func(l *LineFinancials, v decimal.Decimal) { l.PlatformFee = v })
	allocate(f.Lines, f.ReturnShippingFee, func(l *LineFinancials, v decimal.Decimal) { l.ReturnFee = v })

	return f
}

// allocate spreads an order level amount over lines by gross revenue share,
// falling back to kept quantity share, and finally to a single line. One
// line takes the remainder so the parts sum exactly to amount; it is picked
// by content, never by position, so reordering the lines of an order gives
// every line the same share.
func allocate(lines []LineFinancials, amount decimal.Decimal, set func(*LineFinancials, decimal.Decimal)) {
	if len(lines) == 0 || amount.IsZero() {
		return
	}

	weights := make([]decimal.Decimal, len(lines))
	total := zero
	for i, l := range lines {
		weights[i] = l.GrossRevenue
		total = total.Add(l.GrossRevenue)
	}
	if total.IsZero() {
		for i, l := range lines {
			weights[i] = qty(l.KeptQuantity)
			total = total.Add(weights[i])
		}
	}

	receiver := remainderLine(lines, weights)
	if total.IsZero() {
		set(&lines[receiver], amount)
		return
	}

	assigned := zero
	for i := range lines {
		if i == receiver {
			continue
		}
		part := zero
		if !weights[i].IsZero() {
			part = amount.Mul(weights[i]).Div(total)
		}
		set(&lines[i], part)
		assigned = assigned.Add(part)
	}
	set(&lines[receiver], amount.Sub(assigned))
}

// remainderLine returns the line with the largest weight, ties broken by
// lineBefore.
func remainderLine(lines []LineFinancials, weights []decimal.Decimal) int {
	best := 0
	for i := 1; i < len(lines); i++ {
		switch weights[i].Cmp(weights[best]) {
		case 1:
			best = i
		case 0:
			if lineBefore(lines[i], lines[best]) {
				best = i
			}
		}
	}
	return best
}

// lineBefore is a total order on line content. Lines equal under it are
// interchangeable for every per-SKU figure.
func lineBefore(a, b LineFinancials) bool {
	if a.SKU != b.SKU {
		return a.SKU < b.SKU
	}
	if a.ProductName != b.ProductName {
		return a.ProductName < b.ProductName
	}
	if a.Quantity != b.Quantity {
		return a.Quantity < b.Quantity
	}
	if a.KeptQuantity != b.KeptQuantity {
		return a.KeptQuantity < b.KeptQuantity
	}
	if c := a.GrossRevenue.Cmp(b.GrossRevenue); c != 0 {
		return c < 0
	}
	return a.SellerRebate.LessThan(b.SellerRebate)
}
