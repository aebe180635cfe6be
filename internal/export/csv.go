// Package export writes computed metrics as CSV files for spreadsheet users.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/metrics"
)

func money(v decimal.Decimal) string {
	return FormatVND(v, 0)
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummary writes the report level figures as metric/value pairs.
func WriteSummary(w io.Writer, res metrics.MetricResult) error {
	t := res.Totals
	rows := [][]string{
		{"Tổng đơn", strconv.Itoa(res.TotalOrders)},
		{"Đơn thành công", strconv.Itoa(res.RealizedOrders)},
		{"Đơn hủy", strconv.Itoa(res.CancelledOrders)},
		{"Đơn hoàn", strconv.Itoa(res.ReturnedOrders)},
		{"Đơn bất thường", strconv.Itoa(res.AnomalousOrders)},
		{"Doanh thu gộp", money(t.GrossRevenue)},
		{"Chi phí marketing", money(t.MarketingCost)},
		{"Phí sàn", money(t.PlatformFee)},
		{"Phí vận chuyển trả hàng", money(t.ReturnShippingFee)},
		{"Doanh thu thuần", money(t.NetProceeds)},
		{"Giá vốn ước tính", money(t.COGS)},
		{"Lợi nhuận ròng", money(t.NetProfit)},
		{"Sau thuế", money(t.TaxNormalizedNet)},
		{"Giá trị đơn trung bình", money(res.AverageOrderValue)},
		{"Tỷ lệ chi phí kiểm soát", FormatPercent(res.ControlRatio)},
		{"Biên lợi nhuận", FormatPercent(res.NetMargin)},
		{"Tỷ lệ hủy", FormatPercent(res.CancelRate)},
		{"Tỷ lệ hoàn", FormatPercent(res.ReturnRate)},
	}
	return writeAll(w, []string{"metric", "value"}, rows)
}

// WriteDaily writes one row per settlement day.
func WriteDaily(w io.Writer, daily []metrics.DailyBucket) error {
	rows := make([][]string, 0, len(daily))
	for _, d := range daily {
		rows = append(rows, []string{
			d.Date,
			strconv.Itoa(d.Orders),
			money(d.GrossRevenue),
			money(d.MarketingCost),
			money(d.PlatformFee),
			money(d.NetProceeds),
			money(d.NetProfit),
		})
	}
	return writeAll(w, []string{"date", "orders", "gross_revenue", "marketing_cost", "platform_fee", "net_proceeds", "net_profit"}, rows)
}

// WriteProducts writes one row per SKU in the order of the result.
func WriteProducts(w io.Writer, products []metrics.ProductBucket) error {
	rows := make([][]string, 0, len(products))
	for _, p := range products {
		rows = append(rows, []string{
			p.SKU,
			p.ProductName,
			strconv.Itoa(p.Orders),
			strconv.Itoa(p.QuantityKept),
			money(p.GrossRevenue),
			money(p.MarketingCost),
			money(p.PlatformFee),
			money(p.NetProceeds),
			money(p.NetProfit),
			FormatPercent(p.Margin),
			string(p.Badge),
		})
	}
	return writeAll(w, []string{"sku", "product_name", "orders", "quantity_kept", "gross_revenue", "marketing_cost", "platform_fee", "net_proceeds", "net_profit", "margin", "badge"}, rows)
}

// WriteLocations writes one row per province.
func WriteLocations(w io.Writer, locations []metrics.LocationBucket) error {
	rows := make([][]string, 0, len(locations))
	for _, l := range locations {
		rows = append(rows, []string{
			l.Province,
			strconv.Itoa(l.Orders),
			money(l.GrossRevenue),
			money(l.NetProceeds),
			money(l.NetProfit),
		})
	}
	return writeAll(w, []string{"province", "orders", "gross_revenue", "net_proceeds", "net_profit"}, rows)
}

// WriteFlagged writes the drill-down list of risky orders.
func WriteFlagged(w io.Writer, orders []metrics.OrderDetail) error {
	rows := make([][]string, 0, len(orders))
	for _, o := range orders {
		if o.Financials == nil || o.Risk == nil {
			continue
		}
		f, r := o.Financials, o.Risk
		rows = append(rows, []string{
			o.OrderID,
			string(r.Tier),
			string(r.RootCause),
			r.RootCause.Label(),
			money(f.GrossRevenue),
			money(f.MarketingCost),
			money(f.PlatformFee),
			money(f.NetProfit),
			FormatPercent(r.ControlRatio),
			money(r.BreakEvenPrice),
		})
	}
	return writeAll(w, []string{"order_id", "tier", "root_cause", "root_cause_label", "gross_revenue", "marketing_cost", "platform_fee", "net_profit", "control_ratio", "break_even_price"}, rows)
}

// WriteReport writes summary, daily, products, locations and flagged order
// files for one report into dir/name and returns their paths.
func WriteReport(dir, name string, report metrics.Report, minTier metrics.Tier) ([]string, error) {
	baseDir := filepath.Join(dir, name)
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export dir %s: %w", baseDir, err)
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"summary.csv", func(w io.Writer) error { return WriteSummary(w, report.Result) }},
		{"daily.csv", func(w io.Writer) error { return WriteDaily(w, report.Result.Daily) }},
		{"products.csv", func(w io.Writer) error { return WriteProducts(w, report.Result.Products) }},
		{"locations.csv", func(w io.Writer) error { return WriteLocations(w, report.Result.Locations) }},
		{"flagged_orders.csv", func(w io.Writer) error { return WriteFlagged(w, report.Flagged(minTier)) }},
	}

	paths := make([]string, 0, len(files))
	for _, file := range files {
		path := filepath.Join(baseDir, file.name)
		if err := writeFile(path, file.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
