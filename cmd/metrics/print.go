package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/drive"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/export"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/metrics"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/pipeline"
)

func printResult(w io.Writer, res *metrics.MetricResult, top int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	t := res.Totals

	fmt.Fprintf(tw, "Orders\t%d\trealized %d, cancelled %d, returned %d, anomalous %d\n",
		res.TotalOrders, res.RealizedOrders, res.CancelledOrders, res.ReturnedOrders, res.AnomalousOrders)
	fmt.Fprintf(tw, "Gross revenue\t%s\n", export.FormatVND(t.GrossRevenue, 0))
	fmt.Fprintf(tw, "Marketing cost\t%s\n", export.FormatVND(t.MarketingCost, 0))
	fmt.Fprintf(tw, "Platform fee\t%s\n", export.FormatVND(t.PlatformFee, 0))
	fmt.Fprintf(tw, "Return shipping\t%s\n", export.FormatVND(t.ReturnShippingFee, 0))
	fmt.Fprintf(tw, "Net proceeds\t%s\n", export.FormatVND(t.NetProceeds, 0))
	fmt.Fprintf(tw, "COGS\t%s\n", export.FormatVND(t.COGS, 0))
	fmt.Fprintf(tw, "Net profit\t%s\n", export.FormatVND(t.NetProfit, 0))
	fmt.Fprintf(tw, "Tax-normalized net\t%s\n", export.FormatVND(t.TaxNormalizedNet, 0))
	fmt.Fprintf(tw, "AOV\t%s\n", export.FormatVND(res.AverageOrderValue, 0))
	fmt.Fprintf(tw, "Control ratio\t%s\n", export.FormatPercent(res.ControlRatio))
	fmt.Fprintf(tw, "Net margin\t%s\n", export.FormatPercent(res.NetMargin))
	fmt.Fprintf(tw, "Cancel rate\t%s\n", export.FormatPercent(res.CancelRate))
	fmt.Fprintf(tw, "Return rate\t%s\n", export.FormatPercent(res.ReturnRate))

	for _, tc := range res.Tiers {
		fmt.Fprintf(tw, "Tier %s\t%d\n", tc.Tier, tc.Count)
	}
	for _, rc := range res.RootCauses {
		fmt.Fprintf(tw, "Root cause %s\t%d\n", rc.Label, rc.Count)
	}
	tw.Flush()

	products := res.TopProducts(top)
	if len(products) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "SKU\tQty\tGross\tNet profit\tMargin\t")
		for _, p := range products {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t\n", p.SKU, p.QuantityKept,
				export.FormatVND(p.GrossRevenue, 0), export.FormatVND(p.NetProfit, 0), export.FormatPercent(p.Margin))
		}
		tw.Flush()
	}

	if len(res.Anomalies) > 0 {
		fmt.Fprintf(w, "\n%d anomalous orders excluded:\n", len(res.Anomalies))
		for _, a := range res.Anomalies {
			fmt.Fprintf(w, "  %s: %s\n", a.OrderID, a.Reason)
		}
	}
}

func printFlagged(w io.Writer, orders []metrics.OrderDetail) {
	fmt.Fprintf(w, "\n%d flagged orders\n", len(orders))
	if len(orders) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Order\tTier\tControl ratio\tNet margin\tRoot cause\tBreak-even")
	for _, o := range orders {
		r := o.Risk
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", o.OrderID, r.Tier,
			export.FormatPercent(r.ControlRatio), export.FormatPercent(r.NetMargin),
			r.RootCause, export.FormatVND(r.BreakEvenPrice, 0))
	}
	tw.Flush()
}

func printBatch(w io.Writer, summary *pipeline.BatchSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Export\tStatus\tLines\tOrders\tFlagged\tNet profit\tReport")
	for _, job := range summary.Jobs {
		if job.Status != pipeline.FileStatusCompleted {
			fmt.Fprintf(tw, "%s\t%s\t\t\t\t%s\t\n", job.Name, job.Status, job.ErrorMessage)
			continue
		}
		report := "-"
		if job.ReportID != 0 {
			report = fmt.Sprintf("#%d", job.ReportID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n", job.Name, job.Status, job.Lines,
			job.Result.TotalOrders, job.Flagged, export.FormatVND(job.Result.Totals.NetProfit, 0), report)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d completed, %d failed in %s\n", summary.Completed, summary.Failed, summary.Duration.Round(time.Millisecond))
}

func printImports(w io.Writer, results []drive.ImportResult) {
	for _, res := range results {
		fmt.Fprintf(w, "#%d\t%s\t%d lines, %d skipped, %d warnings\n",
			res.ReportID, res.File, res.Lines, res.Skipped, res.Warnings)
	}
}
