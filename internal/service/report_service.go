package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/cache"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/domain"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/metrics"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/repository"
)

const defaultOverviewParallelism = 4

// ErrNoReports is returned by Overview when called without report ids.
var ErrNoReports = errors.New("no report ids given")

// ChannelSummary is the metric result of one report inside an overview.
type ChannelSummary struct {
	Report domain.Report        `json:"report"`
	Result metrics.MetricResult `json:"result"`
}

// Overview combines the reports of several channels. Combined figures are
// plain sums of the channel totals; ratios and AOV are recomputed from the
// sums. Order counts reconcile: total = realized + cancelled + returned +
// anomalous.
type Overview struct {
	Channels          []ChannelSummary `json:"channels"`
	Totals            metrics.Totals   `json:"totals"`
	TotalOrders       int              `json:"total_orders"`
	RealizedOrders    int              `json:"realized_orders"`
	CancelledOrders   int              `json:"cancelled_orders"`
	ReturnedOrders    int              `json:"returned_orders"`
	AnomalousOrders   int              `json:"anomalous_orders"`
	AverageOrderValue decimal.Decimal  `json:"average_order_value"`
	ControlRatio      decimal.Decimal  `json:"control_ratio"`
	NetMargin         decimal.Decimal  `json:"net_margin"`
}

type ReportService struct {
	repo        repository.ReportRepository
	cache       cache.MetricsCache
	engine      *metrics.Engine
	fingerprint string
	parallelism int
	instr       *Instrumentation
}

type ReportServiceOption func(*ReportService)

// WithOverviewParallelism bounds how many reports Overview loads at once.
func WithOverviewParallelism(n int) ReportServiceOption {
	return func(s *ReportService) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithInstrumentation reports to the given collectors, typically built on the
// registry the server exposes.
func WithInstrumentation(in *Instrumentation) ReportServiceOption {
	return func(s *ReportService) {
		if in != nil {
			s.instr = in
		}
	}
}

func NewReportService(repo repository.ReportRepository, cacheImpl cache.MetricsCache, engine *metrics.Engine, opts ...ReportServiceOption) *ReportService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopMetricsCache()
	}
	s := &ReportService{
		repo:        repo,
		cache:       cacheImpl,
		engine:      engine,
		fingerprint: engine.Config().Fingerprint(),
		parallelism: defaultOverviewParallelism,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.instr == nil {
		s.instr = NewInstrumentation(nil)
	}
	return s
}

// Instrumentation returns the collectors the service reports to.
func (s *ReportService) Instrumentation() *Instrumentation {
	return s.instr
}

func (s *ReportService) ListReports(ctx context.Context) ([]domain.Report, error) {
	reports, err := s.repo.ListReports(ctx)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = make([]domain.Report, 0)
	}
	return reports, nil
}

// Metrics returns the metric result of a stored report. Lookups go cache,
// then persisted snapshot, then a fresh computation which is written back to
// both.
func (s *ReportService) Metrics(ctx context.Context, reportID int64) (*metrics.MetricResult, error) {
	if result, ok, err := s.cache.Get(ctx, reportID, s.fingerprint); err == nil && ok {
		s.instr.served(SourceCache)
		return result, nil
	} else if err != nil {
		s.instr.cacheFailed()
		log.Warn().Err(err).Int64("report_id", reportID).Msg("metrics: cache get failed")
	}

	result, err := s.loadSnapshot(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if result != nil {
		s.instr.served(SourceSnapshot)
		s.storeCache(ctx, reportID, result)
		return result, nil
	}

	report, err := s.computeStored(ctx, reportID, "report")
	if err != nil {
		return nil, err
	}
	result = &report.Result

	if err := s.saveSnapshot(ctx, reportID, result); err != nil {
		log.Warn().Err(err).Int64("report_id", reportID).Msg("metrics: save snapshot failed")
	}
	s.storeCache(ctx, reportID, result)
	s.instr.served(SourceEngine)

	return result, nil
}

// Orders returns the realized orders of a report at or above minTier, most
// severe first. Per-order details are never cached, the report is recomputed.
func (s *ReportService) Orders(ctx context.Context, reportID int64, minTier metrics.Tier) ([]metrics.OrderDetail, error) {
	if minTier.Severity() < 0 {
		return nil, fmt.Errorf("unknown tier %q", minTier)
	}

	report, err := s.computeStored(ctx, reportID, "orders")
	if err != nil {
		return nil, err
	}
	return report.Flagged(minTier), nil
}

// Overview loads the metrics of every report in parallel and sums them.
// Channels keep the order of reportIDs.
func (s *ReportService) Overview(ctx context.Context, reportIDs []int64) (*Overview, error) {
	if len(reportIDs) == 0 {
		return nil, ErrNoReports
	}

	channels := make([]ChannelSummary, len(reportIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	for i, id := range reportIDs {
		g.Go(func() error {
			report, err := s.repo.GetReport(gctx, id)
			if err != nil {
				return fmt.Errorf("report %d: %w", id, err)
			}
			result, err := s.Metrics(gctx, id)
			if err != nil {
				return fmt.Errorf("report %d: %w", id, err)
			}
			channels[i] = ChannelSummary{Report: *report, Result: *result}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return combine(channels), nil
}

// ComputeLines runs the engine over lines that were never stored, such as an
// uploaded export.
func (s *ReportService) ComputeLines(ctx context.Context, lines []domain.OrderLine) (metrics.Report, error) {
	if err := ctx.Err(); err != nil {
		return metrics.Report{}, err
	}

	start := time.Now()
	report := s.engine.Compute(lines)
	s.instr.observeCompute("adhoc", start, report)
	s.instr.served(SourceEngine)

	return report, nil
}

// Invalidate drops cached results of a report, e.g. after its lines change.
func (s *ReportService) Invalidate(ctx context.Context, reportID int64) error {
	return s.cache.InvalidateReport(ctx, reportID)
}

func (s *ReportService) computeStored(ctx context.Context, reportID int64, operation string) (metrics.Report, error) {
	if _, err := s.repo.GetReport(ctx, reportID); err != nil {
		return metrics.Report{}, err
	}

	lines, err := s.repo.ListOrderLines(ctx, reportID)
	if err != nil {
		return metrics.Report{}, err
	}

	start := time.Now()
	report := s.engine.Compute(lines)
	s.instr.observeCompute(operation, start, report)

	log.Debug().
		Int64("report_id", reportID).
		Int("lines", len(lines)).
		Int("orders", report.Result.TotalOrders).
		Dur("took", time.Since(start)).
		Msg("metrics: report computed")

	return report, nil
}

func (s *ReportService) loadSnapshot(ctx context.Context, reportID int64) (*metrics.MetricResult, error) {
	snapshot, err := s.repo.GetSnapshot(ctx, reportID, s.fingerprint)
	if errors.Is(err, repository.ErrSnapshotNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var result metrics.MetricResult
	if err := json.Unmarshal(snapshot.Payload, &result); err != nil {
		log.Warn().Err(err).Int64("report_id", reportID).Msg("metrics: discarding unreadable snapshot")
		return nil, nil
	}
	return &result, nil
}

func (s *ReportService) saveSnapshot(ctx context.Context, reportID int64, result *metrics.MetricResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.repo.SaveSnapshot(ctx, &domain.MetricSnapshot{
		ReportID:   reportID,
		ConfigHash: s.fingerprint,
		Payload:    payload,
	})
}

func (s *ReportService) storeCache(ctx context.Context, reportID int64, result *metrics.MetricResult) {
	if err := s.cache.Set(ctx, reportID, s.fingerprint, result); err != nil {
		s.instr.cacheFailed()
		log.Warn().Err(err).Int64("report_id", reportID).Msg("metrics: cache set failed")
	}
}

func combine(channels []ChannelSummary) *Overview {
	o := &Overview{Channels: channels}
	for _, ch := range channels {
		r := ch.Result
		o.TotalOrders += r.TotalOrders
		o.RealizedOrders += r.RealizedOrders
		o.CancelledOrders += r.CancelledOrders
		o.ReturnedOrders += r.ReturnedOrders
		o.AnomalousOrders += r.AnomalousOrders
		o.Totals = addTotals(o.Totals, r.Totals)
	}

	if o.RealizedOrders > 0 {
		o.AverageOrderValue = o.Totals.NetOrderValue.Div(decimal.NewFromInt(int64(o.RealizedOrders)))
	}
	if o.Totals.GrossRevenue.IsPositive() {
		o.ControlRatio = o.Totals.MarketingCost.Add(o.Totals.PlatformFee).Div(o.Totals.GrossRevenue)
		o.NetMargin = o.Totals.NetProfit.Div(o.Totals.GrossRevenue)
	}
	return o
}

func addTotals(a, b metrics.Totals) metrics.Totals {
	return metrics.Totals{
		GrossRevenue:      a.GrossRevenue.Add(b.GrossRevenue),
		SellerRebate:      a.SellerRebate.Add(b.SellerRebate),
		VoucherCost:       a.VoucherCost.Add(b.VoucherCost),
		MarketingCost:     a.MarketingCost.Add(b.MarketingCost),
		FixedFee:          a.FixedFee.Add(b.FixedFee),
		VariableFee:       a.VariableFee.Add(b.VariableFee),
		PlatformFee:       a.PlatformFee.Add(b.PlatformFee),
		ReturnShippingFee: a.ReturnShippingFee.Add(b.ReturnShippingFee),
		NetProceeds:       a.NetProceeds.Add(b.NetProceeds),
		COGS:              a.COGS.Add(b.COGS),
		NetProfit:         a.NetProfit.Add(b.NetProfit),
		TaxNormalizedNet:  a.TaxNormalizedNet.Add(b.TaxNormalizedNet),
		QuantityKept:      a.QuantityKept + b.QuantityKept,
		NetOrderValue:     a.NetOrderValue.Add(b.NetOrderValue),
	}
}
