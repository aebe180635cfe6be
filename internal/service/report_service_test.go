package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/cache"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/domain"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/metrics"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/repository"
)

type fakeRepo struct {
	mu          sync.Mutex
	reports     map[int64]domain.Report
	lines       map[int64][]domain.OrderLine
	snapshots   map[string]domain.MetricSnapshot
	lineReads   int
	snapshotErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		reports:   make(map[int64]domain.Report),
		lines:     make(map[int64][]domain.OrderLine),
		snapshots: make(map[string]domain.MetricSnapshot),
	}
}

func (r *fakeRepo) add(id int64, channel string, lines ...domain.OrderLine) {
	r.reports[id] = domain.Report{ID: id, Name: fmt.Sprintf("report-%d", id), Channel: channel, LineCount: len(lines)}
	r.lines[id] = lines
}

func (r *fakeRepo) ListReports(ctx context.Context) ([]domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Report
	for _, rep := range r.reports {
		out = append(out, rep)
	}
	return out, nil
}

func (r *fakeRepo) GetReport(ctx context.Context, id int64) (*domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[id]
	if !ok {
		return nil, repository.ErrReportNotFound
	}
	return &rep, nil
}

func (r *fakeRepo) ListOrderLines(ctx context.Context, reportID int64) ([]domain.OrderLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lineReads++
	return r.lines[reportID], nil
}

func (r *fakeRepo) CreateReport(ctx context.Context, report *domain.Report, lines []domain.OrderLine) (int64, error) {
	return 0, errors.New("not implemented")
}

func (r *fakeRepo) SaveSnapshot(ctx context.Context, snapshot *domain.MetricSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[snapshotKey(snapshot.ReportID, snapshot.ConfigHash)] = *snapshot
	return nil
}

func (r *fakeRepo) GetSnapshot(ctx context.Context, reportID int64, configHash string) (*domain.MetricSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshotErr != nil {
		return nil, r.snapshotErr
	}
	snap, ok := r.snapshots[snapshotKey(reportID, configHash)]
	if !ok {
		return nil, repository.ErrSnapshotNotFound
	}
	return &snap, nil
}

func (r *fakeRepo) reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lineReads
}

func snapshotKey(reportID int64, hash string) string {
	return fmt.Sprintf("%d/%s", reportID, hash)
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]metrics.MetricResult
	err     error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]metrics.MetricResult)}
}

func (c *fakeCache) Get(ctx context.Context, reportID int64, fingerprint string) (*metrics.MetricResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	res, ok := c.entries[snapshotKey(reportID, fingerprint)]
	if !ok {
		return nil, false, nil
	}
	return &res, true, nil
}

func (c *fakeCache) Set(ctx context.Context, reportID int64, fingerprint string, result *metrics.MetricResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries[snapshotKey(reportID, fingerprint)] = *result
	return nil
}

func (c *fakeCache) InvalidateReport(ctx context.Context, reportID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := fmt.Sprintf("%d/", reportID)
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *fakeCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]metrics.MetricResult)
	return nil
}

func line(orderID string, price, voucher, fixedFee string) domain.OrderLine {
	return domain.OrderLine{
		OrderID:       orderID,
		OrderStatus:   "Hoàn thành",
		OrderDate:     "2024-03-10 09:15",
		PayoutDate:    "2024-03-15 10:00",
		SKU:           "SKU-" + orderID,
		Quantity:      1,
		OriginalPrice: decimal.RequireFromString(price),
		ShopVoucher:   decimal.RequireFromString(voucher),
		FixedFee:      decimal.RequireFromString(fixedFee),
		Province:      "Hà Nội",
	}
}

// seededRepo holds two channels. Report 1 is one safe order; report 2 has a
// MONITOR order (control ratio 0.30) and a WARNING order (0.60).
func seededRepo() *fakeRepo {
	repo := newFakeRepo()

	a := line("ORD-A", "100000", "5000", "1000")
	a.Quantity = 10
	a.ServiceFee = decimal.NewFromInt(1500)
	a.PaymentFee = decimal.NewFromInt(500)
	repo.add(1, "shopee-hn", a)

	repo.add(2, "shopee-hcm",
		line("ORD-X", "200000", "50000", "10000"),
		line("ORD-Y", "200000", "120000", "0"),
	)
	return repo
}

func newTestService(t *testing.T, repo *fakeRepo, c cache.MetricsCache) *ReportService {
	t.Helper()
	engine, err := metrics.NewEngine(metrics.DefaultConfig())
	require.NoError(t, err)
	return NewReportService(repo, c, engine, WithOverviewParallelism(2))
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

func TestReportService_MetricsComputesThenCaches(t *testing.T) {
	repo := seededRepo()
	c := newFakeCache()
	svc := newTestService(t, repo, c)
	ctx := context.Background()

	res, err := svc.Metrics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RealizedOrders)
	assertDecimal(t, "1000000", res.Totals.GrossRevenue)
	assertDecimal(t, "592000", res.Totals.NetProfit)
	assert.Equal(t, 1, repo.reads())

	_, ok, _ := c.Get(ctx, 1, svc.fingerprint)
	assert.True(t, ok, "result is cached")
	_, err = repo.GetSnapshot(ctx, 1, svc.fingerprint)
	assert.NoError(t, err, "snapshot is saved")

	again, err := svc.Metrics(ctx, 1)
	require.NoError(t, err)
	assertDecimal(t, "592000", again.Totals.NetProfit)
	assert.Equal(t, 1, repo.reads(), "second call is served from cache")

	in := svc.Instrumentation()
	assert.Equal(t, 1.0, testutil.ToFloat64(in.resultsServed.WithLabelValues(SourceEngine)))
	assert.Equal(t, 1.0, testutil.ToFloat64(in.resultsServed.WithLabelValues(SourceCache)))
	assert.Equal(t, 1.0, testutil.ToFloat64(in.ordersEvaluated.WithLabelValues(string(metrics.OutcomeRealized))))
}

func TestReportService_SharedRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	instr := NewInstrumentation(registry)

	engine, err := metrics.NewEngine(metrics.DefaultConfig())
	require.NoError(t, err)
	svc := NewReportService(seededRepo(), nil, engine, WithInstrumentation(instr))
	assert.Same(t, instr, svc.Instrumentation())

	_, err = svc.Metrics(context.Background(), 1)
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(registry, "shopee_dashboard_metric_results_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(instr.resultsServed.WithLabelValues(SourceEngine)))
}

func TestReportService_MetricsFromSnapshot(t *testing.T) {
	repo := seededRepo()
	ctx := context.Background()

	first := newTestService(t, repo, newFakeCache())
	_, err := first.Metrics(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 1, repo.reads())

	// A fresh process with an empty cache finds the persisted snapshot.
	second := newTestService(t, repo, newFakeCache())
	res, err := second.Metrics(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads())
	assert.Equal(t, 2, res.RealizedOrders)
	assertDecimal(t, "400000", res.Totals.GrossRevenue)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.Instrumentation().resultsServed.WithLabelValues(SourceSnapshot)))
}

func TestReportService_SnapshotIgnoredForOtherConfig(t *testing.T) {
	repo := seededRepo()
	ctx := context.Background()

	_, err := newTestService(t, repo, nil).Metrics(ctx, 1)
	require.NoError(t, err)

	cfg := metrics.DefaultConfig()
	cfg.COGSRate = decimal.RequireFromString("0.5")
	engine, err := metrics.NewEngine(cfg)
	require.NoError(t, err)

	res, err := NewReportService(repo, nil, engine).Metrics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.reads(), "different fingerprint recomputes")
	assertDecimal(t, "492000", res.Totals.NetProfit)
}

func TestReportService_CacheFailureFallsThrough(t *testing.T) {
	repo := seededRepo()
	c := newFakeCache()
	c.err = errors.New("connection refused")
	svc := newTestService(t, repo, c)

	res, err := svc.Metrics(context.Background(), 1)
	require.NoError(t, err)
	assertDecimal(t, "1000000", res.Totals.GrossRevenue)
	assert.Equal(t, 2.0, testutil.ToFloat64(svc.Instrumentation().cacheErrors))
}

func TestReportService_MetricsErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown report", func(t *testing.T) {
		svc := newTestService(t, seededRepo(), nil)
		_, err := svc.Metrics(ctx, 99)
		assert.ErrorIs(t, err, repository.ErrReportNotFound)
	})

	t.Run("snapshot lookup fails", func(t *testing.T) {
		repo := seededRepo()
		repo.snapshotErr = errors.New("db down")
		svc := newTestService(t, repo, nil)
		_, err := svc.Metrics(ctx, 1)
		assert.EqualError(t, err, "db down")
	})

	t.Run("unreadable snapshot is recomputed", func(t *testing.T) {
		repo := seededRepo()
		svc := newTestService(t, repo, nil)
		repo.snapshots[snapshotKey(1, svc.fingerprint)] = domain.MetricSnapshot{ReportID: 1, Payload: []byte("{")}
		res, err := svc.Metrics(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, res.RealizedOrders)
		assert.Equal(t, 1, repo.reads())
	})
}

func TestReportService_Orders(t *testing.T) {
	svc := newTestService(t, seededRepo(), nil)
	ctx := context.Background()

	warning, err := svc.Orders(ctx, 2, metrics.TierWarning)
	require.NoError(t, err)
	require.Len(t, warning, 1)
	assert.Equal(t, "ORD-Y", warning[0].OrderID)
	assert.Equal(t, metrics.RootCauseMarketing, warning[0].Risk.RootCause)

	monitor, err := svc.Orders(ctx, 2, metrics.TierMonitor)
	require.NoError(t, err)
	require.Len(t, monitor, 2)
	assert.Equal(t, "ORD-Y", monitor[0].OrderID)
	assert.Equal(t, "ORD-X", monitor[1].OrderID)
	assert.Equal(t, metrics.TierMonitor, monitor[1].Risk.Tier)

	none, err := svc.Orders(ctx, 1, metrics.TierMonitor)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.Orders(ctx, 2, metrics.Tier("LOUD"))
	assert.Error(t, err)

	_, err = svc.Orders(ctx, 42, metrics.TierSafe)
	assert.ErrorIs(t, err, repository.ErrReportNotFound)

	flagged := svc.Instrumentation().ordersFlagged
	assert.Equal(t, 2.0, testutil.ToFloat64(flagged.WithLabelValues(string(metrics.TierWarning))))
}

func TestReportService_Overview(t *testing.T) {
	svc := newTestService(t, seededRepo(), nil)

	o, err := svc.Overview(context.Background(), []int64{2, 1})
	require.NoError(t, err)

	require.Len(t, o.Channels, 2)
	assert.Equal(t, "shopee-hcm", o.Channels[0].Report.Channel)
	assert.Equal(t, "shopee-hn", o.Channels[1].Report.Channel)

	assert.Equal(t, 3, o.TotalOrders)
	assert.Equal(t, 3, o.RealizedOrders)
	assertDecimal(t, "1400000", o.Totals.GrossRevenue)
	assertDecimal(t, "175000", o.Totals.MarketingCost)
	assertDecimal(t, "13000", o.Totals.PlatformFee)
	assertDecimal(t, "652000", o.Totals.NetProfit)
	assert.Equal(t, 12, o.Totals.QuantityKept)
	assert.InDelta(t, 188000.0/1400000.0, o.ControlRatio.InexactFloat64(), 1e-9)
	assert.InDelta(t, 652000.0/1400000.0, o.NetMargin.InexactFloat64(), 1e-9)
}

func TestReportService_OverviewReconcilesAnomalies(t *testing.T) {
	repo := newFakeRepo()

	hn := line("ORD-H", "300000", "20000", "0")
	hn.OrderTotalAmount = decimal.NewFromInt(300000)
	repo.add(1, "shopee-hn", hn)

	good := line("ORD-G", "100000", "0", "0")
	good.OrderTotalAmount = decimal.NewFromInt(100000)
	broken := line("ORD-Z", "100000", "0", "0")
	broken.Quantity = -2
	repo.add(2, "shopee-hcm", good, broken)

	o, err := newTestService(t, repo, nil).Overview(context.Background(), []int64{1, 2})
	require.NoError(t, err)

	assert.Equal(t, 3, o.TotalOrders)
	assert.Equal(t, 2, o.RealizedOrders)
	assert.Equal(t, 1, o.AnomalousOrders)
	assert.Equal(t, o.TotalOrders, o.RealizedOrders+o.CancelledOrders+o.ReturnedOrders+o.AnomalousOrders)

	assertDecimal(t, "380000", o.Totals.NetOrderValue)
	assertDecimal(t, "190000", o.AverageOrderValue)
	assertDecimal(t, "280000", o.Channels[0].Result.AverageOrderValue)
}

func TestReportService_OverviewErrors(t *testing.T) {
	svc := newTestService(t, seededRepo(), nil)

	_, err := svc.Overview(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoReports)

	_, err = svc.Overview(context.Background(), []int64{1, 7})
	assert.ErrorIs(t, err, repository.ErrReportNotFound)
	assert.Contains(t, err.Error(), "report 7")
}

func TestReportService_ComputeLines(t *testing.T) {
	svc := newTestService(t, newFakeRepo(), nil)

	report, err := svc.ComputeLines(context.Background(), []domain.OrderLine{
		line("ORD-1", "200000", "120000", "0"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Result.RealizedOrders)
	require.Len(t, report.Flagged(metrics.TierWarning), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.ComputeLines(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReportService_Invalidate(t *testing.T) {
	repo := seededRepo()
	c := newFakeCache()
	svc := newTestService(t, repo, c)
	ctx := context.Background()

	_, err := svc.Metrics(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx, 1))

	_, ok, err := c.Get(ctx, 1, svc.fingerprint)
	require.NoError(t, err)
	assert.False(t, ok)
}
