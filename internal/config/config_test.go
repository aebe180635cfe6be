package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/metrics"
)

func TestRead_Defaults(t *testing.T) {
	cfg := read()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Database.MaxConcurrent)
	assert.Equal(t, 300, cfg.Cache.MetricsTTLSeconds)
	assert.Equal(t, 4, cfg.Metrics.OverviewParallelism)

	engine, err := cfg.Metrics.Engine()
	require.NoError(t, err)

	def := metrics.DefaultConfig()
	assert.True(t, def.COGSRate.Equal(engine.COGSRate))
	assert.True(t, def.TaxDivisor.Equal(engine.TaxDivisor))
	assert.True(t, def.ControlRatio.Warning.Equal(engine.ControlRatio.Warning))
	assert.Equal(t, def.CancelledStatuses, engine.CancelledStatuses)
	assert.Equal(t, def.Fingerprint(), engine.Fingerprint())
}

func TestRead_EnvOverrides(t *testing.T) {
	t.Setenv("METRICS_COGS_RATE", "0.35")
	t.Setenv("METRICS_CANCELLED_STATUSES", "Đã hủy, Hủy bởi người mua ,")
	t.Setenv("METRICS_COUNT_PARTIAL_RETURNS", "true")

	cfg := read()
	assert.Equal(t, []string{"Đã hủy", "Hủy bởi người mua"}, cfg.Metrics.CancelledStatuses)

	engine, err := cfg.Metrics.Engine()
	require.NoError(t, err)
	assert.Equal(t, "0.35", engine.COGSRate.String())
	assert.True(t, engine.CountPartialReturns)
}

func TestMetricsConfigEngine_Invalid(t *testing.T) {
	base := read().Metrics

	tests := []struct {
		name   string
		mutate func(m *MetricsConfig)
	}{
		{"cogs rate of one", func(m *MetricsConfig) { m.COGSRate = 1 }},
		{"zero tax divisor", func(m *MetricsConfig) { m.TaxDivisor = 0 }},
		{"warning below monitor", func(m *MetricsConfig) { m.MonitorThreshold, m.WarningThreshold = 0.5, 0.3 }},
		{"no cancelled statuses", func(m *MetricsConfig) { m.CancelledStatuses = nil }},
		{"blank cancelled status", func(m *MetricsConfig) { m.CancelledStatuses = []string{""} }},
		{"no overview workers", func(m *MetricsConfig) { m.OverviewParallelism = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base
			m.CancelledStatuses = append([]string(nil), base.CancelledStatuses...)
			tt.mutate(&m)
			_, err := m.Engine()
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfigDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "shop", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=shop sslmode=disable", d.DSN())

	d.URL = "postgres://u:p@db/shop"
	assert.Equal(t, "postgres://u:p@db/shop", d.DSN())
}
