package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/cache"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/config"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/metrics"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/repository/postgres"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/service"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/pkg/logger"
)

func newMinTierFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "min-tier",
		Usage: "Lowest risk tier listed as flagged (SAFE, MONITOR, WARNING, DANGER)",
		Value: string(metrics.TierWarning),
	}
}

func minTier(c *cli.Context) (metrics.Tier, error) {
	tier, ok := metrics.ParseTier(c.String("min-tier"))
	if !ok {
		return "", fmt.Errorf("unknown tier %q", c.String("min-tier"))
	}
	return tier, nil
}

// newEngine builds the metrics engine from the METRICS_* settings, with the
// --cogs-rate flag taking precedence.
func newEngine(c *cli.Context, cfg *config.Config) (*metrics.Engine, error) {
	mc := cfg.Metrics
	if c.IsSet("cogs-rate") {
		mc.COGSRate = c.Float64("cogs-rate")
	}
	engineCfg, err := mc.Engine()
	if err != nil {
		return nil, err
	}
	return metrics.NewEngine(engineCfg)
}

// openReportService connects to Postgres and returns the report service with
// a close func for the pool.
func openReportService(c *cli.Context, cfg *config.Config) (*service.ReportService, func() error, error) {
	engine, err := newEngine(c, cfg)
	if err != nil {
		return nil, nil, err
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.EnsureSchema(c.Context); err != nil {
		db.Close()
		return nil, nil, err
	}

	metricsCache, err := cache.NewMetricsCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("redis unavailable, metrics cache disabled")
		metricsCache = cache.NewNoopMetricsCache()
	}

	svc := service.NewReportService(postgres.NewReportRepository(db), metricsCache, engine,
		service.WithOverviewParallelism(cfg.Metrics.OverviewParallelism))
	return svc, db.Close, nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "metrics",
		Usage: "Compute Shopee order metrics and risk tiers from order exports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "zerolog level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "Log JSON lines instead of console output",
				EnvVars: []string{"LOG_JSON"},
			},
			&cli.Float64Flag{
				Name:  "cogs-rate",
				Usage: "Override METRICS_COGS_RATE, a fraction of gross revenue",
			},
		},
		Before: func(c *cli.Context) error {
			logger.SetLevel(c.String("log-level"))
			if c.Bool("log-json") {
				logger.UseJSON(os.Stderr)
			}
			return nil
		},
		Commands: []*cli.Command{
			computeCommand(),
			fetchCommand(),
			importCommand(),
			reportCommand(),
		},
	}
}

func main() {
	app := newApp()
	if err := app.RunContext(context.Background(), os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("metrics failed")
	}
}
