package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/api"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/cache"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/config"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/metrics"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/repository/postgres"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/service"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.SetLevel(cfg.App.LogLevel)
	if cfg.App.LogJSON {
		logger.UseJSON(os.Stdout)
	}
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engineCfg, err := cfg.Metrics.Engine()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid metrics configuration")
	}
	engine, err := metrics.NewEngine(engineCfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create metrics engine")
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	metricsCache, err := cache.NewMetricsCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Redis unavailable, metrics cache disabled")
		metricsCache = cache.NewNoopMetricsCache()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	instrumentation := service.NewInstrumentation(registry)

	reportService := service.NewReportService(
		postgres.NewReportRepository(db),
		metricsCache,
		engine,
		service.WithOverviewParallelism(cfg.Metrics.OverviewParallelism),
		service.WithInstrumentation(instrumentation),
	)

	router := api.NewRouter(&api.Services{
		ReportService:   reportService,
		Instrumentation: instrumentation,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().
			Str("port", cfg.Server.Port).
			Str("metrics_config", engineCfg.Fingerprint()).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// in-flight requests get 5 seconds
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
