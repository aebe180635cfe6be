package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/config"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/pipeline"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/repository/postgres"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/storage"
)

func computeCommand() *cli.Command {
	def := pipeline.DefaultRunnerConfig()
	return &cli.Command{
		Name:      "compute",
		Usage:     "Compute metrics for local exports and write CSV reports",
		ArgsUsage: "<file-or-dir>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Usage:   "Directory receiving one CSV report directory per export, empty to skip",
				Value:   def.OutputDir,
				EnvVars: []string{"APP_DATA_DIR"},
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of exports computed in parallel",
				Value: def.WorkerCount,
			},
			newMinTierFlag(),
			&cli.BoolFlag{
				Name:  "store",
				Usage: "Store every parsed export as a report in Postgres",
			},
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Channel recorded on stored reports",
				Value: "shopee",
			},
			&cli.BoolFlag{
				Name:  "upload",
				Usage: "Upload the CSV reports to object storage",
			},
			&cli.StringFlag{
				Name:  "upload-prefix",
				Usage: "Object key prefix of uploaded reports",
				Value: def.UploadPrefix,
			},
		},
		Action: runCompute,
	}
}

func runCompute(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one export file or directory is required")
	}
	tier, err := minTier(c)
	if err != nil {
		return err
	}

	cfg := config.Load()
	engine, err := newEngine(c, cfg)
	if err != nil {
		return err
	}

	runner := pipeline.NewRunner(engine, pipeline.RunnerConfig{
		WorkerCount:  c.Int("workers"),
		OutputDir:    c.String("out"),
		MinTier:      tier,
		Channel:      c.String("channel"),
		UploadPrefix: c.String("upload-prefix"),
	})

	if c.Bool("store") {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(c.Context); err != nil {
			return err
		}
		runner.WithStore(postgres.NewReportRepository(db))
	}

	if c.Bool("upload") {
		client, err := storage.NewMinioClient(cfg.Storage)
		if err != nil {
			return err
		}
		runner.WithUploader(client)
	}

	summary, err := pipeline.NewOrchestrator(runner).Run(c.Context, c.Args().Slice())
	if summary != nil {
		printBatch(c.App.Writer, summary)
	}
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d exports failed", summary.Failed, len(summary.Jobs))
	}
	return nil
}
