package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/config"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/drive"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/pipeline"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/storage"
)

const (
	sourceS3    = "s3"
	sourceDrive = "drive"
)

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Download order exports from object storage or Google Drive",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "source",
				Usage: "Where exports live: s3 or drive",
				Value: sourceS3,
			},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Object key prefix (s3)",
			},
			&cli.StringFlag{
				Name:    "folder",
				Usage:   "Drive folder id (drive)",
				EnvVars: []string{"DRIVE_FOLDER_ID"},
			},
			&cli.StringFlag{
				Name:  "name-prefix",
				Usage: "Only fetch Drive files whose name starts with this (drive)",
				Value: "Order.all",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Stop after this many Drive files, 0 for all (drive)",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Local download directory",
				Value: "./data/tmp/exports",
			},
			&cli.BoolFlag{
				Name:  "compute",
				Usage: "Compute the downloaded exports right away",
			},
			newMinTierFlag(),
		},
		Action: runFetch,
	}
}

func runFetch(c *cli.Context) error {
	cfg := config.Load()

	var (
		files []string
		err   error
	)
	switch c.String("source") {
	case sourceS3:
		var client *storage.MinioClient
		client, err = storage.NewMinioClient(cfg.Storage)
		if err != nil {
			return err
		}
		files, err = pipeline.FetchExports(c.Context, client, c.String("prefix"), c.String("dir"))
	case sourceDrive:
		var svc *drive.Service
		svc, err = drive.NewService(c.Context, cfg.Drive.CredentialsJSON)
		if err != nil {
			return err
		}
		files, err = drive.NewDownloader(svc).DownloadExports(c.Context, drive.DownloadOptions{
			FolderID:    c.String("folder"),
			DownloadDir: c.String("dir"),
			NamePrefix:  c.String("name-prefix"),
			Limit:       c.Int("limit"),
		})
	default:
		return fmt.Errorf("unknown source %q, want %s or %s", c.String("source"), sourceS3, sourceDrive)
	}
	if err != nil {
		return err
	}

	for _, f := range files {
		fmt.Fprintln(c.App.Writer, f)
	}
	if len(files) == 0 {
		return fmt.Errorf("no exports found")
	}
	if !c.Bool("compute") {
		return nil
	}

	tier, err := minTier(c)
	if err != nil {
		return err
	}
	engine, err := newEngine(c, cfg)
	if err != nil {
		return err
	}
	runCfg := pipeline.DefaultRunnerConfig()
	runCfg.OutputDir = cfg.App.DataDir
	runCfg.MinTier = tier

	summary, err := pipeline.NewRunner(engine, runCfg).ProcessBatch(c.Context, files)
	if summary != nil {
		printBatch(c.App.Writer, summary)
	}
	return err
}
