package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/config"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/drive"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/repository/postgres"
)

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Compute a stored report and save its metric snapshot",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "id",
				Usage:    "Report id",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Drop cached metrics of the report first",
			},
			&cli.IntFlag{
				Name:  "top",
				Usage: "Number of products printed",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "orders",
				Usage: "Also list flagged orders",
			},
			newMinTierFlag(),
		},
		Action: runReport,
	}
}

func runReport(c *cli.Context) error {
	tier, err := minTier(c)
	if err != nil {
		return err
	}

	svc, closeDB, err := openReportService(c, config.Load())
	if err != nil {
		return err
	}
	defer closeDB()

	id := c.Int64("id")
	if c.Bool("refresh") {
		if err := svc.Invalidate(c.Context, id); err != nil {
			return err
		}
	}

	res, err := svc.Metrics(c.Context, id)
	if err != nil {
		return err
	}
	printResult(c.App.Writer, res, c.Int("top"))

	if !c.Bool("orders") {
		return nil
	}
	flagged, err := svc.Orders(c.Context, id, tier)
	if err != nil {
		return err
	}
	printFlagged(c.App.Writer, flagged)
	return nil
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import the order exports of a Google Drive folder as reports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "folder",
				Usage:   "Drive folder id",
				EnvVars: []string{"DRIVE_FOLDER_ID"},
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "Drive folder path such as Shops/Hanoi/Orders, used when --folder is empty",
			},
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Channel recorded on the reports",
				Value: "shopee",
			},
			&cli.StringFlag{
				Name:  "name-prefix",
				Usage: "Only import files whose name starts with this",
				Value: "Order.all",
			},
		},
		Action: runImport,
	}
}

func runImport(c *cli.Context) error {
	cfg := config.Load()

	svc, err := drive.NewService(c.Context, cfg.Drive.CredentialsJSON)
	if err != nil {
		return err
	}

	folderID := c.String("folder")
	if folderID == "" && c.String("path") != "" {
		folderID, err = svc.FindFolderByPath(c.Context, c.String("path"))
		if err != nil {
			return err
		}
	}
	if folderID == "" {
		return fmt.Errorf("--folder or --path is required")
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if err := db.EnsureSchema(c.Context); err != nil {
		return err
	}

	results, err := drive.NewImporter(svc, postgres.NewReportRepository(db)).
		ImportFolder(c.Context, folderID, c.String("channel"), c.String("name-prefix"))
	printImports(c.App.Writer, results)
	return err
}
