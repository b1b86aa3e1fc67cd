package main

import (
	"os"

	"github.com/andresuchdata/autodrp/backend-go/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		logger.Log.Warn().Err(err).Msg("could not load .env file")
	}

	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("drp failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "drp",
		Usage: "Plan branch replenishment from a CSV dataset or the Postgres ledger",
		Flags: globalFlags(),
		Before: func(c *cli.Context) error {
			logger.Configure(c.String("log-level"), false)
			return nil
		},
		Commands: []*cli.Command{
			allocateCommand(),
			receiptCommand(),
			profileCommand(),
			minimumStockCommand(),
			migrateCommand(),
			fetchDatasetCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "data-dir",
			Usage:   "Directory holding products.csv, sales.csv, stock.csv (and optional branches.csv, groups.csv)",
			EnvVars: []string{"DRP_DATA_DIR"},
		},
		&cli.StringFlag{
			Name:    "db-url",
			Usage:   "Postgres connection string; used when --data-dir is empty",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "lead-time",
			Usage:   "Lead time in days",
			Value:   7,
			EnvVars: []string{"DRP_LEAD_TIME_DAYS"},
		},
		&cli.IntFlag{
			Name:    "safety-days",
			Usage:   "Safety coverage in days",
			Value:   7,
			EnvVars: []string{"DRP_SAFETY_DAYS"},
		},
		&cli.IntFlag{
			Name:    "window",
			Usage:   "Lookback window in days (30, 60, 90, 120 or 180)",
			Value:   90,
			EnvVars: []string{"DRP_WINDOW_DAYS"},
		},
		&cli.StringFlag{
			Name:    "source",
			Usage:   "Source branch id",
			EnvVars: []string{"DRP_SOURCE_BRANCH"},
		},
		&cli.StringFlag{
			Name:    "priority",
			Usage:   "Comma separated branch sequence used by priority allocation",
			EnvVars: []string{"DRP_PRIORITY_BRANCHES"},
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print results as JSON",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "warn",
			EnvVars: []string{"LOG_LEVEL"},
		},
	}
}
