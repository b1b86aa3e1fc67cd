package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/config"
	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/andresuchdata/autodrp/backend-go/internal/drp"
	"github.com/andresuchdata/autodrp/backend-go/internal/pipeline"
	"github.com/andresuchdata/autodrp/backend-go/internal/repository"
	csvrepo "github.com/andresuchdata/autodrp/backend-go/internal/repository/csv"
	"github.com/andresuchdata/autodrp/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/autodrp/backend-go/internal/service"
	"github.com/urfave/cli/v2"
)

// source is the ledger a command reads from
type source struct {
	ledger repository.Ledger
	sink   repository.SuggestionWriter
	close  func() error
}

func openSource(c *cli.Context) (*source, error) {
	if dir := c.String("data-dir"); dir != "" {
		store, err := csvrepo.NewLoader(dir).Load()
		if err != nil {
			return nil, err
		}
		return &source{ledger: store, sink: store, close: func() error { return nil }}, nil
	}

	url := c.String("db-url")
	if url == "" {
		return nil, errors.New("either --data-dir or --db-url is required")
	}
	db, err := postgres.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	return &source{
		ledger: postgres.NewLedgerRepository(db),
		sink:   postgres.NewSuggestionRepository(db),
		close:  db.Close,
	}, nil
}

func newPlanner(c *cli.Context, ledger repository.Ledger) *service.Planner {
	engine := drp.NewEngine(config.SplitList(c.String("priority")))
	return service.NewPlanner(ledger, engine, nil, service.PlannerConfig{
		Policy:       domain.Policy{LeadTimeDays: c.Int("lead-time"), SafetyDays: c.Int("safety-days")},
		WindowDays:   c.Int("window"),
		SourceBranch: c.String("source"),
		Concurrency:  1,
	})
}

func productFlag() cli.Flag {
	return &cli.StringFlag{Name: "product", Aliases: []string{"p"}, Usage: "Product id", Required: true}
}

func destinationsFlag() cli.Flag {
	return &cli.StringFlag{Name: "to", Usage: "Comma separated destination branches; default is every other branch"}
}

func asOfFlag() cli.Flag {
	return &cli.StringFlag{Name: "as-of", Usage: "Last day of the lookback window (YYYY-MM-DD); default today"}
}

func parseAsOf(c *cli.Context) (time.Time, error) {
	v := c.String("as-of")
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: %w", v, err)
	}
	return t, nil
}

func allocationRequest(c *cli.Context) (domain.AllocationRequest, error) {
	asOf, err := parseAsOf(c)
	if err != nil {
		return domain.AllocationRequest{}, err
	}
	return domain.AllocationRequest{
		ProductID:            c.String("product"),
		DestinationBranchIDs: config.SplitList(c.String("to")),
		SaleMultiple:         c.Int64("multiple"),
		Mode:                 domain.AllocationMode(c.String("mode")),
		AsOf:                 asOf,
	}, nil
}

func allocateCommand() *cli.Command {
	return &cli.Command{
		Name:  "allocate",
		Usage: "Distribute the source branch stock of a product across destinations",
		Flags: []cli.Flag{
			productFlag(),
			destinationsFlag(),
			asOfFlag(),
			&cli.Int64Flag{Name: "multiple", Usage: "Sale multiple; default is the product's"},
			&cli.StringFlag{Name: "mode", Value: string(domain.ModeProportional), Usage: "proportional or priority"},
		},
		Action: func(c *cli.Context) error {
			src, err := openSource(c)
			if err != nil {
				return err
			}
			defer src.close()

			req, err := allocationRequest(c)
			if err != nil {
				return err
			}
			result, err := newPlanner(c, src.ledger).Plan(c.Context, req)
			if err != nil {
				return err
			}
			return printResult(c, result)
		},
	}
}

func receiptCommand() *cli.Command {
	return &cli.Command{
		Name:  "receipt",
		Usage: "Distribute an inbound receipt in branch priority order",
		Flags: []cli.Flag{
			productFlag(),
			destinationsFlag(),
			asOfFlag(),
			&cli.Int64Flag{Name: "quantity", Aliases: []string{"q"}, Usage: "Received quantity", Required: true},
			&cli.Int64Flag{Name: "multiple", Usage: "Sale multiple; default is the product's"},
		},
		Action: func(c *cli.Context) error {
			src, err := openSource(c)
			if err != nil {
				return err
			}
			defer src.close()

			req, err := allocationRequest(c)
			if err != nil {
				return err
			}
			qty := c.Int64("quantity")
			req.SourceQuantity = &qty

			result, err := newPlanner(c, src.ledger).PlanReceipt(c.Context, req)
			if err != nil {
				return err
			}
			return printResult(c, result)
		},
	}
}

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Show the demand profile of a product per branch",
		Flags: []cli.Flag{
			productFlag(),
			asOfFlag(),
			&cli.StringFlag{Name: "branches", Usage: "Comma separated branches; default all"},
		},
		Action: func(c *cli.Context) error {
			src, err := openSource(c)
			if err != nil {
				return err
			}
			defer src.close()

			asOf, err := parseAsOf(c)
			if err != nil {
				return err
			}
			profiles, err := newPlanner(c, src.ledger).Profiles(c.Context, c.String("product"), config.SplitList(c.String("branches")), c.Int("window"), asOf)
			if err != nil {
				return err
			}
			return printProfiles(c, profiles)
		},
	}
}

func minimumStockCommand() *cli.Command {
	return &cli.Command{
		Name:  "minimum-stock",
		Usage: "Compute suggested minimum stock for every active product and branch",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output-dir", Value: "./data/reports", EnvVars: []string{"JOB_OUTPUT_DIR"}},
			&cli.IntFlag{Name: "workers", Value: 4, EnvVars: []string{"JOB_WORKERS"}},
			&cli.StringFlag{Name: "branches", Usage: "Comma separated branches; default all", EnvVars: []string{"JOB_BRANCHES"}},
		},
		Action: func(c *cli.Context) error {
			src, err := openSource(c)
			if err != nil {
				return err
			}
			defer src.close()

			cfg := pipeline.DefaultJobConfig(pipeline.MinimumStockJobName)
			cfg.OutputDir = c.String("output-dir")
			cfg.WorkerCount = c.Int("workers")
			cfg.Branches = config.SplitList(c.String("branches"))

			worker := pipeline.NewWorker(cfg, src.ledger, src.ledger, newPlanner(c, src.ledger), src.sink, pipeline.NewMemoryRepository(), nil)
			run, err := worker.Run(c.Context)
			if run != nil {
				if perr := printRun(c, run); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the ledger, suggestion and job tables",
		Action: func(c *cli.Context) error {
			url := c.String("db-url")
			if url == "" {
				return errors.New("--db-url is required")
			}
			db, err := postgres.Open("pgx", url)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Migrate(c.Context)
		},
	}
}
