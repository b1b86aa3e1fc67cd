package main

import (
	"errors"
	"fmt"

	csvrepo "github.com/andresuchdata/autodrp/backend-go/internal/repository/csv"
	"github.com/andresuchdata/autodrp/backend-go/internal/storage"
	"github.com/urfave/cli/v2"
)

// openBucket is swapped in tests
var openBucket = func(cfg storage.S3Config) (storage.ObjectStorage, error) {
	return storage.NewS3Client(cfg)
}

func fetchDatasetCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch-dataset",
		Usage: "Download a CSV dataset from an S3-compatible bucket into --data-dir",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "storage-endpoint", EnvVars: []string{"STORAGE_ENDPOINT"}},
			&cli.StringFlag{Name: "storage-access-key", EnvVars: []string{"STORAGE_ACCESS_KEY"}},
			&cli.StringFlag{Name: "storage-secret-key", EnvVars: []string{"STORAGE_SECRET_KEY"}},
			&cli.StringFlag{Name: "storage-bucket", EnvVars: []string{"STORAGE_BUCKET"}},
			&cli.StringFlag{Name: "storage-region", EnvVars: []string{"STORAGE_REGION"}},
			&cli.BoolFlag{Name: "storage-use-ssl", Value: true, EnvVars: []string{"STORAGE_USE_SSL"}},
			&cli.StringFlag{Name: "prefix", Usage: "Object prefix holding the dataset CSV files", EnvVars: []string{"DRP_DATASET_PREFIX"}},
		},
		Action: func(c *cli.Context) error {
			dir := c.String("data-dir")
			if dir == "" {
				return errors.New("--data-dir is required")
			}

			client, err := openBucket(storage.S3Config{
				Endpoint:  c.String("storage-endpoint"),
				AccessKey: c.String("storage-access-key"),
				SecretKey: c.String("storage-secret-key"),
				Bucket:    c.String("storage-bucket"),
				Region:    c.String("storage-region"),
				UseSSL:    c.Bool("storage-use-ssl"),
			})
			if err != nil {
				return err
			}

			paths, err := storage.FetchDataset(c.Context, client, c.String("prefix"), dir)
			if err != nil {
				return err
			}

			// fail now rather than on the first planning command
			store, err := csvrepo.NewLoader(dir).Load()
			if err != nil {
				return fmt.Errorf("downloaded dataset is not loadable: %w", err)
			}
			products, err := store.ListActiveProducts(c.Context)
			if err != nil {
				return err
			}

			for _, p := range paths {
				fmt.Fprintln(c.App.Writer, p)
			}
			fmt.Fprintf(c.App.Writer, "%d files, %d active products\n", len(paths), len(products))
			return nil
		},
	}
}
