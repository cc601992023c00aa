package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"storefront/internal/products"
	"storefront/internal/stores/postgres"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert the product catalog from a YAML file",
	Long: `Seed reads a catalog file in the format of catalog.example.yaml and
inserts or updates every product by id. Migrations are applied first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("failed to open catalog: %w", err)
		}
		defer f.Close()

		catalog, err := products.LoadCatalog(f)
		if err != nil {
			return err
		}

		cfg, err := setup()
		if err != nil {
			return err
		}
		db, err := postgres.OpenDB(cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.Migrate(db, "up"); err != nil {
			return err
		}

		conf, err := products.NewConf(db)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := conf.UpsertProducts(ctx, catalog); err != nil {
			return err
		}

		slog.Info("catalog seeded", slog.String("file", file), slog.Int("products", len(catalog)))
		return nil
	},
}

func init() {
	seedCmd.Flags().String("file", "catalog.example.yaml", "Catalog YAML file")
}
