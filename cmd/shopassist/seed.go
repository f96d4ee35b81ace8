package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Veraticus/shopassist/internal/catalog"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load products and orders from a JSON file into the catalog",
	Long: `seed upserts every product and order in a JSON file of the form
{"products": [...], "orders": [...]} into the catalog database, rebuilding
the search index entries as it goes.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := catalog.OpenSQLite(cfg.Catalog.DatabasePath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		products, orders, err := store.Seed(cmd.Context(), seedFile)
		logger.Info("catalog seeded",
			zap.String("file", seedFile),
			zap.String("database", cfg.Catalog.DatabasePath),
			zap.Int("products", products),
			zap.Int("orders", orders))
		if err != nil {
			return fmt.Errorf("seed stopped early: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d products and %d orders into %s\n", products, orders, cfg.Catalog.DatabasePath)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "data/sample_catalog.json", "Seed file to load")
}
