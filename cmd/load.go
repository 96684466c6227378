package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"mspro-labs/book-buddy/internal/loader"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the books and ratings CSVs into the graph",
	Long: `Streams the books and ratings CSV files into Neo4j as batched MERGE
writes. Nodes are loaded first (books, authors, categories, publishers,
users, reviews), then the relationships between them. Re-running is safe:
every write merges on a natural key.`,
	Run: func(cmd *cobra.Command, args []string) {
		runLoad()
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad() {
	ctx := context.Background()
	appCfg, store, logger, cleanup := setup(ctx)
	defer cleanup()

	if err := appCfg.RequireDataset(); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	pipeline := &loader.Pipeline{
		Store:       store,
		BooksPath:   appCfg.BooksPath,
		RatingsPath: appCfg.RatingsPath,
		BatchSize:   appCfg.BatchSize,
		Workers:     appCfg.NumWorkers,
		Log:         logger,
	}
	if err := pipeline.Run(ctx); err != nil {
		logger.Fatal("load failed", "error", err)
	}
	logger.Info("load complete")
}
