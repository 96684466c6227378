package cmd

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"mspro-labs/book-buddy/internal/config"
	"mspro-labs/book-buddy/internal/graph"
	"mspro-labs/book-buddy/internal/logging"
)

var logMode string

var rootCmd = &cobra.Command{
	Use:   "book-buddy",
	Short: "Load the Amazon Books dataset into a graph and get AI-powered recommendations",
	Long: `book-buddy builds a book knowledge graph in Neo4j from the Amazon Books
review dataset, backfills Gemini embeddings onto its nodes, and answers
recommendation and lookup queries against it.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logMode, "log", "prod", "logging mode (prod or dev)")
}

// setup wires the pieces every subcommand needs: config, logger, graph
// connection. Callers must defer the returned cleanup.
func setup(ctx context.Context) (config.AppConfig, *graph.Store, *logging.Logger, func()) {
	appCfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logger, err := logging.New(logMode)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}

	store, err := graph.Connect(ctx, graph.Config{
		URI:      appCfg.Neo4jURI,
		Username: appCfg.Neo4jUser,
		Password: appCfg.Neo4jPassword,
		Database: appCfg.Neo4jDatabase,
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to graph database", "error", err)
	}

	cleanup := func() {
		store.Close(ctx)
		logger.Sync()
	}
	return appCfg, store, logger, cleanup
}
